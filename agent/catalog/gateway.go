package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/Chative-Voice-Commerce/agent/contract"
)

type SearchConfig struct {
	BaseURL    string  `envconfig:"BASE_URL" required:"true"`
	MaxResults int     `envconfig:"MAX_RESULTS" default:"2"`
	Threshold  float64 `envconfig:"THRESHOLD" default:"0.4"`
	Namespace  string  `envconfig:"NAMESPACE" default:"default"`
}

func (c SearchConfig) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return fmt.Errorf("%w: search base url is required", contractx.ErrValidation)
	}
	if c.Threshold < 0 || c.Threshold > 1 {
		return fmt.Errorf("%w: search threshold must be within [0,1]", contractx.ErrValidation)
	}
	return nil
}

// VectorSource lists the products to embed.
type VectorSource interface {
	ProductsForVector(ctx context.Context) ([]ProductForVector, error)
}

// DetailSource loads one typed product detail.
type DetailSource interface {
	Detail(ctx context.Context, ref contractx.ProductRef) (contractx.ProductDetail, error)
}

// Gateway implements contract.CatalogGateway over the shop database,
// an embedding index and a detail cache.
type Gateway struct {
	vectors  VectorSource
	details  DetailSource
	embedder Embedder
	cache    Cache
	index    *Index
	cfg      SearchConfig

	reindexMu sync.Mutex
}

var _ contractx.CatalogGateway = (*Gateway)(nil)

type GatewayOption func(*Gateway)

func WithCache(c Cache) GatewayOption {
	return func(g *Gateway) {
		if c != nil {
			g.cache = c
		}
	}
}

func WithIndex(x *Index) GatewayOption {
	return func(g *Gateway) {
		if x != nil {
			g.index = x
		}
	}
}

func NewGateway(vectors VectorSource, details DetailSource, embedder Embedder, cfg SearchConfig, opts ...GatewayOption) (*Gateway, error) {
	if vectors == nil || details == nil {
		return nil, errors.New("catalog sources are required")
	}
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 2
	}
	if strings.TrimSpace(cfg.Namespace) == "" {
		cfg.Namespace = "default"
	}

	g := &Gateway{
		vectors:  vectors,
		details:  details,
		embedder: embedder,
		cache:    NoopCache{},
		index:    NewIndex(),
		cfg:      cfg,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g, nil
}

func (g *Gateway) Threshold() float64 {
	return g.cfg.Threshold
}

// Reindex rebuilds the search index from the vector view.
func (g *Gateway) Reindex(ctx context.Context) (int, error) {
	g.reindexMu.Lock()
	defer g.reindexMu.Unlock()

	rows, err := g.vectors.ProductsForVector(ctx)
	if err != nil {
		return 0, err
	}

	candidates := make([]contractx.Candidate, 0, len(rows))
	docs := make([]string, 0, len(rows))
	for _, row := range rows {
		c := row.Candidate(g.cfg.BaseURL)
		candidates = append(candidates, c)
		docs = append(docs, c.Document)
	}

	var vectors [][]float64
	if len(docs) > 0 {
		vectors, err = g.embedder.Embed(ctx, docs)
		if err != nil {
			return 0, fmt.Errorf("embed catalog: %w", err)
		}
	}

	n := g.index.Replace(candidates, vectors)
	log.Info().Int("products", len(rows)).Int("indexed", n).Msg("catalog reindexed")
	return n, nil
}

func (g *Gateway) Search(ctx context.Context, query string) ([]contractx.Candidate, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: search query is empty", contractx.ErrValidation)
	}

	vectors, err := g.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, nil
	}
	return g.index.Query(vectors[0], g.cfg.MaxResults, 0), nil
}

func (g *Gateway) FetchDetail(ctx context.Context, ref contractx.ProductRef) (contractx.ProductDetail, error) {
	if !ref.Type.Valid() {
		return nil, fmt.Errorf("%w: %q", contractx.ErrInvalidProductType, ref.Type)
	}

	key := g.cacheKey(ref)
	cached := emptyDetail(ref.Type)
	hit, err := g.cache.Get(ctx, key, cached)
	if err != nil {
		log.Warn().Err(err).Str("product", ref.String()).Msg("detail cache read failed")
	}
	if hit && err == nil {
		return cached, nil
	}

	detail, err := g.details.Detail(ctx, ref)
	if err != nil {
		return nil, err
	}
	if err := g.cache.Set(ctx, key, detail); err != nil {
		log.Warn().Err(err).Str("product", ref.String()).Msg("detail cache write failed")
	}
	return detail, nil
}

func (g *Gateway) cacheKey(ref contractx.ProductRef) string {
	return fmt.Sprintf("%s:product:%s:%d", g.cfg.Namespace, ref.Type, ref.ID)
}

func emptyDetail(t contractx.ProductType) contractx.ProductDetail {
	switch t {
	case contractx.ProductVariant:
		return &BasicVariantDetail{}
	case contractx.ProductCustomizable:
		return &CustomizableDetail{}
	default:
		return &BasicSingleDetail{}
	}
}
