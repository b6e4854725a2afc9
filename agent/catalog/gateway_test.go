package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	contractx "github.com/tanpawarit/Chative-Voice-Commerce/agent/contract"
)

type fakeRepository struct {
	rows    []ProductForVector
	details map[contractx.ProductRef]contractx.ProductDetail

	mu    sync.Mutex
	loads int
}

func (f *fakeRepository) ProductsForVector(context.Context) ([]ProductForVector, error) {
	return f.rows, nil
}

func (f *fakeRepository) Detail(_ context.Context, ref contractx.ProductRef) (contractx.ProductDetail, error) {
	f.mu.Lock()
	f.loads++
	f.mu.Unlock()
	d, ok := f.details[ref]
	if !ok {
		return nil, ErrProductNotFound
	}
	return d, nil
}

// fakeEmbedder maps known documents to fixed vectors.
type fakeEmbedder struct {
	vectors map[string][]float64
}

func (f fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, text := range texts {
		v, ok := f.vectors[text]
		if !ok {
			v = []float64{0, 0, 1}
		}
		out[i] = v
	}
	return out, nil
}

type memoryCache struct {
	mu    sync.Mutex
	items map[string][]byte
}

func (m *memoryCache) Get(_ context.Context, key string, dst any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.items[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dst)
}

func (m *memoryCache) Set(_ context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.items == nil {
		m.items = map[string][]byte{}
	}
	m.items[key] = raw
	return nil
}

func (m *memoryCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

func newTestGateway(t *testing.T, repo *fakeRepository, cache Cache) *Gateway {
	t.Helper()

	embedder := fakeEmbedder{vectors: map[string][]float64{
		"Classic Burger - Beef patty": {1, 0, 0},
		"Veggie Wrap - Greens":        {0, 1, 0},
		"burger":                      {0.9, 0.1, 0},
	}}
	g, err := NewGateway(repo, repo, embedder, SearchConfig{BaseURL: "https://shop.example.com", Namespace: "shop1"}, WithCache(cache))
	if err != nil {
		t.Fatalf("NewGateway() error = %v", err)
	}
	return g
}

func TestGatewaySearchAfterReindex(t *testing.T) {
	t.Parallel()

	repo := &fakeRepository{rows: []ProductForVector{
		{ProductID: 1, ProductName: "Classic Burger", ProductDescription: "Beef patty", ProductPermalink: "classic-burger"},
		{ProductID: 2, ProductName: "Veggie Wrap", ProductDescription: "Greens", ProductPermalink: "veggie-wrap", HasOptions: 1},
	}}
	g := newTestGateway(t, repo, nil)

	n, err := g.Reindex(context.Background())
	if err != nil {
		t.Fatalf("Reindex() error = %v", err)
	}
	if n != 2 {
		t.Fatalf("Reindex() = %d, want 2", n)
	}

	hits, err := g.Search(context.Background(), "burger")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("Search() returned %d hits, want default max of 2", len(hits))
	}
	top := hits[0]
	if top.ID != 1 || top.Type != contractx.ProductBasic || top.Rank != 1 {
		t.Fatalf("unexpected top hit: %#v", top)
	}
	if top.RedirectURL != "https://shop.example.com/product/classic-burger" {
		t.Fatalf("unexpected redirect url: %q", top.RedirectURL)
	}
	if top.Score < 0.4 || hits[1].Score > top.Score {
		t.Fatalf("unexpected scores: %v, %v", top.Score, hits[1].Score)
	}
}

func TestGatewaySearchRejectsEmptyQuery(t *testing.T) {
	t.Parallel()

	g := newTestGateway(t, &fakeRepository{}, nil)
	if _, err := g.Search(context.Background(), "  "); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestGatewayFetchDetailUsesCache(t *testing.T) {
	t.Parallel()

	ref := contractx.ProductRef{ID: 2, Type: contractx.ProductCustomizable}
	repo := &fakeRepository{details: map[contractx.ProductRef]contractx.ProductDetail{
		ref: &CustomizableDetail{ProductCore: ProductCore{ProductID: 2, ProductName: "Veggie Wrap"}},
	}}
	cache := &memoryCache{}
	g := newTestGateway(t, repo, cache)

	for i := 0; i < 2; i++ {
		d, err := g.FetchDetail(context.Background(), ref)
		if err != nil {
			t.Fatalf("FetchDetail() error = %v", err)
		}
		if d.Name() != "Veggie Wrap" || d.Ref() != ref {
			t.Fatalf("unexpected detail: %#v", d)
		}
		if _, ok := d.(*CustomizableDetail); !ok {
			t.Fatalf("expected *CustomizableDetail, got %T", d)
		}
	}
	if repo.loads != 1 {
		t.Fatalf("repository loads = %d, want 1", repo.loads)
	}
	if _, ok := cache.items["shop1:product:customizable:2"]; !ok {
		t.Fatalf("expected cache entry, got %#v", cache.items)
	}
}

func TestGatewayFetchDetailInvalidType(t *testing.T) {
	t.Parallel()

	g := newTestGateway(t, &fakeRepository{}, nil)
	_, err := g.FetchDetail(context.Background(), contractx.ProductRef{ID: 1, Type: "bundle"})
	if !errors.Is(err, contractx.ErrInvalidProductType) {
		t.Fatalf("expected ErrInvalidProductType, got %v", err)
	}
}
