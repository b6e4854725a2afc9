package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/Chative-Voice-Commerce/agent/contract"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

var ErrProductNotFound = errors.New("product not found")

type DatabaseConfig struct {
	DSN          string        `envconfig:"DSN" required:"true"`
	Timeout      time.Duration `split_words:"true" default:"5s"`
	MaxOpenConns int           `split_words:"true" default:"10"`
}

func (c DatabaseConfig) Validate() error {
	if strings.TrimSpace(c.DSN) == "" {
		return fmt.Errorf("%w: database dsn is required", contractx.ErrValidation)
	}
	return nil
}

// OpenDB opens the read-only shop database.
func OpenDB(cfg DatabaseConfig) (*bun.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts := []pgdriver.Option{pgdriver.WithDSN(strings.TrimSpace(cfg.DSN))}
	if cfg.Timeout > 0 {
		opts = append(opts, pgdriver.WithTimeout(cfg.Timeout))
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(opts...))
	if cfg.MaxOpenConns > 0 {
		sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	return bun.NewDB(sqldb, pgdialect.New()), nil
}

// Repository reads the agent_vw_* product views.
type Repository struct {
	db bun.IDB
}

func NewRepository(db bun.IDB) (*Repository, error) {
	if db == nil {
		return nil, errors.New("database is required")
	}
	return &Repository{db: db}, nil
}

func (r *Repository) ProductsForVector(ctx context.Context) ([]ProductForVector, error) {
	var rows []ProductForVector
	if err := r.db.NewSelect().Model(&rows).Order("product_id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("select products for vector: %w", err)
	}
	return rows, nil
}

func (r *Repository) Detail(ctx context.Context, ref contractx.ProductRef) (contractx.ProductDetail, error) {
	if !ref.Type.Valid() {
		return nil, fmt.Errorf("%w: %q", contractx.ErrInvalidProductType, ref.Type)
	}

	model := emptyDetail(ref.Type)
	err := r.db.NewSelect().Model(model).Where("product_id = ?", ref.ID).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, ref)
	}
	if err != nil {
		return nil, fmt.Errorf("select %s detail: %w", ref.Type, err)
	}
	return model, nil
}
