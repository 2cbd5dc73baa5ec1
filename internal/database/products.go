package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/maltedev/catalog-scraper/internal/models"
)

// TxBeginner opens transactions; *DB and pgx pools satisfy it.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const createProductsTable = `
	CREATE TABLE IF NOT EXISTS scraped_products (
		id             BIGSERIAL PRIMARY KEY,
		run_id         UUID        NOT NULL,
		section        TEXT        NOT NULL,
		position       INTEGER     NOT NULL,
		title          TEXT        NOT NULL,
		description    TEXT        NOT NULL,
		price          NUMERIC(12, 2) NOT NULL,
		memory         INTEGER,
		rating         SMALLINT    NOT NULL,
		num_of_reviews INTEGER     NOT NULL,
		scraped_at     TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (run_id, section, position)
	);
	CREATE INDEX IF NOT EXISTS idx_scraped_products_run ON scraped_products (run_id);`

const insertProduct = `
	INSERT INTO scraped_products
		(run_id, section, position, title, description, price, memory, rating, num_of_reviews)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

// Migrate creates the scraped_products table if it does not exist.
func Migrate(ctx context.Context, db Execer) error {
	if _, err := db.Exec(ctx, createProductsTable); err != nil {
		return fmt.Errorf("failed to migrate scraped_products: %w", err)
	}
	return nil
}

type ProductRepository struct {
	db     TxBeginner
	logger *slog.Logger
}

func NewProductRepository(db TxBeginner, logger *slog.Logger) *ProductRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProductRepository{
		db:     db,
		logger: logger.With("component", "product_repository"),
	}
}

// SaveRun stores the records of one scraped section in a single
// transaction, keeping their listing position.
func (r *ProductRepository) SaveRun(ctx context.Context, runID, section string, products []models.Product) (err error) {
	if len(products) == 0 {
		return nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				err = fmt.Errorf("tx rollback failed: %v (original error: %w)", rbErr, err)
			}
		}
	}()

	for i, p := range products {
		if _, err = tx.Exec(ctx, insertProduct,
			runID, section, i, p.Title, p.Description, p.Price, p.Memory, p.Rating, p.NumOfReviews,
		); err != nil {
			return fmt.Errorf("failed to insert product %d: %w", i, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.logger.Debug("products saved", "run_id", runID, "section", section, "count", len(products))
	return nil
}
