package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/tudinhtu98/copee-nest/internal/domain"
)

// ProductStorage reads products and records their publish outcome.
type ProductStorage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewProductStorage creates a new ProductStorage instance
func NewProductStorage(db *sqlx.DB, logger *slog.Logger) *ProductStorage {
	return &ProductStorage{
		db:     db,
		logger: logger,
	}
}

func (s *ProductStorage) Get(ctx context.Context, id string) (*domain.Product, error) {
	query := `
		SELECT
			id, user_id, source_url, title, description, price, currency,
			category, category_id, images, status, error_message,
			created_at, updated_at
		FROM products
		WHERE id = $1
	`

	var product domain.Product
	err := s.db.GetContext(ctx, &product, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	return &product, nil
}

// MarkUploaded flips the product to UPLOADED and clears any stale error.
func (s *ProductStorage) MarkUploaded(ctx context.Context, id string) error {
	return s.setStatus(ctx, id, domain.ProductStatusUploaded, "")
}

// MarkRetrying keeps the product in DRAFT with the latest attempt error
// so the owner can see why it has not published yet.
func (s *ProductStorage) MarkRetrying(ctx context.Context, id, errorMessage string) error {
	return s.setStatus(ctx, id, domain.ProductStatusDraft, errorMessage)
}

func (s *ProductStorage) MarkFailed(ctx context.Context, id, errorMessage string) error {
	return s.setStatus(ctx, id, domain.ProductStatusFailed, errorMessage)
}

func (s *ProductStorage) setStatus(ctx context.Context, id, status, errorMessage string) error {
	query := `
		UPDATE products
		SET status = $1,
		    error_message = $2,
		    updated_at = NOW()
		WHERE id = $3
	`

	res, err := s.db.ExecContext(ctx, query, status, errorMessage, id)
	if err != nil {
		return fmt.Errorf("failed to update product status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return domain.ErrProductNotFound
	}

	return nil
}
