package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/tudinhtu98/copee-nest/internal/catalog"
	"github.com/tudinhtu98/copee-nest/internal/domain"
)

// MappingStorage looks up per-destination category mappings.
type MappingStorage struct {
	db *sqlx.DB
}

// NewMappingStorage creates a new MappingStorage instance
func NewMappingStorage(db *sqlx.DB) *MappingStorage {
	return &MappingStorage{db: db}
}

func (s *MappingStorage) Find(ctx context.Context, destinationID, sourceLabel string) (*domain.CategoryMapping, error) {
	query := `
		SELECT destination_id, source_label, target_id, created_at
		FROM category_mappings
		WHERE destination_id = $1
		  AND source_label = $2
	`

	var mapping domain.CategoryMapping
	err := s.db.GetContext(ctx, &mapping, query, destinationID, sourceLabel)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, catalog.ErrMappingNotFound
		}
		return nil, fmt.Errorf("failed to find category mapping: %w", err)
	}

	return &mapping, nil
}
