package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/tudinhtu98/copee-nest/internal/domain"
)

// DestinationStorage reads destination store configuration. Credentials
// live on the row; the publisher decides which pair to use per request.
type DestinationStorage struct {
	db *sqlx.DB
}

// NewDestinationStorage creates a new DestinationStorage instance
func NewDestinationStorage(db *sqlx.DB) *DestinationStorage {
	return &DestinationStorage{db: db}
}

func (s *DestinationStorage) Get(ctx context.Context, id string) (*domain.Destination, error) {
	query := `
		SELECT
			id, user_id, name, base_url,
			consumer_key, consumer_secret, app_username, app_password,
			created_at, updated_at
		FROM destinations
		WHERE id = $1
	`

	var dest domain.Destination
	err := s.db.GetContext(ctx, &dest, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrDestinationNotFound
		}
		return nil, fmt.Errorf("failed to get destination: %w", err)
	}

	return &dest, nil
}
