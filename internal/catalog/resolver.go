package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tudinhtu98/copee-nest/internal/domain"
)

// ErrMappingNotFound is returned by MappingStore when no mapping exists
// for the (destination, source label) pair.
var ErrMappingNotFound = errors.New("category mapping not found")

// MappingStore looks up stored category mappings.
type MappingStore interface {
	Find(ctx context.Context, destinationID, sourceLabel string) (*domain.CategoryMapping, error)
}

// Resolver picks the destination category for a product using an
// explicit priority chain:
//
//  1. a category id already resolved on the product
//  2. the target category id supplied with the job
//  3. a stored mapping for (destination, source label)
//  4. the raw source label, sent as a name for the destination to
//     create-or-match
//
// With none of the above, the reference stays unset and the listing is
// created without a category.
type Resolver struct {
	store  MappingStore
	logger *slog.Logger
}

// NewResolver creates a new Resolver
func NewResolver(store MappingStore, logger *slog.Logger) *Resolver {
	return &Resolver{store: store, logger: logger}
}

// Resolve returns the category reference for the product on the given
// destination. targetRef is the optional category id attached to the job.
func (r *Resolver) Resolve(ctx context.Context, destinationID string, product *domain.Product, targetRef string) (CategoryRef, error) {
	if product.CategoryID != "" {
		return Resolved(product.CategoryID), nil
	}

	if targetRef != "" {
		r.logger.Debug("Using category id supplied with the job",
			slog.String("product_id", product.ID),
			slog.String("category_id", targetRef),
		)
		return Resolved(targetRef), nil
	}

	if product.Category == "" {
		return Unset(), nil
	}

	mapping, err := r.store.Find(ctx, destinationID, product.Category)
	if err != nil {
		if errors.Is(err, ErrMappingNotFound) {
			r.logger.Debug("No category mapping, falling back to label",
				slog.String("destination_id", destinationID),
				slog.String("label", product.Category),
			)
			return Name(product.Category), nil
		}
		return Unset(), fmt.Errorf("failed to look up category mapping: %w", err)
	}

	if mapping.TargetID == "" {
		return Name(product.Category), nil
	}

	return Resolved(mapping.TargetID), nil
}
