// Package publisher turns a product into a listing on a destination
// storefront: it re-hosts the product images, resolves the category and
// calls the destination create-listing endpoint.
package publisher

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/tudinhtu98/copee-nest/internal/catalog"
	"github.com/tudinhtu98/copee-nest/internal/domain"
)

const fallbackListingName = "Copied product"

// ImageRelay re-hosts one source image on the destination media store.
type ImageRelay interface {
	Relay(ctx context.Context, dest *domain.Destination, sourceURL string) (string, error)
}

// CategoryResolver resolves the destination category for a product.
type CategoryResolver interface {
	Resolve(ctx context.Context, destinationID string, product *domain.Product, targetRef string) (catalog.CategoryRef, error)
}

// Publisher orchestrates a single publish call.
type Publisher struct {
	resolver CategoryResolver
	relay    ImageRelay
	client   *http.Client
	logger   *slog.Logger
}

// New creates a new Publisher. A nil client uses http.DefaultClient.
func New(resolver CategoryResolver, relay ImageRelay, client *http.Client, logger *slog.Logger) *Publisher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Publisher{
		resolver: resolver,
		relay:    relay,
		client:   client,
		logger:   logger,
	}
}

// Publish creates a listing for the product on the destination.
// targetCategory is the optional category id attached to the job.
//
// Images are best-effort: a failed relay drops that image, never the
// whole publish. A response without a listing id fails with
// UpstreamError even on HTTP 2xx.
func (p *Publisher) Publish(ctx context.Context, dest *domain.Destination, product *domain.Product, targetCategory string) (*Listing, error) {
	if !dest.Configured() {
		return nil, &domain.ConfigError{Reason: "missing base URL or API credentials"}
	}

	images := p.relayImages(ctx, dest, product)

	ref, err := p.resolver.Resolve(ctx, dest.ID, product, targetCategory)
	if err != nil {
		return nil, err
	}

	payload := p.buildPayload(product, ref, images)

	p.logger.Info("Creating listing on destination",
		slog.String("destination_id", dest.ID),
		slog.String("product_id", product.ID),
		slog.String("category", ref.String()),
		slog.Int("images", len(images)),
	)

	return p.createListing(ctx, dest, payload)
}

// relayImages re-hosts each source image in order, dropping failures.
// Fewer uploaded images than requested is recorded as a degradation
// warning so operators can see it.
func (p *Publisher) relayImages(ctx context.Context, dest *domain.Destination, product *domain.Product) []imagePayload {
	if len(product.Images) == 0 {
		return nil
	}

	images := make([]imagePayload, 0, len(product.Images))
	for i, src := range product.Images {
		mediaURL, err := p.relay.Relay(ctx, dest, src)
		if err != nil {
			p.logger.Warn("Image relay failed, listing will omit this image",
				slog.String("product_id", product.ID),
				slog.String("url", src),
				slog.Int("index", i+1),
				slog.Int("total", len(product.Images)),
				slog.String("error", err.Error()),
			)
			continue
		}
		images = append(images, imagePayload{Src: mediaURL})
	}

	if len(images) < len(product.Images) {
		p.logger.Warn("Listing degraded: some images could not be relayed",
			slog.String("product_id", product.ID),
			slog.Int("relayed", len(images)),
			slog.Int("requested", len(product.Images)),
		)
	}

	return images
}

func (p *Publisher) buildPayload(product *domain.Product, ref catalog.CategoryRef, images []imagePayload) *listingPayload {
	name := product.Title
	if name == "" {
		name = fallbackListingName
	}

	description := product.Description
	if product.SourceURL != "" {
		description += "\n\nSource: " + product.SourceURL
	}

	payload := &listingPayload{
		Name:        name,
		Type:        "simple",
		Description: description,
		Images:      images,
	}

	if product.Price > 0 {
		payload.RegularPrice = strconv.FormatInt(product.Price, 10)
	}

	if id, ok := ref.ID(); ok {
		payload.Categories = []categoryPayload{{ID: id}}
	} else if label, ok := ref.Label(); ok {
		payload.Categories = []categoryPayload{{Name: label}}
	}

	return payload
}
