package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tudinhtu98/copee-nest/internal/domain"
)

// listingPayload is the create-listing request body for the destination
// catalog API.
type listingPayload struct {
	Name         string            `json:"name"`
	Type         string            `json:"type"`
	RegularPrice string            `json:"regular_price,omitempty"`
	Description  string            `json:"description,omitempty"`
	Categories   []categoryPayload `json:"categories,omitempty"`
	Images       []imagePayload    `json:"images,omitempty"`
}

type categoryPayload struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

type imagePayload struct {
	Src string `json:"src"`
}

// Listing is the destination-side representation of a published product.
type Listing struct {
	ID        string
	Permalink string
}

// createListing POSTs the payload to the destination catalog endpoint and
// validates that a listing identifier came back. A 2xx response without
// an id is not trusted and surfaces as an UpstreamError.
func (p *Publisher) createListing(ctx context.Context, dest *domain.Destination, payload *listingPayload) (*Listing, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode listing payload: %w", err)
	}

	endpoint := strings.TrimRight(dest.BaseURL, "/") + "/wp-json/wc/v3/products"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build listing request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(dest.ConsumerKey, dest.ConsumerSecret)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach destination API: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, fmt.Errorf("failed to read destination response: %w", err)
	}

	var decoded struct {
		ID        json.Number `json:"id"`
		Permalink string      `json:"permalink"`
		Message   string      `json:"message"`
		Code      string      `json:"code"`
	}
	if err := json.Unmarshal(respBody, &decoded); err != nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil, &domain.UpstreamError{StatusCode: resp.StatusCode, Body: truncate(string(respBody), 200)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := decoded.Message
		if msg == "" {
			msg = decoded.Code
		}
		if msg == "" {
			msg = truncate(string(respBody), 200)
		}
		return nil, &domain.UpstreamError{StatusCode: resp.StatusCode, Body: msg}
	}

	if decoded.ID.String() == "" || decoded.ID.String() == "0" {
		return nil, &domain.UpstreamError{
			StatusCode: resp.StatusCode,
			Body:       "success response missing listing id: " + truncate(string(respBody), 200),
		}
	}

	return &Listing{ID: decoded.ID.String(), Permalink: decoded.Permalink}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
