// Package media re-hosts images: it downloads a source image and uploads
// it to the destination media store, returning the public URL.
package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/tudinhtu98/copee-nest/internal/backoff"
	"github.com/tudinhtu98/copee-nest/internal/domain"
)

// The source marketplace blocks bare fetches, so downloads carry
// browser-like headers.
const (
	downloadUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	downloadAccept    = "image/webp,image/apng,image/*,*/*;q=0.8"

	maxImageBytes = 32 << 20

	maxMediaResponseBytes = 1 << 20
	maxErrorBodyBytes     = 4096
)

// DownloadError indicates the source image could not be fetched.
type DownloadError struct {
	URL string
	Err error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("failed to download image %s: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// UploadError indicates the destination media endpoint rejected the upload.
type UploadError struct {
	StatusCode int
	Body       string
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("failed to upload image to media store (%d): %s", e.StatusCode, e.Body)
}

// Config holds relay tuning knobs. Zero values fall back to the
// reference behavior.
type Config struct {
	DownloadAttempts int           // default 3
	DownloadTimeout  time.Duration // per attempt, default 30s
	UploadTimeout    time.Duration // default 60s
	BackoffBase      time.Duration // default 1s
	BackoffMax       time.Duration // default 5s
	SourceReferer    string        // default https://shopee.vn/
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.DownloadAttempts <= 0 {
		out.DownloadAttempts = 3
	}
	if out.DownloadTimeout <= 0 {
		out.DownloadTimeout = 30 * time.Second
	}
	if out.UploadTimeout <= 0 {
		out.UploadTimeout = 60 * time.Second
	}
	if out.BackoffBase <= 0 {
		out.BackoffBase = time.Second
	}
	if out.BackoffMax <= 0 {
		out.BackoffMax = 5 * time.Second
	}
	if out.SourceReferer == "" {
		out.SourceReferer = "https://shopee.vn/"
	}
	return out
}

// Relay downloads source images and re-uploads them to a destination
// media store.
type Relay struct {
	client *http.Client
	config Config
	logger *slog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewRelay creates a new Relay. A nil client uses http.DefaultClient.
func NewRelay(client *http.Client, config Config, logger *slog.Logger) *Relay {
	if client == nil {
		client = http.DefaultClient
	}
	return &Relay{
		client: client,
		config: config.withDefaults(),
		logger: logger,
		sleep:  sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Relay fetches sourceURL and uploads it to the destination media
// endpoint, returning the public URL of the re-hosted image.
func (r *Relay) Relay(ctx context.Context, dest *domain.Destination, sourceURL string) (string, error) {
	data, contentType, err := r.download(ctx, sourceURL)
	if err != nil {
		return "", err
	}

	return r.upload(ctx, dest, sourceURL, data, contentType)
}

// download fetches the image with bounded retries and a per-attempt timeout.
func (r *Relay) download(ctx context.Context, sourceURL string) ([]byte, string, error) {
	var lastErr error

	for attempt := 1; attempt <= r.config.DownloadAttempts; attempt++ {
		data, contentType, err := r.downloadOnce(ctx, sourceURL)
		if err == nil {
			return data, contentType, nil
		}
		lastErr = err

		r.logger.Warn("Image download attempt failed",
			slog.String("url", sourceURL),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", r.config.DownloadAttempts),
			slog.String("error", err.Error()),
		)

		if attempt < r.config.DownloadAttempts {
			delay := backoff.Delay(attempt, r.config.BackoffBase, r.config.BackoffMax)
			if err := r.sleep(ctx, delay); err != nil {
				return nil, "", &DownloadError{URL: sourceURL, Err: err}
			}
		}
	}

	return nil, "", &DownloadError{URL: sourceURL, Err: lastErr}
}

func (r *Relay) downloadOnce(ctx context.Context, sourceURL string) ([]byte, string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.config.DownloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("User-Agent", downloadUserAgent)
	req.Header.Set("Accept", downloadAccept)
	req.Header.Set("Referer", r.config.SourceReferer)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, "", err
	}

	return data, resp.Header.Get("Content-Type"), nil
}

// upload sends the image as a multipart form to the destination media
// endpoint. Single attempt: a failed upload surfaces to the caller, which
// treats images as best-effort.
func (r *Relay) upload(ctx context.Context, dest *domain.Destination, sourceURL string, data []byte, contentType string) (string, error) {
	mimeType, ext := normalizeImageType(contentType)
	fileName := fileNameFor(sourceURL, ext)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, fileName))
	header.Set("Content-Type", mimeType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("failed to build multipart body: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("failed to build multipart body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to build multipart body: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.config.UploadTimeout)
	defer cancel()

	endpoint := strings.TrimRight(dest.BaseURL, "/") + "/wp-json/wp/v2/media"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("failed to build upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	// The media API may refuse the storefront API keys; prefer the
	// application credential when one is configured.
	if dest.AppUsername != "" && dest.AppPassword != "" {
		req.SetBasicAuth(dest.AppUsername, dest.AppPassword)
	} else {
		req.SetBasicAuth(dest.ConsumerKey, dest.ConsumerSecret)
	}

	r.logger.Debug("Uploading image to media store",
		slog.String("endpoint", endpoint),
		slog.String("file_name", fileName),
		slog.String("mime_type", mimeType),
		slog.Int("size_bytes", len(data)),
	)

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to reach media endpoint: %w", err)
	}
	defer resp.Body.Close()

	// A successful media response carries the full attachment object,
	// which routinely runs past a few KB before source_url appears.
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxMediaResponseBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read media response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := string(respBody)
		if len(msg) > maxErrorBodyBytes {
			msg = msg[:maxErrorBodyBytes]
		}
		return "", &UploadError{StatusCode: resp.StatusCode, Body: msg}
	}

	var media struct {
		SourceURL string `json:"source_url"`
	}
	if err := json.Unmarshal(respBody, &media); err != nil {
		return "", &UploadError{StatusCode: resp.StatusCode, Body: "invalid JSON response"}
	}
	if media.SourceURL == "" {
		return "", &UploadError{StatusCode: resp.StatusCode, Body: "response missing source_url"}
	}

	return media.SourceURL, nil
}
