package domain

import "time"

// Product status constants
const (
	ProductStatusDraft    = "DRAFT"
	ProductStatusReady    = "READY"
	ProductStatusUploaded = "UPLOADED"
	ProductStatusFailed   = "FAILED"
)

// Product is the listing being published. The pipeline reads
// title/price/description/images/category and writes status/error_message.
type Product struct {
	ID           string    `db:"id"`
	UserID       string    `db:"user_id"`
	SourceURL    string    `db:"source_url"`
	Title        string    `db:"title"`
	Description  string    `db:"description"`
	Price        int64     `db:"price"`
	Currency     string    `db:"currency"`
	Category     string    `db:"category"`     // source category label
	CategoryID   string    `db:"category_id"`  // already-resolved destination category, if any
	Images       ImageList `db:"images"`       // ordered source image URLs
	Status       string    `db:"status"`
	ErrorMessage string    `db:"error_message"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}
