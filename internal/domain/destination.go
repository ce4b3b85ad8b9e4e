package domain

import "time"

// Destination is the external storefront a product is published to.
// ConsumerKey/ConsumerSecret authenticate the storefront catalog API;
// AppUsername/AppPassword authenticate the media-upload API, which may
// enforce different credentials on the same host.
type Destination struct {
	ID             string    `db:"id"`
	UserID         string    `db:"user_id"`
	Name           string    `db:"name"`
	BaseURL        string    `db:"base_url"`
	ConsumerKey    string    `db:"consumer_key"`
	ConsumerSecret string    `db:"consumer_secret"`
	AppUsername    string    `db:"app_username"`
	AppPassword    string    `db:"app_password"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// Configured reports whether the destination carries the minimum
// credentials needed to create listings.
func (d *Destination) Configured() bool {
	return d.BaseURL != "" && d.ConsumerKey != "" && d.ConsumerSecret != ""
}

// CategoryMapping maps a source category label to a destination
// category identifier for one destination.
type CategoryMapping struct {
	DestinationID string    `db:"destination_id"`
	SourceLabel   string    `db:"source_label"`
	TargetID      string    `db:"target_id"`
	CreatedAt     time.Time `db:"created_at"`
}
