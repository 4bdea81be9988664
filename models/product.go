package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// FieldUnavailable is the sentinel recorded for optional listing fields
// that could not be recovered from the page markup.
const FieldUnavailable = "N/A"

// RawListing holds unprocessed scraped data for one search-result entry,
// exactly as read from the browser. It lives only for the duration of one
// crawl; the ingestion step reconciles it against the catalog.
type RawListing struct {
	Title     string
	URL       string
	ImageURL  string
	PriceText string
	ScrapedAt time.Time
}

// Product is one catalog entry. Identity is the canonical absolute URL,
// unique across the catalog. A product is created the first time its URL
// is seen during ingestion and is never deleted by this pipeline.
type Product struct {
	ID        int64
	Title     string
	URL       string
	ImageURL  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PriceObservation is one timestamped price reading for a product from one
// source site. Observations are append-only: history per product grows
// monotonically and individual rows are never mutated or deleted.
type PriceObservation struct {
	ID         int64
	ProductID  int64
	Site       string
	Amount     decimal.Decimal
	ObservedAt time.Time
}
