package storage

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"price-tracker/models"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("storage: not found")

// Batch is one atomic ingestion unit over the catalog. Writes made through
// a Batch are visible to its own later lookups before Commit, so a URL
// created mid-batch is found by a subsequent ProductByURL in the same
// batch.
type Batch interface {
	// ProductByURL resolves a catalog entry by canonical URL.
	// Returns ErrNotFound when the URL is unknown.
	ProductByURL(url string) (*models.Product, error)

	// CreateProduct inserts a product and fills in its ID and
	// timestamps. A concurrent create of the same URL must not produce
	// a duplicate row: the loser of the race degrades to an update.
	CreateProduct(p *models.Product) error

	// AddObservation appends one price observation and bumps the
	// owning product's updated_at.
	AddObservation(o *models.PriceObservation) error

	Commit() error
	Rollback() error
}

// Store is the persistent catalog shared across crawls and refresh tasks.
type Store interface {
	Begin(ctx context.Context) (Batch, error)

	ProductByID(ctx context.Context, id int64) (*models.Product, error)
	Products(ctx context.Context) ([]*models.Product, error)

	// RecordObservation appends a single observation outside of any
	// ingestion batch (used by the refresh path).
	RecordObservation(ctx context.Context, o *models.PriceObservation) error

	// ProductsWithLatestPrice returns every catalog entry together with
	// its most recent observation, if any.
	ProductsWithLatestPrice(ctx context.Context) ([]*LatestPrice, error)

	Close() error
}

// LatestPrice pairs a product with its most recent price observation.
// Latest is invalid when the product has no observations yet.
type LatestPrice struct {
	Product      *models.Product
	Latest       decimal.NullDecimal
	Observations int
}

// RawListingWriter is the interface for exporting unprocessed scraped data.
type RawListingWriter interface {
	WriteRaw(listings []*models.RawListing) error
	Close() error
}
