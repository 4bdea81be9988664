package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"price-tracker/models"
	"price-tracker/storage"
	"price-tracker/utils"
)

// Crawler is the slice of the scraper the refresher needs: a bounded
// search crawl. Tests substitute a fake; production wires the Amazon
// scraper.
type Crawler interface {
	Crawl(ctx context.Context, query string, maxPages int) ([]*models.RawListing, error)
}

// Outcome reports what a single-product refresh did. None of these are
// errors: a product that vanished from the catalog or a result page
// without a parseable price is a no-op, not a failure to the scheduler.
type Outcome string

const (
	OutcomeUpdated  Outcome = "updated"
	OutcomeNotFound Outcome = "not_found"
	OutcomeNoResult Outcome = "no_result"
	OutcomeNoPrice  Outcome = "no_price"
)

// Refresher re-crawls known products to append fresh price observations.
// Single-product refreshes are independent: bulk refresh fans them out on
// the work queue and each may fail or succeed without affecting siblings.
type Refresher struct {
	store   storage.Store
	crawler Crawler
	queue   Queue
	site    string
	logger  *utils.Logger
}

// NewRefresher creates a Refresher with its own in-process queue of the
// given width.
func NewRefresher(store storage.Store, crawler Crawler, site string, workers int, logger *utils.Logger) *Refresher {
	r := &Refresher{
		store:   store,
		crawler: crawler,
		site:    site,
		logger:  logger,
	}
	r.queue = NewLocalQueue(workers, r.handle, logger)
	return r
}

func (r *Refresher) handle(ctx context.Context, job Job) error {
	if job.Kind != JobRefreshProduct {
		return fmt.Errorf("refresh: unknown job kind %q", job.Kind)
	}
	_, err := r.RefreshProduct(ctx, job.ProductID)
	return err
}

// RefreshProduct re-runs a one-page crawl scoped to the product's title
// and appends one observation from the first result. The first hit is
// trusted to be the same product; there is no further verification.
func (r *Refresher) RefreshProduct(ctx context.Context, id int64) (Outcome, error) {
	product, err := r.store.ProductByID(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		r.logger.Warn("[refresh] Product %d not in catalog — nothing to do", id)
		return OutcomeNotFound, nil
	}
	if err != nil {
		return "", fmt.Errorf("refresh: load product %d: %w", id, err)
	}

	results, err := r.crawler.Crawl(ctx, product.Title, 1)
	if err != nil {
		return "", fmt.Errorf("refresh: crawl for %q: %w", product.Title, err)
	}
	if len(results) == 0 {
		r.logger.Warn("[refresh] No results for %q — no observation", product.Title)
		return OutcomeNoResult, nil
	}

	amount, ok := refreshAmount(results[0].PriceText)
	if !ok {
		r.logger.Warn("[refresh] Unparseable price %q for %q — no observation",
			results[0].PriceText, product.Title)
		return OutcomeNoPrice, nil
	}

	obs := &models.PriceObservation{
		ProductID: product.ID,
		Site:      r.site,
		Amount:    amount,
	}
	if err := r.store.RecordObservation(ctx, obs); err != nil {
		return "", fmt.Errorf("refresh: record observation for product %d: %w", id, err)
	}

	r.logger.Info("[refresh] Product %d (%s): recorded %s", id, product.Title, amount.StringFixed(2))
	return OutcomeUpdated, nil
}

// RefreshAll enqueues one single-product refresh per catalog entry and
// returns the count enqueued. It does not wait for or aggregate the
// individual outcomes.
func (r *Refresher) RefreshAll(ctx context.Context) (int, error) {
	products, err := r.store.Products(ctx)
	if err != nil {
		return 0, fmt.Errorf("refresh: list products: %w", err)
	}

	for _, p := range products {
		r.queue.Submit(Job{Kind: JobRefreshProduct, ProductID: p.ID})
	}

	r.logger.Info("[refresh] Queued %d product refreshes", len(products))
	return len(products), nil
}

// Wait blocks until all queued refreshes have finished.
func (r *Refresher) Wait() {
	if q, ok := r.queue.(*LocalQueue); ok {
		q.Wait()
	}
}

// refreshAmount applies the refresh path's locale-light filter: commas
// become dots, everything but digits and dots is dropped, and the rest
// must parse to a positive amount. Unlike NormalizePrice this can reject
// input outright, in which case no observation is recorded.
func refreshAmount(text string) (decimal.Decimal, bool) {
	replaced := strings.ReplaceAll(text, ",", ".")

	var b strings.Builder
	for _, r := range replaced {
		if r == '.' || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}

	cleaned := b.String()
	if cleaned == "" {
		return decimal.Zero, false
	}
	amount, err := decimal.NewFromString(cleaned)
	if err != nil || !amount.IsPositive() {
		return decimal.Zero, false
	}
	return amount, true
}
