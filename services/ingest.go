package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"price-tracker/models"
	"price-tracker/storage"
	"price-tracker/utils"
)

// Reconciler folds raw scraped batches into the persistent catalog:
// listings resolve to existing products by canonical URL or create new
// ones, and each meaningful price becomes one appended observation.
type Reconciler struct {
	store  storage.Store
	site   string
	logger *utils.Logger
}

// NewReconciler creates a Reconciler recording observations under the
// given marketplace identifier.
func NewReconciler(store storage.Store, site string, logger *utils.Logger) *Reconciler {
	return &Reconciler{store: store, site: site, logger: logger}
}

// Ingest processes one crawl's batch as a single atomic unit and returns
// the number of observations recorded. A bad record is logged and skipped
// without aborting its siblings; only a failed commit fails the call, in
// which case the whole batch is rolled back.
func (r *Reconciler) Ingest(ctx context.Context, batch []*models.RawListing) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}

	tx, err := r.store.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("ingest: begin batch: %w", err)
	}

	saved := 0
	for _, raw := range batch {
		recorded, err := r.ingestOne(tx, raw)
		if err != nil {
			r.logger.Error("[ingest] Skipping record %q: %v", recordTitle(raw), err)
			continue
		}
		if recorded {
			saved++
		}
	}

	if err := tx.Commit(); err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("ingest: commit batch: %w", err)
	}

	r.logger.Info("[ingest] Batch done — %d/%d records produced observations", saved, len(batch))
	return saved, nil
}

// ingestOne handles a single record inside the batch transaction. It
// reports whether an observation was recorded.
func (r *Reconciler) ingestOne(tx storage.Batch, raw *models.RawListing) (bool, error) {
	if raw == nil {
		return false, errors.New("nil record")
	}

	url := strings.TrimSpace(raw.URL)
	if url == "" || url == models.FieldUnavailable {
		return false, errors.New("record has no canonical url")
	}

	product, err := tx.ProductByURL(url)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		product = &models.Product{
			Title:    raw.Title,
			URL:      url,
			ImageURL: raw.ImageURL,
		}
		if err := tx.CreateProduct(product); err != nil {
			return false, err
		}
		r.logger.Info("[ingest] New product: %s", recordTitle(raw))
	case err != nil:
		return false, err
	}

	amount := NormalizePrice(raw.PriceText)
	if !amount.IsPositive() {
		// Zero means unparseable (or genuinely free); either way the
		// observation is not worth keeping.
		r.logger.Warn("[ingest] No usable price for %s (%q) — observation skipped",
			recordTitle(raw), raw.PriceText)
		return false, nil
	}

	obs := &models.PriceObservation{
		ProductID: product.ID,
		Site:      r.site,
		Amount:    amount,
	}
	if err := tx.AddObservation(obs); err != nil {
		return false, err
	}
	return true, nil
}

func recordTitle(raw *models.RawListing) string {
	if raw == nil || raw.Title == "" {
		return "<untitled>"
	}
	if runes := []rune(raw.Title); len(runes) > 50 {
		return string(runes[:50]) + "..."
	}
	return raw.Title
}
