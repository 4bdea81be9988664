package amazon

import (
	"context"
	"fmt"
	"sync"

	"price-tracker/config"
	"price-tracker/models"
	"price-tracker/utils"
)

// pageSession is the session surface the crawler drives. Production uses
// *Session; tests substitute a fake to exercise the pagination logic
// without a browser.
type pageSession interface {
	Open(ctx context.Context) error
	Search(query string) error
	Listings() ([]ListingNode, error)
	NextPage() (bool, error)
	CaptureDiagnostic(tag string)
	Close()
}

// Scraper drives one search crawl: a single browser session paginated
// across result pages, with per-item extraction fanned out concurrently
// on each page.
type Scraper struct {
	cfg       *config.Config
	logger    *utils.Logger
	extractor *Extractor

	newSession func() pageSession
}

// New creates a ready-to-use Scraper.
func New(cfg *config.Config, logger *utils.Logger) *Scraper {
	return &Scraper{
		cfg:        cfg,
		logger:     logger,
		extractor:  NewExtractor(cfg.BaseURL),
		newSession: func() pageSession { return NewSession(cfg, logger) },
	}
}

// Crawl searches the storefront for query and accumulates listings across
// up to maxPages result pages. A missing listing container or a missing
// next-page affordance ends pagination normally: whatever was gathered so
// far is returned with a nil error. Only a blocked session or a setup
// failure returns an error, and even then the browser is always released.
//
// Page order is strict 1..maxPages; extraction order within a page is not
// guaranteed.
func (s *Scraper) Crawl(ctx context.Context, query string, maxPages int) ([]*models.RawListing, error) {
	if maxPages < 1 {
		return nil, fmt.Errorf("amazon: max pages must be positive, got %d", maxPages)
	}

	s.logger.Info("[amazon] Starting crawl — query: %q, up to %d pages", query, maxPages)

	session := s.newSession()
	defer session.Close()

	if err := session.Open(ctx); err != nil {
		return nil, err
	}
	if err := session.Search(query); err != nil {
		return nil, err
	}

	seen := utils.NewURLSet()
	var all []*models.RawListing

	for page := 1; page <= maxPages; page++ {
		nodes, err := session.Listings()
		if err != nil {
			// End of results or soft block; either way pagination is
			// done and the accumulator stands.
			session.CaptureDiagnostic(fmt.Sprintf("missing-results-page-%d", page))
			s.logger.Warn("[amazon] Page %d for %q: no listing container — stopping: %v",
				page, query, err)
			break
		}

		pageListings := s.extractPage(nodes, seen)
		all = append(all, pageListings...)
		s.logger.Info("[amazon] Page %d — %d nodes, %d kept, %d total",
			page, len(nodes), len(pageListings), len(all))

		if page == maxPages {
			break
		}

		advanced, err := session.NextPage()
		if err != nil {
			s.logger.Warn("[amazon] Page %d for %q: could not advance — stopping: %v",
				page, query, err)
			break
		}
		if !advanced {
			s.logger.Info("[amazon] No next-page control after page %d — end of results", page)
			break
		}
	}

	s.logger.Info("[amazon] Crawl complete — %d listings for %q", len(all), query)
	return all, nil
}

// extractPage fans the extractor out over all listing nodes concurrently.
// Extraction per node is independent and I/O-bound (it waits on rendered
// DOM state), so concurrent dispatch cuts wall-clock time versus walking
// the nodes one by one. Nodes without a title are discarded; URLs already
// seen this crawl are skipped.
func (s *Scraper) extractPage(nodes []ListingNode, seen *utils.URLSet) []*models.RawListing {
	pool := utils.NewWorkerPool(s.cfg.MaxConcurrency, 0)

	var mu sync.Mutex
	var listings []*models.RawListing

	for _, node := range nodes {
		n := node
		pool.Submit(func() {
			listing := s.extractor.Extract(n)
			if listing == nil {
				return
			}
			if listing.URL != models.FieldUnavailable && !seen.Add(listing.URL) {
				s.logger.Debug("[amazon] Duplicate listing skipped: %s", listing.URL)
				return
			}
			mu.Lock()
			listings = append(listings, listing)
			mu.Unlock()
		})
	}
	pool.Wait()

	return listings
}
