package tasks

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"price-tracker/models"
	"price-tracker/storage"
	"price-tracker/utils"
)

// refreshStore is a minimal storage.Store fake for the refresh path.
type refreshStore struct {
	mu           sync.Mutex
	products     []*models.Product
	observations []*models.PriceObservation
}

func (s *refreshStore) Begin(ctx context.Context) (storage.Batch, error) {
	return nil, storage.ErrNotFound
}

func (s *refreshStore) ProductByID(ctx context.Context, id int64) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.products {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *refreshStore) Products(ctx context.Context) ([]*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*models.Product(nil), s.products...), nil
}

func (s *refreshStore) RecordObservation(ctx context.Context, o *models.PriceObservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o.ObservedAt = time.Now()
	s.observations = append(s.observations, o)
	return nil
}

func (s *refreshStore) ProductsWithLatestPrice(ctx context.Context) ([]*storage.LatestPrice, error) {
	return nil, nil
}

func (s *refreshStore) Close() error { return nil }

func (s *refreshStore) observationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.observations)
}

// fakeCrawler returns canned listings and records the queries it saw.
type fakeCrawler struct {
	mu        sync.Mutex
	results   []*models.RawListing
	queries   []string
	lastPages int
}

func (c *fakeCrawler) Crawl(ctx context.Context, query string, maxPages int) ([]*models.RawListing, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queries = append(c.queries, query)
	c.lastPages = maxPages
	return c.results, nil
}

func newTestRefresher(store *refreshStore, crawler *fakeCrawler) *Refresher {
	return NewRefresher(store, crawler, "amazon.com", 2, utils.NewLogger())
}

func TestRefreshProductNotFoundIsNoOp(t *testing.T) {
	store := &refreshStore{}
	r := newTestRefresher(store, &fakeCrawler{})

	outcome, err := r.RefreshProduct(context.Background(), 42)
	if err != nil {
		t.Fatalf("not-found must not be an error: %v", err)
	}
	if outcome != OutcomeNotFound {
		t.Errorf("outcome: got %s, want %s", outcome, OutcomeNotFound)
	}
	if store.observationCount() != 0 {
		t.Error("no observation must be recorded")
	}
}

func TestRefreshProductAppendsFirstResultPrice(t *testing.T) {
	store := &refreshStore{products: []*models.Product{{ID: 7, Title: "Widget"}}}
	crawler := &fakeCrawler{results: []*models.RawListing{
		{Title: "Widget Pro", URL: "http://x/wp", PriceText: "$19.99"},
		{Title: "Widget Clone", URL: "http://x/wc", PriceText: "$1.00"},
	}}
	r := newTestRefresher(store, crawler)

	outcome, err := r.RefreshProduct(context.Background(), 7)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if outcome != OutcomeUpdated {
		t.Errorf("outcome: got %s, want %s", outcome, OutcomeUpdated)
	}

	if len(crawler.queries) != 1 || crawler.queries[0] != "Widget" {
		t.Errorf("crawl queries: got %v, want [Widget]", crawler.queries)
	}
	if crawler.lastPages != 1 {
		t.Errorf("refresh crawl must be capped at one page, got %d", crawler.lastPages)
	}

	if store.observationCount() != 1 {
		t.Fatalf("observations: got %d, want 1", store.observationCount())
	}
	obs := store.observations[0]
	if obs.ProductID != 7 || obs.Site != "amazon.com" {
		t.Errorf("observation identity: %+v", obs)
	}
	if want := decimal.RequireFromString("19.99"); !obs.Amount.Equal(want) {
		t.Errorf("amount: got %s, want %s", obs.Amount, want)
	}
}

func TestRefreshProductNoResults(t *testing.T) {
	store := &refreshStore{products: []*models.Product{{ID: 1, Title: "Ghost"}}}
	r := newTestRefresher(store, &fakeCrawler{})

	outcome, err := r.RefreshProduct(context.Background(), 1)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if outcome != OutcomeNoResult {
		t.Errorf("outcome: got %s, want %s", outcome, OutcomeNoResult)
	}
}

func TestRefreshProductUnparseablePrice(t *testing.T) {
	store := &refreshStore{products: []*models.Product{{ID: 1, Title: "Widget"}}}
	crawler := &fakeCrawler{results: []*models.RawListing{
		{Title: "Widget", URL: "http://x/w", PriceText: "N/A"},
	}}
	r := newTestRefresher(store, crawler)

	outcome, err := r.RefreshProduct(context.Background(), 1)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if outcome != OutcomeNoPrice {
		t.Errorf("outcome: got %s, want %s", outcome, OutcomeNoPrice)
	}
	if store.observationCount() != 0 {
		t.Error("no observation must be recorded for an unparseable price")
	}
}

func TestRefreshAllFansOutPerProduct(t *testing.T) {
	store := &refreshStore{products: []*models.Product{
		{ID: 1, Title: "A"},
		{ID: 2, Title: "B"},
		{ID: 3, Title: "C"},
	}}
	crawler := &fakeCrawler{results: []*models.RawListing{
		{Title: "Hit", URL: "http://x/h", PriceText: "$5.00"},
	}}
	r := newTestRefresher(store, crawler)

	count, err := r.RefreshAll(context.Background())
	if err != nil {
		t.Fatalf("refresh-all: %v", err)
	}
	if count != 3 {
		t.Errorf("enqueued: got %d, want 3", count)
	}

	r.Wait()

	if store.observationCount() != 3 {
		t.Errorf("observations after wait: got %d, want 3", store.observationCount())
	}
}

func TestRefreshAmountFilter(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"$19.99", "19.99", true},
		{"19,99", "19.99", true}, // comma decimal handled on the refresh path
		{"1299", "1299", true},
		{"N/A", "", false},
		{"", "", false},
		{"$1,234.56", "", false}, // comma→dot leaves two dots, rejected
		{"0.00", "", false},
	}

	for _, c := range cases {
		got, ok := refreshAmount(c.in)
		if ok != c.ok {
			t.Errorf("refreshAmount(%q): ok=%v, want %v", c.in, ok, c.ok)
			continue
		}
		if ok {
			want := decimal.RequireFromString(c.want)
			if !got.Equal(want) {
				t.Errorf("refreshAmount(%q): got %s, want %s", c.in, got, want)
			}
		}
	}
}
