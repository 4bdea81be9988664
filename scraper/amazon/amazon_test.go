package amazon

import (
	"context"
	"errors"
	"testing"

	"price-tracker/config"
	"price-tracker/utils"
)

// fakeSession serves scripted pages to the crawler.
type fakeSession struct {
	pages   [][]ListingNode
	openErr error

	pageIdx       int
	listingsCalls int
	nextCalls     int
	diagnostics   []string
	closed        bool
	failListingAt int // 1-based page whose Listings call errors; 0 = never
}

func (f *fakeSession) Open(ctx context.Context) error { return f.openErr }
func (f *fakeSession) Search(query string) error      { return nil }

func (f *fakeSession) Listings() ([]ListingNode, error) {
	f.listingsCalls++
	if f.failListingAt > 0 && f.listingsCalls == f.failListingAt {
		return nil, errors.New("container never appeared")
	}
	if f.pageIdx >= len(f.pages) {
		return nil, errors.New("container never appeared")
	}
	return f.pages[f.pageIdx], nil
}

func (f *fakeSession) NextPage() (bool, error) {
	f.nextCalls++
	if f.pageIdx+1 >= len(f.pages) {
		return false, nil
	}
	f.pageIdx++
	return true, nil
}

func (f *fakeSession) CaptureDiagnostic(tag string) {
	f.diagnostics = append(f.diagnostics, tag)
}

func (f *fakeSession) Close() { f.closed = true }

func listingPage(entries ...[2]string) []ListingNode {
	var nodes []ListingNode
	for _, e := range entries {
		nodes = append(nodes, &fakeNode{
			texts: map[string]string{titleSel: e[0], priceSel: "$10.00"},
			attrs: map[string]map[string]string{linkSel: {"href": e[1]}},
		})
	}
	return nodes
}

func newTestScraper(session *fakeSession) *Scraper {
	cfg := &config.Config{BaseURL: "https://www.amazon.com", MaxConcurrency: 3}
	s := New(cfg, utils.NewLogger())
	s.newSession = func() pageSession { return session }
	return s
}

func TestCrawlPaginationBound(t *testing.T) {
	session := &fakeSession{pages: [][]ListingNode{
		listingPage([2]string{"P1", "/p1"}),
		listingPage([2]string{"P2", "/p2"}),
		listingPage([2]string{"P3", "/p3"}),
		listingPage([2]string{"P4", "/p4"}),
	}}
	s := newTestScraper(session)

	listings, err := s.Crawl(context.Background(), "widget", 2)
	if err != nil {
		t.Fatalf("crawl: %v", err)
	}

	if session.listingsCalls != 2 {
		t.Errorf("pages visited: got %d, want exactly 2", session.listingsCalls)
	}
	if session.nextCalls != 1 {
		t.Errorf("next-page activations: got %d, want 1 (none after the last allowed page)", session.nextCalls)
	}
	if len(listings) != 2 {
		t.Errorf("listings: got %d, want 2", len(listings))
	}
	if !session.closed {
		t.Error("session must be closed after the crawl")
	}
}

func TestCrawlStopsWhenContainerMissing(t *testing.T) {
	session := &fakeSession{
		pages: [][]ListingNode{
			listingPage([2]string{"P1", "/p1"}),
			listingPage([2]string{"P2", "/p2"}),
		},
		failListingAt: 2,
	}
	s := newTestScraper(session)

	listings, err := s.Crawl(context.Background(), "widget", 5)
	if err != nil {
		t.Fatalf("a missing container is not an error: %v", err)
	}
	if len(listings) != 1 {
		t.Errorf("listings: got %d, want the first page's 1", len(listings))
	}
	if len(session.diagnostics) != 1 || session.diagnostics[0] != "missing-results-page-2" {
		t.Errorf("diagnostics: got %v", session.diagnostics)
	}
}

func TestCrawlStopsAtEndOfResults(t *testing.T) {
	session := &fakeSession{pages: [][]ListingNode{
		listingPage([2]string{"Only", "/only"}),
	}}
	s := newTestScraper(session)

	listings, err := s.Crawl(context.Background(), "widget", 5)
	if err != nil {
		t.Fatalf("crawl: %v", err)
	}
	if len(listings) != 1 {
		t.Errorf("listings: got %d, want 1", len(listings))
	}
	if session.listingsCalls != 1 {
		t.Errorf("pages visited: got %d, want 1", session.listingsCalls)
	}
}

func TestCrawlBlockedSessionReleasesBrowser(t *testing.T) {
	session := &fakeSession{openErr: ErrBlocked}
	s := newTestScraper(session)

	_, err := s.Crawl(context.Background(), "widget", 2)
	if !errors.Is(err, ErrBlocked) {
		t.Fatalf("expected ErrBlocked, got %v", err)
	}
	if !session.closed {
		t.Error("session must be closed even when open fails")
	}
}

func TestCrawlDedupsRepeatedURLs(t *testing.T) {
	session := &fakeSession{pages: [][]ListingNode{
		listingPage([2]string{"Sponsored", "/same"}, [2]string{"Organic", "/other"}),
		listingPage([2]string{"Sponsored again", "/same"}),
	}}
	s := newTestScraper(session)

	listings, err := s.Crawl(context.Background(), "widget", 2)
	if err != nil {
		t.Fatalf("crawl: %v", err)
	}
	if len(listings) != 2 {
		t.Errorf("listings: got %d, want 2 (repeat URL skipped)", len(listings))
	}
}

func TestCrawlRejectsNonPositivePageCap(t *testing.T) {
	s := newTestScraper(&fakeSession{})
	if _, err := s.Crawl(context.Background(), "widget", 0); err == nil {
		t.Error("expected an error for a zero page cap")
	}
}
