package amazon

import (
	"testing"

	"price-tracker/models"
)

// fakeNode is an in-memory ListingNode keyed by selector, standing in for
// the browser-backed implementation.
type fakeNode struct {
	texts    map[string]string
	attrs    map[string]map[string]string
	children map[string][]ListingNode
}

func (f *fakeNode) Text(selector string) (string, bool) {
	v, ok := f.texts[selector]
	return v, ok
}

func (f *fakeNode) Attribute(selector, name string) (string, bool) {
	byName, ok := f.attrs[selector]
	if !ok {
		return "", false
	}
	v, ok := byName[name]
	return v, ok
}

func (f *fakeNode) Children(selector string) []ListingNode {
	return f.children[selector]
}

func testExtractor() *Extractor {
	return NewExtractor("https://www.amazon.com/")
}

func TestExtractBasic(t *testing.T) {
	node := &fakeNode{
		texts: map[string]string{
			titleSel: "Test Product",
			priceSel: "$123.45",
		},
		attrs: map[string]map[string]string{
			linkSel:  {"href": "/test-url"},
			imageSel: {"src": "http://image.url/test.jpg"},
		},
	}

	got := testExtractor().Extract(node)
	if got == nil {
		t.Fatal("expected a listing")
	}
	if got.Title != "Test Product" {
		t.Errorf("title: got %q", got.Title)
	}
	if got.URL != "https://www.amazon.com/test-url" {
		t.Errorf("url: got %q", got.URL)
	}
	if got.ImageURL != "http://image.url/test.jpg" {
		t.Errorf("image: got %q", got.ImageURL)
	}
	if got.PriceText != "$123.45" {
		t.Errorf("price: got %q", got.PriceText)
	}
}

func TestExtractTitleGatesRecord(t *testing.T) {
	nodes := []*fakeNode{
		// No title field at all.
		{
			attrs: map[string]map[string]string{
				linkSel:  {"href": "/ad-slot"},
				imageSel: {"src": "http://image.url/ad.jpg"},
			},
			texts: map[string]string{priceSel: "$9.99"},
		},
		// Title present but blank.
		{
			texts: map[string]string{titleSel: "   ", priceSel: "$9.99"},
		},
	}

	for i, node := range nodes {
		if got := testExtractor().Extract(node); got != nil {
			t.Errorf("node %d: expected nil, got %+v", i, got)
		}
	}
}

func TestExtractSplitPriceFallback(t *testing.T) {
	node := &fakeNode{
		texts: map[string]string{
			titleSel:      "Split Price Product",
			priceWholeSel: "123",
		},
	}

	got := testExtractor().Extract(node)
	if got == nil {
		t.Fatal("expected a listing")
	}
	if got.PriceText != "123.00" {
		t.Errorf("price: got %q, want \"123.00\" (missing fraction defaults to 00)", got.PriceText)
	}
}

func TestExtractSplitPriceWithFraction(t *testing.T) {
	node := &fakeNode{
		texts: map[string]string{
			titleSel:      "Thousands Product",
			priceWholeSel: "1,234\n.",
			priceFracSel:  "56\n",
		},
	}

	got := testExtractor().Extract(node)
	if got == nil {
		t.Fatal("expected a listing")
	}
	if got.PriceText != "1234.56" {
		t.Errorf("price: got %q, want \"1234.56\"", got.PriceText)
	}
}

func TestExtractCombinedPriceWinsOverSplit(t *testing.T) {
	node := &fakeNode{
		texts: map[string]string{
			titleSel:      "Both Prices Product",
			priceSel:      "$42.00",
			priceWholeSel: "999",
		},
	}

	got := testExtractor().Extract(node)
	if got == nil {
		t.Fatal("expected a listing")
	}
	if got.PriceText != "$42.00" {
		t.Errorf("price: got %q, want combined text to win", got.PriceText)
	}
}

func TestExtractSentinelsForMissingOptionalFields(t *testing.T) {
	node := &fakeNode{
		texts: map[string]string{titleSel: "Bare Product"},
	}

	got := testExtractor().Extract(node)
	if got == nil {
		t.Fatal("missing optional fields must not drop the item")
	}
	if got.URL != models.FieldUnavailable {
		t.Errorf("url sentinel: got %q", got.URL)
	}
	if got.ImageURL != models.FieldUnavailable {
		t.Errorf("image sentinel: got %q", got.ImageURL)
	}
	if got.PriceText != models.FieldUnavailable {
		t.Errorf("price sentinel: got %q", got.PriceText)
	}
}

func TestExtractAbsoluteHrefPassesThrough(t *testing.T) {
	node := &fakeNode{
		texts: map[string]string{titleSel: "Linked Product"},
		attrs: map[string]map[string]string{
			linkSel: {"href": "https://elsewhere.example/p/1"},
		},
	}

	got := testExtractor().Extract(node)
	if got == nil {
		t.Fatal("expected a listing")
	}
	if got.URL != "https://elsewhere.example/p/1" {
		t.Errorf("url: got %q", got.URL)
	}
}
