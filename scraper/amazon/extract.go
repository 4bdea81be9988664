package amazon

import (
	"strings"
	"time"

	"price-tracker/models"
)

// Selectors for one Amazon search-result entry. The retailer renders
// prices in two markup shapes depending on listing type and promotion:
// a combined screen-reader text, or a split whole/fraction pair.
const (
	searchBoxSel = `#twotabsearchtextbox`
	resultSel    = `div.s-main-slot div.s-result-item[role="listitem"]`

	titleSel      = `h2.a-size-medium.a-spacing-none.a-color-base.a-text-normal`
	linkSel       = `a.a-link-normal.s-line-clamp-2.s-link-style.a-text-normal`
	imageSel      = `img.s-image`
	priceSel      = `span.a-price span.a-offscreen`
	priceWholeSel = `span.a-price-whole`
	priceFracSel  = `span.a-price-fraction`

	nextPageSel = `a.s-pagination-next:not(.s-pagination-disabled)`
)

// Extractor recovers structured listings from search-result nodes. It is
// a pure reader: extraction never mutates the page.
type Extractor struct {
	baseURL string
}

// NewExtractor creates an Extractor resolving relative hrefs against the
// given storefront origin.
func NewExtractor(baseURL string) *Extractor {
	return &Extractor{baseURL: strings.TrimRight(baseURL, "/")}
}

// Extract reads one listing node and returns its record, or nil when the
// node has no title. Title is the only mandatory field: ad slots and
// layout placeholders share the listing container's shape but lack one,
// so the title gate doubles as the noise filter. Every other field falls
// back to the "N/A" sentinel rather than dropping the item.
func (e *Extractor) Extract(node ListingNode) *models.RawListing {
	title, ok := node.Text(titleSel)
	if !ok || strings.TrimSpace(title) == "" {
		return nil
	}

	listing := &models.RawListing{
		Title:     strings.TrimSpace(title),
		URL:       models.FieldUnavailable,
		ImageURL:  models.FieldUnavailable,
		PriceText: models.FieldUnavailable,
		ScrapedAt: time.Now(),
	}

	if href, ok := node.Attribute(linkSel, "href"); ok && strings.TrimSpace(href) != "" {
		listing.URL = e.resolveURL(strings.TrimSpace(href))
	}

	if src, ok := node.Attribute(imageSel, "src"); ok && strings.TrimSpace(src) != "" {
		listing.ImageURL = strings.TrimSpace(src)
	}

	if price, ok := e.extractPrice(node); ok {
		listing.PriceText = price
	}

	return listing
}

// extractPrice tries the combined price text first, then the split
// whole/fraction pair. A missing fraction defaults to "00".
func (e *Extractor) extractPrice(node ListingNode) (string, bool) {
	if text, ok := node.Text(priceSel); ok && strings.TrimSpace(text) != "" {
		return strings.TrimSpace(text), true
	}

	whole, ok := node.Text(priceWholeSel)
	if !ok || strings.TrimSpace(whole) == "" {
		return "", false
	}
	whole = strings.ReplaceAll(whole, "\n.", "")
	whole = strings.ReplaceAll(whole, ",", "")
	whole = strings.TrimSuffix(strings.TrimSpace(whole), ".")

	fraction := "00"
	if f, ok := node.Text(priceFracSel); ok && strings.TrimSpace(f) != "" {
		fraction = strings.ReplaceAll(strings.TrimSpace(f), "\n", "")
	}

	return whole + "." + fraction, true
}

// resolveURL turns a relative listing href into an absolute URL on the
// storefront origin. Absolute hrefs pass through untouched.
func (e *Extractor) resolveURL(href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if !strings.HasPrefix(href, "/") {
		href = "/" + href
	}
	return e.baseURL + href
}
