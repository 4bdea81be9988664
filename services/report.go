package services

import (
	"fmt"

	"price-tracker/storage"
	"price-tracker/utils"
)

// CatalogReport summarizes the catalog after an ingest run.
type CatalogReport struct {
	Products     int
	Observations int
	Unpriced     int
	Cheapest     *storage.LatestPrice
	Dearest      *storage.LatestPrice
}

// Reporter computes and prints catalog summaries.
type Reporter struct {
	logger *utils.Logger
}

// NewReporter creates a Reporter with the given logger.
func NewReporter(logger *utils.Logger) *Reporter {
	return &Reporter{logger: logger}
}

// Generate builds a report over the catalog's latest-price entries.
// Products without any observation count as unpriced and do not
// participate in the cheapest/dearest comparison.
func (r *Reporter) Generate(entries []*storage.LatestPrice) *CatalogReport {
	report := &CatalogReport{Products: len(entries)}

	for _, e := range entries {
		report.Observations += e.Observations
		if !e.Latest.Valid {
			report.Unpriced++
			continue
		}
		if report.Cheapest == nil || e.Latest.Decimal.LessThan(report.Cheapest.Latest.Decimal) {
			report.Cheapest = e
		}
		if report.Dearest == nil || e.Latest.Decimal.GreaterThan(report.Dearest.Latest.Decimal) {
			report.Dearest = e
		}
	}

	return report
}

// Print writes the report to stdout in a human-readable block.
func (r *Reporter) Print(report *CatalogReport) {
	fmt.Println()
	fmt.Println("===== CATALOG SUMMARY =====")
	fmt.Printf("  Products tracked:    %d\n", report.Products)
	fmt.Printf("  Price observations:  %d\n", report.Observations)
	fmt.Printf("  Without any price:   %d\n", report.Unpriced)

	if report.Cheapest != nil {
		fmt.Printf("  Cheapest (latest):   %s — %s\n",
			report.Cheapest.Latest.Decimal.StringFixed(2), report.Cheapest.Product.Title)
	}
	if report.Dearest != nil {
		fmt.Printf("  Dearest (latest):    %s — %s\n",
			report.Dearest.Latest.Decimal.StringFixed(2), report.Dearest.Product.Title)
	}
	fmt.Println("===========================")
	fmt.Println()
}
