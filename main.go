package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"price-tracker/config"
	"price-tracker/models"
	"price-tracker/scraper/amazon"
	"price-tracker/services"
	"price-tracker/storage"
	"price-tracker/tasks"
	"price-tracker/utils"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "price-tracker",
		Short:         "Crawl retailer search results and track product prices over time",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newSearchCmd(), newRefreshCmd(), newRefreshAllCmd())
	return root
}

func newSearchCmd() *cobra.Command {
	var pages int

	cmd := &cobra.Command{
		Use:   "search <query>...",
		Short: "Crawl search results for a query and ingest them into the catalog",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger := setup()
			query := strings.Join(args, " ")
			if pages <= 0 {
				pages = cfg.SearchPages
			}

			store, err := storage.NewPostgresStore(cfg.DSN())
			if err != nil {
				logger.Error("Failed to connect to PostgreSQL: %v", err)
				return err
			}
			defer store.Close()

			scraper := amazon.New(cfg, logger)
			listings, err := scraper.Crawl(cmd.Context(), query, pages)
			if err != nil && !errors.Is(err, amazon.ErrBlocked) {
				logger.Error("Crawl failed: %v", err)
				return err
			}
			if errors.Is(err, amazon.ErrBlocked) {
				logger.Warn("Crawl for %q was blocked — ingesting what was gathered (%d listings)",
					query, len(listings))
			}

			if cfg.RawExportPath != "" && len(listings) > 0 {
				exportRaw(cfg.RawExportPath, listings, logger)
			}

			reconciler := services.NewReconciler(store, cfg.SiteName, logger)
			saved, err := reconciler.Ingest(cmd.Context(), listings)
			if err != nil {
				logger.Error("Ingest failed: %v", err)
				return err
			}
			logger.Info("Ingested %d listings — %d price observations recorded", len(listings), saved)

			entries, err := store.ProductsWithLatestPrice(cmd.Context())
			if err != nil {
				logger.Error("Failed to load catalog summary: %v", err)
				return nil
			}
			reporter := services.NewReporter(logger)
			reporter.Print(reporter.Generate(entries))
			return nil
		},
	}

	cmd.Flags().IntVarP(&pages, "pages", "p", 0, "maximum result pages to crawl (default from config)")
	return cmd
}

func newRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh <product-id>",
		Short: "Re-crawl one product and append a fresh price observation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid product id %q", args[0])
			}

			cfg, logger := setup()
			store, err := storage.NewPostgresStore(cfg.DSN())
			if err != nil {
				logger.Error("Failed to connect to PostgreSQL: %v", err)
				return err
			}
			defer store.Close()

			refresher := tasks.NewRefresher(store, amazon.New(cfg, logger),
				cfg.SiteName, cfg.MaxConcurrency, logger)
			outcome, err := refresher.RefreshProduct(cmd.Context(), id)
			if err != nil {
				logger.Error("Refresh failed: %v", err)
				return err
			}
			logger.Info("Refresh of product %d finished: %s", id, outcome)
			return nil
		},
	}
}

func newRefreshAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh-all",
		Short: "Queue a price refresh for every product in the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger := setup()
			store, err := storage.NewPostgresStore(cfg.DSN())
			if err != nil {
				logger.Error("Failed to connect to PostgreSQL: %v", err)
				return err
			}
			defer store.Close()

			refresher := tasks.NewRefresher(store, amazon.New(cfg, logger),
				cfg.SiteName, cfg.MaxConcurrency, logger)
			count, err := refresher.RefreshAll(cmd.Context())
			if err != nil {
				logger.Error("Refresh-all failed: %v", err)
				return err
			}

			// The queue is fire-and-forget for callers, but the process
			// must not exit with refreshes in flight.
			refresher.Wait()
			logger.Info("Refresh-all finished — %d products processed", count)
			return nil
		},
	}
}

func setup() (*config.Config, *utils.Logger) {
	logger := utils.NewLogger()
	cfg := config.Load()

	logger.Info("=== Price Tracker starting ===")
	logger.Info("Config — site: %s | pages: %d | concurrency: %d | jar: %s",
		cfg.SiteName, cfg.SearchPages, cfg.MaxConcurrency, cfg.CookieJarPath)

	return cfg, logger
}

func exportRaw(path string, listings []*models.RawListing, logger *utils.Logger) {
	w, err := storage.NewCSVWriter(path)
	if err != nil {
		logger.Warn("Raw export skipped: %v", err)
		return
	}
	defer w.Close()

	if err := w.WriteRaw(listings); err != nil {
		logger.Warn("Raw export failed: %v", err)
		return
	}
	logger.Info("Raw listings exported to %s", path)
}
