package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mmrzaf/cardbase/internal/app"
	"github.com/mmrzaf/cardbase/internal/config"
	"github.com/mmrzaf/cardbase/internal/domain"
	"github.com/mmrzaf/cardbase/internal/fetch"
	"github.com/mmrzaf/cardbase/internal/logging"
	"github.com/mmrzaf/cardbase/internal/scryfall"
	"github.com/mmrzaf/cardbase/internal/spellbook"
	"github.com/mmrzaf/cardbase/internal/store"
)

var (
	dataDir  string
	logLevel string
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	rootCmd := &cobra.Command{
		Use:   "cardbase",
		Short: "Local card database builder",
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", cfg.DataDir, "Data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", cfg.LogLevel, "Log level")

	rootCmd.AddCommand(buildCmd(cfg))
	rootCmd.AddCommand(syncCombosCmd(cfg))
	rootCmd.AddCommand(warmPricesCmd(cfg))
	rootCmd.AddCommand(statusCmd(cfg))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func applyFlags(cfg *config.Config) {
	if dataDir != cfg.DataDir {
		cfg.SetDataDir(dataDir)
	}
	cfg.LogLevel = logLevel
}

func buildCmd(cfg *config.Config) *cobra.Command {
	var force bool
	var skipCombos bool
	var skipPrices bool

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build or refresh the local card database",
		RunE: func(cmd *cobra.Command, args []string) error {
			applyFlags(cfg)
			logger := logging.NewLogger(cfg.LogLevel)
			httpClient := fetch.NewHTTPClient(cfg.HTTPTimeout)
			client := scryfall.NewClient(httpClient, cfg.UserAgent, cfg.BulkMetaURL, cfg.PriceLookupURL)

			buildSvc := app.NewBuildService(cfg, client, httpClient, logger)
			build := buildSvc.Start(context.Background(), force)
			renderProgress(build.Progress)

			result, err := build.Wait()
			if err != nil {
				return fmt.Errorf("build failed: %w", err)
			}
			if result.Status == domain.BuildStatusSkipped {
				fmt.Println("card database is up to date")
			} else {
				fmt.Printf("built card database: %d cards, %d sets, %d rulings\n",
					result.CardCount, result.SetCount, result.RulingCount)
			}

			if !skipCombos {
				// The combo database is an optional companion; its failure
				// never fails a successful card build.
				comboSvc := app.NewComboService(cfg, spellbook.NewClient(httpClient, cfg.UserAgent, cfg.ComboReleasesURL), httpClient, logger)
				if _, err := comboSvc.Sync(context.Background()); err != nil {
					logger.Warn("combo sync failed: %v", err)
				}
			}

			if !skipPrices {
				// Warm cache only; a failure here never fails the build.
				priceSvc := app.NewPriceService(cfg, client, logger)
				if _, err := priceSvc.Warm(context.Background()); err != nil {
					logger.Warn("price cache warm failed: %v", err)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Rebuild even if the local database is fresh")
	cmd.Flags().BoolVar(&skipCombos, "skip-combos", false, "Skip the combo database sync")
	cmd.Flags().BoolVar(&skipPrices, "skip-prices", false, "Skip the price cache warm")
	return cmd
}

func syncCombosCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "sync-combos",
		Short: "Sync the combo database to the newest release",
		RunE: func(cmd *cobra.Command, args []string) error {
			applyFlags(cfg)
			logger := logging.NewLogger(cfg.LogLevel)
			httpClient := fetch.NewHTTPClient(cfg.HTTPTimeout)
			svc := app.NewComboService(cfg, spellbook.NewClient(httpClient, cfg.UserAgent, cfg.ComboReleasesURL), httpClient, logger)

			result, err := svc.Sync(context.Background())
			if err != nil {
				return err
			}
			switch {
			case result.Updated:
				fmt.Printf("combo database updated to release %s\n", result.Marker)
			case !result.Available:
				fmt.Println("combo database unavailable (offline, no local copy)")
			default:
				fmt.Printf("combo database up to date (release %s)\n", result.Marker)
			}
			return nil
		},
	}
}

func warmPricesCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "warm-prices",
		Short: "Prefetch prices for the local collection",
		RunE: func(cmd *cobra.Command, args []string) error {
			applyFlags(cfg)
			logger := logging.NewLogger(cfg.LogLevel)
			httpClient := fetch.NewHTTPClient(cfg.HTTPTimeout)
			client := scryfall.NewClient(httpClient, cfg.UserAgent, cfg.BulkMetaURL, cfg.PriceLookupURL)
			svc := app.NewPriceService(cfg, client, logger)

			n, err := svc.Warm(context.Background())
			if err != nil {
				logger.Warn("price cache warm failed: %v", err)
				return nil
			}
			fmt.Printf("cached prices for %d entries\n", n)
			return nil
		},
	}
}

func statusCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show local database versions and counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			applyFlags(cfg)

			db := store.New(cfg.DatabasePath)
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer w.Flush()

			if !db.Exists() {
				fmt.Fprintf(w, "cards\tnot built\t%s\n", cfg.DatabasePath)
				return nil
			}
			if err := db.Open(); err != nil {
				return err
			}
			defer db.Close()

			meta, err := db.AllMeta()
			if err != nil {
				return err
			}
			fmt.Fprintln(w, "KEY\tVALUE")
			for _, key := range []string{"schema_version", "created_at", "scryfall_updated_at", "card_count", "set_count", "ruling_count"} {
				if v, ok := meta[key]; ok {
					fmt.Fprintf(w, "%s\t%s\n", key, v)
				}
			}
			if marker := app.ReadComboMarker(cfg.ComboDBPath); marker != "" {
				fmt.Fprintf(w, "combo_release\t%s\n", marker)
			}
			return nil
		},
	}
}

// renderProgress drains the build's progress channel, printing a line per
// status change and per 10% step. The consumer runs on the main goroutine
// while the build works in the background.
func renderProgress(progress <-chan domain.Progress) {
	lastStatus := ""
	lastDecile := -1
	for p := range progress {
		decile := int(p.Fraction * 10)
		if p.Status != lastStatus || decile != lastDecile {
			fmt.Printf("[%3.0f%%] %s\n", p.Fraction*100, p.Status)
			lastStatus = p.Status
			lastDecile = decile
		}
	}
}
