package main

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nsyte-agents/auction-sync/internal/listings"
	"github.com/nsyte-agents/auction-sync/internal/model"
)

var scrapeStates []string

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Fetch auction listings and reconcile them into the store",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		states := scrapeStates
		if len(states) == 0 {
			states = cfg.Listings.States
		}
		if len(states) == 0 {
			return eris.New("no states configured (set listings.states or --state)")
		}

		rec, err := initReconciler(ctx, st)
		if err != nil {
			return err
		}

		run, err := st.StartRun(ctx, model.RunKindScrape)
		if err != nil {
			return err
		}

		client := listings.NewClient(listings.Options{
			BaseURL:    cfg.Listings.BaseURL,
			APIKey:     cfg.Listings.APIKey,
			PageSize:   cfg.Listings.PageSize,
			RateLimit:  cfg.Listings.RateLimit,
			Timeout:    time.Duration(cfg.Listings.TimeoutSecs) * time.Second,
			MaxRetries: cfg.Listings.MaxRetries,
		})

		var mu sync.Mutex
		var ingested, rejected int

		limit := cfg.Listings.MaxConcurrency
		if limit < 1 {
			limit = 1
		}
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(limit)
		for _, state := range states {
			g.Go(func() error {
				records, err := client.FetchState(gctx, state)
				if err != nil {
					return eris.Wrapf(err, "scrape %s", state)
				}
				mu.Lock()
				defer mu.Unlock()
				for _, r := range records {
					if err := rec.IngestListing(r); err != nil {
						rejected++
						zap.L().Warn("listing rejected",
							zap.String("property_id", r.PropertyID),
							zap.Error(err),
						)
						continue
					}
					ingested++
				}
				return nil
			})
		}

		runErr := g.Wait()
		if runErr == nil {
			runErr = st.UpsertRows(ctx, rec.Rows())
		}

		if err := st.FinishRun(ctx, run.ID, ingested, rejected, runErr); err != nil {
			zap.L().Error("record run result", zap.Error(err))
		}
		if runErr != nil {
			return runErr
		}

		fmt.Fprintf(os.Stderr, "Scraped %d states: %d listings ingested, %d rejected, %d rows total\n",
			len(states), ingested, rejected, rec.Len())
		return nil
	},
}

func init() {
	scrapeCmd.Flags().StringSliceVar(&scrapeStates, "state", nil, "state codes to scrape (default from config)")
	rootCmd.AddCommand(scrapeCmd)
}
