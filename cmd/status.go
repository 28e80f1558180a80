package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/nsyte-agents/auction-sync/internal/model"
	"github.com/nsyte-agents/auction-sync/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Summarize the reconciled table and recent runs",
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

		rows, err := st.ListRows(ctx, store.RowFilter{})
		if err != nil {
			return err
		}

		formatRowStats(os.Stdout, computeRowStats(rows))

		var runs []*model.SyncRun
		for _, kind := range []model.RunKind{model.RunKindScrape, model.RunKindCollect, model.RunKindPush} {
			run, err := st.LastRun(ctx, kind)
			if err != nil {
				return err
			}
			if run != nil {
				runs = append(runs, run)
			}
		}
		if len(runs) > 0 {
			fmt.Fprintln(os.Stdout)
			formatRuns(os.Stdout, runs)
		}
		return nil
	},
}

// rowStats holds aggregate statistics over the reconciled table.
type rowStats struct {
	Total        int
	Active       int
	Closed       int
	Removed      int
	SoldThird    int
	SoldOriginal int
	Placeholders int
	FinalBidSum  int64
	SurplusSum   int64
	SurplusCount int
}

func computeRowStats(rows []model.ReconciledRow) rowStats {
	var s rowStats
	s.Total = len(rows)
	for i := range rows {
		r := &rows[i]
		switch r.ListingStatus {
		case model.ListingStatusActive:
			s.Active++
		case model.ListingStatusClosed:
			s.Closed++
		case model.ListingStatusRemoved:
			s.Removed++
		}
		switch r.SoldTo {
		case model.BuyerThirdParty:
			s.SoldThird++
		case model.BuyerOriginalOwner:
			s.SoldOriginal++
		}
		if !r.Listed() {
			s.Placeholders++
		}
		if r.FinalBid != nil {
			s.FinalBidSum += *r.FinalBid
		}
		if r.Surplus != nil {
			s.SurplusSum += *r.Surplus
			s.SurplusCount++
		}
	}
	return s
}

func formatRowStats(out io.Writer, s rowStats) {
	p := message.NewPrinter(language.AmericanEnglish)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Properties:\t%d\n", s.Total)
	_, _ = fmt.Fprintf(w, "  Active:\t%d\n", s.Active)
	_, _ = fmt.Fprintf(w, "  Closed:\t%d\n", s.Closed)
	_, _ = fmt.Fprintf(w, "  Removed:\t%d\n", s.Removed)
	_, _ = fmt.Fprintf(w, "Sold to third party:\t%d\n", s.SoldThird)
	_, _ = fmt.Fprintf(w, "Sold back to owner:\t%d\n", s.SoldOriginal)
	_, _ = fmt.Fprintf(w, "Awaiting listing data:\t%d\n", s.Placeholders)
	_, _ = p.Fprintf(w, "Final bids total:\t$%.2f\n", float64(s.FinalBidSum)/100)
	_, _ = p.Fprintf(w, "Surplus total (%d rows):\t$%.2f\n", s.SurplusCount, float64(s.SurplusSum)/100)
	_ = w.Flush()
}

func formatRuns(out io.Writer, runs []*model.SyncRun) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "KIND\tSTARTED\tDURATION\tINGESTED\tREJECTED\tERROR")
	for _, r := range runs {
		dur := ""
		if r.FinishedAt != nil {
			dur = r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
			r.Kind,
			r.StartedAt.Format("2006-01-02 15:04"),
			dur,
			r.Ingested,
			r.Rejected,
			r.Error,
		)
	}
	_ = w.Flush()
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
