package main

import (
	"fmt"
	"iter"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nsyte-agents/auction-sync/internal/export"
	"github.com/nsyte-agents/auction-sync/internal/model"
	"github.com/nsyte-agents/auction-sync/pkg/sheets"
)

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Push reconciled rows to the Google Sheet",
	Long:  "Stages the current snapshot to a local CSV, then rewrites each zone tab of the configured spreadsheet.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if cfg.Sheets.SpreadsheetID == "" {
			return eris.New("sheets.spreadsheet_id is required")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		rec, err := initReconciler(ctx, st)
		if err != nil {
			return err
		}
		zones, err := loadZones()
		if err != nil {
			return err
		}

		run, err := st.StartRun(ctx, model.RunKindPush)
		if err != nil {
			return err
		}

		pushed, runErr := pushSnapshot(cmd, rec.Snapshot(), zones)

		if err := st.FinishRun(ctx, run.ID, pushed, 0, runErr); err != nil {
			zap.L().Error("record run result", zap.Error(err))
		}
		if runErr != nil {
			return runErr
		}

		fmt.Fprintf(os.Stderr, "Pushed %d rows to spreadsheet %s\n", pushed, cfg.Sheets.SpreadsheetID)
		return nil
	},
}

func pushSnapshot(cmd *cobra.Command, snapshot iter.Seq[model.ReconciledRow], zones model.ZoneMap) (int, error) {
	ctx := cmd.Context()

	// Stage locally first. If the upload dies midway the staging file
	// still reflects the snapshot that was being pushed.
	if cfg.Export.Dir != "" {
		if err := os.MkdirAll(cfg.Export.Dir, 0o755); err != nil {
			return 0, eris.Wrap(err, "create export dir")
		}
		staging := filepath.Join(cfg.Export.Dir, "staging.csv")
		if err := export.WriteCSV(staging, snapshot); err != nil {
			return 0, err
		}
		zap.L().Info("staged snapshot", zap.String("path", staging))
	}

	byZone := make(map[string][][]string)
	var total int
	for row := range snapshot {
		zone := row.Zone
		if zone == "" {
			zone = "UNZONED"
		}
		byZone[zone] = append(byZone[zone], export.RowCells(row))
		total++
	}

	client := sheets.NewClient(cfg.Sheets.Token, sheets.WithBatchSize(cfg.Sheets.BatchSize))

	tabs := append(zones.Names(), "UNZONED")
	for _, tab := range tabs {
		rows := byZone[tab]
		if err := client.Clear(ctx, cfg.Sheets.SpreadsheetID, tab); err != nil {
			return 0, err
		}
		if err := client.EnsureHeader(ctx, cfg.Sheets.SpreadsheetID, tab, export.Header); err != nil {
			return 0, err
		}
		if len(rows) == 0 {
			continue
		}
		if err := client.AppendRows(ctx, cfg.Sheets.SpreadsheetID, tab, rows); err != nil {
			return 0, err
		}
		zap.L().Info("pushed zone tab",
			zap.String("tab", tab),
			zap.Int("rows", len(rows)),
		)
	}

	return total, nil
}

func init() {
	rootCmd.AddCommand(pushCmd)
}
