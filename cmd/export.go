package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/nsyte-agents/auction-sync/internal/export"
)

var exportFormat string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the reconciled snapshot to a local XLSX or CSV file",
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

		rec, err := initReconciler(ctx, st)
		if err != nil {
			return err
		}
		zones, err := loadZones()
		if err != nil {
			return err
		}

		if err := os.MkdirAll(cfg.Export.Dir, 0o755); err != nil {
			return eris.Wrap(err, "create export dir")
		}
		stamp := time.Now().UTC().Format("2006-01-02")

		var path string
		switch exportFormat {
		case "xlsx":
			path = filepath.Join(cfg.Export.Dir, "auction-rows-"+stamp+".xlsx")
			err = export.WriteXLSX(path, rec.Snapshot(), zones)
		case "csv":
			path = filepath.Join(cfg.Export.Dir, "auction-rows-"+stamp+".csv")
			err = export.WriteCSV(path, rec.Snapshot())
		default:
			return eris.Errorf("unsupported export format: %s", exportFormat)
		}
		if err != nil {
			return err
		}

		fmt.Fprintf(os.Stderr, "Exported %d rows to %s\n", rec.Len(), path)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "xlsx", "output format (xlsx, csv)")
	rootCmd.AddCommand(exportCmd)
}
