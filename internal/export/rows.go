// Package export renders reconciled rows to spreadsheet-shaped outputs:
// XLSX workbooks, CSV staging files, and Google Sheets row batches.
package export

import (
	"time"

	"github.com/nsyte-agents/auction-sync/internal/model"
)

// Header is the column order shared by every output format.
var Header = []string{
	"Property ID", "Address", "State", "Zone", "Auction Date",
	"Opening Bid", "Est. Market Value", "Listing Status",
	"Sold To", "Final Bid", "Surplus", "Last Updated",
}

const dateLayout = "Jan 2, 2006"

// RowCells renders one reconciled row in Header order. Absent amounts
// render as empty cells, not zeros.
func RowCells(row model.ReconciledRow) []string {
	return []string{
		row.PropertyID,
		row.Address,
		row.State,
		row.Zone,
		formatDate(row.AuctionDate),
		formatCents(row.OpeningBid),
		formatCents(row.EstMarketValue),
		string(row.ListingStatus),
		string(row.SoldTo),
		formatCents(row.FinalBid),
		formatCents(row.Surplus),
		row.LastUpdated.UTC().Format(time.RFC3339),
	}
}

func formatCents(v *int64) string {
	if v == nil {
		return ""
	}
	return model.FormatCents(*v)
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(dateLayout)
}
