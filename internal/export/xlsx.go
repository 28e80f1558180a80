package export

import (
	"iter"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/nsyte-agents/auction-sync/internal/model"
)

// unzonedSheet receives rows whose state has no zone assignment.
const unzonedSheet = "UNZONED"

// WriteXLSX writes reconciled rows to an XLSX workbook with one sheet per
// zone. Sheets are created in zone order even when empty so the workbook
// shape is stable across runs.
func WriteXLSX(path string, rows iter.Seq[model.ReconciledRow], zones model.ZoneMap) error {
	f := xlsx.NewFile()

	sheets := make(map[string]*xlsx.Sheet)
	for _, zone := range append(zones.Names(), unzonedSheet) {
		sheet, err := f.AddSheet(zone)
		if err != nil {
			return eris.Wrapf(err, "xlsx: add sheet %s", zone)
		}
		writeRow(sheet, Header)
		sheets[zone] = sheet
	}

	for row := range rows {
		zone := row.Zone
		if _, ok := sheets[zone]; !ok {
			zone = unzonedSheet
		}
		writeRow(sheets[zone], RowCells(row))
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "xlsx: save %s", path)
	}
	return nil
}

func writeRow(sheet *xlsx.Sheet, cells []string) {
	r := sheet.AddRow()
	for _, cell := range cells {
		r.AddCell().SetString(cell)
	}
}
