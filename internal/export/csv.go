package export

import (
	"encoding/csv"
	"iter"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/nsyte-agents/auction-sync/internal/model"
)

// WriteCSV writes reconciled rows to a CSV file atomically: the file is
// staged next to the destination and renamed into place only after every
// row has been flushed, so readers never observe a partial file.
func WriteCSV(path string, rows iter.Seq[model.ReconciledRow]) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return eris.Wrap(err, "csv: create staging file")
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	w := csv.NewWriter(tmp)
	if err = w.Write(Header); err != nil {
		return eris.Wrap(err, "csv: write header")
	}
	for row := range rows {
		if err = w.Write(RowCells(row)); err != nil {
			return eris.Wrapf(err, "csv: write row %s", row.PropertyID)
		}
	}
	w.Flush()
	if err = w.Error(); err != nil {
		return eris.Wrap(err, "csv: flush")
	}

	if err = tmp.Sync(); err != nil {
		return eris.Wrap(err, "csv: sync staging file")
	}
	if err = tmp.Close(); err != nil {
		return eris.Wrap(err, "csv: close staging file")
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return eris.Wrapf(err, "csv: rename into %s", path)
	}
	return nil
}

// ReadCSV loads a staged CSV back into reconciled-row cell form, skipping
// the header. It is the inverse of WriteCSV at the cell level only; amounts
// stay formatted.
func ReadCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "csv: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, eris.Wrapf(err, "csv: read %s", path)
	}
	if len(records) > 0 {
		records = records[1:]
	}
	return records, nil
}
