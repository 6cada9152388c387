package table

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
)

// ErrNothingToExport is returned when there are no columns or no rows.
var ErrNothingToExport = errors.New("table: nothing to export")

// EncodeCSV renders rows as CSV: a header row, then one record per row.
// Fields containing a comma, quote or newline are quoted with embedded quotes
// doubled. Nothing is produced unless both columns and rows are non-empty.
func EncodeCSV(columns []Column, rows []Row) ([]byte, error) {
	if len(columns) == 0 || len(rows) == 0 {
		return nil, ErrNothingToExport
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := make([]string, len(columns))
	for i, col := range columns {
		header[i] = col.Header
	}
	if err := w.Write(header); err != nil {
		return nil, err
	}

	record := make([]string, len(columns))
	for i, row := range rows {
		for j, col := range columns {
			record[j] = col.Text(row, i)
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteCSV encodes rows and copies the result to dst. Encoding completes
// before the first byte is written, so dst never receives a partial file.
func WriteCSV(dst io.Writer, columns []Column, rows []Row) error {
	data, err := EncodeCSV(columns, rows)
	if err != nil {
		return err
	}
	_, err = dst.Write(data)
	return err
}
