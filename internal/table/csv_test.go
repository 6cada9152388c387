package table

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestEncodeCSV_RoundTrip(t *testing.T) {
	columns := []Column{
		IDColumn("ID"),
		{Header: "Name", Key: "name"},
		{Header: "Note", Key: "note"},
		{Header: "Address", Key: "address"},
	}
	rows := []Row{
		{"id": "B-1", "name": "Smith, John", "note": `said "hi"`, "address": "1 Main St\nLagos"},
		{"id": "B-2", "name": "plain", "note": "", "address": "line\r\nbreak"},
	}

	data, err := EncodeCSV(columns, rows)
	if err != nil {
		t.Fatalf("EncodeCSV() error: %v", err)
	}

	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("parse exported csv: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records; want 3", len(records))
	}
	if strings.Join(records[0], ",") != "ID,Name,Note,Address" {
		t.Errorf("header = %v", records[0])
	}
	for i, row := range rows {
		rec := records[i+1]
		for j, col := range columns {
			want := col.Text(row, i)
			if col.Key == "address" {
				// the reader normalizes \r\n inside quoted fields to \n
				want = strings.ReplaceAll(want, "\r\n", "\n")
			}
			if rec[j] != want {
				t.Errorf("row %d col %q = %q; want %q", i, col.Header, rec[j], want)
			}
		}
	}
}

func TestEncodeCSV_Escaping(t *testing.T) {
	columns := []Column{{Header: "v", Key: "v"}}
	rows := []Row{{"v": "a,b"}, {"v": `x"y`}, {"v": "p\nq"}, {"v": "plain"}}

	data, err := EncodeCSV(columns, rows)
	if err != nil {
		t.Fatal(err)
	}
	want := "v\n\"a,b\"\n\"x\"\"y\"\n\"p\nq\"\nplain\n"
	if string(data) != want {
		t.Errorf("EncodeCSV() = %q; want %q", data, want)
	}
}

func TestEncodeCSV_IDPlaceholder(t *testing.T) {
	columns := []Column{IDColumn("ID"), {Header: "Name", Key: "name"}}
	rows := []Row{
		{"name": "no id"},
		{"id": json.Number("42"), "name": "has id"},
		{"name": "no id either"},
	}

	data, err := EncodeCSV(columns, rows)
	if err != nil {
		t.Fatal(err)
	}
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	wantIDs := []string{"1", "42", "3"}
	for i, want := range wantIDs {
		if got := records[i+1][0]; got != want {
			t.Errorf("row %d ID = %q; want %q", i, got, want)
		}
	}
}

func TestEncodeCSV_NestedValues(t *testing.T) {
	columns := []Column{{Header: "Meta", Key: "meta"}}
	rows := []Row{{"meta": map[string]any{"bank": "GTB", "tags": []any{"a", "b"}}}}

	data, err := EncodeCSV(columns, rows)
	if err != nil {
		t.Fatal(err)
	}
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if got := records[1][0]; got != `{"bank":"GTB","tags":["a","b"]}` {
		t.Errorf("nested value = %q", got)
	}
}

func TestEncodeCSV_NothingToExport(t *testing.T) {
	cols := []Column{{Header: "a", Key: "a"}}
	rows := []Row{{"a": 1}}

	if _, err := EncodeCSV(nil, rows); !errors.Is(err, ErrNothingToExport) {
		t.Errorf("no columns: err = %v", err)
	}
	if _, err := EncodeCSV(cols, nil); !errors.Is(err, ErrNothingToExport) {
		t.Errorf("no rows: err = %v", err)
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, cols, []Row{}); !errors.Is(err, ErrNothingToExport) {
		t.Errorf("WriteCSV err = %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("WriteCSV wrote %d bytes on empty input", buf.Len())
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"x", "x"},
		{json.Number("1500.50"), "1500.50"},
		{true, "true"},
		{3, "3"},
		{int64(9007199254740993), "9007199254740993"},
		{2.5, "2.5"},
		{[]any{1.0, "a"}, `[1,"a"]`},
	}
	for _, tt := range tests {
		if got := FormatValue(tt.in); got != tt.want {
			t.Errorf("FormatValue(%#v) = %q; want %q", tt.in, got, tt.want)
		}
	}
}

func TestRowID(t *testing.T) {
	if got := RowID(Row{"id": json.Number("7")}); got != "7" {
		t.Errorf("RowID = %q", got)
	}
	if got := RowID(Row{"name": "x"}); got != "" {
		t.Errorf("RowID without id = %q", got)
	}
}
