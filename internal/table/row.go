package table

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Row is one record as returned by the API: flat scalars, or nested JSON
// values that are rendered stringified.
type Row map[string]any

// Column is one table column. Accessor, when set, takes precedence over Key
// and receives the row's position in its result set.
type Column struct {
	Header   string
	Key      string
	Accessor func(row Row, index int) any

	// Amount marks a monetary column. Only the HTML view formats it; the CSV
	// export keeps the raw value.
	Amount bool
}

// Value returns the column's raw value for row.
func (c Column) Value(row Row, index int) any {
	if c.Accessor != nil {
		return c.Accessor(row, index)
	}
	return row[c.Key]
}

// Text returns the column's value as display text.
func (c Column) Text(row Row, index int) string {
	return FormatValue(c.Value(row, index))
}

// IDColumn is a column over the row's "id" that falls back to the 1-based
// position for rows without one.
func IDColumn(header string) Column {
	return Column{
		Header: header,
		Key:    "id",
		Accessor: func(row Row, index int) any {
			if id, ok := row["id"]; ok && id != nil && id != "" {
				return id
			}
			return index + 1
		},
	}
}

// RowID returns the identifier used to link a row to its detail view, or ""
// when the row has none.
func RowID(row Row) string {
	id, ok := row["id"]
	if !ok || id == nil {
		return ""
	}
	return FormatValue(id)
}

// FormatValue renders a cell. Nested objects and arrays are JSON-encoded.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case map[string]any, []any, Row:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	default:
		return fmt.Sprint(t)
	}
}

func toRows(maps []map[string]any) []Row {
	rows := make([]Row, len(maps))
	for i, m := range maps {
		rows[i] = Row(m)
	}
	return rows
}
