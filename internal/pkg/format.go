package pkg

import (
	"encoding/json"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var amountPrinter = message.NewPrinter(language.English)

// FormatAmount renders a monetary value with thousands separators and two
// decimals, e.g. "1,234,567.50". Values that are not numbers are returned
// as text unchanged; nil yields "".
func FormatAmount(v any) string {
	var f float64
	switch t := v.(type) {
	case nil:
		return ""
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			return t.String()
		}
		f = n
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return t
		}
		f = n
	default:
		return amountPrinter.Sprint(v)
	}
	return amountPrinter.Sprintf("%.2f", f)
}
