package accessions

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Row is a single report row keyed by column name.
type Row map[string]any

// DecodeIdentifier turns the stored identifier, a JSON array of up to four
// parts with nulls for unused parts, into its display form "part-part".
// Values that are not a JSON array are returned as text.
func DecodeIdentifier(raw any) string {
	var text string
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		text = v
	case []byte:
		text = string(v)
	case sql.NullString:
		if !v.Valid {
			return ""
		}
		text = v.String
	case *string:
		if v == nil {
			return ""
		}
		text = *v
	default:
		text = fmt.Sprint(v)
	}

	var parts []any
	if err := json.Unmarshal([]byte(text), &parts); err != nil {
		return text
	}
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		var s string
		switch p := part.(type) {
		case nil:
			continue
		case string:
			s = p
		case float64:
			s = strconv.FormatFloat(p, 'f', -1, 64)
		default:
			s = fmt.Sprint(p)
		}
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	return strings.Join(out, "-")
}

// DecodeRow returns a copy of row with the identifier decoded. Other fields
// are passed through.
func DecodeRow(row Row) Row {
	out := make(Row, len(row))
	for k, v := range row {
		out[k] = v
	}
	if v, ok := row[ColumnIdentifier]; ok {
		out[ColumnIdentifier] = DecodeIdentifier(v)
	}
	return out
}

// FormatDate renders a DATE column as YYYY-MM-DD whatever the driver
// returned for it.
func FormatDate(raw any) any {
	switch v := raw.(type) {
	case nil:
		return nil
	case time.Time:
		return v.Format(time.DateOnly)
	case []byte:
		return formatDateText(string(v))
	case string:
		return formatDateText(v)
	default:
		return v
	}
}

func formatDateText(s string) string {
	if len(s) >= len(time.DateOnly) {
		if t, err := time.Parse(time.DateOnly, s[:len(time.DateOnly)]); err == nil {
			return t.Format(time.DateOnly)
		}
	}
	return s
}

// plain converts driver byte slices to strings.
func plain(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
