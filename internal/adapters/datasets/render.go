package datasets

import (
	"encoding/csv"
	"fmt"
	"html/template"
	"io"
	"strconv"
	"time"

	"accessionreport/pkg/datasetapi"
)

var htmlTable = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body><h1>{{.Title}}</h1>
<table>
<thead><tr>{{range .Headers}}<th>{{.}}</th>{{end}}</tr></thead>
<tbody>
{{- range .Rows}}
<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>
{{- end}}
</tbody></table></body></html>
`))

func resultColumns(descriptor datasetapi.TemplateDescriptor, result datasetapi.RunResult) []datasetapi.Column {
	if len(result.Schema) > 0 {
		return result.Schema
	}
	return descriptor.Columns
}

func tabulate(columns []datasetapi.Column, rows []map[string]any) ([]string, [][]string) {
	headers := make([]string, len(columns))
	for i, column := range columns {
		headers[i] = column.Name
	}
	records := make([][]string, 0, len(rows))
	for _, row := range rows {
		record := make([]string, len(columns))
		for i, column := range columns {
			record[i] = formatValue(row[column.Name])
		}
		records = append(records, record)
	}
	return headers, records
}

func writeCSV(w io.Writer, columns []datasetapi.Column, rows []map[string]any) error {
	headers, records := tabulate(columns, rows)
	writer := csv.NewWriter(w)
	if err := writer.Write(headers); err != nil {
		return err
	}
	if err := writer.WriteAll(records); err != nil {
		return err
	}
	return writer.Error()
}

// writeHTML renders a standalone table page. Cell values are escaped.
func writeHTML(w io.Writer, title string, columns []datasetapi.Column, rows []map[string]any) error {
	headers, records := tabulate(columns, rows)
	return htmlTable.Execute(w, struct {
		Title   string
		Headers []string
		Rows    [][]string
	}{title, headers, records})
}

func formatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	case fmt.Stringer:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	default:
		return fmt.Sprint(v)
	}
}
