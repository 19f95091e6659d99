// Package export renders job results as spreadsheet files.
package export

import (
	"sort"
	"time"

	"github.com/dandantas/tasyrunner/internal/model"
)

// Format is a download format
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ContentType returns the MIME type of the format
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// ParseFormat maps a query value to a format, defaulting to CSV
func ParseFormat(s string) (Format, bool) {
	switch s {
	case "", "csv":
		return FormatCSV, true
	case "xlsx":
		return FormatXLSX, true
	}
	return "", false
}

const timeLayout = "2006-01-02 15:04:05"

// table is the column layout shared by every format
type table struct {
	header []string
	rows   [][]string
}

func buildTable(job *model.Job) table {
	idLabel := "Nr Título"
	if job.Type == model.JobTypeRecursoProprio {
		idLabel = "Nr Sequência"
	}

	results := job.SortedResults()
	metaKeys := metadataKeys(results)

	t := table{
		header: append([]string{idLabel, "Status", "Detalhe", "Data"}, metaKeys...),
		rows:   make([][]string, 0, len(results)),
	}

	for _, r := range results {
		at := r.FinishedAt
		if at.IsZero() {
			at = job.StartedAt
		}
		row := []string{r.ItemID, string(r.Status), r.Detail, formatTime(at)}
		for _, k := range metaKeys {
			row = append(row, r.Extra[k])
		}
		t.rows = append(t.rows, row)
	}
	return t
}

func metadataKeys(results []model.ItemResult) []string {
	seen := make(map[string]struct{})
	for _, r := range results {
		for k := range r.Extra {
			seen[k] = struct{}{}
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(timeLayout)
}
