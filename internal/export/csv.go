package export

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/dandantas/tasyrunner/internal/model"
)

// CSV renders the job results separated by semicolons, which is what the
// spreadsheet tools used by the billing team expect
func CSV(job *model.Job) ([]byte, error) {
	t := buildTable(job)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = ';'

	if err := w.Write(t.header); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	if err := w.WriteAll(t.rows); err != nil {
		return nil, fmt.Errorf("write csv rows: %w", err)
	}
	return buf.Bytes(), nil
}
