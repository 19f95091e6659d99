package export

import (
	"fmt"

	"github.com/dandantas/tasyrunner/internal/model"
	"github.com/xuri/excelize/v2"
)

const sheetName = "Resultados"

// XLSX renders the job results as a single-sheet workbook
func XLSX(job *model.Job) ([]byte, error) {
	t := buildTable(job)

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	for i, h := range t.header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheetName, cell, h)
	}

	for r, row := range t.rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			_ = f.SetCellValue(sheetName, cell, v)
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		last, _ := excelize.CoordinatesToCellName(len(t.header), 1)
		_ = f.SetCellStyle(sheetName, "A1", last, bold)
	}

	_ = f.SetColWidth(sheetName, "A", "A", 16)
	_ = f.SetColWidth(sheetName, "B", "B", 12)
	_ = f.SetColWidth(sheetName, "C", "C", 60)
	_ = f.SetColWidth(sheetName, "D", "D", 20)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// Render produces the file for format
func Render(job *model.Job, format Format) ([]byte, error) {
	switch format {
	case FormatXLSX:
		return XLSX(job)
	default:
		return CSV(job)
	}
}

// Filename is the attachment name offered for a job download
func Filename(job *model.Job, format Format) string {
	return fmt.Sprintf("log_job_%s.%s", job.ID, format)
}
