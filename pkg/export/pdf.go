package export

import (
	"fmt"
	"io"
	"time"

	"github.com/jung-kurt/gofpdf"
)

const (
	pageMargin  = 10.0
	headerRowH  = 8.0
	bodyRowH    = 7.0
	landscapeAt = 6
)

// WritePDF renders the table as a bordered grid, switching to landscape for wide tables.
func WritePDF(w io.Writer, t Table, generatedAt time.Time) error {
	if err := t.validate(); err != nil {
		return err
	}
	orientation := "P"
	if len(t.Columns) >= landscapeAt {
		orientation = "L"
	}
	pdf := gofpdf.New(orientation, "mm", "A4", "")
	pdf.SetMargins(pageMargin, 15, pageMargin)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	pageW, _ := pdf.GetPageSize()
	widths := columnWidths(t.Columns, pageW-2*pageMargin)

	if t.Title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, t.Title, "", 1, "C", false, 0, "")
	}
	pdf.SetFont("Arial", "I", 8)
	pdf.CellFormat(0, 5, "Generated "+generatedAt.Format("2006-01-02 15:04 MST"), "", 1, "R", false, 0, "")
	pdf.Ln(2)

	header := func() {
		pdf.SetFont("Arial", "B", 10)
		pdf.SetFillColor(230, 230, 230)
		for i, title := range t.titles() {
			pdf.CellFormat(widths[i], headerRowH, title, "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 9)
	}
	pdf.SetHeaderFunc(func() {
		if pdf.PageNo() > 1 {
			header()
		}
	})
	header()

	for _, row := range t.Rows {
		for i, value := range t.record(row) {
			pdf.CellFormat(widths[i], bodyRowH, value, "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return nil
}

func columnWidths(cols []Column, usable float64) []float64 {
	total := 0.0
	for _, c := range cols {
		total += weight(c)
	}
	out := make([]float64, len(cols))
	for i, c := range cols {
		out[i] = usable * weight(c) / total
	}
	return out
}

func weight(c Column) float64 {
	if c.Weight <= 0 {
		return 1
	}
	return c.Weight
}
