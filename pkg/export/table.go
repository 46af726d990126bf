package export

import (
	"fmt"
	"strings"
)

// Format names a supported export encoding.
type Format string

// Supported formats.
const (
	FormatCSV Format = "csv"
	FormatPDF Format = "pdf"
)

// ParseFormat normalises raw into a known format, defaulting to CSV when empty.
func ParseFormat(raw string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatPDF:
		return FormatPDF, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", raw)
	}
}

// ContentType returns the MIME type served for f.
func (f Format) ContentType() string {
	if f == FormatPDF {
		return "application/pdf"
	}
	return "text/csv; charset=utf-8"
}

// Column describes one table column. Weight scales the PDF column width; zero means 1.
type Column struct {
	Key    string
	Title  string
	Weight float64
}

// Table is the tabular content shared by all renderers.
type Table struct {
	Title   string
	Columns []Column
	Rows    []map[string]string
}

func (t Table) validate() error {
	if len(t.Columns) == 0 {
		return fmt.Errorf("export table requires at least one column")
	}
	return nil
}

func (t Table) record(row map[string]string) []string {
	out := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		out[i] = row[col.Key]
	}
	return out
}

func (t Table) titles() []string {
	out := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		out[i] = col.Title
		if out[i] == "" {
			out[i] = col.Key
		}
	}
	return out
}
