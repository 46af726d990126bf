package export

import (
	"encoding/csv"
	"fmt"
	"io"
)

// WriteCSV streams the table header and rows to w.
func WriteCSV(w io.Writer, t Table) error {
	if err := t.validate(); err != nil {
		return err
	}
	writer := csv.NewWriter(w)
	if err := writer.Write(t.titles()); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range t.Rows {
		if err := writer.Write(t.record(row)); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
