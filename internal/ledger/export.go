package ledger

import (
	"encoding/csv"
	"fmt"
	"io"
)

// WriteCSV writes events as a CSV report with a Name,Timestamp,Type header.
func WriteCSV(w io.Writer, events []Event) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Name", "Timestamp", "Type"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, e := range events {
		if err := cw.Write([]string{e.Name, e.Timestamp.Format(TimestampLayout), e.Type.Label()}); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush report: %w", err)
	}
	return nil
}
