// Package export writes and reads the transaction exports: the CSV sheet
// and the JSON backup.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"meufin/internal/core"
)

// CSVHeader is the fixed first line of every CSV export.
var CSVHeader = []string{"tipo", "categoria", "descricao", "data", "valor", "fixo"}

// WriteCSV writes txs in the given order.
func WriteCSV(w io.Writer, txs []core.Transaction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, tx := range txs {
		if err := cw.Write(CSVRecord(tx)); err != nil {
			return fmt.Errorf("write csv row %d: %w", tx.ID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// CSVRecord is one exported row, also used by the spreadsheet mirror.
func CSVRecord(tx core.Transaction) []string {
	return []string{
		string(tx.Kind),
		tx.Category,
		tx.Description,
		tx.Date.String(),
		tx.Amount.StringFixed(2),
		strconv.FormatBool(tx.Recurring),
	}
}

func CSVFileName(now time.Time) string {
	return fmt.Sprintf("meufin-%d.csv", now.UnixMilli())
}

func BackupFileName(now time.Time) string {
	return fmt.Sprintf("meufin-backup-%d.json", now.UnixMilli())
}
