package sheets

import "meufin/internal/core"

// Rows converts txs into sheet values, header first. Amounts are written as
// numbers so the spreadsheet can sum them.
func Rows(txs []core.Transaction) [][]any {
	out := make([][]any, 0, len(txs)+1)
	head := make([]any, len(Header))
	for i, h := range Header {
		head[i] = h
	}
	out = append(out, head)
	for _, tx := range txs {
		amount, _ := tx.Amount.Round(2).Float64()
		out = append(out, []any{tx.ID, string(tx.Kind), tx.Category, tx.Description, tx.Date.String(), amount, tx.Recurring})
	}
	return out
}
