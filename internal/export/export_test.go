package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meufin/internal/core"
)

func sample() []core.Transaction {
	return []core.Transaction{
		{ID: 1, Kind: core.KindInflow, Category: "Salário", Description: "Pagamento", Amount: decimal.RequireFromString("5000"), Date: core.NewDate(2024, 1, 5), Recurring: true},
		{ID: 2, Kind: core.KindOutflow, Category: "Moradia", Description: "Aluguel, condomínio", Amount: decimal.RequireFromString("1800.5"), Date: core.NewDate(2024, 1, 10), Notes: "janeiro"},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sample()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "tipo,categoria,descricao,data,valor,fixo", lines[0])
	assert.Equal(t, "entrada,Salário,Pagamento,2024-01-05,5000.00,true", lines[1])

	// descriptions with commas stay in one column
	rows, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, "Aluguel, condomínio", rows[2][2])
	assert.Equal(t, "1800.50", rows[2][4])
}

func TestBackupRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteBackup(&buf, sample()))

	res, err := ReadBackup(&buf)
	require.NoError(t, err)
	require.Empty(t, res.Skipped)
	require.Len(t, res.Transactions, 2)

	for i, want := range sample() {
		got := res.Transactions[i]
		assert.Equal(t, want.ID, got.ID)
		assert.Equal(t, want.Kind, got.Kind)
		assert.Equal(t, want.Category, got.Category)
		assert.Equal(t, want.Description, got.Description)
		assert.True(t, want.Amount.Equal(got.Amount), "amount %s != %s", want.Amount, got.Amount)
		assert.True(t, want.Date.Equal(got.Date.Time))
		assert.Equal(t, want.Recurring, got.Recurring)
		assert.Equal(t, want.Notes, got.Notes)
	}
}

func TestWriteBackupEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteBackup(&buf, nil))
	assert.Equal(t, "[]", strings.TrimSpace(buf.String()))
}

func TestReadBackupIsLenient(t *testing.T) {
	body := `[
		{"id": 10, "tipo": "saida", "categoria": "alimentacao", "descricao": "Mercado", "data": "2024-02-01", "valor": "R$ 1.234,56", "fixo": "sim"},
		{"id": "11", "tipo": "entrada", "categoria": "Freela", "data": "02/02/2024", "valor": -5, "fixo": 0},
		{"tipo": "saida", "categoria": "Lazer", "data": "2024-02-03", "valor": "abc"},
		{"tipo": "transferencia", "categoria": "Lazer", "data": "2024-02-03", "valor": 1},
		{"tipo": "saida", "categoria": "Lazer", "data": "ontem", "valor": 1}
	]`

	res, err := ReadBackup(strings.NewReader(body))
	require.NoError(t, err)
	require.Len(t, res.Transactions, 3)
	require.Len(t, res.Skipped, 2)
	assert.Equal(t, 3, res.Skipped[0].Index)
	assert.Equal(t, 4, res.Skipped[1].Index)

	mercado := res.Transactions[0]
	assert.Equal(t, int64(10), mercado.ID)
	assert.Equal(t, "alimentacao", mercado.Category, "categories are restored as written")
	assert.Equal(t, "1234.56", mercado.Amount.StringFixed(2))
	assert.True(t, mercado.Recurring)

	freela := res.Transactions[1]
	assert.Equal(t, int64(11), freela.ID)
	assert.Equal(t, "Freela", freela.Category)
	assert.True(t, freela.Amount.IsZero())
	assert.Equal(t, "2024-02-02", freela.Date.String())

	assert.Zero(t, res.Transactions[2].ID)
	assert.True(t, res.Transactions[2].Amount.IsZero())
}

func TestReadBackupRejectsGarbage(t *testing.T) {
	_, err := ReadBackup(strings.NewReader(`{"not": "an array"}`))
	assert.ErrorIs(t, err, ErrInvalidBackup)
}

func TestFileNames(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	assert.Equal(t, "meufin-1700000000123.csv", CSVFileName(now))
	assert.Equal(t, "meufin-backup-1700000000123.json", BackupFileName(now))
}
