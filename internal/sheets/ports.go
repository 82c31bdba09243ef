package sheets

import (
	"context"

	"meufin/internal/core"
)

// Header is the first row of the mirrored sheet.
var Header = []string{"id", "tipo", "categoria", "descricao", "data", "valor", "fixo"}

// Ports for outbound adapters.
type (
	// MirrorResult describes what a mirror run wrote.
	MirrorResult struct {
		Sheet string `json:"sheet"`
		Range string `json:"range"`
		Rows  int    `json:"rows"`
	}

	// TransactionMirror replaces the remote copy with the given transactions.
	TransactionMirror interface {
		Mirror(ctx context.Context, txs []core.Transaction) (MirrorResult, error)
	}
)
