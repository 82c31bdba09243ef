// Package memory keeps the spreadsheet mirror in process, for local runs
// without Google credentials and for tests.
package memory

import (
	"context"
	"sync"

	"meufin/internal/core"
	ports "meufin/internal/sheets"
)

const SheetName = "memory"

type Store struct {
	mu   sync.Mutex
	rows [][]any
	runs int
}

var _ ports.TransactionMirror = (*Store)(nil)

func New() *Store { return &Store{} }

// Mirror replaces the stored rows with txs.
func (s *Store) Mirror(ctx context.Context, txs []core.Transaction) (ports.MirrorResult, error) {
	if err := ctx.Err(); err != nil {
		return ports.MirrorResult{}, err
	}
	rows := ports.Rows(txs)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = rows
	s.runs++
	return ports.MirrorResult{Sheet: SheetName, Range: SheetName, Rows: len(txs)}, nil
}

// Rows returns a copy of the last mirrored rows, header included.
func (s *Store) Rows() [][]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]any, len(s.rows))
	for i, r := range s.rows {
		out[i] = append([]any(nil), r...)
	}
	return out
}

// Runs reports how many times Mirror completed.
func (s *Store) Runs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs
}
