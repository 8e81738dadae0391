// Package memory is an in-process ExpenseAppender. The worker falls back to
// it when no spreadsheet is configured, so events are consumed and logged
// without a Google account.
package memory

import (
	"context"
	"fmt"
	"sync"

	"expenses/internal/core"
	ports "expenses/internal/sheets"
)

var _ ports.ExpenseAppender = (*Store)(nil)

type Store struct {
	mu    sync.Mutex
	limit int
	items []core.Expense
}

// New keeps at most limit rows, dropping the oldest. limit <= 0 keeps all.
func New(limit int) *Store {
	return &Store{limit: limit}
}

// AppendExpense stores the expense and returns a synthetic row reference.
func (s *Store) AppendExpense(ctx context.Context, e core.Expense) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if e.ID <= 0 {
		return "", fmt.Errorf("append expense: missing id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, e)
	if s.limit > 0 && len(s.items) > s.limit {
		s.items = s.items[len(s.items)-s.limit:]
	}
	return fmt.Sprintf("mem:%d", e.ID), nil
}

// Rows returns a copy of the stored rows in append order.
func (s *Store) Rows() []core.Expense {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Expense(nil), s.items...)
}
