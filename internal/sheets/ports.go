package sheets

import (
	"context"

	"expenses/internal/core"
)

// Ports for outbound adapters.
type (
	// ExpenseAppender mirrors a stored expense as one spreadsheet row.
	ExpenseAppender interface {
		AppendExpense(ctx context.Context, e core.Expense) (rowRef string, err error)
	}
)
