package google

import (
	"time"

	"expenses/internal/core"
)

// expenseRow lays out e as [id, date, category, description, amount, created_at].
// The amount stays the fixed two-decimal string; USER_ENTERED lets Sheets
// read it as a number.
func expenseRow(e core.Expense) []any {
	return []any{
		e.ID,
		e.Date.String(),
		e.Category,
		e.DescriptionOr(""),
		e.Amount.String(),
		e.CreatedAt.UTC().Format(time.RFC3339),
	}
}
