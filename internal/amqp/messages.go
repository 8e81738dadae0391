package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"expenses/internal/core"
)

// ExpenseCreatedType names the event carried on the queue.
const ExpenseCreatedType = "expense.created"

// ExpenseCreatedMessage announces a newly inserted expense. It carries the
// full row so consumers never read the store back.
type ExpenseCreatedMessage struct {
	EventID     string     `json:"event_id"`
	Type        string     `json:"type"`
	ID          int64      `json:"id"`
	Amount      core.Money `json:"amount"`
	Category    string     `json:"category"`
	Description *string    `json:"description"`
	Date        core.Date  `json:"date"`
	CreatedAt   time.Time  `json:"created_at"`
	Timestamp   time.Time  `json:"timestamp"`
}

// NewExpenseCreatedMessage wraps e with a fresh event ID.
func NewExpenseCreatedMessage(e core.Expense) *ExpenseCreatedMessage {
	return &ExpenseCreatedMessage{
		EventID:     uuid.NewString(),
		Type:        ExpenseCreatedType,
		ID:          e.ID,
		Amount:      e.Amount,
		Category:    e.Category,
		Description: e.Description,
		Date:        e.Date,
		CreatedAt:   e.CreatedAt,
		Timestamp:   time.Now().UTC(),
	}
}

// Expense rebuilds the stored record carried by the message.
func (m *ExpenseCreatedMessage) Expense() core.Expense {
	return core.Expense{
		ID:          m.ID,
		Amount:      m.Amount,
		Category:    m.Category,
		Description: m.Description,
		Date:        m.Date,
		CreatedAt:   m.CreatedAt,
	}
}

// ToJSON converts the message to JSON bytes
func (m *ExpenseCreatedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseCreatedMessageFromJSON decodes and checks a message body.
func ExpenseCreatedMessageFromJSON(data []byte) (*ExpenseCreatedMessage, error) {
	var msg ExpenseCreatedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID <= 0 {
		return nil, fmt.Errorf("invalid expense id %d", msg.ID)
	}
	if _, err := uuid.Parse(msg.EventID); err != nil {
		return nil, fmt.Errorf("invalid event id: %w", err)
	}
	if msg.Date.IsZero() {
		return nil, errors.New("missing expense date")
	}
	return &msg, nil
}
