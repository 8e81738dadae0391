package http

import (
	"context"
	"net/http"
	"time"

	"expenses/internal/log"
)

const apiVersion = "1.0.0"

// readyTimeout bounds the storage ping behind /readyz.
const readyTimeout = 2 * time.Second

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().JSON(map[string]any{
		"message": "Expense Tracker API",
		"version": apiVersion,
		"endpoints": map[string]string{
			"POST /expenses": "Create a new expense",
			"GET /expenses":  "Get list of expenses (supports ?category=X&sort=date_desc)",
		},
	}).Write(w)
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().JSON(map[string]string{"status": "healthy"}).Write(w)
}

// handleReady reports whether storage answers a ping.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	if err := s.svc.Ready(ctx); err != nil {
		s.logger.WarnContext(ctx, "Readiness check failed", log.FieldError, err)
		NewJSONResponse().
			Status(http.StatusServiceUnavailable).
			JSON(map[string]string{"status": "not_ready", "detail": "storage unavailable"}).
			Write(w)
		return
	}
	NewJSONResponse().JSON(map[string]string{"status": "ready"}).Write(w)
}

// handleCreateExpense stores an expense idempotently. A replay of an earlier
// submission answers 201 with the stored row, same as the first call.
func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	in, err := NewRequestBodyParser(r).ExpenseInput()
	if err != nil {
		s.writeError(w, r, err, log.OpParse)
		return
	}

	expense, created, err := s.svc.Create(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err, log.OpCreate)
		return
	}

	resp := NewJSONResponse().Status(http.StatusCreated).JSON(expense)
	if !created {
		resp.Header("Idempotent-Replayed", "true")
	}
	resp.Write(w)
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	filter := ListFilterFromQuery(r.URL.Query())

	expenses, err := s.svc.List(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err, log.OpList)
		return
	}

	s.logger.DebugContext(r.Context(), "Listed expenses",
		log.FieldCategory, filter.Category,
		log.FieldSort, string(filter.Sort),
		log.FieldCount, len(expenses))
	NewJSONResponse().JSON(expenses).Write(w)
}
