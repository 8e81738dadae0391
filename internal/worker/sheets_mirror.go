// Package worker holds the queue consumers that run outside the API process.
package worker

import (
	"context"
	"fmt"
	"time"

	"expenses/internal/amqp"
	"expenses/internal/cache"
	"expenses/internal/log"
	"expenses/internal/metrics"
	"expenses/internal/sheets"
)

// SheetsMirror appends every expense.created event to a spreadsheet.
type SheetsMirror struct {
	appender sheets.ExpenseAppender
	seen     *cache.LRUCache[string]
	metrics  *metrics.Metrics
	logger   *log.Logger
	timeout  time.Duration
}

// MirrorConfig tunes the mirror. Zero values select the defaults.
type MirrorConfig struct {
	// AppendTimeout bounds a single Sheets call (default 30s).
	AppendTimeout time.Duration
	// DedupSize is how many event IDs are remembered to skip redeliveries (default 1024).
	DedupSize int
	// DedupTTL is how long an event ID is remembered (default 24h).
	DedupTTL time.Duration
}

func NewSheetsMirror(appender sheets.ExpenseAppender, cfg MirrorConfig, m *metrics.Metrics, logger *log.Logger) *SheetsMirror {
	if cfg.AppendTimeout <= 0 {
		cfg.AppendTimeout = 30 * time.Second
	}
	if cfg.DedupSize <= 0 {
		cfg.DedupSize = 1024
	}
	if cfg.DedupTTL <= 0 {
		cfg.DedupTTL = 24 * time.Hour
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &SheetsMirror{
		appender: appender,
		seen:     cache.NewLRUCache[string](cfg.DedupSize, cfg.DedupTTL),
		metrics:  m,
		logger:   logger.WithComponent(log.ComponentWorker),
		timeout:  cfg.AppendTimeout,
	}
}

// Seen exposes the redelivery cache so it can be swept by a cache.Manager.
func (w *SheetsMirror) Seen() cache.Cleaner {
	return w.seen
}

// HandleExpenseCreated is an amqp.Handler. Returning an error requeues the
// event; an event already mirrored by this worker is acknowledged without a
// second append.
func (w *SheetsMirror) HandleExpenseCreated(ctx context.Context, msg *amqp.ExpenseCreatedMessage) error {
	if ref, ok := w.seen.Get(msg.EventID); ok {
		w.logger.InfoContext(ctx, "Skipping redelivered event",
			log.FieldEventID, msg.EventID, log.FieldExpenseID, msg.ID, "range", ref)
		w.count("duplicate")
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	ref, err := w.appender.AppendExpense(ctx, msg.Expense())
	if err != nil {
		w.count("error")
		return fmt.Errorf("mirror expense %d: %w", msg.ID, err)
	}

	w.seen.Set(msg.EventID, ref)
	w.count("ok")
	w.logger.InfoContext(ctx, "Expense mirrored",
		log.FieldEventID, msg.EventID,
		log.FieldExpenseID, msg.ID,
		"range", ref)
	return nil
}

func (w *SheetsMirror) count(outcome string) {
	if w.metrics != nil {
		w.metrics.SheetsAppends.WithLabelValues(outcome).Inc()
	}
}
