// Package services provides business logic and orchestration services.
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/singleflight"

	"expenses/internal/core"
	"expenses/internal/log"
	"expenses/internal/metrics"
	"expenses/internal/storage"
)

// Store is the persistence the service needs. *storage.Repository implements it.
type Store interface {
	FindByHash(ctx context.Context, hash string) (core.Expense, error)
	Insert(ctx context.Context, e core.Expense) (core.Expense, error)
	List(ctx context.Context, filter core.ListFilter) ([]core.Expense, error)
	Ping(ctx context.Context) error
}

// Publisher announces newly stored expenses. *amqp.Client implements it.
type Publisher interface {
	PublishExpenseCreated(ctx context.Context, e core.Expense) error
}

// ExpenseService owns the idempotent create path and the listing policy.
type ExpenseService struct {
	store     Store
	publisher Publisher
	metrics   *metrics.Metrics
	logger    *log.Logger
	now       func() time.Time
	inflight  singleflight.Group
}

type Option func(*ExpenseService)

// WithPublisher enables expense.created events. A nil publisher disables them.
func WithPublisher(p Publisher) Option {
	return func(s *ExpenseService) { s.publisher = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *ExpenseService) { s.metrics = m }
}

func WithLogger(l *log.Logger) Option {
	return func(s *ExpenseService) { s.logger = l.WithComponent(log.ComponentExpense) }
}

// WithClock overrides the source of created_at timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *ExpenseService) { s.now = now }
}

func NewExpenseService(store Store, opts ...Option) *ExpenseService {
	s := &ExpenseService{
		store:  store,
		logger: log.Discard(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// sharedCreateTimeout bounds a coalesced create once it no longer follows
// the context of the caller that started it.
const sharedCreateTimeout = 15 * time.Second

type createResult struct {
	expense core.Expense
	created bool
}

// Create validates in and stores it at most once. Submitting the same four
// fields again returns the row stored first with created=false. Concurrent
// identical calls in this process share a single store round trip; across
// processes the unique request hash decides and the loser re-reads the row.
func (s *ExpenseService) Create(ctx context.Context, in core.ExpenseInput) (core.Expense, bool, error) {
	if err := in.Validate(); err != nil {
		return core.Expense{}, false, err
	}

	hash := core.RequestHash(in)

	// The shared call outlives any single caller: a joiner must not inherit
	// the cancellation of whoever started it.
	leader := false
	ch := s.inflight.DoChan(hash, func() (any, error) {
		leader = true
		octx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedCreateTimeout)
		defer cancel()
		return s.createOnce(octx, in, hash)
	})

	select {
	case <-ctx.Done():
		return core.Expense{}, false, fmt.Errorf("create expense: %w", ctx.Err())
	case r := <-ch:
		if r.Err != nil {
			return core.Expense{}, false, r.Err
		}
		res := r.Val.(createResult)
		// Only the caller whose call inserted the row reports it as new.
		return res.expense, res.created && leader, nil
	}
}

func (s *ExpenseService) createOnce(ctx context.Context, in core.ExpenseInput, hash string) (createResult, error) {
	sl := log.NewStructuredLogger(s.logger)

	existing, err := s.store.FindByHash(ctx, hash)
	switch {
	case err == nil:
		s.count(func(m *metrics.Metrics) { m.ExpensesReplayed.Inc() })
		sl.LogExpenseStored(ctx, existing.ID, existing.Amount.String(), existing.Category, existing.Date.String(), hash, false)
		return createResult{expense: existing}, nil
	case !errors.Is(err, storage.ErrNotFound):
		return createResult{}, fmt.Errorf("lookup expense: %w", err)
	}

	stored, err := s.store.Insert(ctx, core.Expense{
		Amount:      in.Amount,
		Category:    in.Category,
		Description: in.Description,
		Date:        in.Date,
		CreatedAt:   s.now().UTC(),
		RequestHash: hash,
	})
	if errors.Is(err, storage.ErrDuplicateHash) {
		s.count(func(m *metrics.Metrics) { m.ConflictsResolved.Inc() })
		winner, err := s.store.FindByHash(ctx, hash)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				err = core.NewStorageError("reread", err)
			}
			return createResult{}, fmt.Errorf("reread conflicting expense: %w", err)
		}
		sl.LogExpenseStored(ctx, winner.ID, winner.Amount.String(), winner.Category, winner.Date.String(), hash, false)
		return createResult{expense: winner}, nil
	}
	if err != nil {
		return createResult{}, fmt.Errorf("insert expense: %w", err)
	}

	s.count(func(m *metrics.Metrics) { m.ExpensesCreated.Inc() })
	sl.LogExpenseStored(ctx, stored.ID, stored.Amount.String(), stored.Category, stored.Date.String(), hash, true)
	s.publishCreated(ctx, stored)

	return createResult{expense: stored, created: true}, nil
}

// publishCreated never fails the request: the row is already durable.
func (s *ExpenseService) publishCreated(ctx context.Context, e core.Expense) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishExpenseCreated(ctx, e); err != nil {
		s.count(func(m *metrics.Metrics) { m.PublishFailures.Inc() })
		log.NewStructuredLogger(s.logger).LogError(ctx, "Failed to publish expense.created", err,
			log.ErrorTypeNetwork, log.OpPublish, log.NewFields().WithExpense(e.ID, e.Amount.String(), e.Category, e.Date.String(), e.RequestHash))
	}
}

// List returns the expenses matching filter. The result is never nil.
func (s *ExpenseService) List(ctx context.Context, filter core.ListFilter) ([]core.Expense, error) {
	expenses, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	if expenses == nil {
		expenses = []core.Expense{}
	}
	return expenses, nil
}

// Ready reports whether the store is reachable.
func (s *ExpenseService) Ready(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *ExpenseService) count(fn func(*metrics.Metrics)) {
	if s.metrics != nil {
		fn(s.metrics)
	}
}

// Close closes the store and the publisher when they hold resources.
func (s *ExpenseService) Close() error {
	var errs []error

	if c, ok := s.publisher.(io.Closer); ok && c != nil {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("publisher: %w", err))
		}
	}

	if c, ok := s.store.(io.Closer); ok && c != nil {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close expense service: %w", errors.Join(errs...))
	}
	return nil
}
