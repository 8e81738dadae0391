package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"expenses/internal/core"
)

var (
	// ErrNotFound is returned when no expense matches the lookup.
	ErrNotFound = errors.New("expense not found")
	// ErrDuplicateHash is returned by Insert when the request hash is already stored.
	ErrDuplicateHash = errors.New("request hash already stored")
)

const expenseColumns = "id, amount, category, description, date, created_at, request_hash"

// Repository persists expenses in SQLite or PostgreSQL.
type Repository struct {
	db      *sql.DB
	dialect dialect
	tracer  trace.Tracer
}

// Open connects to the configured database. Migrations are not applied here,
// call RunMigrations first.
func Open(ctx context.Context, cfg Config) (*Repository, error) {
	cfg = cfg.withDefaults()
	d, err := dialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}
	if err := prepare(cfg); err != nil {
		return nil, err
	}

	db, err := sql.Open(d.sqlDriver, cfg.dsn())
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", d.name, err)
	}

	if d.name == DriverSQLite {
		// single writer
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxOpenConns)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Repository{
		db:      db,
		dialect: d,
		tracer:  otel.Tracer("expenses/internal/storage"),
	}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Driver returns the name of the backend in use.
func (r *Repository) Driver() string {
	return r.dialect.name
}

// Ping verifies the database is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	return r.withConn(ctx, "ping", func(ctx context.Context, conn *sql.Conn) error {
		return conn.PingContext(ctx)
	})
}

// FindByHash returns the expense stored under hash or ErrNotFound.
func (r *Repository) FindByHash(ctx context.Context, hash string) (core.Expense, error) {
	var e core.Expense
	err := r.withConn(ctx, "find_by_hash", func(ctx context.Context, conn *sql.Conn) error {
		row := conn.QueryRowContext(ctx,
			r.dialect.rebind("SELECT "+expenseColumns+" FROM expenses WHERE request_hash = ?"), hash)
		var err error
		e, err = scanExpense(row)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	})
	return e, err
}

// Insert stores e and returns it with the assigned ID. A unique violation on
// the request hash yields ErrDuplicateHash.
func (r *Repository) Insert(ctx context.Context, e core.Expense) (core.Expense, error) {
	err := r.withConn(ctx, "insert", func(ctx context.Context, conn *sql.Conn) error {
		row := conn.QueryRowContext(ctx, r.dialect.rebind(
			`INSERT INTO expenses (amount, category, description, date, created_at, request_hash)
			 VALUES (?, ?, ?, ?, ?, ?) RETURNING id`),
			e.Amount, e.Category, e.Description, e.Date, r.dialect.timeArg(e.CreatedAt), e.RequestHash)
		if err := row.Scan(&e.ID); err != nil {
			if r.dialect.isUniqueViolation(err) {
				return ErrDuplicateHash
			}
			return err
		}
		return nil
	})
	return e, err
}

// List returns the expenses matching filter in the requested order. The ID is
// always the final tiebreak so the order is total.
func (r *Repository) List(ctx context.Context, filter core.ListFilter) ([]core.Expense, error) {
	query := "SELECT " + expenseColumns + " FROM expenses"
	var args []any
	if filter.Category != "" {
		query += " WHERE category = ?"
		args = append(args, filter.Category)
	}
	switch filter.Sort {
	case core.SortDateDesc:
		query += " ORDER BY date DESC, created_at DESC, id DESC"
	default:
		query += " ORDER BY created_at DESC, id DESC"
	}

	out := make([]core.Expense, 0)
	err := r.withConn(ctx, "list", func(ctx context.Context, conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, r.dialect.rebind(query), args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			e, err := scanExpense(rows)
			if err != nil {
				return err
			}
			out = append(out, e)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// withConn runs fn on a connection checked out for this operation only and
// returns it to the pool on every path. Driver failures are reported as
// *core.StorageError; the package sentinels pass through.
func (r *Repository) withConn(ctx context.Context, op string, fn func(context.Context, *sql.Conn) error) error {
	ctx, span := r.tracer.Start(ctx, "storage."+op, trace.WithAttributes(
		attribute.String("db.system", r.dialect.name),
		attribute.String("db.operation", op),
	))
	defer span.End()

	conn, err := r.db.Conn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "acquire connection")
		return core.NewStorageError(op, err)
	}
	defer conn.Close()

	err = fn(ctx, conn)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrDuplicateHash):
		span.SetAttributes(attribute.String("db.outcome", err.Error()))
		return err
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, op)
		return core.NewStorageError(op, err)
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(row rowScanner) (core.Expense, error) {
	var (
		e           core.Expense
		description sql.NullString
		createdAt   timestamp
	)
	if err := row.Scan(&e.ID, &e.Amount, &e.Category, &description, &e.Date, &createdAt, &e.RequestHash); err != nil {
		return core.Expense{}, err
	}
	if description.Valid {
		e.Description = &description.String
	}
	e.CreatedAt = createdAt.Time
	return e, nil
}
