package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"expenses/internal/core"
)

type RepositorySuite struct {
	suite.Suite
	ctx  context.Context
	cfg  Config
	repo *Repository
	now  time.Time
}

func TestRepositorySuite(t *testing.T) {
	suite.Run(t, new(RepositorySuite))
}

func (s *RepositorySuite) SetupTest() {
	s.ctx = context.Background()
	s.cfg = Config{Driver: DriverSQLite, SQLitePath: filepath.Join(s.T().TempDir(), "expenses.db")}
	s.Require().NoError(RunMigrations(s.cfg))

	repo, err := Open(s.ctx, s.cfg)
	s.Require().NoError(err)
	s.repo = repo
	s.now = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
}

func (s *RepositorySuite) TearDownTest() {
	if s.repo != nil {
		s.repo.Close()
	}
}

func (s *RepositorySuite) insert(amount, category, date string, desc *string) core.Expense {
	d, err := core.ParseDate(date)
	s.Require().NoError(err)
	in := core.ExpenseInput{Amount: core.MustMoney(amount), Category: category, Description: desc, Date: d}
	s.now = s.now.Add(time.Second)
	e, err := s.repo.Insert(s.ctx, core.Expense{
		Amount:      in.Amount,
		Category:    in.Category,
		Description: in.Description,
		Date:        in.Date,
		CreatedAt:   s.now,
		RequestHash: core.RequestHash(in),
	})
	s.Require().NoError(err)
	return e
}

func (s *RepositorySuite) TestMigrationsAreIdempotent() {
	s.NoError(RunMigrations(s.cfg))
}

func (s *RepositorySuite) TestInsertAndFindByHash() {
	desc := "lunch"
	created := s.insert("12.50", "Food", "2024-01-01", &desc)
	s.NotZero(created.ID)

	got, err := s.repo.FindByHash(s.ctx, created.RequestHash)
	s.Require().NoError(err)
	s.Equal(created.ID, got.ID)
	s.Equal("12.50", got.Amount.String())
	s.Equal("Food", got.Category)
	s.Require().NotNil(got.Description)
	s.Equal("lunch", *got.Description)
	s.Equal("2024-01-01", got.Date.String())
	s.True(created.CreatedAt.Equal(got.CreatedAt), "created_at %v != %v", created.CreatedAt, got.CreatedAt)
}

func (s *RepositorySuite) TestNullDescriptionRoundTrip() {
	created := s.insert("3.00", "Transport", "2024-01-02", nil)

	got, err := s.repo.FindByHash(s.ctx, created.RequestHash)
	s.Require().NoError(err)
	s.Nil(got.Description)
}

func (s *RepositorySuite) TestFindByHashNotFound() {
	_, err := s.repo.FindByHash(s.ctx, "missing")
	s.ErrorIs(err, ErrNotFound)
}

func (s *RepositorySuite) TestInsertDuplicateHash() {
	created := s.insert("12.50", "Food", "2024-01-01", nil)

	dup := created
	dup.ID = 0
	_, err := s.repo.Insert(s.ctx, dup)
	s.ErrorIs(err, ErrDuplicateHash)
	s.NotErrorIs(err, core.ErrStorageUnavailable)

	all, err := s.repo.List(s.ctx, core.ListFilter{})
	s.Require().NoError(err)
	s.Len(all, 1)
}

func (s *RepositorySuite) TestListFilterByCategory() {
	first := s.insert("1.00", "Food", "2024-01-01", nil)
	s.insert("2.00", "Transport", "2024-01-01", nil)
	third := s.insert("3.00", "Food", "2024-01-01", nil)

	got, err := s.repo.List(s.ctx, core.ListFilter{Category: "Food"})
	s.Require().NoError(err)
	s.Require().Len(got, 2)
	// default order: newest insertion first
	s.Equal(third.ID, got[0].ID)
	s.Equal(first.ID, got[1].ID)

	none, err := s.repo.List(s.ctx, core.ListFilter{Category: "food"})
	s.Require().NoError(err)
	s.NotNil(none)
	s.Empty(none)
}

func (s *RepositorySuite) TestListSortByDate() {
	s.insert("1.00", "Food", "2024-01-01", nil)
	s.insert("2.00", "Food", "2024-03-05", nil)
	s.insert("3.00", "Food", "2024-02-10", nil)

	got, err := s.repo.List(s.ctx, core.ListFilter{Sort: core.SortDateDesc})
	s.Require().NoError(err)
	s.Require().Len(got, 3)
	s.Equal("2024-03-05", got[0].Date.String())
	s.Equal("2024-02-10", got[1].Date.String())
	s.Equal("2024-01-01", got[2].Date.String())
}

func (s *RepositorySuite) TestListSameDateBreaksTiesByCreatedAt() {
	older := s.insert("1.00", "Food", "2024-01-01", nil)
	newer := s.insert("2.00", "Food", "2024-01-01", nil)

	got, err := s.repo.List(s.ctx, core.ListFilter{Sort: core.SortDateDesc})
	s.Require().NoError(err)
	s.Require().Len(got, 2)
	s.Equal(newer.ID, got[0].ID)
	s.Equal(older.ID, got[1].ID)
}

func (s *RepositorySuite) TestClosedDatabaseIsStorageUnavailable() {
	s.Require().NoError(s.repo.Close())

	_, err := s.repo.List(s.ctx, core.ListFilter{})
	s.ErrorIs(err, core.ErrStorageUnavailable)

	var serr *core.StorageError
	s.True(errors.As(err, &serr))
	s.Equal("list", serr.Op)

	s.ErrorIs(s.repo.Ping(s.ctx), core.ErrStorageUnavailable)
	s.repo = nil
}

func TestRebind(t *testing.T) {
	pg, err := dialectFor(DriverPostgres)
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1 WHERE a = $1 AND b = $2", pg.rebind("SELECT 1 WHERE a = ? AND b = ?"))

	lite, err := dialectFor(DriverSQLite)
	require.NoError(t, err)
	assert.Equal(t, "a = ?", lite.rebind("a = ?"))

	_, err = dialectFor("mysql")
	assert.Error(t, err)
}

func TestTimestampScan(t *testing.T) {
	want := time.Date(2024, 1, 1, 10, 0, 0, 123456789, time.UTC)
	lite, _ := dialectFor(DriverSQLite)
	encoded := lite.timeArg(want).(string)
	assert.Equal(t, "2024-01-01T10:00:00.123456789Z", encoded)

	var ts timestamp
	require.NoError(t, ts.Scan(encoded))
	assert.True(t, want.Equal(ts.Time))

	require.NoError(t, ts.Scan(want.In(time.FixedZone("CET", 3600))))
	assert.Equal(t, time.UTC, ts.Location())

	assert.Error(t, ts.Scan(42))
}
