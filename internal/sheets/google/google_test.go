package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"expenses/internal/core"
)

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{}, nil)
	if err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	_, err := New(context.Background(), Config{SpreadsheetID: "sid"}, nil)
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNew_UnreadableCredentialsFile(t *testing.T) {
	_, err := New(context.Background(), Config{SpreadsheetID: "sid", ServiceAccountFile: "/does/not/exist.json"}, nil)
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestExpenseRow(t *testing.T) {
	desc := "lunch"
	e := core.Expense{
		ID:          3,
		Amount:      core.MustMoney("12.5"),
		Category:    "Food",
		Description: &desc,
		Date:        core.NewDate(2024, 1, 2),
		CreatedAt:   time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC),
	}
	assert.Equal(t, []any{int64(3), "2024-01-02", "Food", "lunch", "12.50", "2024-01-02T09:30:00Z"}, expenseRow(e))

	e.Description = nil
	assert.Equal(t, "", expenseRow(e)[3])
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication(),
		goption.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return NewWithService(svc, Config{SpreadsheetID: "sid", SheetName: "Expenses"}, nil)
}

func TestAppendExpense(t *testing.T) {
	var gotPath, gotOption string
	var gotBody gsheet.ValueRange
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotOption = r.URL.Query().Get("valueInputOption")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"spreadsheetId":"sid","updates":{"updatedRange":"Expenses!A7:F7","updatedRows":1}}`))
	})

	ref, err := c.AppendExpense(context.Background(), core.Expense{
		ID:       9,
		Amount:   core.MustMoney("4.20"),
		Category: "Coffee",
		Date:     core.NewDate(2024, 5, 1),
	})
	require.NoError(t, err)
	assert.Equal(t, "Expenses!A7:F7", ref)
	assert.True(t, strings.HasSuffix(gotPath, "/values/Expenses!A:F:append"), gotPath)
	assert.Equal(t, "USER_ENTERED", gotOption)
	require.Len(t, gotBody.Values, 1)
	assert.Equal(t, "Coffee", gotBody.Values[0][2])
	assert.Equal(t, "4.20", gotBody.Values[0][4])
}

func TestAppendExpense_APIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":503,"message":"backend error"}}`, http.StatusServiceUnavailable)
	})

	_, err := c.AppendExpense(context.Background(), core.Expense{ID: 1, Amount: core.MustMoney("1"), Category: "x", Date: core.NewDate(2024, 1, 1)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "append to sheet Expenses")
}

func TestAppendExpense_RejectsUnsavedExpense(t *testing.T) {
	c := &Client{svc: &gsheet.Service{}, sheetName: "Expenses"}
	_, err := c.AppendExpense(context.Background(), core.Expense{})
	assert.Error(t, err)

	var nilSvc Client
	_, err = nilSvc.AppendExpense(context.Background(), core.Expense{ID: 1})
	assert.EqualError(t, err, "sheets service not initialized")
}
