package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersAndExposition(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ExpensesCreated.Inc()
	m.ExpensesCreated.Inc()
	m.ExpensesReplayed.Inc()
	m.ObserveHTTP(http.MethodPost, "/expenses", http.StatusCreated, 15*time.Millisecond)

	if got := testutil.ToFloat64(m.ExpensesCreated); got != 2 {
		t.Fatalf("expected 2 created, got %v", got)
	}
	if got := testutil.ToFloat64(m.ExpensesReplayed); got != 1 {
		t.Fatalf("expected 1 replayed, got %v", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{
		"expenses_created_total 2",
		`http_request_duration_seconds_count{method="POST",route="/expenses",status="201"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("exposition missing %q:\n%s", want, body)
		}
	}
}
