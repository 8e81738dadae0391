package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"expenses/internal/core"
)

func TestJSONResponseBuilder(t *testing.T) {
	rec := httptest.NewRecorder()
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("X-Test", "yes").
		JSON(map[string]int{"n": 1}).
		Write(rec)

	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("content type = %q", got)
	}
	if got := rec.Header().Get("X-Test"); got != "yes" {
		t.Errorf("custom header = %q", got)
	}
	if got := rec.Body.String(); got != "{\"n\":1}\n" {
		t.Errorf("body = %q", got)
	}
}

func TestJSONResponseBuilder_NoPayload(t *testing.T) {
	rec := httptest.NewRecorder()
	NewJSONResponse().Status(http.StatusNoContent).Write(rec)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("body = %q, want empty", rec.Body.String())
	}
}

func TestJSONResponseBuilder_EncodeFailure(t *testing.T) {
	rec := httptest.NewRecorder()
	NewJSONResponse().JSON(map[string]any{"ch": make(chan int)}).Write(rec)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "internal error") {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestErrorResponses(t *testing.T) {
	tests := []struct {
		name   string
		build  *JSONResponseBuilder
		status int
		detail string
		field  string
	}{
		{"bad request", BadRequestError("broken"), http.StatusBadRequest, "broken", ""},
		{"not found", NotFoundError("not found"), http.StatusNotFound, "not found", ""},
		{"internal", InternalServerError("storage unavailable"), http.StatusInternalServerError, "storage unavailable", ""},
		{"too many", TooManyRequestsError(), http.StatusTooManyRequests, "rate limit exceeded, please try again later", ""},
		{
			"validation",
			ValidationErrorResponse(core.NewValidationError("amount", core.ErrInvalidAmount)),
			http.StatusUnprocessableEntity,
			core.ErrInvalidAmount.Error(),
			"amount",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.build.Write(rec)

			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			var body errorBody
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Detail != tt.detail || body.Field != tt.field {
				t.Errorf("body = %+v", body)
			}
		})
	}
}

func TestMethodNotAllowedError(t *testing.T) {
	rec := httptest.NewRecorder()
	MethodNotAllowedError("GET, POST").Write(rec)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Allow"); got != "GET, POST" {
		t.Errorf("Allow = %q", got)
	}
}

func TestErrorResponseOmitsEmptyField(t *testing.T) {
	rec := httptest.NewRecorder()
	ErrorResponse(http.StatusConflict, "x").Write(rec)
	if strings.Contains(rec.Body.String(), "field") {
		t.Errorf("body = %q, want no field key", rec.Body.String())
	}
}
