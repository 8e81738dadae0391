// Package client is the typed HTTP client the dashboard uses to reach the
// record store API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"expenses/internal/core"
	"expenses/internal/log"
)

const (
	DefaultReadTimeout   = 5 * time.Second
	DefaultCreateTimeout = 10 * time.Second

	expensesPath = "/expenses"
	maxErrorBody = 64 << 10
)

// Config configures a Client. Zero timeouts select the defaults.
type Config struct {
	BaseURL       string
	ReadTimeout   time.Duration
	CreateTimeout time.Duration
	HTTPClient    *http.Client
	Logger        *log.Logger
}

// Client calls the record store API. Calls are never retried.
type Client struct {
	baseURL       *url.URL
	httpClient    *http.Client
	readTimeout   time.Duration
	createTimeout time.Duration
	logger        *log.Logger
}

// TransportError reports that no response was received: the connection
// failed or the call ran out of time. For a create the outcome is unknown.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Timeout reports whether the call hit its deadline.
func (e *TransportError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}

// APIError is a non-success response other than a validation failure.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("api returned %d", e.StatusCode)
	}
	return fmt.Sprintf("api returned %d: %s", e.StatusCode, e.Detail)
}

// New validates cfg and builds a Client.
func New(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" || base.Host == "" {
		return nil, fmt.Errorf("api url %q must be an absolute http(s) URL", cfg.BaseURL)
	}

	c := &Client{
		baseURL:       base,
		httpClient:    cfg.HTTPClient,
		readTimeout:   cfg.ReadTimeout,
		createTimeout: cfg.CreateTimeout,
		logger:        cfg.Logger,
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	if c.readTimeout <= 0 {
		c.readTimeout = DefaultReadTimeout
	}
	if c.createTimeout <= 0 {
		c.createTimeout = DefaultCreateTimeout
	}
	if c.logger == nil {
		c.logger = log.Discard()
	}
	c.logger = c.logger.WithComponent(log.ComponentClient)
	return c, nil
}

type createRequest struct {
	Amount      core.Money `json:"amount"`
	Category    string     `json:"category"`
	Description *string    `json:"description"`
	Date        core.Date  `json:"date"`
}

type errorResponse struct {
	Detail string `json:"detail"`
	Field  string `json:"field"`
}

// Create submits an expense. A 422 answer is returned as *core.ValidationError,
// other failures as *APIError or *TransportError.
func (c *Client) Create(ctx context.Context, in core.ExpenseInput) (core.Expense, error) {
	body, err := json.Marshal(createRequest{
		Amount:      in.Amount,
		Category:    in.Category,
		Description: in.Description,
		Date:        in.Date,
	})
	if err != nil {
		return core.Expense{}, fmt.Errorf("encode expense: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.createTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(nil), bytes.NewReader(body))
	if err != nil {
		return core.Expense{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var created core.Expense
	if err := c.do(req, log.OpCreate, http.StatusCreated, &created); err != nil {
		return core.Expense{}, err
	}
	return created, nil
}

// List fetches the expenses matching filter in the order the API returns.
func (c *Client) List(ctx context.Context, filter core.ListFilter) ([]core.Expense, error) {
	q := url.Values{}
	if filter.Category != "" {
		q.Set("category", filter.Category)
	}
	if filter.Sort != core.SortDefault {
		q.Set("sort", string(filter.Sort))
	}

	ctx, cancel := context.WithTimeout(ctx, c.readTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(q), nil)
	if err != nil {
		return nil, fmt.Errorf("list request: %w", err)
	}

	expenses := make([]core.Expense, 0)
	if err := c.do(req, log.OpList, http.StatusOK, &expenses); err != nil {
		return nil, err
	}
	if expenses == nil {
		expenses = []core.Expense{}
	}
	return expenses, nil
}

func (c *Client) endpoint(q url.Values) string {
	u := *c.baseURL
	u.Path += expensesPath
	u.RawQuery = q.Encode()
	return u.String()
}

func (c *Client) do(req *http.Request, op string, want int, out any) error {
	req.Header.Set("Accept", "application/json")
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		terr := &TransportError{Op: op, Err: err}
		c.logger.WarnContext(req.Context(), "API call failed",
			log.FieldOperation, op,
			log.FieldError, err,
			"timeout", terr.Timeout())
		return terr
	}
	defer resp.Body.Close()

	c.logger.DebugContext(req.Context(), "API call completed",
		log.FieldOperation, op,
		log.FieldStatusCode, resp.StatusCode,
		log.FieldDuration, time.Since(start).Milliseconds())

	if resp.StatusCode != want {
		return decodeError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return &TransportError{Op: op, Err: ctxErr}
		}
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var body errorResponse
	if err := json.Unmarshal(raw, &body); err != nil {
		body.Detail = strings.TrimSpace(string(raw))
	}
	if resp.StatusCode == http.StatusUnprocessableEntity {
		field := body.Field
		if field == "" {
			field = "expense"
		}
		return core.NewValidationError(field, errors.New(body.Detail))
	}
	return &APIError{StatusCode: resp.StatusCode, Detail: body.Detail}
}
