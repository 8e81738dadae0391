// Package http provides the JSON API of the record store.
//
// This file turns request bodies into core.ExpenseInput values. JSON and
// form-encoded bodies are both accepted and produce the same input.

package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"

	"expenses/internal/core"
)

// errMalformedBody marks bodies that could not be decoded at all. Those are
// answered with 400; a decoded body with bad values gets 422.
var errMalformedBody = errors.New("malformed request body")

// multipartMemory bounds the multipart values held in memory. The body is
// already capped by the server limit.
const multipartMemory = 1 << 20

// errBodyTooLarge is returned when the body exceeds the server limit.
var errBodyTooLarge = errors.New("request body too large")

// createExpenseRequest is the wire shape of POST /expenses. Amount stays raw
// so that numbers and strings are both decoded as exact decimals.
type createExpenseRequest struct {
	Amount      json.RawMessage `json:"amount"`
	Category    *string         `json:"category"`
	Description *string         `json:"description"`
	Date        *string         `json:"date"`
}

// RequestBodyParser reads a request body once and decodes it according to
// its content type. Bodies without a content type are sniffed.
type RequestBodyParser struct {
	body        []byte
	contentType string
	boundary    string
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{}
	if ct := r.Header.Get("Content-Type"); ct != "" {
		if mt, params, err := mime.ParseMediaType(ct); err == nil {
			p.contentType = mt
			p.boundary = params["boundary"]
		}
	}
	if r.Body == nil {
		return p
	}

	p.body, p.err = io.ReadAll(r.Body)
	var maxErr *http.MaxBytesError
	if errors.As(p.err, &maxErr) {
		p.err = errBodyTooLarge
	}
	return p
}

// IsJSON reports whether the body is decoded as JSON.
func (p *RequestBodyParser) IsJSON() bool {
	switch p.contentType {
	case "application/json":
		return true
	case "application/x-www-form-urlencoded", "multipart/form-data":
		return false
	}
	trimmed := bytes.TrimSpace(p.body)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// ExpenseInput decodes the body and maps it to a candidate expense. The
// returned error is errMalformedBody or errBodyTooLarge for undecodable
// bodies and a *core.ValidationError for bad field values.
func (p *RequestBodyParser) ExpenseInput() (core.ExpenseInput, error) {
	if p.err != nil {
		if errors.Is(p.err, errBodyTooLarge) {
			return core.ExpenseInput{}, p.err
		}
		return core.ExpenseInput{}, fmt.Errorf("%w: %v", errMalformedBody, p.err)
	}

	var req createExpenseRequest
	if p.IsJSON() {
		dec := json.NewDecoder(bytes.NewReader(p.body))
		if err := dec.Decode(&req); err != nil {
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &typeErr) && typeErr.Field != "" {
				return core.ExpenseInput{}, core.NewValidationError(typeErr.Field,
					fmt.Errorf("%s must be a %s", typeErr.Field, typeErr.Type.Kind()))
			}
			return core.ExpenseInput{}, fmt.Errorf("%w: %v", errMalformedBody, err)
		}
		if dec.More() {
			return core.ExpenseInput{}, fmt.Errorf("%w: trailing data after JSON object", errMalformedBody)
		}
	} else {
		form, err := p.form()
		if err != nil {
			return core.ExpenseInput{}, fmt.Errorf("%w: %v", errMalformedBody, err)
		}
		req = formRequest(form)
	}

	return req.toInput()
}

// form decodes a url-encoded or multipart body into its values. File parts
// of a multipart body are ignored.
func (p *RequestBodyParser) form() (url.Values, error) {
	if p.contentType != "multipart/form-data" {
		return url.ParseQuery(string(p.body))
	}
	if p.boundary == "" {
		return nil, errors.New("multipart body without boundary")
	}

	mf, err := multipart.NewReader(bytes.NewReader(p.body), p.boundary).ReadForm(multipartMemory)
	if err != nil {
		return nil, err
	}
	defer mf.RemoveAll()
	return url.Values(mf.Value), nil
}

// formRequest maps form fields onto the JSON wire shape. An empty form
// description is treated as absent.
func formRequest(form url.Values) createExpenseRequest {
	var req createExpenseRequest
	if form.Has("amount") {
		req.Amount, _ = json.Marshal(form.Get("amount"))
	}
	if form.Has("category") {
		v := form.Get("category")
		req.Category = &v
	}
	if v := form.Get("description"); v != "" {
		req.Description = &v
	}
	if form.Has("date") {
		v := form.Get("date")
		req.Date = &v
	}
	return req
}

// toInput converts wire values, reporting the first bad field in field order.
// Category and description are kept verbatim.
func (req createExpenseRequest) toInput() (core.ExpenseInput, error) {
	amount, err := core.ParseMoneyJSON(req.Amount)
	if err != nil {
		return core.ExpenseInput{}, core.NewValidationError("amount", err)
	}

	if req.Category == nil {
		return core.ExpenseInput{}, core.NewValidationError("category", core.ErrEmptyCategory)
	}

	if req.Date == nil {
		return core.ExpenseInput{}, core.NewValidationError("date", core.ErrMissingDate)
	}
	date, err := core.ParseDate(*req.Date)
	if err != nil {
		return core.ExpenseInput{}, core.NewValidationError("date", err)
	}

	in := core.ExpenseInput{
		Amount:      amount,
		Category:    *req.Category,
		Description: req.Description,
		Date:        date,
	}
	return in, in.Validate()
}

// ListFilterFromQuery reads ?category= and ?sort=. A blank category lists
// every expense.
func ListFilterFromQuery(q url.Values) core.ListFilter {
	return core.ListFilter{
		Category: q.Get("category"),
		Sort:     core.ParseSortMode(q.Get("sort")),
	}
}
