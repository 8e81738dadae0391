package dashboard

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"expenses/internal/charts"
	"expenses/internal/client"
	"expenses/internal/core"
	"expenses/internal/log"
)

const (
	warnUnknownTimeout = "The request timed out. The expense may have been created; check the list below before submitting again."
	warnUnknownConnect = "Could not reach the API. The expense may have been created; check the list below before submitting again."
)

// formValues echoes the add-expense form back after a failed submit.
type formValues struct {
	Amount      string
	Category    string
	Description string
	Date        string
}

type pageData struct {
	Form       formValues
	Added      bool
	Error      string
	Warning    string
	FetchError string

	Categories []string
	Selected   string
	SortDesc   bool

	Expenses []core.Expense
	Total    core.Money
	Summary  []core.CategoryAmount
	ChartURL string
}

// view is the table state selected through the query string.
type view struct {
	category string
	sortDesc bool
}

// viewFromQuery reads the filter form. Sorting by date is on until the form
// has been submitted without the box checked.
func viewFromQuery(q url.Values) view {
	v := view{category: q.Get("category"), sortDesc: true}
	if q.Get("f") != "" {
		v.sortDesc = q.Get("sort") == string(core.SortDateDesc)
	}
	return v
}

func (v view) filter() core.ListFilter {
	f := core.ListFilter{Category: v.category}
	if v.sortDesc {
		f.Sort = core.SortDateDesc
	}
	return f
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	page := s.newPage()
	page.Added = r.URL.Query().Get("added") == "1"
	s.loadExpenses(r, &page, viewFromQuery(r.URL.Query()))
	s.render(w, r, http.StatusOK, page)
}

// handleCreateExpense forwards the form to the API. Success redirects so
// that a browser refresh does not submit again.
func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	page := s.newPage()

	if err := r.ParseForm(); err != nil {
		status := http.StatusBadRequest
		page.Error = "invalid form submission"
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			status = http.StatusRequestEntityTooLarge
			page.Error = "the submitted form is too large"
		}
		s.loadExpenses(r, &page, viewFromQuery(r.URL.Query()))
		s.render(w, r, status, page)
		return
	}

	page.Form = formValues{
		Amount:      strings.TrimSpace(r.PostForm.Get("amount")),
		Category:    strings.TrimSpace(r.PostForm.Get("category")),
		Description: strings.TrimSpace(r.PostForm.Get("description")),
		Date:        strings.TrimSpace(r.PostForm.Get("date")),
	}

	status, err := s.submit(r, page.Form)
	if err == nil {
		http.Redirect(w, r, "/?added=1", http.StatusSeeOther)
		return
	}

	var verr *core.ValidationError
	var terr *client.TransportError
	var apiErr *client.APIError
	switch {
	case errors.As(err, &verr):
		page.Error = verr.Message()
	case errors.As(err, &terr):
		// The API may have stored the row before the call failed. The list
		// rendered below is fetched again so the user can tell.
		page.Warning = warnUnknownConnect
		if terr.Timeout() {
			page.Warning = warnUnknownTimeout
		}
	case errors.As(err, &apiErr):
		page.Error = fmt.Sprintf("API returned status %d: %s", apiErr.StatusCode, apiErr.Detail)
	default:
		page.Error = err.Error()
	}

	s.loadExpenses(r, &page, viewFromQuery(r.URL.Query()))
	s.render(w, r, status, page)
}

// submit builds the input from the trimmed form and creates it. It returns
// the status to render when the create did not succeed.
func (s *Server) submit(r *http.Request, f formValues) (int, error) {
	in, err := f.input()
	if err != nil {
		return http.StatusUnprocessableEntity, err
	}

	created, err := s.api.Create(r.Context(), in)
	if err == nil {
		s.logger.InfoContext(r.Context(), "Expense submitted",
			log.FieldExpenseID, created.ID,
			log.FieldAmount, created.Amount.String(),
			log.FieldCategory, created.Category)
		return http.StatusSeeOther, nil
	}

	var terr *client.TransportError
	switch {
	case errors.Is(err, core.ErrValidation):
		return http.StatusUnprocessableEntity, err
	case errors.As(err, &terr):
		log.NewStructuredLogger(s.logger).LogError(r.Context(), "Create outcome unknown", err,
			timeoutType(terr), log.OpCreate, nil)
		if terr.Timeout() {
			return http.StatusGatewayTimeout, err
		}
		return http.StatusBadGateway, err
	default:
		log.NewStructuredLogger(s.logger).LogError(r.Context(), "Create failed", err,
			log.ErrorTypeNetwork, log.OpCreate, nil)
		return http.StatusBadGateway, err
	}
}

func (f formValues) input() (core.ExpenseInput, error) {
	amount, err := core.ParseMoney(f.Amount)
	if err != nil {
		return core.ExpenseInput{}, core.NewValidationError("amount", err)
	}
	date, err := core.ParseDate(f.Date)
	if err != nil {
		return core.ExpenseInput{}, core.NewValidationError("date", err)
	}

	in := core.ExpenseInput{Amount: amount, Category: f.Category, Date: date}
	if f.Description != "" {
		desc := f.Description
		in.Description = &desc
	}
	return in, nil
}

// handleChart renders the category totals of the current filter as a PNG.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	expenses, err := s.api.List(r.Context(), core.ListFilter{Category: r.URL.Query().Get("category")})
	if err != nil {
		s.logger.WarnContext(r.Context(), "Chart data unavailable", log.FieldError, err)
		http.Error(w, "chart data unavailable", http.StatusBadGateway)
		return
	}

	totals := core.Summarize(expenses).ByCategory
	if len(totals) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	img, err := s.chartCache.GetOrLoad(charts.Digest(totals), func() ([]byte, error) {
		return s.charts.CategoryBars(totals)
	})
	if err != nil {
		log.NewStructuredLogger(s.logger).LogError(r.Context(), "Chart rendering failed", err,
			log.ErrorTypeInternal, log.OpRender, nil)
		http.Error(w, "chart rendering failed", http.StatusInternalServerError)
		return
	}
	if img == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=300")
	_, _ = w.Write(img)
}

func (s *Server) newPage() pageData {
	return pageData{Form: formValues{Date: s.now().Format(core.DateLayout)}}
}

// loadExpenses fills the table, filter options and summary. Category options
// always come from the unfiltered list.
func (s *Server) loadExpenses(r *http.Request, page *pageData, v view) {
	ctx := r.Context()
	page.Selected, page.SortDesc = v.category, v.sortDesc

	expenses, err := s.api.List(ctx, v.filter())
	if err != nil {
		s.logger.WarnContext(ctx, "Listing expenses failed", log.FieldError, err)
		page.FetchError = describeFetchError(err)
		return
	}

	all := expenses
	if v.category != "" {
		if all, err = s.api.List(ctx, core.ListFilter{}); err != nil {
			s.logger.WarnContext(ctx, "Listing categories failed", log.FieldError, err)
			all = expenses
		}
	}
	page.Categories = core.Categories(all)

	ov := core.Summarize(expenses)
	page.Expenses = expenses
	page.Total = ov.Total
	page.Summary = ov.ByCategory
	if len(ov.ByCategory) > 0 {
		page.ChartURL = chartURL(v.category, ov.ByCategory)
	}
}

// chartURL versions the image with the digest of its data so browsers fetch
// a new one only when the totals change.
func chartURL(category string, totals []core.CategoryAmount) string {
	q := url.Values{}
	if category != "" {
		q.Set("category", category)
	}
	q.Set("v", charts.Digest(totals)[:12])
	return "/chart.png?" + q.Encode()
}

func describeFetchError(err error) string {
	var terr *client.TransportError
	var apiErr *client.APIError
	switch {
	case errors.As(err, &terr) && terr.Timeout():
		return "Request timed out. Please try again."
	case errors.As(err, &terr):
		return "Could not connect to the API. Make sure the backend is running."
	case errors.As(err, &apiErr):
		return fmt.Sprintf("API returned status %d", apiErr.StatusCode)
	default:
		return "Error fetching expenses: " + err.Error()
	}
}

func timeoutType(terr *client.TransportError) string {
	if terr.Timeout() {
		return log.ErrorTypeTimeout
	}
	return log.ErrorTypeNetwork
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, page pageData) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, "index.html", page); err != nil {
		s.logger.ErrorContext(r.Context(), "Index template execution failed",
			log.FieldError, err, "template", "index.html")
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
