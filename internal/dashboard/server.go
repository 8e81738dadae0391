// Package dashboard serves the server-rendered expense dashboard. It holds no
// business logic: every read and write goes through the record store API.
package dashboard

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"expenses/internal/cache"
	"expenses/internal/charts"
	"expenses/internal/core"
	"expenses/internal/log"
	"expenses/internal/metrics"
	"expenses/internal/middleware/security"
	"expenses/internal/middleware/trace"
	appweb "expenses/web"
)

// API is the subset of the record store the dashboard consumes.
// *client.Client implements it.
type API interface {
	Create(ctx context.Context, in core.ExpenseInput) (core.Expense, error)
	List(ctx context.Context, filter core.ListFilter) ([]core.Expense, error)
}

// Options tunes the dashboard. Zero values select the defaults.
type Options struct {
	Logger         *log.Logger
	Metrics        *metrics.Metrics
	ChartCacheTTL  time.Duration
	Now            func() time.Time
	TrustedProxies []string
}

const (
	chartCacheSize  = 64
	defaultChartTTL = 10 * time.Minute
	staticMaxAge    = 3600
)

type Server struct {
	http.Server
	api        API
	templates  *template.Template
	charts     *charts.CategoryGenerator
	chartCache *cache.LRUCache[[]byte]
	logger     *log.Logger
	now        func() time.Time

	shutdownOnce sync.Once
}

// NewServer parses the embedded templates and wires the routes.
func NewServer(addr string, api API, opts Options) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	ttl := opts.ChartCacheTTL
	if ttl <= 0 {
		ttl = defaultChartTTL
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	t, err := template.New("").Funcs(template.FuncMap{"money": formatMoney}).
		ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	detector := security.NewDetector()
	for _, cidr := range opts.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			return nil, err
		}
	}

	static, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("mount static assets: %w", err)
	}

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadTimeout:       15 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			// Long enough for a create that runs into the client timeout.
			WriteTimeout:   30 * time.Second,
			IdleTimeout:    60 * time.Second,
			MaxHeaderBytes: 1 << 16,
		},
		api:        api,
		templates:  t,
		charts:     charts.NewCategoryGenerator(),
		chartCache: cache.NewLRUCache[[]byte](chartCacheSize, ttl),
		logger:     logger.WithComponent(log.ComponentDashboard),
		now:        now,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.Handle("POST /expenses", security.BodyLimit(security.MaxBodyBytes)(http.HandlerFunc(s.handleCreateExpense)))
	mux.HandleFunc("GET /chart.png", s.handleChart)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics.Handler())
	}
	mux.Handle("GET /static/", security.StaticAssetMiddleware(staticMaxAge)(
		http.StripPrefix("/static/", http.FileServer(http.FS(static)))))

	traceMW := trace.NewMiddleware(logger, opts.Metrics, detector.ExtractClientIP)
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	s.Handler = traceMW.Middleware(headers.Middleware(mux))
	return s, nil
}

// ChartCache exposes the rendered-chart cache for periodic sweeping.
func (s *Server) ChartCache() cache.Cleaner {
	return s.chartCache
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		err = s.Server.Shutdown(ctx)
	})
	return err
}
