package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"expenses/internal/core"
	"expenses/internal/log"
	"expenses/internal/metrics"
	"expenses/internal/middleware/ratelimit"
	"expenses/internal/middleware/security"
	"expenses/internal/middleware/trace"
)

// ExpenseService is the business logic behind the API.
// *services.ExpenseService implements it.
type ExpenseService interface {
	Create(ctx context.Context, in core.ExpenseInput) (core.Expense, bool, error)
	List(ctx context.Context, filter core.ListFilter) ([]core.Expense, error)
	Ready(ctx context.Context) error
}

// Options tunes the server. Zero values select the defaults.
type Options struct {
	Logger             *log.Logger
	Metrics            *metrics.Metrics
	RateLimitPerMinute int
	MaxBodyBytes       int64
	TrustedProxies     []string
}

type Server struct {
	http.Server
	svc         ExpenseService
	logger      *log.Logger
	metrics     *metrics.Metrics
	rateLimiter *ratelimit.Limiter
	detector    *security.Detector

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, svc ExpenseService, opts Options) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}

	detector := security.NewDetector()
	for _, cidr := range opts.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			return nil, err
		}
	}

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
			MaxHeaderBytes:    1 << 16, // 64KB
		},
		svc:     svc,
		logger:  logger.WithComponent(log.ComponentHTTP),
		metrics: opts.Metrics,
		rateLimiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.RateLimitPerMinute,
		}),
		detector: detector,
	}

	mux := http.NewServeMux()
	s.routes(mux, opts.MaxBodyBytes)

	traceMW := trace.NewMiddleware(logger, opts.Metrics, detector.ExtractClientIP)
	headers := security.NewHeadersMiddleware(security.APIHeadersConfig())
	cors := security.CORS(security.DefaultCORSConfig())

	s.Handler = traceMW.Middleware(headers.Middleware(cors(mux)))
	return s, nil
}

func (s *Server) routes(mux *http.ServeMux, maxBody int64) {
	limitPost := s.rateLimiter.Middleware(s.detector.ExtractClientIP, s.onRateLimit)
	bodyLimit := security.BodyLimit(maxBody)

	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	mux.Handle("POST /expenses", limitPost(bodyLimit(http.HandlerFunc(s.handleCreateExpense))))
	mux.HandleFunc("GET /expenses", s.handleListExpenses)
	mux.HandleFunc("/expenses", func(w http.ResponseWriter, r *http.Request) {
		MethodNotAllowedError("GET, POST").Write(w)
	})

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("not found").Write(w)
	})
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	TooManyRequestsError().Write(w)
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}
