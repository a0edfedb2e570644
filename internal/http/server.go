// Package http exposes the pipeline over a small JSON API: health,
// CSV discovery, archived analytics, and processing triggers.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"fireledger/internal/amqp"
	"fireledger/internal/cache"
	"fireledger/internal/middleware/ratelimit"
	"fireledger/internal/middleware/security"
	"fireledger/internal/middleware/trace"
	"fireledger/internal/services"
	"fireledger/internal/storage"
)

// PipelineRunner runs one processing request. Satisfied by
// *services.Pipeline; tests substitute a fake.
type PipelineRunner interface {
	Process(ctx context.Context, req services.ProcessRequest) (services.ProcessResult, error)
}

// ProcessPublisher hands a processing request to the worker queue.
type ProcessPublisher interface {
	PublishProcessRequest(ctx context.Context, msg *amqp.ProcessRequestMessage) error
}

// Server wraps http.Server with the pipeline wiring.
type Server struct {
	http.Server

	pipeline  PipelineRunner
	publisher ProcessPublisher
	archive   *storage.Repository
	csvDir    string

	analyticsCache *cache.LRUCache[analyticsResponse]
	cacheManager   *cache.Manager
	rateLimiter    *ratelimit.Limiter
	detector       *security.Detector
}

// Option configures a Server.
type Option func(*Server)

// WithPublisher makes /api/process enqueue jobs instead of running them
// inline.
func WithPublisher(p ProcessPublisher) Option {
	return func(s *Server) { s.publisher = p }
}

// WithArchive enables /api/analytics from the local run archive.
func WithArchive(repo *storage.Repository) Option {
	return func(s *Server) { s.archive = repo }
}

// WithAnalyticsTTL overrides how long analytics responses are cached.
func WithAnalyticsTTL(ttl time.Duration) Option {
	return func(s *Server) {
		s.analyticsCache = cache.NewLRUCache[analyticsResponse](8, ttl)
	}
}

// NewServer configures routes and middleware, returning a ready-to-run
// server.
func NewServer(addr string, pipeline PipelineRunner, csvDir string, opts ...Option) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      5 * time.Minute, // inline processing talks to the sheet
			IdleTimeout:       2 * time.Minute,
		},
		pipeline:       pipeline,
		csvDir:         csvDir,
		analyticsCache: cache.NewLRUCache[analyticsResponse](8, 5*time.Minute),
		cacheManager:   cache.NewManager(),
		rateLimiter:    ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		detector:       security.NewDetector(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.cacheManager.Register(s.analyticsCache)
	s.cacheManager.StartCleanup(time.Minute)

	tracer := trace.NewMiddleware(s.detector.ExtractClientIP)
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	limited := s.rateLimiter.Middleware(s.detector.ExtractClientIP, nil)

	chain := func(h http.Handler) http.Handler {
		return tracer.Middleware(s.flagSuspicious(headers.Middleware(h)))
	}

	mux.Handle("GET /api/health", chain(http.HandlerFunc(s.handleHealth)))
	mux.Handle("GET /api/csv-files", chain(http.HandlerFunc(s.handleCSVFiles)))
	mux.Handle("GET /api/analytics", chain(http.HandlerFunc(s.handleAnalytics)))
	mux.Handle("POST /api/process", chain(limited(http.HandlerFunc(s.handleProcess))))

	return s
}

// flagSuspicious logs requests that match scanner patterns. They are
// served normally, the log line is for operators watching an exposed
// instance.
func (s *Server) flagSuspicious(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.detector.SuspiciousRequest(r) {
			slog.WarnContext(r.Context(), "suspicious request",
				"path", r.URL.Path,
				"client_ip", s.detector.ExtractClientIP(r),
				"flagged_total", s.detector.SuspiciousCount())
		}
		next.ServeHTTP(w, r)
	})
}

// Shutdown stops background cleanup before draining connections.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cacheManager.Stop()
	s.rateLimiter.Stop()
	err := s.Server.Shutdown(ctx)
	slog.InfoContext(ctx, "http server stopped", "addr", s.Addr)
	return err
}
