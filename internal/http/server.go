// Package http serves the dashboard API: session endpoints for the
// delegated login flow, cached transaction queries, submission, and
// derived statistics.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/PriyanKishoreMS/transmyaction-dash/internal/api"
	"github.com/PriyanKishoreMS/transmyaction-dash/internal/cache"
	"github.com/PriyanKishoreMS/transmyaction-dash/internal/log"
	"github.com/PriyanKishoreMS/transmyaction-dash/internal/middleware/ratelimit"
	"github.com/PriyanKishoreMS/transmyaction-dash/internal/middleware/security"
	"github.com/PriyanKishoreMS/transmyaction-dash/internal/middleware/trace"
	"github.com/PriyanKishoreMS/transmyaction-dash/internal/session"
)

// Options holds server tunables.
type Options struct {
	Addr               string
	CacheTTL           time.Duration
	CacheMaxEntries    int
	RateLimitPerMinute int
}

type Server struct {
	http.Server

	client  *api.Client
	session *session.Store
	loader  *Loader
	logger  *log.Logger

	limiter      *ratelimit.Limiter
	tracer       *trace.Middleware
	detector     *security.Detector
	cacheManager *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a
// ready-to-run http.Server.
func NewServer(opts Options, client *api.Client, sess *session.Store, logger *log.Logger) *Server {
	detector := security.NewDetector()

	s := &Server{
		client:   client,
		session:  sess,
		logger:   logger.WithComponent(log.ComponentHTTP),
		detector: detector,
		tracer:   trace.NewMiddleware(detector.ExtractClientIP),
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.RateLimitPerMinute,
		}),
		cacheManager: cache.NewManager(),
	}
	s.loader = NewLoader(client, opts.CacheMaxEntries, opts.CacheTTL, logger)

	s.cacheManager.Register(s.loader)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /login", s.handleLogin)
	mux.HandleFunc("GET /auth/callback", s.handleAuthCallback)
	mux.HandleFunc("POST /logout", s.handleLogout)
	mux.HandleFunc("GET /api/session", s.handleSession)

	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	mux.HandleFunc("GET /api/stats", s.handleStats)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	rateLimited := s.limiter.Middleware(detector.ExtractClientIP, nil)

	s.Server = http.Server{
		Addr:    opts.Addr,
		Handler: headers.Middleware(s.tracer.Middleware(s.detectSuspicious(rateLimited(mux)))),
	}
	return s
}

// detectSuspicious logs request shapes flagged by the detector. The
// request still proceeds; flagged traffic shows up in metrics.
func (s *Server) detectSuspicious(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.detector.DetectSuspiciousRequest(r) {
			s.logger.WarnContext(r.Context(), "Suspicious request detected",
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path,
				log.FieldClientIP, s.detector.ExtractClientIP(r))
		}
		next.ServeHTTP(w, r)
	})
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Ping(r.Context()); err != nil {
		s.logger.ErrorContext(r.Context(), "Readiness check failed",
			log.FieldError, err.Error())
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"requests":  s.tracer.GetMetrics(),
		"rateLimit": s.limiter.GetMetrics(),
		"cache":     s.loader.CacheStats(),
		"security":  s.detector.GetMetrics(),
	})
}
