package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/MrEthical07/keygate"
	"github.com/MrEthical07/keygate/internal/logging"
	"github.com/MrEthical07/keygate/internal/rate"
	"github.com/MrEthical07/keygate/middleware"
)

const maxBodyBytes = 64 << 10

// Server routes HTTP requests to a keygate.Engine.
type Server struct {
	engine  *keygate.Engine
	config  keygate.Config
	limiter *rate.Limiter
	logger  logging.Logger
	metrics http.Handler
	handler http.Handler
}

// Option configures a Server.
type Option func(*Server)

// WithLimiter injects a rate limiter. Without it New builds one from the
// engine's RateLimit config.
func WithLimiter(l *rate.Limiter) Option {
	return func(s *Server) {
		s.limiter = l
	}
}

// WithLogger sets the logger for internal failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logging.NewSlogLogger(l)
	}
}

// WithMetricsHandler mounts h at GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// New builds a Server for engine.
func New(engine *keygate.Engine, opts ...Option) *Server {
	s := &Server{
		engine: engine,
		logger: logging.Nop{},
	}
	if engine != nil {
		s.config = engine.Config()
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.limiter == nil && s.config.RateLimit.Enabled {
		s.limiter = rate.New(rate.Config{
			Window:       s.config.RateLimit.Window,
			StrictLimit:  s.config.RateLimit.StrictLimit,
			RelaxedLimit: s.config.RateLimit.RelaxedLimit,
		})
	}
	s.handler = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	requireAdmin := middleware.RequireAdmin(s.engine, middleware.WithErrorHandler(s.guardError))
	requireSession := middleware.RequireSession(s.engine, middleware.WithErrorHandler(s.guardError))

	// Admin
	mux.Handle("POST /api/login", s.limit(classAdmin, http.HandlerFunc(s.handleAdminLogin)))
	mux.Handle("GET /api/admin/check-auth", s.limit(classAdmin, requireAdmin(http.HandlerFunc(s.handleAdminCheck))))
	mux.Handle("POST /api/admin/generate", s.limit(classAdmin, requireAdmin(http.HandlerFunc(s.handleGenerateInvite))))
	mux.Handle("GET /api/admin/logs", s.limit(classAdmin, requireAdmin(http.HandlerFunc(s.handleAuditLog))))
	mux.Handle("DELETE /api/admin/logs", s.limit(classAdmin, requireAdmin(http.HandlerFunc(s.handleClearAuditLog))))
	mux.Handle("POST /api/admin/logout", s.limit(classAdmin, http.HandlerFunc(s.handleAdminLogout)))

	// Registration
	mux.Handle("GET /api/register", s.limit(classSecurity, http.HandlerFunc(s.handleRegisterOptions)))
	mux.Handle("POST /api/register", s.limit(classSecurity, http.HandlerFunc(s.handleRegister)))

	// Sign-in and session
	mux.Handle("GET /api/signin", s.limit(classTraffic, http.HandlerFunc(s.handleSignInOptions)))
	mux.Handle("POST /api/signin", s.limit(classTraffic, http.HandlerFunc(s.handleSignIn)))
	mux.Handle("GET /api/session/status", s.limit(classTraffic, requireSession(http.HandlerFunc(s.handleSessionStatus))))
	mux.Handle("GET /api/me", s.limit(classTraffic, http.HandlerFunc(s.handleMe)))
	mux.Handle("POST /api/logout", s.limit(classTraffic, http.HandlerFunc(s.handleLogout)))

	// Unknown /api paths are still rate limited.
	mux.Handle("/api/", s.limit(classTraffic, http.HandlerFunc(s.handleNotFound)))

	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}

	return s.withClientIP(mux)
}

func (s *Server) withClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r, s.config.Security.TrustProxyHeaders)
		ctx := keygate.WithClientIP(r.Context(), ip)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
