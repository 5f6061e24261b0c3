// Package http serves the finance dashboard: sign-in, the category views,
// the htmx partials and the operational endpoints.
package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"sync"
	"time"

	"finview/internal/auth"
	"finview/internal/cache"
	"finview/internal/log"
	"finview/internal/middleware/ratelimit"
	"finview/internal/middleware/security"
	"finview/internal/middleware/trace"
	"finview/internal/services"
	"finview/internal/session"
	"finview/internal/view"
	appweb "finview/web"
)

const (
	cacheSweepInterval   = time.Minute
	sessionSweepInterval = 10 * time.Minute
	staticMaxAge         = 3600
)

// Deps are the collaborators of the dashboard server.
type Deps struct {
	Ledger   *services.LedgerService
	Sessions session.Store
	Auth     auth.Provider
	Views    view.Builder
	Logger   *log.Logger

	SessionTTL         time.Duration
	CookieSecure       bool
	RateLimitPerMinute int

	// Report forwards unexpected errors to the error tracker. It may be nil.
	Report func(ctx context.Context, err error)
	// Now overrides the clock, for tests.
	Now func() time.Time
}

type Server struct {
	http.Server

	templates *template.Template
	ledger    *services.LedgerService
	sessions  session.Store
	auth      auth.Provider
	views     view.Builder
	logger    *log.Logger
	report    func(ctx context.Context, err error)
	now       func() time.Time

	sessionTTL   time.Duration
	cookieSecure bool
	started      time.Time

	caches           *cache.Manager
	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware

	stopSweep    chan struct{}
	sweepDone    chan struct{}
	shutdownOnce sync.Once
}

// NewServer parses the embedded templates and wires the middleware chain.
// It starts the cache and session sweepers; Shutdown stops them.
func NewServer(addr string, d Deps) (*Server, error) {
	if d.Ledger == nil || d.Sessions == nil || d.Auth == nil {
		return nil, errors.New("ledger service, session store and auth provider are required")
	}
	if d.Logger == nil {
		d.Logger = log.New(log.DefaultConfig())
	}
	if d.Now == nil {
		d.Now = time.Now
	}

	tmpl, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	static, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("static assets: %w", err)
	}

	s := &Server{
		templates:    tmpl,
		ledger:       d.Ledger,
		sessions:     d.Sessions,
		auth:         d.Auth,
		views:        d.Views,
		logger:       d.Logger.WithComponent(log.ComponentHTTP),
		report:       d.Report,
		now:          d.Now,
		sessionTTL:   d.SessionTTL,
		cookieSecure: d.CookieSecure,
		started:      d.Now(),
		caches:       cache.NewManager(d.Logger.Logger),
		rateLimiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: d.RateLimitPerMinute,
		}),
		securityDetector: security.NewDetector(),
		stopSweep:        make(chan struct{}),
		sweepDone:        make(chan struct{}),
	}
	s.traceMiddleware = trace.NewMiddleware(d.Logger, s.securityDetector.ExtractClientIP)

	s.caches.Register("ledger", d.Ledger.Cache())
	s.caches.StartCleanup(cacheSweepInterval)
	go s.sweepSessions(sessionSweepInterval)

	mux := http.NewServeMux()
	mux.Handle("GET /static/", http.StripPrefix("/static/",
		security.StaticAssetMiddleware(staticMaxAge)(http.FileServer(http.FS(static)))))

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /auth/login", s.handleLogin)
	mux.HandleFunc("GET /auth/callback", s.handleCallback)
	mux.HandleFunc("POST /auth/signout", s.handleSignOut)

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /view", s.handleSwitchView)
	mux.HandleFunc("POST /sync", s.handleSync)
	mux.HandleFunc("GET /ui/ledger", s.handleLedgerPartial)
	mux.HandleFunc("GET /ui/estimate", s.handleEstimatePartial)
	mux.HandleFunc("GET /api/trend", s.handleTrend)
	mux.HandleFunc("GET /ui/", s.handleUnknownFragment)
	mux.HandleFunc("GET /api/", s.handleUnknownFragment)

	var handler http.Handler = mux
	handler = s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, exemptFromRateLimit, s.onRateLimited)(handler)
	handler = s.securityDetector.Middleware(d.Logger.WithComponent(log.ComponentSecurity).Logger)(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.traceMiddleware.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
	return s, nil
}

func exemptFromRateLimit(r *http.Request) bool {
	p := r.URL.Path
	return p == "/healthz" || p == "/readyz" || strings.HasPrefix(p, "/static/")
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.securityDetector.ExtractClientIP(r),
		log.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "Too many requests. Please try again shortly.").Write(w)
}

// Shutdown stops the background sweepers and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		close(s.stopSweep)
		<-s.sweepDone
		s.caches.Stop()
		s.rateLimiter.Stop()
	})
	return s.Server.Shutdown(ctx)
}

// sweepSessions deletes sessions idle for longer than the session TTL.
func (s *Server) sweepSessions(interval time.Duration) {
	defer close(s.sweepDone)
	if s.sessionTTL <= 0 {
		<-s.stopSweep
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			n, err := s.sessions.DeleteExpired(ctx, s.now().Add(-s.sessionTTL))
			cancel()
			if err != nil {
				s.logger.Warn("Session sweep failed", log.FieldError, err)
				continue
			}
			if n > 0 {
				s.logger.Debug("Expired sessions removed", "count", n)
			}
		case <-s.stopSweep:
			return
		}
	}
}

// render executes a template into a buffer so a failing template never
// leaves a half-written page.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		log.NewStructuredLogger(log.FromContext(r.Context())).LogError(r.Context(), "Template render failed", err, log.OpRender,
			log.NewFields().WithComponent(log.ComponentTemplate))
		s.reportError(r.Context(), fmt.Errorf("render %s: %w", name, err))
		InternalServerError("Unable to render page").Write(w)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *Server) reportError(ctx context.Context, err error) {
	if s.report != nil {
		s.report(ctx, err)
	}
}
