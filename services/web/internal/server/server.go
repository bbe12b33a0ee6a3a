package server

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"quoteshare/internal/metrics"
	"quoteshare/internal/ratelimit"
	"quoteshare/internal/util"
	"quoteshare/pkg/auth"
	"quoteshare/pkg/domain"
	"quoteshare/services/web/internal/app"
	"quoteshare/services/web/internal/security"
	"quoteshare/services/web/internal/view"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App     *app.App
	Views   *view.Renderer
	Cookies *auth.CookieSigner
	Metrics *metrics.Metrics
	// Limiters are optional; nil disables rate limiting for that form.
	LoginLimiter    *ratelimit.FixedWindowLimiter
	RegisterLimiter *ratelimit.FixedWindowLimiter
	TrustedProxies  *util.TrustedProxies
	Alerter         *security.AuditAlerter
	CookieSecure    bool
}

// Server exposes the HTML pages and the JSON API.
type Server struct {
	app             *app.App
	views           *view.Renderer
	cookies         *auth.CookieSigner
	metrics         *metrics.Metrics
	loginLimiter    *ratelimit.FixedWindowLimiter
	registerLimiter *ratelimit.FixedWindowLimiter
	proxies         *util.TrustedProxies
	alerter         *security.AuditAlerter
	cookieSecure    bool
	mux             *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("server requires an app")
	}
	if cfg.Cookies == nil {
		return nil, errors.New("server requires a cookie signer")
	}
	views := cfg.Views
	if views == nil {
		var err error
		if views, err = view.New(); err != nil {
			return nil, fmt.Errorf("init views: %w", err)
		}
	}
	m := cfg.Metrics
	if m == nil {
		m = metrics.New()
	}
	s := &Server{
		app:             cfg.App,
		views:           views,
		cookies:         cfg.Cookies,
		metrics:         m,
		loginLimiter:    cfg.LoginLimiter,
		registerLimiter: cfg.RegisterLimiter,
		proxies:         cfg.TrustedProxies,
		alerter:         cfg.Alerter,
		cookieSecure:    cfg.CookieSecure,
		mux:             http.NewServeMux(),
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler wrapped in the middleware chain.
func (s *Server) Router() http.Handler {
	var h http.Handler = s.mux
	h = util.WithSecurityHeaders(util.PageCSP, h)
	h = util.WithRecovery(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, app.ErrInternal)
	}, h)
	h = util.WithRequestLog("web", s.metrics.ObserveRequest, h)
	return util.WithRequestID(h)
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.Handle("GET /metrics", s.metrics.Handler())
	s.mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(view.Static())))

	// auth pages
	s.mux.HandleFunc("GET /register", s.handleRegisterPage)
	s.mux.HandleFunc("POST /register", s.handleRegister)
	s.mux.HandleFunc("GET /login", s.handleLoginPage)
	s.mux.HandleFunc("POST /login", s.handleLogin)
	s.mux.HandleFunc("POST /logout", s.handleLogout)

	// quote pages
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.Handle("GET /quotes/new", s.pageAuthenticated(s.handleNewQuotePage))
	s.mux.Handle("POST /quotes", s.authenticated(s.handleCreateQuote))
	s.mux.HandleFunc("GET /quotes/{id}", s.handleQuoteDetail)
	s.mux.Handle("GET /quotes/{id}/edit", s.pageAuthenticated(s.handleEditQuotePage))
	s.mux.Handle("POST /quotes/{id}/edit", s.authenticated(s.handleUpdateQuote))
	s.mux.Handle("POST /quotes/{id}/delete", s.authenticated(s.handleDeleteQuote))
	s.mux.Handle("POST /quotes/{id}/react", s.authenticated(s.handleReact))
	s.mux.Handle("GET /me/quotes", s.pageAuthenticated(s.handleMyQuotes))
	s.mux.Handle("GET /me/likes", s.pageAuthenticated(s.handleMyReactions(domain.ReactionLike, "My Likes")))
	s.mux.Handle("GET /me/collections", s.pageAuthenticated(s.handleMyReactions(domain.ReactionCollect, "My Collections")))

	// json api
	s.mux.HandleFunc("GET /api/me", s.handleAPIMe)
	s.mux.Handle("POST /api/me/delete", s.authenticated(s.handleAPIDeleteMe))
	s.mux.HandleFunc("GET /api/quotes", s.handleAPIListQuotes)
	s.mux.HandleFunc("GET /api/quotes/{id}", s.handleAPIGetQuote)
	s.mux.Handle("POST /api/quotes", s.authenticated(s.handleAPICreateQuote))
	s.mux.Handle("POST /api/quotes/{id}", s.authenticated(s.handleAPIUpdateQuote))
	s.mux.Handle("POST /api/quotes/{id}/delete", s.authenticated(s.handleAPIDeleteQuote))
	s.mux.Handle("POST /api/quotes/{id}/react", s.authenticated(s.handleAPIReact))
	s.mux.Handle("POST /api/ai-explanation", s.authenticated(s.handleExplanation))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// auth wrappers
type authHandler func(http.ResponseWriter, *http.Request, domain.User)

var errAuthRequired = app.ErrUnauthorized.WithMessage("Authentication required")

// authenticated rejects anonymous requests with a JSON 401.
func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.authorize(r)
		if !ok {
			writeError(w, errAuthRequired)
			return
		}
		next(w, r, user)
	})
}

// pageAuthenticated sends anonymous visitors to the login page.
func (s *Server) pageAuthenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.authorize(r)
		if !ok {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next(w, r, user)
	})
}

func (s *Server) authorize(r *http.Request) (domain.User, bool) {
	token, ok := s.sessionToken(r)
	if !ok {
		s.audit(r, "web.authorize", "fail", "reason", "missing_session")
		return domain.User{}, false
	}
	user, ok := s.app.CurrentUser(r.Context(), token)
	if !ok {
		s.audit(r, "web.authorize", "fail", "reason", "unknown_session")
		return domain.User{}, false
	}
	s.audit(r, "web.authorize", "success", "user_id", user.ID)
	return user, true
}

// currentUser resolves the visitor without auditing; pages that merely
// personalize output use it.
func (s *Server) currentUser(r *http.Request) (domain.User, bool) {
	token, ok := s.sessionToken(r)
	if !ok {
		return domain.User{}, false
	}
	return s.app.CurrentUser(r.Context(), token)
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	ip := s.clientIP(r)
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", ip,
	}
	logAttrs = append(logAttrs, attrs...)
	logger := util.LoggerFromContext(r.Context())
	if outcome == "success" {
		logger.Info("security_event", logAttrs...)
		return
	}
	logger.Warn("security_event", logAttrs...)

	alert, err := s.alerter.Observe(r.Context(), event, outcome, ip)
	if err != nil {
		logger.Error("security alert evaluation failed", "event", event, "err", err)
		return
	}
	if alert.Triggered {
		logger.Error("security_alert",
			"event", event,
			"outcome", outcome,
			"ip", ip,
			"count", alert.Count,
			"threshold", alert.Threshold,
			"window", alert.Window.String(),
		)
	}
}

var errRateLimited = &app.Error{Code: "rate_limited", Message: "Too many attempts. Please try again later.", Status: http.StatusTooManyRequests}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter *ratelimit.FixedWindowLimiter) bool {
	if limiter == nil {
		return true
	}
	key := r.URL.Path + "|" + s.clientIP(r)
	decision, err := limiter.Allow(r.Context(), key)
	if err != nil {
		util.LoggerFromContext(r.Context()).Error("rate limiter unavailable", "err", err)
	}
	if decision.Allowed {
		return true
	}
	retry := int(math.Ceil(decision.RetryAfter.Seconds()))
	if retry < 1 {
		retry = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retry))
	writeError(w, errRateLimited)
	return false
}

func (s *Server) clientIP(r *http.Request) string {
	return util.ClientIP(r, s.proxies)
}

func pathID(r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// pageParam parses ?page=; anything unparsable is page 1.
func pageParam(r *http.Request) int {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil {
		return 1
	}
	return page
}

// sessionCookieMaxAge caps the browser cookie at the signer TTL.
func sessionCookieMaxAge(ttl time.Duration) int {
	return int(ttl / time.Second)
}
