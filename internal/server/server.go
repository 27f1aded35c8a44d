package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"bookbazaar/internal/app"
	"bookbazaar/internal/ratelimit"
	"bookbazaar/internal/util"
)

const sessionCookieName = "token"

// Config wires required dependencies for the HTTP server.
type Config struct {
	App *app.App
	// DevMode exposes internal error details in responses.
	DevMode bool
	// CookieSecure marks the session cookie Secure.
	CookieSecure               bool
	CORSOrigins                []string
	TrustedProxyCIDRs          []string
	RedisAddr                  string
	RedisPassword              string
	LoginRateLimitPerMinute    int
	RegisterRateLimitPerMinute int
	MaxCoverBytes              int64
}

// Server exposes the seller HTTP API.
type Server struct {
	app             *app.App
	mux             *http.ServeMux
	devMode         bool
	cookieSecure    bool
	corsOrigins     []string
	trustedProxies  *util.TrustedProxies
	maxCoverBytes   int64
	loginLimiter    *ratelimit.FixedWindowLimiter
	registerLimiter *ratelimit.FixedWindowLimiter
}

// New constructs the server with routes configured. Without a Redis address
// login and register are not rate limited.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("app required")
	}
	trusted, err := util.NewTrustedProxies(cfg.TrustedProxyCIDRs)
	if err != nil {
		return nil, fmt.Errorf("parse trusted proxies: %w", err)
	}
	maxCoverBytes := cfg.MaxCoverBytes
	if maxCoverBytes <= 0 {
		maxCoverBytes = 5 << 20
	}
	s := &Server{
		app:            cfg.App,
		mux:            http.NewServeMux(),
		devMode:        cfg.DevMode,
		cookieSecure:   cfg.CookieSecure,
		corsOrigins:    cfg.CORSOrigins,
		trustedProxies: trusted,
		maxCoverBytes:  maxCoverBytes,
	}
	if cfg.RedisAddr != "" {
		newLimiter := func(name string, limit, fallback int) (*ratelimit.FixedWindowLimiter, error) {
			if limit <= 0 {
				limit = fallback
			}
			limiter, err := ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, "bookbazaar:ratelimit:"+name, limit, time.Minute)
			if err != nil {
				return nil, fmt.Errorf("init %s limiter: %w", name, err)
			}
			return limiter, nil
		}
		if s.loginLimiter, err = newLimiter("login", cfg.LoginRateLimitPerMinute, 10); err != nil {
			return nil, err
		}
		if s.registerLimiter, err = newLimiter("register", cfg.RegisterRateLimitPerMinute, 5); err != nil {
			return nil, err
		}
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("bookbazaar", util.WithSecurityHeaders(util.WithCORS(s.corsOrigins, s.mux))))
}

// Close releases the rate limiter connections.
func (s *Server) Close() error {
	return errors.Join(s.loginLimiter.Close(), s.registerLimiter.Close())
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// auth
	s.mux.HandleFunc("/auth/register", s.handleRegister)
	s.mux.HandleFunc("/auth/login", s.handleLogin)
	s.mux.HandleFunc("/auth/logout", s.handleLogout)
	s.mux.Handle("/auth/me", s.authenticated(s.handleMe))

	// seller data
	s.mux.Handle("/books", s.authenticated(s.handleBooks))
	s.mux.Handle("/books/{id}", s.authenticated(s.handleBookByID))
	s.mux.Handle("/books/{id}/cover", s.authenticated(s.handleBookCover))
	s.mux.Handle("/profile", s.authenticated(s.handleProfile))
	s.mux.Handle("/sales", s.authenticated(s.handleSales))
	s.mux.Handle("/sales/seed", s.authenticated(s.handleSeed))
	s.mux.Handle("/sales/seed/{jobId}", s.authenticated(s.handleSeedJob))
	s.mux.Handle("/dashboard/stats", s.authenticated(s.handleDashboard))

	s.mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, codeNotFound, "not found")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.app.Health(ctx); err != nil {
		util.LoggerFromContext(ctx).Warn("health check failed", "err", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "database": "unhealthy"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "database": "healthy"})
}

// authHandler receives the seller id proven by the session cookie. Handlers
// scope every data access by it and never by ids in the body or path.
type authHandler func(w http.ResponseWriter, r *http.Request, sellerID int64)

func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var token string
		if cookie, err := r.Cookie(sessionCookieName); err == nil {
			token = cookie.Value
		}
		sellerID, ok := s.app.VerifySession(token)
		if !ok {
			reason := "invalid_token"
			if token == "" {
				reason = "missing_token"
			}
			s.audit(r, "session.verify", "fail", "reason", reason)
			writeError(w, http.StatusUnauthorized, codeUnauthorized, "Unauthorized")
			return
		}
		s.audit(r, "session.verify", "success", "seller_id", sellerID)
		next(w, r, sellerID)
	})
}

func (s *Server) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.app.SessionTTL().Seconds()),
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", util.ClientIP(r, s.trustedProxies),
	}
	logAttrs = append(logAttrs, attrs...)
	logger := util.LoggerFromContext(r.Context())
	if outcome == "success" {
		logger.Info("security_event", logAttrs...)
		return
	}
	logger.Warn("security_event", logAttrs...)
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter *ratelimit.FixedWindowLimiter, msg string) bool {
	if limiter == nil {
		return true
	}
	if limiter.Allow(r.Context(), util.ClientIP(r, s.trustedProxies)) {
		return true
	}
	w.Header().Set("Retry-After", "60")
	writeError(w, http.StatusTooManyRequests, codeRateLimited, msg)
	return false
}

func (s *Server) logInternal(r *http.Request, err error) {
	util.LoggerFromContext(r.Context()).Error("request failed", "path", r.URL.Path, "method", r.Method, slog.Any("err", err))
}
