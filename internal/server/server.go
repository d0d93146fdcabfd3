package server

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/csrf"

	"github.com/dukerupert/compostdash/internal/backup"
	"github.com/dukerupert/compostdash/internal/config"
	"github.com/dukerupert/compostdash/internal/credential"
	"github.com/dukerupert/compostdash/internal/email"
	"github.com/dukerupert/compostdash/internal/guard"
	"github.com/dukerupert/compostdash/internal/handler"
	"github.com/dukerupert/compostdash/internal/identity"
	"github.com/dukerupert/compostdash/internal/middleware"
	"github.com/dukerupert/compostdash/internal/model"
	"github.com/dukerupert/compostdash/internal/store"
	ws "github.com/dukerupert/compostdash/internal/websocket"
)

var authLimit = middleware.Limit{Requests: 10, Window: time.Minute}

type Server struct {
	cfg config.Config
	db  *sql.DB
	hub *ws.Hub

	credentials credential.Manager
	guard       *guard.Guard

	authH     *handler.AuthHandler
	passwordH *handler.PasswordHandler
	profileH  *handler.ProfileHandler
	accountH  *handler.AccountHandler
	backupH   *handler.BackupHandler

	sessionStore   *store.SessionStore
	resetCodeStore *store.ResetCodeStore
	rateLimiter    *middleware.RateLimiter
	clientIP       *middleware.ClientIP
	backupManager  *backup.Manager
	csrfKey        []byte
	logger         *slog.Logger
}

func New(db *sql.DB, cfg config.Config, logger *slog.Logger) (*Server, error) {
	hub := ws.NewHub(logger.With("component", "websocket"))

	accountStore := store.NewAccountStore(db)
	sessionStore := store.NewSessionStore(db)
	resetCodeStore := store.NewResetCodeStore(db)
	profileStore := store.NewProfileStore(db)
	backupStore := store.NewBackupStore(db)

	credCfg := credential.Config{
		SessionTTL:  cfg.Auth.SessionTTL,
		IdleTimeout: cfg.Auth.IdleTimeout,
		BcryptCost:  cfg.Auth.BcryptCost,
	}
	credLogger := logger.With("component", "credential")

	var creds credential.Manager
	var resetter credential.PasswordResetter
	switch cfg.Auth.Backend {
	case config.BackendFederated:
		idp := identity.NewClient(identity.Config{
			BaseURL:    cfg.IdP.BaseURL,
			APIKey:     cfg.IdP.APIKey,
			SigningKey: cfg.IdP.SigningKey,
			Timeout:    cfg.IdP.Timeout,
		})
		creds = credential.NewFederated(idp, accountStore, sessionStore, credCfg, credLogger, credential.WithNotifier(hub))
	default:
		local := credential.NewLocal(accountStore, sessionStore, resetCodeStore, credCfg, credLogger, credential.WithNotifier(hub))
		creds = local
		resetter = local
	}
	logger.Info("credential backend selected", "backend", cfg.Auth.Backend)

	backupMgr := backup.NewManager(backup.Config{
		S3: backup.S3Config{
			Endpoint:  cfg.Backup.Endpoint,
			Bucket:    cfg.Backup.Bucket,
			Region:    cfg.Backup.Region,
			AccessKey: cfg.Backup.AccessKey,
			SecretKey: cfg.Backup.SecretKey,
		},
		Passphrase:    cfg.Backup.Passphrase,
		Prefix:        cfg.Backup.Prefix,
		Interval:      cfg.Backup.Interval,
		RetentionDays: cfg.Backup.RetentionDays,
	}, accountStore, backupStore, logger.With("component", "backup"))

	csrfKey := cfg.HTTP.CSRFKey
	if csrfKey == nil {
		csrfKey = make([]byte, 32)
		if _, err := rand.Read(csrfKey); err != nil {
			return nil, fmt.Errorf("generate csrf key: %w", err)
		}
		logger.Warn("no CSRF key configured, tokens will not survive a restart")
	}

	return &Server{
		cfg:            cfg,
		db:             db,
		hub:            hub,
		credentials:    creds,
		guard:          guard.New(guard.DefaultTable()),
		authH:          handler.NewAuthHandler(creds, cfg.HTTP.SecureCookies, logger.With("component", "auth")),
		passwordH:      handler.NewPasswordHandler(resetter, email.New(cfg.Email.PostmarkToken, cfg.Email.FromEmail, logger.With("component", "email")), logger.With("component", "password")),
		profileH:       handler.NewProfileHandler(accountStore, profileStore, logger.With("component", "profile")),
		accountH:       handler.NewAccountHandler(creds, logger.With("component", "accounts")),
		backupH:        handler.NewBackupHandler(backupMgr, logger.With("component", "backup")),
		sessionStore:   sessionStore,
		resetCodeStore: resetCodeStore,
		rateLimiter:    middleware.NewRateLimiter(),
		clientIP:       middleware.NewClientIP(cfg.HTTP.TrustedProxies),
		backupManager:  backupMgr,
		csrfKey:        csrfKey,
		logger:         logger,
	}, nil
}

// BackupManager returns the backup manager.
func (s *Server) BackupManager() *backup.Manager {
	return s.backupManager
}

// Credentials returns the selected credential backend.
func (s *Server) Credentials() credential.Manager {
	return s.credentials
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	requireAuth := middleware.RequireAuth(s.credentials, s.logger.With("component", "auth"))
	optionalAuth := middleware.OptionalAuth(s.credentials, s.logger.With("component", "auth"))
	admin := func(h http.HandlerFunc) http.Handler {
		return requireAuth(middleware.RequireAdmin(h))
	}

	mux.HandleFunc("GET /health", s.healthHandler)

	// Account and session API
	mux.Handle("POST /api/auth/signup", s.rateLimited(s.authH.SignUp))
	mux.Handle("POST /api/auth/signin", s.rateLimited(s.authH.SignIn))
	mux.HandleFunc("POST /api/auth/signout", s.authH.SignOut)
	mux.HandleFunc("GET /api/auth/session", s.authH.Session)

	// Password policy and reset
	mux.HandleFunc("POST /api/password/strength", s.passwordH.Strength)
	mux.Handle("POST /api/password/reset", s.rateLimited(s.passwordH.RequestReset))
	mux.Handle("POST /api/password/reset/confirm", s.rateLimited(s.passwordH.ConfirmReset))

	// Route guard re-evaluation for page scripts
	mux.Handle("GET /api/guard", optionalAuth(s.guard.HandleDecision(guard.FromAuthContext)))

	// Signed-in account
	mux.Handle("GET /api/profile", requireAuth(http.HandlerFunc(s.profileH.Get)))
	mux.Handle("PUT /api/profile", requireAuth(http.HandlerFunc(s.profileH.Update)))

	// Team list for supervisors; changes are admin only
	mux.Handle("GET /api/accounts", requireAuth(middleware.RequireRole(model.RoleSupervisor, model.RoleAdmin)(http.HandlerFunc(s.accountH.List))))

	// Admin
	mux.Handle("POST /api/accounts/{id}/deactivate", admin(s.accountH.Deactivate))
	mux.Handle("POST /api/accounts/{id}/activate", admin(s.accountH.Activate))
	mux.Handle("GET /api/backups", admin(s.backupH.Status))
	mux.Handle("POST /api/backups", admin(s.backupH.RunNow))

	// Session-change events
	mux.Handle("GET /ws", requireAuth(ws.HandleWebSocket(s.hub, s.cfg.HTTP.TrustedOrigins, s.logger.With("component", "websocket"))))

	// Static dashboard pages behind the guard
	pages := staticPages(s.cfg.HTTP.WebDir)
	mux.Handle("GET /", optionalAuth(s.guard.Middleware(guard.FromAuthContext)(pages)))

	var h http.Handler = mux
	h = exposeCSRFToken(h)
	h = csrf.Protect(s.csrfKey,
		csrf.Secure(s.cfg.HTTP.SecureCookies),
		csrf.Path("/"),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.TrustedOrigins(s.cfg.HTTP.TrustedOrigins),
		csrf.ErrorHandler(http.HandlerFunc(csrfFailure)),
	)(h)
	if !s.cfg.HTTP.SecureCookies {
		h = plaintext(h)
	}
	return middleware.RequestLogger(s.logger.With("component", "http"), s.clientIP)(h)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := s.db.PingContext(r.Context()); err != nil {
		status = "database unavailable"
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]any{
		"status":  status,
		"clients": s.hub.ClientCount(),
	})
}

func (s *Server) rateLimited(h http.HandlerFunc) http.Handler {
	return middleware.RateLimit(s.rateLimiter, s.clientIP.ByIPAndPath, authLimit)(h)
}

// staticPages serves the dashboard directory. Unlike http.FileServer alone
// it serves /index.html in place instead of redirecting to the directory,
// so the guard's default page is a real URL.
func staticPages(dir string) http.Handler {
	files := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/index.html") {
			r = r.Clone(r.Context())
			r.URL.Path = strings.TrimSuffix(r.URL.Path, "index.html")
		}
		files.ServeHTTP(w, r)
	})
}

// exposeCSRFToken lets page scripts read the token from any response.
func exposeCSRFToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-CSRF-Token", csrf.Token(r))
		next.ServeHTTP(w, r)
	})
}

// plaintext marks requests as plain HTTP so local development without TLS
// is not rejected by the referer check.
func plaintext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, csrf.PlaintextHTTPRequest(r))
	})
}

func csrfFailure(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"errors":  []map[string]string{{"message": "Your form expired. Reload the page and try again."}},
	})
}

// RunJanitor expires idle sessions every minute and sweeps expired sessions,
// reset codes and rate limiter entries every hour, until ctx is done.
func (s *Server) RunJanitor(ctx context.Context) {
	idle := time.NewTicker(time.Minute)
	defer idle.Stop()
	sweep := time.NewTicker(time.Hour)
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-idle.C:
			s.expireIdle(ctx)
		case <-sweep.C:
			s.sweep(ctx)
		}
	}
}

func (s *Server) expireIdle(ctx context.Context) {
	if n, err := s.credentials.ExpireIdle(ctx); err != nil {
		s.logger.Error("expire idle sessions", "error", err)
	} else if n > 0 {
		s.logger.Info("expired idle sessions", "count", n)
	}
}

func (s *Server) sweep(ctx context.Context) {
	if n, err := s.sessionStore.DeleteExpired(ctx); err != nil {
		s.logger.Error("cleanup expired sessions", "error", err)
	} else if n > 0 {
		s.logger.Info("cleaned up expired sessions", "count", n)
	}
	if n, err := s.resetCodeStore.DeleteExpired(ctx); err != nil {
		s.logger.Error("cleanup expired reset codes", "error", err)
	} else if n > 0 {
		s.logger.Info("cleaned up expired reset codes", "count", n)
	}
	if n := s.rateLimiter.Cleanup(); n > 0 {
		s.logger.Debug("cleaned up rate limit entries", "count", n)
	}
}

// EnsureAdmin promotes the account with the given email to admin. Used by
// the CLI to bootstrap the first administrator.
func EnsureAdmin(ctx context.Context, db *sql.DB, emailAddr string) (*model.Account, error) {
	accounts := store.NewAccountStore(db)
	a, err := accounts.GetByEmail(ctx, emailAddr)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, credential.ErrAccountNotFound
	}
	if err := accounts.SetRole(ctx, a.ID, model.RoleAdmin); err != nil {
		return nil, err
	}
	a.Role = model.RoleAdmin
	return a, nil
}

// DeleteAccount removes the account with the given email. Its sessions and
// profile go with it.
func DeleteAccount(ctx context.Context, db *sql.DB, emailAddr string) (*model.Account, error) {
	accounts := store.NewAccountStore(db)
	a, err := accounts.GetByEmail(ctx, emailAddr)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, credential.ErrAccountNotFound
	}
	if err := accounts.Delete(ctx, a.ID); err != nil {
		return nil, err
	}
	return a, nil
}
