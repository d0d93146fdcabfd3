package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/compostdash/internal/auth"
	"github.com/dukerupert/compostdash/internal/model"
)

const (
	SessionCookieName = "compostdash_session"
	SignInPath        = "/signin.html"
)

// SessionSource resolves cookies to live sessions.
type SessionSource interface {
	CurrentSession(ctx context.Context, token string) (*model.Session, error)
	Touch(ctx context.Context, sess *model.Session) error
	Account(ctx context.Context, id string) (*model.Account, error)
}

// SessionToken returns the session cookie value, or "".
func SessionToken(r *http.Request) string {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// resolve looks up the caller's session and restarts its idle timer.
func resolve(r *http.Request, src SessionSource, logger *slog.Logger) (auth.AuthContext, bool) {
	token := SessionToken(r)
	if token == "" {
		return auth.AuthContext{}, false
	}

	sess, err := src.CurrentSession(r.Context(), token)
	if err != nil {
		logger.Error("session lookup", "error", err)
		return auth.AuthContext{}, false
	}
	if sess == nil {
		return auth.AuthContext{}, false
	}

	account, err := src.Account(r.Context(), sess.AccountID)
	if err != nil || account == nil || !account.Active {
		return auth.AuthContext{}, false
	}

	if err := src.Touch(r.Context(), sess); err != nil {
		logger.Error("touch session", "error", err)
	}

	return auth.AuthContext{
		AccountID: account.ID,
		SessionID: sess.ID,
		Email:     sess.Email,
		Role:      account.Role,
	}, true
}

// RequireAuth validates the session cookie and populates AuthContext.
// API callers get 401 JSON; HTMX requests get an HX-Redirect header;
// browsers are redirected to the sign-in page.
func RequireAuth(src SessionSource, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac, ok := resolve(r, src, logger)
			if !ok {
				if wantsJSON(r) {
					writeJSONError(w, http.StatusUnauthorized, "Please sign in to continue.")
					return
				}
				redirectToLogin(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithAuth(r.Context(), ac)))
		})
	}
}

// OptionalAuth populates AuthContext when a live session exists and
// otherwise passes the request through untouched.
func OptionalAuth(src SessionSource, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ac, ok := resolve(r, src, logger); ok {
				r = r.WithContext(auth.WithAuth(r.Context(), ac))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole allows the request only when the account holds one of roles.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !auth.HasRole(r.Context(), roles...) {
				writeJSONError(w, http.StatusForbidden, "You do not have permission to do that.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin checks that the authenticated account has the admin role.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.IsAdmin(r.Context()) {
			writeJSONError(w, http.StatusForbidden, "You do not have permission to do that.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func wantsJSON(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/") ||
		strings.Contains(r.Header.Get("Accept"), "application/json")
}

func redirectToLogin(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", SignInPath)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, SignInPath, http.StatusSeeOther)
}

type errorBody struct {
	Success bool         `json:"success"`
	Errors  []errorEntry `json:"errors"`
}

type errorEntry struct {
	Message string `json:"message"`
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorBody{Errors: []errorEntry{{Message: msg}}})
}
