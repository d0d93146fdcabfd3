package middleware

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dukerupert/compostdash/internal/auth"
	"github.com/dukerupert/compostdash/internal/model"
)

type fakeSource struct {
	sessions map[string]*model.Session
	accounts map[string]*model.Account
	touched  int
}

func (f *fakeSource) CurrentSession(ctx context.Context, token string) (*model.Session, error) {
	return f.sessions[token], nil
}

func (f *fakeSource) Touch(ctx context.Context, sess *model.Session) error {
	f.touched++
	sess.LastSeenAt = time.Now()
	return nil
}

func (f *fakeSource) Account(ctx context.Context, id string) (*model.Account, error) {
	return f.accounts[id], nil
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		sessions: map[string]*model.Session{
			"good-token":     {ID: 11, Token: "good-token", AccountID: "acc-1", Email: "grace@example.com"},
			"inactive-token": {ID: 12, Token: "inactive-token", AccountID: "acc-2", Email: "gone@example.com"},
		},
		accounts: map[string]*model.Account{
			"acc-1": {ID: "acc-1", Email: "grace@example.com", Role: model.RoleSupervisor, Active: true},
			"acc-2": {ID: "acc-2", Email: "gone@example.com", Role: model.RoleStaff, Active: false},
		},
	}
}

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestRequireAuthNoCookie(t *testing.T) {
	handler := RequireAuth(newFakeSource(), quietLogger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))

	req := httptest.NewRequest("GET", "/profile.html", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusSeeOther)
	}
	if loc := rec.Header().Get("Location"); loc != SignInPath {
		t.Errorf("Location = %q, want %q", loc, SignInPath)
	}
}

func TestRequireAuthAPIUnauthorized(t *testing.T) {
	handler := RequireAuth(newFakeSource(), quietLogger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))

	req := httptest.NewRequest("GET", "/api/profile", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "invalid-token"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	var body errorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Success || len(body.Errors) != 1 {
		t.Errorf("body = %+v, want one error", body)
	}
}

func TestRequireAuthInactiveAccount(t *testing.T) {
	handler := RequireAuth(newFakeSource(), quietLogger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))

	req := httptest.NewRequest("GET", "/api/profile", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "inactive-token"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRequireAuthValidSession(t *testing.T) {
	src := newFakeSource()

	var gotAC auth.AuthContext
	handler := RequireAuth(src, quietLogger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ac, ok := auth.FromContext(r.Context())
		if !ok {
			t.Fatal("expected AuthContext in request context")
		}
		gotAC = ac
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/api/profile", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "good-token"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if gotAC.AccountID != "acc-1" {
		t.Errorf("AccountID = %q, want %q", gotAC.AccountID, "acc-1")
	}
	if gotAC.SessionID != 11 {
		t.Errorf("SessionID = %d, want 11", gotAC.SessionID)
	}
	if gotAC.Role != model.RoleSupervisor {
		t.Errorf("Role = %q, want %q", gotAC.Role, model.RoleSupervisor)
	}
	if src.touched != 1 {
		t.Errorf("touched = %d, want 1", src.touched)
	}
}

func TestRequireAuthHTMXRedirect(t *testing.T) {
	handler := RequireAuth(newFakeSource(), quietLogger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))

	req := httptest.NewRequest("GET", "/inventory.html", nil)
	req.Header.Set("HX-Request", "true")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if hxRedirect := rec.Header().Get("HX-Redirect"); hxRedirect != SignInPath {
		t.Errorf("HX-Redirect = %q, want %q", hxRedirect, SignInPath)
	}
}

func TestOptionalAuth(t *testing.T) {
	src := newFakeSource()
	var sawAuth bool
	handler := OptionalAuth(src, quietLogger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawAuth = auth.FromContext(r.Context())
	}))

	req := httptest.NewRequest("GET", "/api/auth/session", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if sawAuth {
		t.Error("expected no AuthContext without cookie")
	}

	req = httptest.NewRequest("GET", "/api/auth/session", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "good-token"})
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if !sawAuth {
		t.Error("expected AuthContext with valid cookie")
	}
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		role string
		want int
	}{
		{model.RoleAdmin, http.StatusOK},
		{model.RoleSupervisor, http.StatusOK},
		{model.RoleStaff, http.StatusForbidden},
		{"", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			ctx := auth.WithAuth(context.Background(), auth.AuthContext{Role: tt.role})
			req := httptest.NewRequest("GET", "/", nil).WithContext(ctx)
			rec := httptest.NewRecorder()

			handler := RequireRole(model.RoleAdmin, model.RoleSupervisor)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestRequireAdminForbidden(t *testing.T) {
	ctx := auth.WithAuth(context.Background(), auth.AuthContext{Role: model.RoleSupervisor})
	req := httptest.NewRequest("GET", "/", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	handler := RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}
