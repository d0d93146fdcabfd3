package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/compostdash/internal/credential"
	"github.com/dukerupert/compostdash/internal/database"
	"github.com/dukerupert/compostdash/internal/middleware"
	"github.com/dukerupert/compostdash/internal/model"
	"github.com/dukerupert/compostdash/internal/store"
	"golang.org/x/crypto/bcrypt"
)

type env struct {
	local    *credential.Local
	accounts *store.AccountStore
	profiles *store.ProfileStore
	logger   *slog.Logger
}

func setup(t *testing.T) env {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	accounts := store.NewAccountStore(db)
	local := credential.NewLocal(accounts, store.NewSessionStore(db), store.NewResetCodeStore(db),
		credential.Config{BcryptCost: bcrypt.MinCost}, logger)
	return env{
		local:    local,
		accounts: accounts,
		profiles: store.NewProfileStore(db),
		logger:   logger,
	}
}

// signUp creates an account through the store and returns its session.
func (e env) signUp(t *testing.T, email string) (*model.Account, *model.Session) {
	t.Helper()
	a, s, err := e.local.CreateAccount(context.Background(), credential.SignUp{
		FirstName:       "Grace",
		LastName:        "Wanjiru",
		Email:           email,
		Password:        "Compost#2024",
		PasswordConfirm: "Compost#2024",
		TermsAccepted:   true,
	})
	if err != nil {
		t.Fatalf("sign up %s: %v", email, err)
	}
	return a, s
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func withSession(req *http.Request, token string) *http.Request {
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: token})
	return req
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.SessionCookieName {
			return c
		}
	}
	return nil
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}

func firstError(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	errs, ok := body["errors"].([]any)
	if !ok || len(errs) == 0 {
		t.Fatalf("expected errors in body, got %v", body)
	}
	return errs[0].(map[string]any)
}

type sentCode struct {
	to, code string
}

type recordingSender struct {
	mu   sync.Mutex
	sent []sentCode
}

func (s *recordingSender) SendResetCode(_ context.Context, to, code string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentCode{to, code})
	return nil
}
