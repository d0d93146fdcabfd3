package credential

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/dukerupert/compostdash/internal/identity"
)

// fakeProvider keeps accounts in memory and returns identity errors the way
// the real client normalizes them.
type fakeProvider struct {
	mu       sync.Mutex
	users    map[string]fakeUser
	next     int
	forceErr error
}

type fakeUser struct {
	id       string
	password string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{users: make(map[string]fakeUser)}
}

func (p *fakeProvider) SignUp(ctx context.Context, email, password string) (*identity.User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.forceErr != nil {
		return nil, p.forceErr
	}
	if _, ok := p.users[email]; ok {
		return nil, &identity.Error{Code: identity.CodeEmailInUse}
	}
	p.next++
	u := fakeUser{id: fmt.Sprintf("uid-%d", p.next), password: password}
	p.users[email] = u
	return &identity.User{LocalID: u.id, Email: email, IDToken: "tok"}, nil
}

func (p *fakeProvider) SignIn(ctx context.Context, email, password string) (*identity.User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.forceErr != nil {
		return nil, p.forceErr
	}
	u, ok := p.users[email]
	if !ok {
		return nil, &identity.Error{Code: identity.CodeUserNotFound}
	}
	if u.password != password {
		return nil, &identity.Error{Code: identity.CodeWrongPassword}
	}
	return &identity.User{LocalID: u.id, Email: email, IDToken: "tok"}, nil
}

func setupFederated(t *testing.T) (*Federated, *fakeProvider, testStores) {
	t.Helper()
	s := setupStores(t)
	p := newFakeProvider()
	return NewFederated(p, s.accounts, s.sessions, testConfig, testLogger()), p, s
}

func TestFederatedCreateAccount(t *testing.T) {
	f, _, s := setupFederated(t)
	ctx := context.Background()

	a, sess, err := f.CreateAccount(ctx, validSignUp("grace@example.com"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if a.ID != "uid-1" {
		t.Errorf("id = %q, want provider id uid-1", a.ID)
	}
	if a.PasswordHash != federatedHash {
		t.Errorf("hash = %q, want %q", a.PasswordHash, federatedHash)
	}

	cur, _ := f.CurrentSession(ctx, sess.Token)
	if cur == nil || cur.Email != "grace@example.com" {
		t.Errorf("session = %+v, want grace@example.com", cur)
	}

	_, _, err = f.CreateAccount(ctx, validSignUp("grace@example.com"))
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Errorf("err = %v, want ErrDuplicateEmail", err)
	}
	if n, _ := s.accounts.Count(ctx); n != 1 {
		t.Errorf("account count = %d, want 1", n)
	}
}

func TestFederatedValidatesBeforeProvider(t *testing.T) {
	f, p, _ := setupFederated(t)

	in := validSignUp("grace@example.com")
	in.TermsAccepted = false
	_, _, err := f.CreateAccount(context.Background(), in)

	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected ValidationErrors, got %v", err)
	}
	if len(p.users) != 0 {
		t.Error("provider must not be called when validation fails")
	}
}

func TestFederatedAuthenticate(t *testing.T) {
	f, p, _ := setupFederated(t)
	ctx := context.Background()

	f.CreateAccount(ctx, validSignUp("grace@example.com"))

	a, sess, err := f.Authenticate(ctx, "grace@example.com", "TestPass123!", "")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if a.LastLoginAt == nil {
		t.Error("expected last login set")
	}
	if sess.AccountID != a.ID {
		t.Errorf("session account = %q, want %q", sess.AccountID, a.ID)
	}

	_, _, errUnknown := f.Authenticate(ctx, "nobody@example.com", "TestPass123!", "")
	_, _, errWrong := f.Authenticate(ctx, "grace@example.com", "WrongPass1!", "")
	if !errors.Is(errUnknown, ErrInvalidCredentials) || !errors.Is(errWrong, ErrInvalidCredentials) {
		t.Errorf("errors = %v / %v, want ErrInvalidCredentials for both", errUnknown, errWrong)
	}

	p.forceErr = &identity.Error{Code: identity.CodeTooManyRequests}
	_, _, err = f.Authenticate(ctx, "grace@example.com", "TestPass123!", "")
	var ext *ExternalAuthError
	if !errors.As(err, &ext) {
		t.Fatalf("expected ExternalAuthError, got %v", err)
	}
	if ext.Code != identity.CodeTooManyRequests {
		t.Errorf("code = %q, want %q", ext.Code, identity.CodeTooManyRequests)
	}
	if ext.Message() != "Too many failed attempts. Please try again later." {
		t.Errorf("message = %q", ext.Message())
	}

	p.forceErr = errors.New("dial tcp: connection refused")
	_, _, err = f.Authenticate(ctx, "grace@example.com", "TestPass123!", "")
	if !errors.As(err, &ext) || ext.Code != identity.CodeUnknown {
		t.Errorf("err = %v, want unknown ExternalAuthError", err)
	}
	if ext.Message() == "" || ext.Message() == err.Error() {
		t.Errorf("message %q must be a fixed human message", ext.Message())
	}
}

func TestFederatedMirrorsExternalAccount(t *testing.T) {
	f, p, s := setupFederated(t)
	ctx := context.Background()

	p.users["field@example.com"] = fakeUser{id: "uid-ext", password: "TestPass123!"}

	a, _, err := f.Authenticate(ctx, "field@example.com", "TestPass123!", "")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if a.ID != "uid-ext" || a.FirstName != "field" {
		t.Errorf("mirrored = %+v", a)
	}
	if stored, _ := s.accounts.GetByID(ctx, "uid-ext"); stored == nil {
		t.Error("expected account mirrored locally")
	}
}

func TestFederatedInactiveAccount(t *testing.T) {
	f, _, _ := setupFederated(t)
	ctx := context.Background()

	a, _, _ := f.CreateAccount(ctx, validSignUp("grace@example.com"))
	f.Deactivate(ctx, a.ID)

	if _, _, err := f.Authenticate(ctx, "grace@example.com", "TestPass123!", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestFederatedHashNeverVerifies(t *testing.T) {
	for _, pw := range []string{"", "!federated", "TestPass123!"} {
		if ok, _ := verifyPassword(federatedHash, pw); ok {
			t.Errorf("federated hash verified %q", pw)
		}
	}
}
