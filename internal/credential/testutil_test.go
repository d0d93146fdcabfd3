package credential

import (
	"database/sql"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/dukerupert/compostdash/internal/database"
	"github.com/dukerupert/compostdash/internal/store"
	"golang.org/x/crypto/bcrypt"
)

type ended struct {
	sessionID int64
	reason    string
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []ended
}

func (r *recordingNotifier) SessionEnded(id int64, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ended{id, reason})
}

func (r *recordingNotifier) all() []ended {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ended(nil), r.events...)
}

type testStores struct {
	db       *sql.DB
	accounts *store.AccountStore
	sessions *store.SessionStore
	resets   *store.ResetCodeStore
}

func setupStores(t *testing.T) testStores {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return testStores{
		db:       db,
		accounts: store.NewAccountStore(db),
		sessions: store.NewSessionStore(db),
		resets:   store.NewResetCodeStore(db),
	}
}

var testConfig = Config{BcryptCost: bcrypt.MinCost}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupLocal(t *testing.T) (*Local, testStores, *recordingNotifier) {
	t.Helper()
	s := setupStores(t)
	n := &recordingNotifier{}
	return NewLocal(s.accounts, s.sessions, s.resets, testConfig, testLogger(), WithNotifier(n)), s, n
}

func validSignUp(email string) SignUp {
	return SignUp{
		FirstName:       "Grace",
		LastName:        "Wanjiru",
		Email:           email,
		Password:        "TestPass123!",
		PasswordConfirm: "TestPass123!",
		TermsAccepted:   true,
	}
}
