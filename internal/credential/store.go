// Package credential owns accounts and the sessions browsers hold for them.
//
// Two backends implement Store: Local keeps password hashes in SQLite,
// Federated delegates password checks to an external identity provider and
// mirrors accounts locally. A deployment runs exactly one of them.
package credential

import (
	"context"
	"time"

	"github.com/dukerupert/compostdash/internal/model"
	"golang.org/x/crypto/bcrypt"
)

// SignUp is the create-account form.
type SignUp struct {
	FirstName       string
	LastName        string
	Email           string
	Password        string
	PasswordConfirm string
	TermsAccepted   bool
	// PriorToken is the session token the client already holds, if any.
	PriorToken string
}

// Store is the credential capability consumed by handlers and the route guard.
type Store interface {
	CreateAccount(ctx context.Context, in SignUp) (*model.Account, *model.Session, error)
	// Authenticate replaces the session identified by priorToken on success.
	Authenticate(ctx context.Context, email, password, priorToken string) (*model.Account, *model.Session, error)
	// SignOut is idempotent; unknown and empty tokens are not errors.
	SignOut(ctx context.Context, token string) error
	// CurrentSession returns nil when the token has no live session.
	CurrentSession(ctx context.Context, token string) (*model.Session, error)
}

// Manager extends Store with the operations the server and janitor need.
type Manager interface {
	Store
	Touch(ctx context.Context, sess *model.Session) error
	Account(ctx context.Context, id string) (*model.Account, error)
	ListAccounts(ctx context.Context) ([]model.Account, error)
	Deactivate(ctx context.Context, accountID string) error
	Activate(ctx context.Context, accountID string) error
	ExpireIdle(ctx context.Context) (int, error)
}

// PasswordResetter is implemented by backends that own password hashes.
type PasswordResetter interface {
	RequestReset(ctx context.Context, email string) (*model.ResetCode, error)
	ConfirmReset(ctx context.Context, email, code, password, confirm string) error
}

// Reasons passed to Notifier.SessionEnded.
const (
	ReasonSignedOut   = "signed_out"
	ReasonReplaced    = "replaced"
	ReasonIdle        = "idle"
	ReasonDeactivated = "deactivated"
	ReasonReset       = "password_reset"
)

// Notifier is told when a session stops being valid so connected pages
// can re-run the route guard.
type Notifier interface {
	SessionEnded(sessionID int64, reason string)
}

type nopNotifier struct{}

func (nopNotifier) SessionEnded(int64, string) {}

// Config holds session lifetimes and hashing cost.
type Config struct {
	SessionTTL  time.Duration
	IdleTimeout time.Duration
	BcryptCost  int
}

func (c Config) withDefaults() Config {
	if c.SessionTTL == 0 {
		c.SessionTTL = 7 * 24 * time.Hour
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 30 * time.Minute
	}
	if c.BcryptCost == 0 {
		c.BcryptCost = bcrypt.DefaultCost
	}
	return c
}

type Option func(*base)

// WithNotifier registers the receiver of session-ended events.
func WithNotifier(n Notifier) Option {
	return func(b *base) {
		if n != nil {
			b.notifier = n
		}
	}
}
