package credential

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukerupert/compostdash/internal/identity"
	"github.com/dukerupert/compostdash/internal/model"
	"github.com/dukerupert/compostdash/internal/store"
)

// Provider is the identity service Federated delegates passwords to.
type Provider interface {
	SignUp(ctx context.Context, email, password string) (*identity.User, error)
	SignIn(ctx context.Context, email, password string) (*identity.User, error)
}

// Federated checks passwords with an identity provider. Accounts are
// mirrored locally under the provider's id so sessions, profiles and the
// route guard behave the same as with Local.
type Federated struct {
	*base
	provider Provider
}

var _ Manager = (*Federated)(nil)

func NewFederated(provider Provider, accounts *store.AccountStore, sessions *store.SessionStore, cfg Config, logger *slog.Logger, opts ...Option) *Federated {
	return &Federated{
		base:     newBase(accounts, sessions, cfg, logger, opts),
		provider: provider,
	}
}

func (f *Federated) CreateAccount(ctx context.Context, in SignUp) (*model.Account, *model.Session, error) {
	if errs := validateSignUp(in); len(errs) > 0 {
		return nil, nil, errs
	}
	email := strings.TrimSpace(in.Email)

	unlock := f.locks.Lock(email)
	defer unlock()

	existing, err := f.accounts.GetByEmail(ctx, email)
	if err != nil {
		return nil, nil, fmt.Errorf("create account: %w", err)
	}
	if existing != nil {
		return nil, nil, ErrDuplicateEmail
	}

	user, err := f.provider.SignUp(ctx, email, in.Password)
	if err != nil {
		return nil, nil, providerError(err)
	}

	a, err := f.accounts.Create(ctx, &model.Account{
		ID:           user.LocalID,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Email:        email,
		PasswordHash: federatedHash,
		Role:         model.RoleStaff,
		CreatedAt:    f.now(),
		Active:       true,
	})
	if errors.Is(err, store.ErrDuplicate) {
		return nil, nil, ErrDuplicateEmail
	}
	if err != nil {
		return nil, nil, fmt.Errorf("mirror account: %w", err)
	}

	sess, err := f.startSession(ctx, a, in.PriorToken)
	if err != nil {
		return nil, nil, err
	}
	f.logger.Info("account created", "account_id", a.ID, "backend", "federated")
	return a, sess, nil
}

func (f *Federated) Authenticate(ctx context.Context, email, password, priorToken string) (*model.Account, *model.Session, error) {
	if errs := validateSignIn(email, password); len(errs) > 0 {
		return nil, nil, errs
	}
	email = strings.TrimSpace(email)

	unlock := f.locks.Lock(email)
	defer unlock()

	user, err := f.provider.SignIn(ctx, email, password)
	if err != nil {
		return nil, nil, providerError(err)
	}

	a, err := f.mirror(ctx, user, email)
	if err != nil {
		return nil, nil, err
	}
	if !a.Active {
		return nil, nil, ErrInvalidCredentials
	}

	now := f.now()
	if err := f.accounts.UpdateLastLogin(ctx, a.ID, now); err != nil {
		return nil, nil, err
	}
	a.LastLoginAt = &now

	sess, err := f.startSession(ctx, a, priorToken)
	if err != nil {
		return nil, nil, err
	}
	return a, sess, nil
}

// mirror returns the local copy of a provider account, creating it for
// accounts registered outside this service.
func (f *Federated) mirror(ctx context.Context, user *identity.User, email string) (*model.Account, error) {
	a, err := f.accounts.GetByID(ctx, user.LocalID)
	if err != nil {
		return nil, fmt.Errorf("load mirrored account: %w", err)
	}
	if a != nil {
		return a, nil
	}

	local, _, _ := strings.Cut(email, "@")
	a, err = f.accounts.Create(ctx, &model.Account{
		ID:           user.LocalID,
		FirstName:    local,
		Email:        email,
		PasswordHash: federatedHash,
		Role:         model.RoleStaff,
		CreatedAt:    f.now(),
		Active:       true,
	})
	if errors.Is(err, store.ErrDuplicate) {
		// Same email already mirrored under another provider id.
		return nil, ErrDuplicateEmail
	}
	if err != nil {
		return nil, fmt.Errorf("mirror account: %w", err)
	}
	f.logger.Info("mirrored provider account", "account_id", a.ID)
	return a, nil
}

// providerError keeps enumeration opaque: not-found and wrong-password
// both become ErrInvalidCredentials.
func providerError(err error) error {
	var perr *identity.Error
	if !errors.As(err, &perr) {
		return &ExternalAuthError{Code: identity.CodeUnknown, Err: err}
	}
	switch perr.Code {
	case identity.CodeUserNotFound, identity.CodeWrongPassword:
		return ErrInvalidCredentials
	case identity.CodeEmailInUse:
		return ErrDuplicateEmail
	default:
		return &ExternalAuthError{Code: perr.Code, Err: err}
	}
}
