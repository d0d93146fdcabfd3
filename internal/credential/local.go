package credential

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/dukerupert/compostdash/internal/model"
	"github.com/dukerupert/compostdash/internal/store"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const maxResetAttempts = 5

// Local stores bcrypt password hashes alongside the accounts.
type Local struct {
	*base
	resets *store.ResetCodeStore

	dummyOnce sync.Once
	dummyHash []byte
}

var (
	_ Manager          = (*Local)(nil)
	_ PasswordResetter = (*Local)(nil)
)

func NewLocal(accounts *store.AccountStore, sessions *store.SessionStore, resets *store.ResetCodeStore, cfg Config, logger *slog.Logger, opts ...Option) *Local {
	return &Local{
		base:   newBase(accounts, sessions, cfg, logger, opts),
		resets: resets,
	}
}

func (l *Local) CreateAccount(ctx context.Context, in SignUp) (*model.Account, *model.Session, error) {
	if errs := validateSignUp(in); len(errs) > 0 {
		return nil, nil, errs
	}
	email := strings.TrimSpace(in.Email)

	unlock := l.locks.Lock(email)
	defer unlock()

	existing, err := l.accounts.GetByEmail(ctx, email)
	if err != nil {
		return nil, nil, fmt.Errorf("create account: %w", err)
	}
	if existing != nil {
		return nil, nil, ErrDuplicateEmail
	}

	hash, err := hashPassword(in.Password, l.cfg.BcryptCost)
	if err != nil {
		return nil, nil, err
	}

	a, err := l.accounts.Create(ctx, &model.Account{
		ID:           uuid.NewString(),
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Email:        email,
		PasswordHash: hash,
		Role:         model.RoleStaff,
		CreatedAt:    l.now(),
		Active:       true,
	})
	if errors.Is(err, store.ErrDuplicate) {
		return nil, nil, ErrDuplicateEmail
	}
	if err != nil {
		return nil, nil, fmt.Errorf("create account: %w", err)
	}

	sess, err := l.startSession(ctx, a, in.PriorToken)
	if err != nil {
		return nil, nil, err
	}
	l.logger.Info("account created", "account_id", a.ID)
	return a, sess, nil
}

func (l *Local) Authenticate(ctx context.Context, email, password, priorToken string) (*model.Account, *model.Session, error) {
	if errs := validateSignIn(email, password); len(errs) > 0 {
		return nil, nil, errs
	}
	email = strings.TrimSpace(email)

	unlock := l.locks.Lock(email)
	defer unlock()

	a, err := l.accounts.GetByEmail(ctx, email)
	if err != nil {
		return nil, nil, fmt.Errorf("authenticate: %w", err)
	}
	if a == nil {
		l.compareDummy(password)
		return nil, nil, ErrInvalidCredentials
	}

	ok, upgrade := verifyPassword(a.PasswordHash, password)
	if !ok || !a.Active {
		return nil, nil, ErrInvalidCredentials
	}

	if upgrade {
		hash, err := hashPassword(password, l.cfg.BcryptCost)
		if err != nil {
			return nil, nil, err
		}
		if err := l.accounts.UpdatePasswordHash(ctx, a.ID, hash); err != nil {
			return nil, nil, err
		}
		a.PasswordHash = hash
		l.logger.Info("legacy password hash upgraded", "account_id", a.ID)
	}

	now := l.now()
	if err := l.accounts.UpdateLastLogin(ctx, a.ID, now); err != nil {
		return nil, nil, err
	}
	a.LastLoginAt = &now

	sess, err := l.startSession(ctx, a, priorToken)
	if err != nil {
		return nil, nil, err
	}
	return a, sess, nil
}

// compareDummy spends the same bcrypt work an existing account would.
func (l *Local) compareDummy(password string) {
	l.dummyOnce.Do(func() {
		l.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), l.cfg.BcryptCost)
	})
	bcrypt.CompareHashAndPassword(l.dummyHash, []byte(password))
}

// RequestReset issues a reset code for an active account. It returns nil
// without error when there is nothing to reset so callers cannot probe for
// registered addresses.
func (l *Local) RequestReset(ctx context.Context, email string) (*model.ResetCode, error) {
	if errs := validateEmail(email); len(errs) > 0 {
		return nil, errs
	}
	email = strings.TrimSpace(email)

	a, err := l.accounts.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("request reset: %w", err)
	}
	if a == nil || !a.Active {
		return nil, nil
	}
	return l.resets.Create(ctx, email)
}

// ConfirmReset checks the code and sets a new password. Every session of
// the account is revoked on success.
func (l *Local) ConfirmReset(ctx context.Context, email, code, password, confirm string) error {
	errs := validateEmail(email)
	if strings.TrimSpace(code) == "" {
		errs = append(errs, FieldError{"code", "Code is required"})
	}
	errs = append(errs, validateNewPassword(password, confirm)...)
	if len(errs) > 0 {
		return errs
	}
	email = strings.TrimSpace(email)

	unlock := l.locks.Lock(email)
	defer unlock()

	rc, err := l.resets.GetLatestByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("confirm reset: %w", err)
	}
	if rc == nil {
		return ErrResetCodeExpired
	}
	if rc.Attempts >= maxResetAttempts {
		l.retireResetCode(ctx, rc.ID)
		return ErrResetCodeAttempts
	}
	if !store.MatchResetCode(rc, strings.TrimSpace(code)) {
		n, err := l.resets.IncrementAttempts(ctx, rc.ID)
		if err != nil {
			l.logger.Error("increment reset attempts", "error", err)
		}
		if n >= maxResetAttempts {
			l.retireResetCode(ctx, rc.ID)
			return ErrResetCodeAttempts
		}
		return ErrResetCodeMismatch
	}
	if err := l.resets.MarkUsed(ctx, rc.ID); err != nil {
		return fmt.Errorf("confirm reset: %w", err)
	}

	a, err := l.accounts.GetByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("confirm reset: %w", err)
	}
	if a == nil {
		return ErrResetCodeExpired
	}
	hash, err := hashPassword(password, l.cfg.BcryptCost)
	if err != nil {
		return err
	}
	if err := l.accounts.UpdatePasswordHash(ctx, a.ID, hash); err != nil {
		return err
	}
	return l.revokeAll(ctx, a.ID, ReasonReset)
}

// retireResetCode burns a code after too many wrong guesses. A failed write
// leaves the code live, but the attempt count still rejects it.
func (l *Local) retireResetCode(ctx context.Context, id int64) {
	if err := l.resets.MarkUsed(ctx, id); err != nil {
		l.logger.Error("retire reset code", "reset_code_id", id, "error", err)
	}
}
