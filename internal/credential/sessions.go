package credential

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/compostdash/internal/model"
	"github.com/dukerupert/compostdash/internal/store"
)

// base holds the session and account logic both backends share.
type base struct {
	accounts *store.AccountStore
	sessions *store.SessionStore
	cfg      Config
	notifier Notifier
	locks    *keyedMutex
	logger   *slog.Logger
	now      func() time.Time
}

func newBase(accounts *store.AccountStore, sessions *store.SessionStore, cfg Config, logger *slog.Logger, opts []Option) *base {
	b := &base{
		accounts: accounts,
		sessions: sessions,
		cfg:      cfg.withDefaults(),
		notifier: nopNotifier{},
		locks:    newKeyedMutex(),
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// startSession drops the client's prior session and opens a new one.
func (b *base) startSession(ctx context.Context, a *model.Account, priorToken string) (*model.Session, error) {
	if priorToken != "" {
		if err := b.endByToken(ctx, priorToken, ReasonReplaced); err != nil {
			return nil, err
		}
	}
	sess, err := b.sessions.Create(ctx, a, b.cfg.SessionTTL)
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	return sess, nil
}

func (b *base) endByToken(ctx context.Context, token, reason string) error {
	sess, err := b.sessions.GetByToken(ctx, token)
	if err != nil {
		return err
	}
	if _, err := b.sessions.DeleteByToken(ctx, token); err != nil {
		return err
	}
	if sess != nil {
		b.notifier.SessionEnded(sess.ID, reason)
	}
	return nil
}

func (b *base) SignOut(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := b.endByToken(ctx, token, ReasonSignedOut); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	return nil
}

func (b *base) CurrentSession(ctx context.Context, token string) (*model.Session, error) {
	if token == "" {
		return nil, nil
	}
	sess, err := b.sessions.GetByToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("current session: %w", err)
	}
	if sess == nil || b.idle(sess) {
		return nil, nil
	}
	return sess, nil
}

func (b *base) idle(sess *model.Session) bool {
	return b.now().Sub(sess.LastSeenAt) > b.cfg.IdleTimeout
}

// Touch records activity on the session, restarting its idle timer.
func (b *base) Touch(ctx context.Context, sess *model.Session) error {
	now := b.now()
	if err := b.sessions.Touch(ctx, sess.ID, now); err != nil {
		return err
	}
	sess.LastSeenAt = now
	return nil
}

// ExpireIdle deletes sessions past the idle timeout and returns how many.
func (b *base) ExpireIdle(ctx context.Context) (int, error) {
	idle, err := b.sessions.ListIdle(ctx, b.now().Add(-b.cfg.IdleTimeout))
	if err != nil {
		return 0, err
	}
	for _, sess := range idle {
		if err := b.sessions.Delete(ctx, sess.ID); err != nil {
			return 0, err
		}
		b.notifier.SessionEnded(sess.ID, ReasonIdle)
	}
	return len(idle), nil
}

func (b *base) Account(ctx context.Context, id string) (*model.Account, error) {
	a, err := b.accounts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrAccountNotFound
	}
	return a, nil
}

func (b *base) ListAccounts(ctx context.Context) ([]model.Account, error) {
	return b.accounts.List(ctx)
}

// Deactivate blocks the account from signing in and revokes its sessions.
// It holds the account's email lock, so an overlapping sign-in either
// finishes first and is revoked here or sees the account inactive.
func (b *base) Deactivate(ctx context.Context, accountID string) error {
	a, err := b.accounts.GetByID(ctx, accountID)
	if err != nil {
		return fmt.Errorf("deactivate: %w", err)
	}
	if a == nil {
		return ErrAccountNotFound
	}
	unlock := b.locks.Lock(a.Email)
	defer unlock()

	if err := b.setActive(ctx, accountID, false); err != nil {
		return err
	}
	return b.revokeAll(ctx, accountID, ReasonDeactivated)
}

func (b *base) Activate(ctx context.Context, accountID string) error {
	return b.setActive(ctx, accountID, true)
}

func (b *base) setActive(ctx context.Context, accountID string, active bool) error {
	err := b.accounts.SetActive(ctx, accountID, active)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrAccountNotFound
	}
	return err
}

func (b *base) revokeAll(ctx context.Context, accountID, reason string) error {
	live, err := b.sessions.ListByAccountID(ctx, accountID)
	if err != nil {
		return err
	}
	if _, err := b.sessions.DeleteByAccountID(ctx, accountID); err != nil {
		return err
	}
	for _, sess := range live {
		b.notifier.SessionEnded(sess.ID, reason)
	}
	if len(live) > 0 {
		b.logger.Info("sessions revoked", "account_id", accountID, "count", len(live), "reason", reason)
	}
	return nil
}
