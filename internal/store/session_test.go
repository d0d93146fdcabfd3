package store

import (
	"context"
	"testing"
	"time"
)

func setupSessionTestDB(t *testing.T) (*SessionStore, *AccountStore) {
	t.Helper()
	db := setupTestDB(t)
	return NewSessionStore(db), NewAccountStore(db)
}

func TestSessionCreate(t *testing.T) {
	ss, as := setupSessionTestDB(t)
	ctx := context.Background()

	a, _ := as.Create(ctx, newAccount("acc-1", "alice@example.com"))
	sess, err := ss.Create(ctx, a, time.Hour)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if len(sess.Token) != 64 { // 32 bytes hex-encoded
		t.Errorf("token length = %d, want 64", len(sess.Token))
	}
	if sess.AccountID != a.ID {
		t.Errorf("account_id = %q, want %q", sess.AccountID, a.ID)
	}
	if sess.Email != "alice@example.com" {
		t.Errorf("email = %q, want %q", sess.Email, "alice@example.com")
	}
	if sess.FirstName != "Alice" || sess.LastName != "Mwangi" {
		t.Errorf("name = %q %q, want Alice Mwangi", sess.FirstName, sess.LastName)
	}
	if !sess.ExpiresAt.After(sess.LoginAt) {
		t.Error("expected expires_at after login_at")
	}
}

func TestSessionGetByToken(t *testing.T) {
	ss, as := setupSessionTestDB(t)
	ctx := context.Background()

	a, _ := as.Create(ctx, newAccount("acc-1", "alice@example.com"))
	created, _ := ss.Create(ctx, a, time.Hour)

	sess, err := ss.GetByToken(ctx, created.Token)
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if sess == nil {
		t.Fatal("expected session, got nil")
	}
	if sess.ID != created.ID {
		t.Errorf("id = %d, want %d", sess.ID, created.ID)
	}
}

func TestSessionGetByTokenNotFound(t *testing.T) {
	ss, _ := setupSessionTestDB(t)

	sess, err := ss.GetByToken(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if sess != nil {
		t.Error("expected nil for nonexistent token")
	}
}

func TestSessionGetByTokenExpired(t *testing.T) {
	ss, as := setupSessionTestDB(t)
	ctx := context.Background()

	a, _ := as.Create(ctx, newAccount("acc-1", "alice@example.com"))
	created, _ := ss.Create(ctx, a, -time.Minute)

	sess, err := ss.GetByToken(ctx, created.Token)
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if sess != nil {
		t.Error("expected nil for expired session")
	}

	n, err := ss.DeleteExpired(ctx)
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}
}

func TestSessionDeleteByToken(t *testing.T) {
	ss, as := setupSessionTestDB(t)
	ctx := context.Background()

	a, _ := as.Create(ctx, newAccount("acc-1", "alice@example.com"))
	created, _ := ss.Create(ctx, a, time.Hour)

	existed, err := ss.DeleteByToken(ctx, created.Token)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !existed {
		t.Error("expected existed = true")
	}

	existed, err = ss.DeleteByToken(ctx, created.Token)
	if err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if existed {
		t.Error("expected existed = false on second delete")
	}
}

func TestSessionDeleteByAccountID(t *testing.T) {
	ss, as := setupSessionTestDB(t)
	ctx := context.Background()

	a, _ := as.Create(ctx, newAccount("acc-1", "alice@example.com"))
	ss.Create(ctx, a, time.Hour)
	ss.Create(ctx, a, time.Hour)

	n, err := ss.DeleteByAccountID(ctx, a.ID)
	if err != nil {
		t.Fatalf("delete by account id: %v", err)
	}
	if n != 2 {
		t.Errorf("deleted = %d, want 2", n)
	}

	sessions, _ := ss.ListByAccountID(ctx, a.ID)
	if len(sessions) != 0 {
		t.Errorf("expected 0 sessions, got %d", len(sessions))
	}
}

func TestSessionTouch(t *testing.T) {
	ss, as := setupSessionTestDB(t)
	ctx := context.Background()

	a, _ := as.Create(ctx, newAccount("acc-1", "alice@example.com"))
	created, _ := ss.Create(ctx, a, time.Hour)

	later := created.LastSeenAt.Add(10 * time.Minute)
	if err := ss.Touch(ctx, created.ID, later); err != nil {
		t.Fatalf("touch: %v", err)
	}
	sess, _ := ss.GetByToken(ctx, created.Token)
	if !sess.LastSeenAt.Equal(later) {
		t.Errorf("last_seen_at = %v, want %v", sess.LastSeenAt, later)
	}
}

func TestSessionCascadeOnAccountDelete(t *testing.T) {
	ss, as := setupSessionTestDB(t)
	ctx := context.Background()

	a, _ := as.Create(ctx, newAccount("acc-1", "alice@example.com"))
	created, _ := ss.Create(ctx, a, time.Hour)

	if err := as.Delete(ctx, a.ID); err != nil {
		t.Fatalf("delete account: %v", err)
	}
	sess, _ := ss.GetByToken(ctx, created.Token)
	if sess != nil {
		t.Error("expected session removed with account")
	}
}

func TestSessionListIdle(t *testing.T) {
	ss, as := setupSessionTestDB(t)
	ctx := context.Background()

	a, _ := as.Create(ctx, newAccount("acc-1", "alice@example.com"))
	stale, _ := ss.Create(ctx, a, time.Hour)
	fresh, _ := ss.Create(ctx, a, time.Hour)

	if err := ss.Touch(ctx, stale.ID, time.Now().Add(-45*time.Minute)); err != nil {
		t.Fatalf("touch: %v", err)
	}

	idle, err := ss.ListIdle(ctx, time.Now().Add(-30*time.Minute))
	if err != nil {
		t.Fatalf("list idle: %v", err)
	}
	if len(idle) != 1 {
		t.Fatalf("idle count = %d, want 1", len(idle))
	}
	if idle[0].ID != stale.ID {
		t.Errorf("idle session = %d, want %d", idle[0].ID, stale.ID)
	}
	if idle[0].ID == fresh.ID {
		t.Error("fresh session reported idle")
	}
}
