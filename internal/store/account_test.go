package store

import (
	"context"
	"testing"
	"time"

	"github.com/dukerupert/compostdash/internal/model"
)

func TestAccountCreate(t *testing.T) {
	as := NewAccountStore(setupTestDB(t))
	ctx := context.Background()

	a, err := as.Create(ctx, newAccount("acc-1", "alice@example.com"))
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	if a.ID != "acc-1" {
		t.Errorf("id = %q, want %q", a.ID, "acc-1")
	}
	if a.Email != "alice@example.com" {
		t.Errorf("email = %q, want %q", a.Email, "alice@example.com")
	}
	if a.Role != "staff" {
		t.Errorf("role = %q, want %q", a.Role, "staff")
	}
	if !a.Active {
		t.Error("expected active account")
	}
	if a.LastLoginAt != nil {
		t.Errorf("last_login_at = %v, want nil", a.LastLoginAt)
	}
	if a.CreatedAt.IsZero() {
		t.Error("expected created_at to be set")
	}
}

func TestAccountCreateDuplicateEmail(t *testing.T) {
	as := NewAccountStore(setupTestDB(t))
	ctx := context.Background()

	if _, err := as.Create(ctx, newAccount("acc-1", "alice@example.com")); err != nil {
		t.Fatalf("create account: %v", err)
	}
	_, err := as.Create(ctx, newAccount("acc-2", "alice@example.com"))
	if err != ErrDuplicate {
		t.Fatalf("err = %v, want ErrDuplicate", err)
	}

	n, _ := as.Count(ctx)
	if n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
}

func TestAccountEmailCaseSensitive(t *testing.T) {
	as := NewAccountStore(setupTestDB(t))
	ctx := context.Background()

	as.Create(ctx, newAccount("acc-1", "alice@example.com"))
	if _, err := as.Create(ctx, newAccount("acc-2", "Alice@example.com")); err != nil {
		t.Fatalf("create account with different case: %v", err)
	}

	a, err := as.GetByEmail(ctx, "ALICE@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if a != nil {
		t.Error("expected nil for differently cased email")
	}
}

func TestAccountGetByIDNotFound(t *testing.T) {
	as := NewAccountStore(setupTestDB(t))

	a, err := as.GetByID(context.Background(), "missing")
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if a != nil {
		t.Error("expected nil for nonexistent account")
	}
}

func TestAccountListPreservesOrder(t *testing.T) {
	as := NewAccountStore(setupTestDB(t))
	ctx := context.Background()

	ids := []string{"zeta", "alpha", "mid"}
	for i, id := range ids {
		if _, err := as.Create(ctx, newAccount(id, id+"@example.com")); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}

	accounts, err := as.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(accounts) != len(ids) {
		t.Fatalf("len = %d, want %d", len(accounts), len(ids))
	}
	for i, a := range accounts {
		if a.ID != ids[i] {
			t.Errorf("accounts[%d].ID = %q, want %q", i, a.ID, ids[i])
		}
	}
}

func TestAccountUpdateLastLogin(t *testing.T) {
	as := NewAccountStore(setupTestDB(t))
	ctx := context.Background()

	as.Create(ctx, newAccount("acc-1", "alice@example.com"))
	at := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	if err := as.UpdateLastLogin(ctx, "acc-1", at); err != nil {
		t.Fatalf("update last login: %v", err)
	}

	a, _ := as.GetByID(ctx, "acc-1")
	if a.LastLoginAt == nil {
		t.Fatal("expected last_login_at to be set")
	}
	if !a.LastLoginAt.Equal(at) {
		t.Errorf("last_login_at = %v, want %v", a.LastLoginAt, at)
	}
}

func TestAccountSetActive(t *testing.T) {
	as := NewAccountStore(setupTestDB(t))
	ctx := context.Background()

	as.Create(ctx, newAccount("acc-1", "alice@example.com"))
	if err := as.SetActive(ctx, "acc-1", false); err != nil {
		t.Fatalf("set active: %v", err)
	}
	a, _ := as.GetByID(ctx, "acc-1")
	if a.Active {
		t.Error("expected inactive account")
	}

	if err := as.SetActive(ctx, "missing", false); err == nil {
		t.Error("expected error for missing account")
	}
}

func TestAccountUpdatePasswordHash(t *testing.T) {
	as := NewAccountStore(setupTestDB(t))
	ctx := context.Background()

	as.Create(ctx, newAccount("acc-1", "alice@example.com"))
	if err := as.UpdatePasswordHash(ctx, "acc-1", "newhash"); err != nil {
		t.Fatalf("update hash: %v", err)
	}
	a, _ := as.GetByID(ctx, "acc-1")
	if a.PasswordHash != "newhash" {
		t.Errorf("password_hash = %q, want %q", a.PasswordHash, "newhash")
	}
}

func TestAccountSetRole(t *testing.T) {
	as := NewAccountStore(setupTestDB(t))
	ctx := context.Background()

	as.Create(ctx, newAccount("acc-1", "alice@example.com"))
	if err := as.SetRole(ctx, "acc-1", model.RoleAdmin); err != nil {
		t.Fatalf("set role: %v", err)
	}
	a, _ := as.GetByID(ctx, "acc-1")
	if a.Role != model.RoleAdmin {
		t.Errorf("role = %q, want %q", a.Role, model.RoleAdmin)
	}

	if err := as.SetRole(ctx, "missing", model.RoleAdmin); err == nil {
		t.Error("expected error for missing account")
	}
}
