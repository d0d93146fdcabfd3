// Package snapshot reads and writes the account collection in the
// browser-storage layout older dashboard builds used:
//
//	{"users": [...], "currentUser": {...} | null}
//
// Field names follow that layout so exports can be loaded by either side.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dukerupert/compostdash/internal/model"
	"github.com/dukerupert/compostdash/internal/store"
)

type User struct {
	ID        string     `json:"id"`
	FirstName string     `json:"fname"`
	LastName  string     `json:"lname"`
	Email     string     `json:"email"`
	Password  string     `json:"password"`
	CreatedAt time.Time  `json:"createdAt"`
	LastLogin *time.Time `json:"lastLogin"`
	IsActive  bool       `json:"isActive"`
	Role      string     `json:"role,omitempty"`
}

type CurrentUser struct {
	ID        string    `json:"id"`
	FirstName string    `json:"fname"`
	LastName  string    `json:"lname"`
	Email     string    `json:"email"`
	LoginTime time.Time `json:"loginTime"`
}

type Snapshot struct {
	Users       []User       `json:"users"`
	CurrentUser *CurrentUser `json:"currentUser"`
}

// FromAccounts builds a snapshot preserving account order. current may be nil.
func FromAccounts(accounts []model.Account, current *model.Session) Snapshot {
	s := Snapshot{Users: make([]User, 0, len(accounts))}
	for _, a := range accounts {
		s.Users = append(s.Users, User{
			ID:        a.ID,
			FirstName: a.FirstName,
			LastName:  a.LastName,
			Email:     a.Email,
			Password:  a.PasswordHash,
			CreatedAt: a.CreatedAt,
			LastLogin: a.LastLoginAt,
			IsActive:  a.Active,
			Role:      a.Role,
		})
	}
	s.CurrentUser = NewCurrentUser(current)
	return s
}

// NewCurrentUser projects a session into its persisted form. nil in, nil out.
func NewCurrentUser(sess *model.Session) *CurrentUser {
	if sess == nil {
		return nil
	}
	return &CurrentUser{
		ID:        sess.AccountID,
		FirstName: sess.FirstName,
		LastName:  sess.LastName,
		Email:     sess.Email,
		LoginTime: sess.LoginAt,
	}
}

// Accounts converts the users back, in order. Missing roles become staff.
func (s Snapshot) Accounts() []model.Account {
	out := make([]model.Account, 0, len(s.Users))
	for _, u := range s.Users {
		role := u.Role
		if role == "" {
			role = model.RoleStaff
		}
		out = append(out, model.Account{
			ID:           u.ID,
			FirstName:    u.FirstName,
			LastName:     u.LastName,
			Email:        u.Email,
			PasswordHash: u.Password,
			Role:         role,
			CreatedAt:    u.CreatedAt,
			LastLoginAt:  u.LastLogin,
			Active:       u.IsActive,
		})
	}
	return out
}

// Validate rejects snapshots that could not be loaded into the account table.
func (s Snapshot) Validate() error {
	ids := make(map[string]bool, len(s.Users))
	emails := make(map[string]bool, len(s.Users))
	for i, u := range s.Users {
		if u.ID == "" {
			return fmt.Errorf("user %d: missing id", i)
		}
		if u.Email == "" {
			return fmt.Errorf("user %s: missing email", u.ID)
		}
		if ids[u.ID] {
			return fmt.Errorf("user %s: duplicate id", u.ID)
		}
		if emails[u.Email] {
			return fmt.Errorf("user %s: duplicate email %s", u.ID, u.Email)
		}
		ids[u.ID] = true
		emails[u.Email] = true
	}
	return nil
}

func Encode(w io.Writer, s Snapshot) error {
	if s.Users == nil {
		s.Users = []User{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return nil
}

func Decode(r io.Reader) (Snapshot, error) {
	var s Snapshot
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return s, nil
}

// WriteFile writes the snapshot through a temp file and rename so readers
// see either the old file or the new one.
func WriteFile(path string, s Snapshot) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Encode(tmp, s); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

func ReadFile(path string) (Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Export reads every account. Exports never carry a current user; sessions
// belong to browsers, not to the account collection.
func Export(ctx context.Context, accounts *store.AccountStore) (Snapshot, error) {
	list, err := accounts.List(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("export accounts: %w", err)
	}
	return FromAccounts(list, nil), nil
}

type ImportResult struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

// Import inserts accounts keeping their ids and hashes. Accounts whose id or
// email already exists are skipped. Legacy SHA-256 hashes remain valid and
// are upgraded on the next successful sign-in.
func Import(ctx context.Context, accounts *store.AccountStore, s Snapshot) (ImportResult, error) {
	var res ImportResult
	if err := s.Validate(); err != nil {
		return res, err
	}
	for _, a := range s.Accounts() {
		_, err := accounts.Create(ctx, &a)
		if errors.Is(err, store.ErrDuplicate) {
			res.Skipped++
			continue
		}
		if err != nil {
			return res, fmt.Errorf("import account %s: %w", a.ID, err)
		}
		res.Created++
	}
	return res, nil
}
