package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/compostdash/internal/model"
)

type AccountStore struct {
	db *sql.DB
}

func NewAccountStore(db *sql.DB) *AccountStore {
	return &AccountStore{db: db}
}

func scanAccount(scanner interface{ Scan(...any) error }) (*model.Account, error) {
	var a model.Account
	var lastLogin sql.NullTime
	err := scanner.Scan(
		&a.ID, &a.FirstName, &a.LastName, &a.Email, &a.PasswordHash,
		&a.Role, &a.CreatedAt, &lastLogin, &a.Active,
	)
	if err != nil {
		return nil, err
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		a.LastLoginAt = &t
	}
	return &a, nil
}

const accountCols = `id, first_name, last_name, email, password_hash, role, created_at, last_login_at, active`

// Create inserts the account as given. The caller assigns the ID and hash.
// Returns ErrDuplicate if the email or ID is already taken.
func (s *AccountStore) Create(ctx context.Context, a *model.Account) (*model.Account, error) {
	if a.Role == "" {
		a.Role = model.RoleStaff
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	var lastLogin sql.NullTime
	if a.LastLoginAt != nil {
		lastLogin = sql.NullTime{Time: a.LastLoginAt.UTC(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (`+accountCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.FirstName, a.LastName, a.Email, a.PasswordHash,
		a.Role, a.CreatedAt.UTC(), lastLogin, a.Active,
	)
	if isUniqueViolation(err) {
		return nil, ErrDuplicate
	}
	if err != nil {
		return nil, fmt.Errorf("insert account: %w", err)
	}
	return s.GetByID(ctx, a.ID)
}

func (s *AccountStore) GetByID(ctx context.Context, id string) (*model.Account, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+accountCols+` FROM accounts WHERE id = ?`, id)
	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

// GetByEmail matches the email exactly; addresses are case-sensitive.
func (s *AccountStore) GetByEmail(ctx context.Context, email string) (*model.Account, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+accountCols+` FROM accounts WHERE email = ?`, email)
	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account by email: %w", err)
	}
	return a, nil
}

// List returns every account in insertion order.
func (s *AccountStore) List(ctx context.Context) ([]model.Account, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+accountCols+` FROM accounts ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []model.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return accounts, nil
}

func (s *AccountStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count accounts: %w", err)
	}
	return n, nil
}

func (s *AccountStore) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE accounts SET last_login_at = ? WHERE id = ?`, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

func (s *AccountStore) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE accounts SET password_hash = ? WHERE id = ?`, hash, id)
	if err != nil {
		return fmt.Errorf("update password hash: %w", err)
	}
	return nil
}

func (s *AccountStore) UpdateName(ctx context.Context, id, firstName, lastName string) (*model.Account, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET first_name = ?, last_name = ? WHERE id = ?`,
		firstName, lastName, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update account name: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *AccountStore) SetActive(ctx context.Context, id string, active bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE accounts SET active = ? WHERE id = ?`, active, id)
	if err != nil {
		return fmt.Errorf("set account active: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetRole changes the account's role. sql.ErrNoRows means no such account.
func (s *AccountStore) SetRole(ctx context.Context, id, role string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE accounts SET role = ? WHERE id = ?`, role, id)
	if err != nil {
		return fmt.Errorf("set account role: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *AccountStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	return nil
}
