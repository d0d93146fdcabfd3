package store

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"database/sql"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"github.com/dukerupert/compostdash/internal/model"
)

// ResetCodeTTL is how long a password reset code stays valid.
const ResetCodeTTL = 15 * time.Minute

type ResetCodeStore struct {
	db *sql.DB
}

func NewResetCodeStore(db *sql.DB) *ResetCodeStore {
	return &ResetCodeStore{db: db}
}

func scanResetCode(scanner interface{ Scan(...any) error }) (*model.ResetCode, error) {
	var rc model.ResetCode
	var usedAt sql.NullTime

	err := scanner.Scan(&rc.ID, &rc.CodeHash, &rc.Email, &rc.ExpiresAt, &usedAt, &rc.Attempts, &rc.CreatedAt)
	if err != nil {
		return nil, err
	}
	if usedAt.Valid {
		t := usedAt.Time
		rc.UsedAt = &t
	}
	return &rc, nil
}

const resetCodeCols = `id, code_hash, email, expires_at, used_at, attempts, created_at`

// generateCode returns a 6-digit numeric code (100000–999999).
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// HashResetCode is the form a code is stored in.
func HashResetCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// MatchResetCode compares a submitted code against the stored hash in
// constant time.
func MatchResetCode(rc *model.ResetCode, code string) bool {
	got := HashResetCode(code)
	return subtle.ConstantTimeCompare([]byte(got), []byte(rc.CodeHash)) == 1
}

// Create issues a new code for the email. Pending codes for the same email
// are invalidated first. Only the hash is stored; the returned value carries
// the plaintext in Code for delivery.
func (s *ResetCodeStore) Create(ctx context.Context, email string) (*model.ResetCode, error) {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`UPDATE reset_codes SET used_at = ? WHERE email = ? AND used_at IS NULL AND expires_at > ?`,
		now, email, now,
	)
	if err != nil {
		return nil, fmt.Errorf("invalidate previous codes: %w", err)
	}

	code, err := generateCode()
	if err != nil {
		return nil, err
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO reset_codes (code_hash, email, expires_at, created_at) VALUES (?, ?, ?, ?)`,
		HashResetCode(code), email, now.Add(ResetCodeTTL), now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert reset code: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+resetCodeCols+` FROM reset_codes WHERE id = ?`, id)
	rc, err := scanResetCode(row)
	if err != nil {
		return nil, fmt.Errorf("get reset code: %w", err)
	}
	rc.Code = code
	return rc, nil
}

// GetLatestByEmail returns the most recent valid (unexpired, unused) code for an email.
func (s *ResetCodeStore) GetLatestByEmail(ctx context.Context, email string) (*model.ResetCode, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+resetCodeCols+` FROM reset_codes WHERE email = ? AND expires_at > ? AND used_at IS NULL ORDER BY id DESC LIMIT 1`,
		email, time.Now().UTC(),
	)
	rc, err := scanResetCode(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get latest reset code: %w", err)
	}
	return rc, nil
}

// IncrementAttempts increments the attempt count and returns the new value.
func (s *ResetCodeStore) IncrementAttempts(ctx context.Context, id int64) (int, error) {
	var attempts int
	err := s.db.QueryRowContext(ctx,
		`UPDATE reset_codes SET attempts = attempts + 1 WHERE id = ? RETURNING attempts`,
		id,
	).Scan(&attempts)
	if err != nil {
		return 0, fmt.Errorf("increment attempts: %w", err)
	}
	return attempts, nil
}

func (s *ResetCodeStore) MarkUsed(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE reset_codes SET used_at = ? WHERE id = ?`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("mark reset code used: %w", err)
	}
	return nil
}

func (s *ResetCodeStore) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM reset_codes WHERE expires_at <= ?`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired reset codes: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}
