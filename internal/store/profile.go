package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/compostdash/internal/model"
)

type ProfileStore struct {
	db *sql.DB
}

func NewProfileStore(db *sql.DB) *ProfileStore {
	return &ProfileStore{db: db}
}

const profileCols = `account_id, phone, bio, country, city, postal_code, company_id, updated_at`

func scanProfile(scanner interface{ Scan(...any) error }) (*model.Profile, error) {
	var p model.Profile
	err := scanner.Scan(&p.AccountID, &p.Phone, &p.Bio, &p.Country, &p.City, &p.PostalCode, &p.CompanyID, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Get returns the profile for the account, creating a blank one on first read.
func (s *ProfileStore) Get(ctx context.Context, accountID string) (*model.Profile, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO profiles (account_id, updated_at) VALUES (?, ?) ON CONFLICT(account_id) DO NOTHING`,
		accountID, time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("ensure profile: %w", err)
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+profileCols+` FROM profiles WHERE account_id = ?`, accountID)
	p, err := scanProfile(row)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// UpdatePersonal saves the personal-info section.
func (s *ProfileStore) UpdatePersonal(ctx context.Context, accountID, phone, bio string) (*model.Profile, error) {
	if _, err := s.Get(ctx, accountID); err != nil {
		return nil, err
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE profiles SET phone = ?, bio = ?, updated_at = ? WHERE account_id = ?`,
		phone, bio, time.Now().UTC(), accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("update personal info: %w", err)
	}
	return s.Get(ctx, accountID)
}

// UpdateAddress saves the address section.
func (s *ProfileStore) UpdateAddress(ctx context.Context, accountID, country, city, postalCode, companyID string) (*model.Profile, error) {
	if _, err := s.Get(ctx, accountID); err != nil {
		return nil, err
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE profiles SET country = ?, city = ?, postal_code = ?, company_id = ?, updated_at = ? WHERE account_id = ?`,
		country, city, postalCode, companyID, time.Now().UTC(), accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("update address: %w", err)
	}
	return s.Get(ctx, accountID)
}
