package model

import "time"

type Session struct {
	ID         int64     `json:"-"`
	Token      string    `json:"-"`
	AccountID  string    `json:"account_id"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	Email      string    `json:"email"`
	LoginAt    time.Time `json:"login_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

type ResetCode struct {
	ID        int64      `json:"id"`
	// Code is the plaintext, only set on the value returned when issued.
	Code      string     `json:"-"`
	CodeHash  string     `json:"-"`
	Email     string     `json:"email"`
	ExpiresAt time.Time  `json:"expires_at"`
	UsedAt    *time.Time `json:"used_at"`
	Attempts  int        `json:"attempts"`
	CreatedAt time.Time  `json:"created_at"`
}
