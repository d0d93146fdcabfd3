package model

import "time"

// Roles an account can hold.
const (
	RoleStaff      = "staff"
	RoleSupervisor = "supervisor"
	RoleAdmin      = "admin"
)

type Account struct {
	ID           string     `json:"id"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Role         string     `json:"role"`
	CreatedAt    time.Time  `json:"created_at"`
	LastLoginAt  *time.Time `json:"last_login_at"`
	Active       bool       `json:"active"`
}

// DisplayName joins first and last name.
func (a *Account) DisplayName() string {
	if a.LastName == "" {
		return a.FirstName
	}
	return a.FirstName + " " + a.LastName
}

type Profile struct {
	AccountID  string    `json:"account_id"`
	Phone      string    `json:"phone"`
	Bio        string    `json:"bio"`
	Country    string    `json:"country"`
	City       string    `json:"city"`
	PostalCode string    `json:"postal_code"`
	CompanyID  string    `json:"company_id"`
	UpdatedAt  time.Time `json:"updated_at"`
}
