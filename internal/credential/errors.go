package credential

import (
	"errors"
	"strings"

	"github.com/dukerupert/compostdash/internal/identity"
)

var (
	// ErrInvalidCredentials never says whether the email or the password was wrong.
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrDuplicateEmail     = errors.New("an account with this email already exists")
	ErrAccountNotFound    = errors.New("account not found")
)

// FieldError is one violated input rule.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors carries every rule an input violated, in check order.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, fe := range v {
		msgs[i] = fe.Message
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// Has reports whether the field has at least one error.
func (v ValidationErrors) Has(field string) bool {
	for _, fe := range v {
		if fe.Field == field {
			return true
		}
	}
	return false
}

// ExternalAuthError is an identity provider failure. Code is one of the
// identity.Code* values; the provider's raw text stays in Err.
type ExternalAuthError struct {
	Code string
	Err  error
}

func (e *ExternalAuthError) Error() string {
	return "external auth: " + e.Code
}

func (e *ExternalAuthError) Unwrap() error { return e.Err }

// Message is the user-facing text for the code.
func (e *ExternalAuthError) Message() string {
	switch e.Code {
	case identity.CodeUserNotFound, identity.CodeWrongPassword:
		return "Invalid email or password."
	case identity.CodeInvalidEmail:
		return "Please enter a valid email address."
	case identity.CodeTooManyRequests:
		return "Too many failed attempts. Please try again later."
	case identity.CodeEmailInUse:
		return "An account with this email already exists."
	default:
		return "Authentication failed. Please try again."
	}
}

// Reset code failures.
var (
	ErrResetCodeExpired  = errors.New("code has expired or already been used")
	ErrResetCodeMismatch = errors.New("incorrect code")
	ErrResetCodeAttempts = errors.New("too many incorrect attempts")
)
