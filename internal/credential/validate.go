package credential

import (
	"strings"

	"github.com/dukerupert/compostdash/internal/policy"
)

func validateSignUp(in SignUp) ValidationErrors {
	var errs ValidationErrors
	if strings.TrimSpace(in.FirstName) == "" {
		errs = append(errs, FieldError{"first_name", "First name is required"})
	}
	if strings.TrimSpace(in.LastName) == "" {
		errs = append(errs, FieldError{"last_name", "Last name is required"})
	}
	errs = append(errs, validateEmail(in.Email)...)
	errs = append(errs, validateNewPassword(in.Password, in.PasswordConfirm)...)
	if !in.TermsAccepted {
		errs = append(errs, FieldError{"terms", "You must accept the terms and conditions"})
	}
	return errs
}

func validateSignIn(email, password string) ValidationErrors {
	errs := validateEmail(email)
	if password == "" {
		errs = append(errs, FieldError{"password", "Password is required"})
	}
	return errs
}

func validateEmail(email string) ValidationErrors {
	email = strings.TrimSpace(email)
	if email == "" {
		return ValidationErrors{{"email", "Email is required"}}
	}
	if !policy.ValidEmail(email) {
		return ValidationErrors{{"email", "Please enter a valid email address"}}
	}
	return nil
}

func validateNewPassword(password, confirm string) ValidationErrors {
	var errs ValidationErrors
	if password == "" {
		errs = append(errs, FieldError{"password", "Password is required"})
	} else if res := policy.Check(password); !res.Valid {
		errs = append(errs, FieldError{"password", "Password must contain " + strings.Join(res.Missing(), ", ")})
	}
	if password != confirm {
		errs = append(errs, FieldError{"password_confirm", "Passwords do not match"})
	}
	return errs
}
