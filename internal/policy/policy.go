// Package policy implements the password and email rules applied at sign-up.
//
// Every function here is pure: no I/O, no clock, no randomness.
package policy

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MinLength is the minimum password length in characters.
const MinLength = 8

// SpecialChars is the fixed punctuation set a password must draw from.
const SpecialChars = `!@#$%^&*()_+-=[]{};':"\|,.<>/?`

// Strength is the label derived from a password's score.
type Strength string

const (
	Weak   Strength = "weak"
	Fair   Strength = "fair"
	Good   Strength = "good"
	Strong Strength = "strong"
)

// Result reports which predicates a password satisfies.
type Result struct {
	Length   bool     `json:"length"`
	Upper    bool     `json:"uppercase"`
	Lower    bool     `json:"lowercase"`
	Digit    bool     `json:"number"`
	Special  bool     `json:"special"`
	Score    int      `json:"score"`
	Strength Strength `json:"strength"`
	Valid    bool     `json:"valid"`
}

// Check evaluates the five password predicates.
func Check(password string) Result {
	r := Result{Length: utf8.RuneCountInString(password) >= MinLength}
	for _, c := range password {
		switch {
		case c >= 'A' && c <= 'Z':
			r.Upper = true
		case c >= 'a' && c <= 'z':
			r.Lower = true
		case c >= '0' && c <= '9':
			r.Digit = true
		case strings.ContainsRune(SpecialChars, c):
			r.Special = true
		}
	}

	for _, ok := range []bool{r.Length, r.Upper, r.Lower, r.Digit, r.Special} {
		if ok {
			r.Score++
		}
	}
	r.Strength = StrengthFor(r.Score)
	r.Valid = r.Score == 5
	return r
}

// StrengthFor maps a score in [0,5] to its label. Out-of-range scores clamp.
func StrengthFor(score int) Strength {
	switch {
	case score <= 2:
		return Weak
	case score == 3:
		return Fair
	case score == 4:
		return Good
	default:
		return Strong
	}
}

// Missing lists the human-readable requirements a result does not meet.
func (r Result) Missing() []string {
	var out []string
	if !r.Length {
		out = append(out, "at least 8 characters")
	}
	if !r.Upper {
		out = append(out, "an uppercase letter")
	}
	if !r.Lower {
		out = append(out, "a lowercase letter")
	}
	if !r.Digit {
		out = append(out, "a number")
	}
	if !r.Special {
		out = append(out, "a special character")
	}
	return out
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidEmail reports whether s has the local@domain.tld shape.
func ValidEmail(s string) bool {
	return emailPattern.MatchString(s)
}
