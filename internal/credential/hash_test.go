package credential

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestVerifyPassword(t *testing.T) {
	bc, err := hashPassword("TestPass123!", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	legacy := legacyHash("TestPass123!")

	tests := []struct {
		name        string
		stored      string
		password    string
		wantOK      bool
		wantUpgrade bool
	}{
		{"bcrypt match", bc, "TestPass123!", true, false},
		{"bcrypt mismatch", bc, "TestPass123?", false, false},
		{"legacy match", legacy, "TestPass123!", true, true},
		{"legacy uppercase hex", strings.ToUpper(legacy), "TestPass123!", true, true},
		{"legacy mismatch", legacy, "nope", false, false},
		{"empty stored", "", "", false, false},
		{"garbage stored", "zzz", "zzz", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, upgrade := verifyPassword(tt.stored, tt.password)
			if ok != tt.wantOK || upgrade != tt.wantUpgrade {
				t.Errorf("verify = (%v, %v), want (%v, %v)", ok, upgrade, tt.wantOK, tt.wantUpgrade)
			}
		})
	}
}

func TestLegacyHashKnownVector(t *testing.T) {
	// sha256("password")
	want := "5e884898da28047151d0e56f8dc6292773603d0d6aabbdd62a11ef721d1542d8"
	if got := legacyHash("password"); got != want {
		t.Errorf("legacyHash = %q, want %q", got, want)
	}
}
