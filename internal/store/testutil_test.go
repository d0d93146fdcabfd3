package store

import (
	"database/sql"
	"testing"

	"github.com/dukerupert/compostdash/internal/database"
	"github.com/dukerupert/compostdash/internal/model"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newAccount(id, email string) *model.Account {
	return &model.Account{
		ID:           id,
		FirstName:    "Alice",
		LastName:     "Mwangi",
		Email:        email,
		PasswordHash: "hash",
		Active:       true,
	}
}
