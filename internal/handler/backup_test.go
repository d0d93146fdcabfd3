package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dukerupert/compostdash/internal/backup"
)

func TestBackupStatusDisabled(t *testing.T) {
	e := setup(t)
	h := NewBackupHandler(backup.NewManager(backup.Config{}, e.accounts, nil, e.logger), e.logger)

	rec := httptest.NewRecorder()
	h.Status(rec, httptest.NewRequest("GET", "/api/backups", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	body := decodeBody(t, rec)
	status, ok := body["status"].(map[string]any)
	if !ok {
		t.Fatalf("missing status in %v", body)
	}
	if status["state"] != string(backup.StateDisabled) {
		t.Errorf("state = %v, want %q", status["state"], backup.StateDisabled)
	}
	if _, ok := body["backups"]; ok {
		t.Error("expected no backup list when disabled")
	}
}

func TestBackupRunNowNotConfigured(t *testing.T) {
	e := setup(t)
	h := NewBackupHandler(backup.NewManager(backup.Config{}, e.accounts, nil, e.logger), e.logger)

	rec := httptest.NewRecorder()
	h.RunNow(rec, httptest.NewRequest("POST", "/api/backups", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}
