package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dukerupert/compostdash/internal/auth"
	"github.com/dukerupert/compostdash/internal/credential"
)

// AccountHandler serves the admin account list.
type AccountHandler struct {
	manager credential.Manager
	logger  *slog.Logger
}

func NewAccountHandler(manager credential.Manager, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{manager: manager, logger: logger}
}

func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.manager.ListAccounts(r.Context())
	if err != nil {
		h.logger.Error("list accounts", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list accounts.")
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}

func (h *AccountHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == auth.AccountID(r.Context()) {
		writeError(w, http.StatusBadRequest, "You cannot deactivate your own account.")
		return
	}
	h.setActive(w, r, id, false)
}

func (h *AccountHandler) Activate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, r.PathValue("id"), true)
}

func (h *AccountHandler) setActive(w http.ResponseWriter, r *http.Request, id string, active bool) {
	var err error
	if active {
		err = h.manager.Activate(r.Context(), id)
	} else {
		err = h.manager.Deactivate(r.Context(), id)
	}
	if errors.Is(err, credential.ErrAccountNotFound) {
		writeError(w, http.StatusNotFound, "Account not found.")
		return
	}
	if err != nil {
		h.logger.Error("set account active", "id", id, "active", active, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to update account.")
		return
	}

	account, err := h.manager.Account(r.Context(), id)
	if err != nil {
		h.logger.Error("get account", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to update account.")
		return
	}
	writeJSON(w, http.StatusOK, account)
}
