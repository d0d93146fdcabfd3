package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/dukerupert/compostdash/internal/credential"
	"github.com/dukerupert/compostdash/internal/email"
	"github.com/dukerupert/compostdash/internal/guard"
	"github.com/dukerupert/compostdash/internal/policy"
	"github.com/dukerupert/compostdash/internal/store"
)

type PasswordHandler struct {
	resetter credential.PasswordResetter
	sender   email.Sender
	logger   *slog.Logger
}

// NewPasswordHandler builds the password endpoints. resetter may be nil when
// the backend does not own password hashes; reset routes then return 501.
func NewPasswordHandler(resetter credential.PasswordResetter, sender email.Sender, logger *slog.Logger) *PasswordHandler {
	return &PasswordHandler{resetter: resetter, sender: sender, logger: logger}
}

type strengthRequest struct {
	Password string `json:"password"`
}

func (s *strengthRequest) bindForm(v url.Values) {
	s.Password = v.Get("password")
}

// Strength scores a password for the sign-up strength meter.
func (h *PasswordHandler) Strength(w http.ResponseWriter, r *http.Request) {
	var req strengthRequest
	if err := bind(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	res := policy.Check(req.Password)
	writeJSON(w, http.StatusOK, map[string]any{
		"result":  res,
		"missing": res.Missing(),
	})
}

type resetRequest struct {
	Email string `json:"email"`
}

func (s *resetRequest) bindForm(v url.Values) {
	s.Email = v.Get("email")
}

// RequestReset mails a code when the address belongs to an active account.
// The response is the same either way.
func (h *PasswordHandler) RequestReset(w http.ResponseWriter, r *http.Request) {
	if h.resetter == nil {
		writeError(w, http.StatusNotImplemented, "Password reset is handled by your identity provider.")
		return
	}

	var req resetRequest
	if err := bind(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	rc, err := h.resetter.RequestReset(r.Context(), req.Email)
	var verrs credential.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		writeErrors(w, http.StatusUnprocessableEntity, verrs)
		return
	case err != nil:
		h.logger.Error("request reset", "error", err)
	case rc != nil:
		if err := h.sender.SendResetCode(r.Context(), rc.Email, rc.Code, store.ResetCodeTTL); err != nil {
			h.logger.Error("send reset code", "error", err)
		}
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"success": true,
		"message": "If that address has an account, a reset code is on its way.",
	})
}

type confirmResetRequest struct {
	Email           string `json:"email"`
	Code            string `json:"code"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"confirmPassword"`
}

func (s *confirmResetRequest) bindForm(v url.Values) {
	s.Email = v.Get("email")
	s.Code = v.Get("code")
	s.Password = v.Get("password")
	s.PasswordConfirm = v.Get("confirmPassword")
}

func (h *PasswordHandler) ConfirmReset(w http.ResponseWriter, r *http.Request) {
	if h.resetter == nil {
		writeError(w, http.StatusNotImplemented, "Password reset is handled by your identity provider.")
		return
	}

	var req confirmResetRequest
	if err := bind(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	err := h.resetter.ConfirmReset(r.Context(), req.Email, req.Code, req.Password, req.PasswordConfirm)
	var verrs credential.ValidationErrors
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "redirect": guard.SignInPage})
	case errors.As(err, &verrs):
		writeErrors(w, http.StatusUnprocessableEntity, verrs)
	case errors.Is(err, credential.ErrResetCodeMismatch):
		writeErrors(w, http.StatusUnprocessableEntity, []credential.FieldError{{Field: "code", Message: "Incorrect code. Please try again."}})
	case errors.Is(err, credential.ErrResetCodeExpired):
		writeErrors(w, http.StatusGone, []credential.FieldError{{Field: "code", Message: "Code has expired or already been used. Please request a new one."}})
	case errors.Is(err, credential.ErrResetCodeAttempts):
		writeErrors(w, http.StatusTooManyRequests, []credential.FieldError{{Field: "code", Message: "Too many incorrect attempts. Please request a new code."}})
	default:
		h.logger.Error("confirm reset", "error", err)
		writeError(w, http.StatusInternalServerError, "Something went wrong. Please try again.")
	}
}
