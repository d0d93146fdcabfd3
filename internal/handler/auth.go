package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/dukerupert/compostdash/internal/credential"
	"github.com/dukerupert/compostdash/internal/guard"
	"github.com/dukerupert/compostdash/internal/identity"
	"github.com/dukerupert/compostdash/internal/middleware"
	"github.com/dukerupert/compostdash/internal/model"
	"github.com/dukerupert/compostdash/internal/snapshot"
)

type AuthHandler struct {
	store        credential.Store
	secureCookie bool
	logger       *slog.Logger
}

func NewAuthHandler(store credential.Store, secureCookie bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{store: store, secureCookie: secureCookie, logger: logger}
}

type signUpRequest struct {
	FirstName       string `json:"fname"`
	LastName        string `json:"lname"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"confirmPassword"`
	Terms           bool   `json:"terms"`
}

func (s *signUpRequest) bindForm(v url.Values) {
	s.FirstName = v.Get("fname")
	s.LastName = v.Get("lname")
	s.Email = v.Get("email")
	s.Password = v.Get("password")
	s.PasswordConfirm = v.Get("confirmPassword")
	s.Terms = checked(v.Get("terms"))
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *signInRequest) bindForm(v url.Values) {
	s.Email = v.Get("email")
	s.Password = v.Get("password")
}

type sessionResponse struct {
	Success  bool                  `json:"success"`
	User     *snapshot.CurrentUser `json:"user"`
	Redirect string                `json:"redirect,omitempty"`
}

func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := bind(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	_, sess, err := h.store.CreateAccount(r.Context(), credential.SignUp{
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Email:           req.Email,
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
		TermsAccepted:   req.Terms,
		PriorToken:      middleware.SessionToken(r),
	})
	if err != nil {
		h.writeCredentialError(w, "sign up", err)
		return
	}

	h.setSessionCookie(w, sess)
	writeJSON(w, http.StatusCreated, sessionResponse{
		Success:  true,
		User:     snapshot.NewCurrentUser(sess),
		Redirect: guard.DefaultPage,
	})
}

func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := bind(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	_, sess, err := h.store.Authenticate(r.Context(), req.Email, req.Password, middleware.SessionToken(r))
	if err != nil {
		h.writeCredentialError(w, "sign in", err)
		return
	}

	h.setSessionCookie(w, sess)
	writeJSON(w, http.StatusOK, sessionResponse{
		Success:  true,
		User:     snapshot.NewCurrentUser(sess),
		Redirect: guard.DefaultPage,
	})
}

func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.store.SignOut(r.Context(), middleware.SessionToken(r)); err != nil {
		h.logger.Error("sign out", "error", err)
		writeError(w, http.StatusInternalServerError, "Something went wrong. Please try again.")
		return
	}
	h.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, sessionResponse{Success: true, Redirect: guard.SignInPage})
}

// Session reports the caller's live session, or {"session":null}.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")

	token := middleware.SessionToken(r)
	if token == "" {
		writeJSON(w, http.StatusOK, map[string]any{"session": nil})
		return
	}
	sess, err := h.store.CurrentSession(r.Context(), token)
	if err != nil {
		h.logger.Error("current session", "error", err)
		writeError(w, http.StatusInternalServerError, "Something went wrong. Please try again.")
		return
	}
	if sess == nil {
		h.clearSessionCookie(w)
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": snapshot.NewCurrentUser(sess)})
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, sess *model.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// writeCredentialError maps credential errors onto status codes. Anything
// unrecognised is logged and reported as a generic 500.
func (h *AuthHandler) writeCredentialError(w http.ResponseWriter, op string, err error) {
	var verrs credential.ValidationErrors
	var ext *credential.ExternalAuthError

	switch {
	case errors.As(err, &verrs):
		writeErrors(w, http.StatusUnprocessableEntity, verrs)
	case errors.Is(err, credential.ErrDuplicateEmail):
		writeErrors(w, http.StatusConflict, []credential.FieldError{{Field: "email", Message: "An account with this email already exists."}})
	case errors.Is(err, credential.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "Invalid email or password.")
	case errors.As(err, &ext):
		h.logger.Warn(op+" identity provider", "code", ext.Code, "error", ext.Err)
		status := http.StatusBadGateway
		if ext.Code == identity.CodeTooManyRequests {
			status = http.StatusTooManyRequests
		}
		writeError(w, status, ext.Message())
	default:
		h.logger.Error(op, "error", err)
		writeError(w, http.StatusInternalServerError, "Something went wrong. Please try again.")
	}
}
