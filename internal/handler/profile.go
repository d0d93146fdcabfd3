package handler

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/dukerupert/compostdash/internal/auth"
	"github.com/dukerupert/compostdash/internal/credential"
	"github.com/dukerupert/compostdash/internal/model"
	"github.com/dukerupert/compostdash/internal/store"
)

type ProfileHandler struct {
	accounts *store.AccountStore
	profiles *store.ProfileStore
	logger   *slog.Logger
}

func NewProfileHandler(accounts *store.AccountStore, profiles *store.ProfileStore, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{accounts: accounts, profiles: profiles, logger: logger}
}

type profileResponse struct {
	Account *model.Account `json:"account"`
	Profile *model.Profile `json:"profile"`
}

// Update fields are pointers so a section left out of the request keeps
// its stored values.
type profileRequest struct {
	FirstName  *string `json:"fname"`
	LastName   *string `json:"lname"`
	Phone      *string `json:"phone"`
	Bio        *string `json:"bio"`
	Country    *string `json:"country"`
	City       *string `json:"city"`
	PostalCode *string `json:"postalCode"`
	CompanyID  *string `json:"companyId"`
}

func (p *profileRequest) bindForm(v url.Values) {
	set := func(key string) *string {
		if !v.Has(key) {
			return nil
		}
		s := v.Get(key)
		return &s
	}
	p.FirstName = set("fname")
	p.LastName = set("lname")
	p.Phone = set("phone")
	p.Bio = set("bio")
	p.Country = set("country")
	p.City = set("city")
	p.PostalCode = set("postalCode")
	p.CompanyID = set("companyId")
}

func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := auth.AccountID(r.Context())

	account, err := h.accounts.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("get account", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load profile.")
		return
	}
	if account == nil {
		writeError(w, http.StatusNotFound, "Account not found.")
		return
	}

	profile, err := h.profiles.Get(r.Context(), id)
	if err != nil {
		h.logger.Error("get profile", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load profile.")
		return
	}
	writeJSON(w, http.StatusOK, profileResponse{Account: account, Profile: profile})
}

func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := auth.AccountID(r.Context())

	var req profileRequest
	if err := bind(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	current, err := h.profiles.Get(r.Context(), id)
	if err != nil {
		h.logger.Error("get profile", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to save profile.")
		return
	}
	account, err := h.accounts.GetByID(r.Context(), id)
	if err != nil || account == nil {
		h.logger.Error("get account", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to save profile.")
		return
	}

	var errs credential.ValidationErrors
	if req.FirstName != nil && strings.TrimSpace(*req.FirstName) == "" {
		errs = append(errs, credential.FieldError{Field: "first_name", Message: "First name is required"})
	}
	if req.LastName != nil && strings.TrimSpace(*req.LastName) == "" {
		errs = append(errs, credential.FieldError{Field: "last_name", Message: "Last name is required"})
	}
	if len(errs) > 0 {
		writeErrors(w, http.StatusUnprocessableEntity, errs)
		return
	}

	if req.FirstName != nil || req.LastName != nil {
		first, last := account.FirstName, account.LastName
		if req.FirstName != nil {
			first = strings.TrimSpace(*req.FirstName)
		}
		if req.LastName != nil {
			last = strings.TrimSpace(*req.LastName)
		}
		if account, err = h.accounts.UpdateName(r.Context(), id, first, last); err != nil {
			h.logger.Error("update name", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to save profile.")
			return
		}
	}

	profile := current
	if req.Phone != nil || req.Bio != nil {
		profile, err = h.profiles.UpdatePersonal(r.Context(), id, orKeep(req.Phone, current.Phone), orKeep(req.Bio, current.Bio))
		if err != nil {
			h.logger.Error("update personal info", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to save profile.")
			return
		}
	}
	if req.Country != nil || req.City != nil || req.PostalCode != nil || req.CompanyID != nil {
		profile, err = h.profiles.UpdateAddress(r.Context(), id,
			orKeep(req.Country, current.Country),
			orKeep(req.City, current.City),
			orKeep(req.PostalCode, current.PostalCode),
			orKeep(req.CompanyID, current.CompanyID),
		)
		if err != nil {
			h.logger.Error("update address", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to save profile.")
			return
		}
	}

	writeJSON(w, http.StatusOK, profileResponse{Account: account, Profile: profile})
}

func orKeep(v *string, current string) string {
	if v == nil {
		return current
	}
	return strings.TrimSpace(*v)
}
