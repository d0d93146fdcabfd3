package handler

import (
	"encoding/json"
	"mime"
	"net/http"
	"net/url"

	"github.com/dukerupert/compostdash/internal/credential"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Success bool                    `json:"success"`
	Errors  []credential.FieldError `json:"errors"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeErrors(w http.ResponseWriter, status int, errs []credential.FieldError) {
	writeJSON(w, status, errorBody{Errors: errs})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeErrors(w, status, []credential.FieldError{{Message: msg}})
}

// formBinder is a request body that can also arrive as a urlencoded form.
type formBinder interface {
	bindForm(url.Values)
}

// bind decodes a JSON body, or a form body for any other content type.
func bind(w http.ResponseWriter, r *http.Request, dst formBinder) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt == "application/json" {
		return json.NewDecoder(r.Body).Decode(dst)
	}
	if err := r.ParseForm(); err != nil {
		return err
	}
	dst.bindForm(r.PostForm)
	return nil
}

// checked reads an HTML checkbox.
func checked(v string) bool {
	switch v {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}
