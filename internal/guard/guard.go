// Package guard decides which dashboard pages a browser may see.
//
// Each page path has an access level. Protected pages need a session;
// guest-only pages (sign-in, sign-up) are for browsers without one.
// Decisions are pure, so evaluating a page twice gives the same answer and
// a redirect never leads to a second redirect.
package guard

import (
	"encoding/json"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/dukerupert/compostdash/internal/auth"
)

type Access int

const (
	Public Access = iota
	GuestOnly
	Protected
)

func (a Access) String() string {
	switch a {
	case GuestOnly:
		return "guest_only"
	case Protected:
		return "protected"
	default:
		return "public"
	}
}

const (
	SignInPage  = "/signin.html"
	DefaultPage = "/index.html"
)

// Table maps page paths to access levels. Paths not listed are Public.
type Table map[string]Access

func DefaultTable() Table {
	return Table{
		"/index.html":           Protected,
		"/dashboard.html":       Protected,
		"/profile.html":         Protected,
		"/settings.html":        Protected,
		"/inventory.html":       Protected,
		"/reports.html":         Protected,
		"/team.html":            Protected,
		"/trainings.html":       Protected,
		"/tracking.html":        Protected,
		"/farmers.html":         Protected,
		"/waste-suppliers.html": Protected,
		"/signin.html":          GuestOnly,
		"/signup.html":          GuestOnly,
		"/reset-password.html":  Public,
		"/404.html":             Public,
	}
}

type Guard struct {
	table Table
}

func New(table Table) *Guard {
	if table == nil {
		table = DefaultTable()
	}
	return &Guard{table: table}
}

// Access returns the level for a request path. Query strings, fragments and
// scheme/host are ignored, so location.href works as well as pathname.
// Directory paths are looked up as their index.html, and pages nested under
// a prefix match by file name.
func (g *Guard) Access(p string) Access {
	if u, err := url.Parse(p); err == nil {
		p = u.Path
	} else if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		p = "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if strings.HasSuffix(p, "/") {
		p += "index.html"
	}
	p = path.Clean(p)

	if a, ok := g.table[p]; ok {
		return a
	}
	if a, ok := g.table["/"+path.Base(p)]; ok {
		return a
	}
	return Public
}

// Decide returns where the browser should go instead of path, if anywhere.
func (g *Guard) Decide(p string, hasSession bool) (target string, redirect bool) {
	switch g.Access(p) {
	case Protected:
		if !hasSession {
			return SignInPage, true
		}
	case GuestOnly:
		if hasSession {
			return DefaultPage, true
		}
	}
	return "", false
}

// SessionLookup reports whether the request carries a live session.
type SessionLookup func(r *http.Request) bool

// FromAuthContext treats any request with an AuthContext as signed in.
// Use it behind middleware.OptionalAuth.
func FromAuthContext(r *http.Request) bool {
	_, ok := auth.FromContext(r.Context())
	return ok
}

// Middleware redirects page loads the guard rejects. HTMX requests get an
// HX-Redirect header instead of a 303.
func (g *Guard) Middleware(hasSession SessionLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet && r.Method != http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}
			target, redirect := g.Decide(r.URL.Path, hasSession(r))
			if !redirect {
				next.ServeHTTP(w, r)
				return
			}
			if r.Header.Get("HX-Request") == "true" {
				w.Header().Set("HX-Redirect", target)
				w.WriteHeader(http.StatusOK)
				return
			}
			w.Header().Set("Cache-Control", "no-store")
			http.Redirect(w, r, target, http.StatusSeeOther)
		})
	}
}

type decision struct {
	Path     string `json:"path"`
	Access   string `json:"access"`
	Redirect bool   `json:"redirect"`
	Target   string `json:"target,omitempty"`
}

// HandleDecision serves GET /api/guard?path=... so page scripts can re-run
// the guard after a session change without reloading.
func (g *Guard) HandleDecision(hasSession SessionLookup) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := r.URL.Query().Get("path")
		if p == "" {
			http.Error(w, "path is required", http.StatusBadRequest)
			return
		}
		target, redirect := g.Decide(p, hasSession(r))

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		json.NewEncoder(w).Encode(decision{
			Path:     p,
			Access:   g.Access(p).String(),
			Redirect: redirect,
			Target:   target,
		})
	}
}
