package guard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/compostdash/internal/auth"
)

func TestDecideScenarios(t *testing.T) {
	g := New(nil)

	tests := []struct {
		path         string
		hasSession   bool
		wantTarget   string
		wantRedirect bool
	}{
		{"/inventory.html", false, SignInPage, true},
		{"/inventory.html", true, "", false},
		{"/signin.html", true, DefaultPage, true},
		{"/signin.html", false, "", false},
		{"/signup.html", true, DefaultPage, true},
		{"/reset-password.html", false, "", false},
		{"/reset-password.html", true, "", false},
		{"/404.html", true, "", false},
		{"/css/style.css", false, "", false},
		{"/", false, SignInPage, true},
		{"/", true, "", false},
		{"/pages/farmers.html", false, SignInPage, true},
		{"/pages/../dashboard.html", false, SignInPage, true},
	}
	for _, tt := range tests {
		target, redirect := g.Decide(tt.path, tt.hasSession)
		assert.Equal(t, tt.wantRedirect, redirect, "redirect for %s session=%v", tt.path, tt.hasSession)
		assert.Equal(t, tt.wantTarget, target, "target for %s session=%v", tt.path, tt.hasSession)
	}
}

func TestDecideIdempotent(t *testing.T) {
	g := New(nil)
	for p := range DefaultTable() {
		for _, hasSession := range []bool{false, true} {
			t1, r1 := g.Decide(p, hasSession)
			t2, r2 := g.Decide(p, hasSession)
			assert.Equal(t, t1, t2)
			assert.Equal(t, r1, r2)

			// Following a redirect never redirects again.
			if r1 {
				_, again := g.Decide(t1, hasSession)
				assert.False(t, again, "redirect loop from %s to %s", p, t1)
			}
		}
	}
}

func TestAccessUnknownIsPublic(t *testing.T) {
	g := New(Table{"/secret.html": Protected})
	assert.Equal(t, Protected, g.Access("/secret.html"))
	assert.Equal(t, Public, g.Access("/inventory.html"))
	assert.Equal(t, Public, g.Access(""))
	assert.Equal(t, "protected", Protected.String())
	assert.Equal(t, "guest_only", GuestOnly.String())
	assert.Equal(t, "public", Public.String())
}

func TestAccessIgnoresQueryAndFragment(t *testing.T) {
	g := New(nil)

	tests := []struct {
		path string
		want Access
	}{
		{"/inventory.html?tab=1", Protected},
		{"/inventory.html#stock", Protected},
		{"/signin.html?next=%2Freports.html", GuestOnly},
		{"https://dash.example.com/reports.html?month=3", Protected},
		{"/?welcome=1", Protected},
		{"/reset-password.html?email=a%40b.co", Public},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, g.Access(tt.path))
		})
	}

	target, redirect := g.Decide("/inventory.html?tab=1", false)
	assert.True(t, redirect)
	assert.Equal(t, SignInPage, target)
}

func pages() http.Handler {
	return http.FileServerFS(fstest.MapFS{
		"inventory.html": {Data: []byte("<h1>Inventory</h1>")},
		"signin.html":    {Data: []byte("<h1>Sign in</h1>")},
		"404.html":       {Data: []byte("<h1>Not found</h1>")},
	})
}

func withSession(r *http.Request) *http.Request {
	return r.WithContext(auth.WithAuth(context.Background(), auth.AuthContext{AccountID: "acc-1", SessionID: 1}))
}

func TestMiddlewareRedirectsProtected(t *testing.T) {
	h := New(nil).Middleware(FromAuthContext)(pages())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/inventory.html", nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, SignInPage, rec.Header().Get("Location"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, withSession(httptest.NewRequest("GET", "/inventory.html", nil)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Inventory")
}

func TestMiddlewareRedirectsGuestOnly(t *testing.T) {
	h := New(nil).Middleware(FromAuthContext)(pages())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, withSession(httptest.NewRequest("GET", "/signin.html", nil)))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, DefaultPage, rec.Header().Get("Location"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/signin.html", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMiddlewareHTMX(t *testing.T) {
	h := New(nil).Middleware(FromAuthContext)(pages())

	req := httptest.NewRequest("GET", "/inventory.html", nil)
	req.Header.Set("HX-Request", "true")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, SignInPage, rec.Header().Get("HX-Redirect"))
	assert.Empty(t, rec.Body.String())
}

func TestHandleDecision(t *testing.T) {
	h := New(nil).HandleDecision(FromAuthContext)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/guard?path=/team.html", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got decision
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.True(t, got.Redirect)
	assert.Equal(t, SignInPage, got.Target)
	assert.Equal(t, "protected", got.Access)

	got = decision{}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, withSession(httptest.NewRequest("GET", "/api/guard?path=/team.html", nil)))
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.False(t, got.Redirect)
	assert.Empty(t, got.Target)

	got = decision{}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/guard?path="+url.QueryEscape("/inventory.html?tab=1"), nil))
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.True(t, got.Redirect)
	assert.Equal(t, "protected", got.Access)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/guard", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
