package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/FREEWORLD-HUB/group1-advertisement/core"
	"github.com/FREEWORLD-HUB/group1-advertisement/handlers/auth"
)

func echoCaller() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(CallerID(r.Context())))
	})
}

func TestAuthJWT(t *testing.T) {
	issuer := auth.NewIssuer("secret", time.Hour)
	token, _ := issuer.Issue(&core.User{ID: "u1", Roles: []string{core.RolePoster}})
	handler := AuthJWT(issuer)(echoCaller())

	testCases := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"missing header", "", http.StatusUnauthorized, ""},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, ""},
		{"garbage token", "Bearer abc", http.StatusUnauthorized, ""},
		{"valid token", "Bearer " + token, http.StatusOK, "u1"},
		{"lowercase scheme", "bearer " + token, http.StatusOK, "u1"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tc.status {
				t.Errorf("status = %d, want %d", rec.Code, tc.status)
			}
			if tc.body != "" && rec.Body.String() != tc.body {
				t.Errorf("body = %q, want %q", rec.Body.String(), tc.body)
			}
		})
	}
}

func TestRequireRoles(t *testing.T) {
	handler := RequireRoles(core.RolePoster, core.RoleVendor)(echoCaller())

	testCases := []struct {
		name   string
		claims *auth.AppClaims
		status int
	}{
		{"no claims", nil, http.StatusUnauthorized},
		{"plain user", &auth.AppClaims{Roles: []string{core.RoleUser}}, http.StatusForbidden},
		{"no roles", &auth.AppClaims{}, http.StatusForbidden},
		{"vendor", &auth.AppClaims{Roles: []string{core.RoleVendor}}, http.StatusOK},
		{"multiple roles", &auth.AppClaims{Roles: []string{core.RoleUser, core.RolePoster}}, http.StatusOK},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/adverts", nil)
			if tc.claims != nil {
				req = req.WithContext(WithClaims(req.Context(), tc.claims))
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tc.status {
				t.Errorf("status = %d, want %d", rec.Code, tc.status)
			}
		})
	}
}

func TestCallerID_Unauthenticated(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	if id := CallerID(req.Context()); id != "" {
		t.Errorf("CallerID() = %q, want empty", id)
	}
}
