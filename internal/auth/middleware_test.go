package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func okHandler(t *testing.T, seen *Identity) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFromContext(r.Context())
		if !ok {
			t.Error("identity missing from context")
		}
		if seen != nil {
			*seen = id
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func issueAt(t *testing.T, role string) string {
	t.Helper()
	iss := NewIssuer(testSecret, time.Hour)
	iss.now = func() time.Time { return testNow }
	token, _, err := iss.Issue("u-1", "a@example.com", "", role)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return token
}

func TestAuthenticateCookieAndBearer(t *testing.T) {
	v, _ := fixedVerifiers()
	a := NewAuthenticator(v, "token", zerolog.Nop())
	token := issueAt(t, "")

	var seen Identity
	h := a.Authenticate(okHandler(t, &seen))

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: token})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("cookie: status = %d", rec.Code)
	}
	if seen.UserID != "u-1" || seen.TenantID != "u-1" || seen.Role != RoleUser {
		t.Errorf("identity = %+v", seen)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("bearer: status = %d", rec.Code)
	}
}

func TestAuthenticateRejects(t *testing.T) {
	v, _ := fixedVerifiers()
	a := NewAuthenticator(v, "token", zerolog.Nop())
	h := a.Authenticate(okHandler(t, nil))

	for _, token := range []string{"", "garbage", issueAt(t, "") + "x"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("token %q: status = %d, want 401", token, rec.Code)
		}
		if body := rec.Body.String(); body != "{\"error\":\"not authenticated\"}\n" {
			t.Errorf("body = %q", body)
		}
	}
}

func TestEdgeGuard(t *testing.T) {
	_, e := fixedVerifiers()
	g := NewEdgeGuard(e, "token", false, zerolog.Nop())
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := g.RequireStaff(next)

	tests := []struct {
		name       string
		token      string
		wantStatus int
		wantClear  bool
	}{
		{"support passes", issueAt(t, "support"), http.StatusNoContent, false},
		{"finance passes", issueAt(t, "finance"), http.StatusNoContent, false},
		{"user blocked", issueAt(t, ""), http.StatusForbidden, false},
		{"invalid token clears cookie", "a.b.c", http.StatusUnauthorized, true},
		{"no token", "", http.StatusUnauthorized, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/admin/tickets", nil)
			if tc.token != "" {
				req.AddCookie(&http.Cookie{Name: "token", Value: tc.token})
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			cleared := false
			for _, c := range rec.Result().Cookies() {
				if c.Name == "token" && c.MaxAge < 0 {
					cleared = true
				}
			}
			if cleared != tc.wantClear {
				t.Errorf("cookie cleared = %v, want %v", cleared, tc.wantClear)
			}
		})
	}
}

func TestRequireCapability(t *testing.T) {
	h := RequireCapability(CapTicketsStats)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	for role, want := range map[StaffRole]int{
		RoleSupport: http.StatusNoContent,
		RoleAdmin:   http.StatusNoContent,
		RoleFinance: http.StatusForbidden,
		RoleUser:    http.StatusForbidden,
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(WithIdentity(req.Context(), Identity{UserID: "u-1", TenantID: "u-1", Role: role}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Errorf("%s: status = %d, want %d", role, rec.Code, want)
		}
	}
}
