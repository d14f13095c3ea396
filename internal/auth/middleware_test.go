package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAuth_MissingHeader(t *testing.T) {
	ti := testIssuer(time.Minute)
	h := RequireAuth(ti)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	var resp errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	if resp.Error.Code != "unauthorized" {
		t.Errorf("expected code unauthorized, got %q", resp.Error.Code)
	}
}

func TestRequireAuth_InvalidToken(t *testing.T) {
	ti := testIssuer(time.Minute)
	h := RequireAuth(ti)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequireAuth_ExpiredToken(t *testing.T) {
	ti := testIssuer(time.Minute)
	tok, err := ti.Mint(Principal{UserID: "u1", Role: "member"})
	if err != nil {
		t.Fatalf("Mint error: %v", err)
	}
	ti.now = func() time.Time { return time.Now().Add(time.Hour) }

	h := RequireAuth(ti)(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for expired token, got %d", rec.Code)
	}
}

func TestRequireAuth_InjectsPrincipal(t *testing.T) {
	ti := testIssuer(time.Minute)
	tok, err := ti.Mint(Principal{UserID: "u1", Email: "a@x.com", Role: "admin"})
	if err != nil {
		t.Fatalf("Mint error: %v", err)
	}

	var got Principal
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	h := RequireAuth(ti)(inner)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got.UserID != "u1" || got.Role != "admin" {
		t.Errorf("unexpected principal: %+v", got)
	}
}

func TestRequireRole(t *testing.T) {
	ti := testIssuer(time.Minute)

	mint := func(role string) string {
		tok, err := ti.Mint(Principal{UserID: "u1", Role: role})
		if err != nil {
			t.Fatalf("Mint error: %v", err)
		}
		return tok
	}

	h := RequireAuth(ti)(RequireRole("admin", "manager")(okHandler()))

	tests := []struct {
		role string
		want int
	}{
		{"admin", http.StatusOK},
		{"manager", http.StatusOK},
		{"member", http.StatusForbidden},
		{"unassigned", http.StatusForbidden},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+mint(tt.role))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != tt.want {
			t.Errorf("role %q: expected %d, got %d", tt.role, tt.want, rec.Code)
		}
	}
}

func TestRequireRole_NoPrincipal(t *testing.T) {
	// RequireRole without RequireAuth upstream treats the request as
	// unauthenticated, not forbidden.
	h := RequireRole("admin")(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
