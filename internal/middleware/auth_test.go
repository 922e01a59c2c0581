package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

func TestAuthMiddleware_WithValidToken(t *testing.T) {
	m := NewAuthMiddleware("test-secret")

	token, err := m.IssueToken("admin-42", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken error: %v", err)
	}

	nextCalled := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
		id, ok := GetActorIDFromContext(r.Context())
		if !ok {
			t.Fatalf("actor id not in context")
		}
		if id != "admin-42" {
			t.Fatalf("actor id from context = %s, want admin-42", id)
		}
	})

	r := httptest.NewRequest(http.MethodGet, "/protected", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	handler := m.Middleware(next)
	handler.ServeHTTP(httptest.NewRecorder(), r)

	if !nextCalled {
		t.Fatalf("next handler was not called")
	}
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	m := NewAuthMiddleware("test-secret")

	expired := NewAuthMiddleware("test-secret")
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expiredToken, err := expired.IssueToken("admin-42", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken error: %v", err)
	}

	foreignToken, err := NewAuthMiddleware("other-secret").IssueToken("admin-42", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken error: %v", err)
	}

	customerToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role:             "customer",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	tests := []struct {
		name   string
		header string
	}{
		{name: "no header", header: ""},
		{name: "not bearer", header: "Basic dXNlcjpwYXNz"},
		{name: "empty token", header: "Bearer "},
		{name: "garbage", header: "Bearer not.a.jwt"},
		{name: "expired", header: "Bearer " + expiredToken},
		{name: "wrong secret", header: "Bearer " + foreignToken},
		{name: "not admin", header: "Bearer " + customerToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatalf("next handler should not be called")
			})

			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}

			m.Middleware(next).ServeHTTP(w, r)

			res := w.Result()
			defer res.Body.Close()
			if res.StatusCode != http.StatusUnauthorized {
				t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusUnauthorized)
			}
		})
	}
}
