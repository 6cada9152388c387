package pkg

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("api-side-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)

	got, ok := TokenExpiry(signedToken(t, jwt.MapClaims{"sub": "42", "exp": exp.Unix()}))
	if !ok || !got.Equal(exp) {
		t.Errorf("TokenExpiry = %v, %v; want %v, true", got, ok, exp)
	}

	if _, ok := TokenExpiry(signedToken(t, jwt.MapClaims{"sub": "42"})); ok {
		t.Error("expected ok=false for a JWT without exp")
	}
	if _, ok := TokenExpiry("3f1c0e7a9b"); ok {
		t.Error("expected ok=false for an opaque token")
	}
}

func TestTokenExpired(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		token string
		want  bool
	}{
		{"future exp", signedToken(t, jwt.MapClaims{"exp": now.Add(time.Hour).Unix()}), false},
		{"past exp", signedToken(t, jwt.MapClaims{"exp": now.Add(-time.Hour).Unix()}), true},
		{"exp equals now", signedToken(t, jwt.MapClaims{"exp": now.Unix()}), true},
		{"opaque", "drf-token-abc123", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TokenExpired(tt.token, now); got != tt.want {
				t.Errorf("TokenExpired = %v, want %v", got, tt.want)
			}
		})
	}
}
