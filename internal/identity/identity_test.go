package identity

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iliyamo/parking-slot-reservation/internal/utils"
)

func sign(t *testing.T, secret string, claims jwt.MapClaims, method jwt.SigningMethod) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func TestJWTProviderIdentify(t *testing.T) {
	p := NewJWTProvider("secret")
	at, err := utils.NewAccessToken("secret", 7, RoleAdmin, 5)
	if err != nil {
		t.Fatal(err)
	}
	id, err := p.Identify(at.Token)
	if err != nil {
		t.Fatalf("Identify: %v", err)
	}
	if id.UserID != "7" || !id.IsAdmin() {
		t.Errorf("identity = %+v", id)
	}
}

func TestJWTProviderRejects(t *testing.T) {
	p := NewJWTProvider("secret")
	exp := time.Now().Add(time.Minute).Unix()
	tests := []struct {
		name string
		raw  string
		want error
	}{
		{"empty", "", ErrMissingToken},
		{"garbage", "not-a-jwt", ErrInvalidToken},
		{"wrong secret", sign(t, "other", jwt.MapClaims{"sub": "1", "role": "user", "exp": exp}, jwt.SigningMethodHS256), ErrInvalidToken},
		{"wrong alg", sign(t, "secret", jwt.MapClaims{"sub": "1", "role": "user", "exp": exp}, jwt.SigningMethodHS512), ErrInvalidToken},
		{"expired", sign(t, "secret", jwt.MapClaims{"sub": "1", "role": "user", "exp": time.Now().Add(-time.Minute).Unix()}, jwt.SigningMethodHS256), ErrInvalidToken},
		{"no exp", sign(t, "secret", jwt.MapClaims{"sub": "1", "role": "user"}, jwt.SigningMethodHS256), ErrInvalidToken},
		{"no subject", sign(t, "secret", jwt.MapClaims{"role": "user", "exp": exp}, jwt.SigningMethodHS256), ErrInvalidToken},
		{"sensor role", sign(t, "secret", jwt.MapClaims{"sub": "1", "role": "sensor", "exp": exp}, jwt.SigningMethodHS256), ErrInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := p.Identify(tt.raw); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}
