package utils

import (
	"errors"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("hunter22", 4)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !VerifyPassword(hash, "hunter22") {
		t.Error("correct password rejected")
	}
	if VerifyPassword(hash, "hunter23") {
		t.Error("wrong password accepted")
	}
}

func TestPasswordLimits(t *testing.T) {
	if _, err := HashPassword(strings.Repeat("x", MaxPasswordBytes+1), 4); !errors.Is(err, ErrPasswordTooLong) {
		t.Errorf("long password: err = %v, want ErrPasswordTooLong", err)
	}
	// cost 1 is below bcrypt.MinCost and must still hash
	hash, err := HashPassword("pw", 1)
	if err != nil || !VerifyPassword(hash, "pw") {
		t.Errorf("low cost: hash=%q err=%v", hash, err)
	}
	if got := clampCost(99); got != 31 {
		t.Errorf("clampCost(99) = %d", got)
	}
}

func TestAccessTokenClaims(t *testing.T) {
	at, err := NewAccessToken("secret", 42, "admin", 5)
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}
	tok, err := jwt.Parse(at.Token, func(*jwt.Token) (any, error) { return []byte("secret"), nil })
	if err != nil || !tok.Valid {
		t.Fatalf("parse: %v", err)
	}
	claims := tok.Claims.(jwt.MapClaims)
	if claims["sub"] != "42" || claims["role"] != "admin" {
		t.Errorf("claims = %v", claims)
	}
}

func TestRefreshTokenHashing(t *testing.T) {
	a, err := NewRefreshToken(1)
	if err != nil {
		t.Fatalf("NewRefreshToken: %v", err)
	}
	b, _ := NewRefreshToken(1)
	if len(a.Raw) != 96 || a.Raw == b.Raw {
		t.Errorf("raw tokens should be 96 random hex chars: %q %q", a.Raw, b.Raw)
	}
	if HashRefreshRaw(a.Raw) != HashRefreshRaw(a.Raw) || HashRefreshRaw(a.Raw) == HashRefreshRaw(b.Raw) {
		t.Error("hash must be deterministic and distinct per token")
	}
}
