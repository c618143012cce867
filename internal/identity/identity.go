// Package identity turns a bearer credential into the {user_id, role} pair
// the slot manager acts on.
package identity

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Roles a credential may carry.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
)

// Identity is the authenticated caller.
type Identity struct {
	UserID string
	Role   string
}

// IsAdmin reports whether the caller has the admin role.
func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }

// Provider resolves a raw bearer token.
type Provider interface {
	Identify(raw string) (Identity, error)
}

// JWTProvider validates HS256 access tokens issued by utils.NewAccessToken.
type JWTProvider struct {
	secret []byte
	parser *jwt.Parser
}

func NewJWTProvider(secret string) *JWTProvider {
	return &JWTProvider{
		secret: []byte(secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
		),
	}
}

// Identify returns ErrMissingToken for an empty credential and wraps
// ErrInvalidToken for anything that does not verify or lacks a subject or a
// known role.
func (p *JWTProvider) Identify(raw string) (Identity, error) {
	if raw == "" {
		return Identity{}, ErrMissingToken
	}
	claims := jwt.MapClaims{}
	tok, err := p.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return p.secret, nil
	})
	if err != nil || !tok.Valid {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	sub, _ := claims.GetSubject()
	role, _ := claims["role"].(string)
	if sub == "" {
		return Identity{}, fmt.Errorf("%w: no subject", ErrInvalidToken)
	}
	switch role {
	case RoleUser, RoleAdmin:
	default:
		return Identity{}, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, role)
	}
	return Identity{UserID: sub, Role: role}, nil
}
