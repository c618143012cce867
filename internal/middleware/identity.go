package middleware

// Context keys shared by JWTAuth, RequireRole and the rate limiter.

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-slot-reservation/internal/identity"
)

const (
	ctxIdentity = "identity"
	ctxUserID   = "user_id"
	ctxRole     = "role"
)

func setIdentity(c echo.Context, id identity.Identity) {
	c.Set(ctxIdentity, id)
	c.Set(ctxUserID, id.UserID)
	c.Set(ctxRole, id.Role)
}

// Identity returns the authenticated caller, if JWTAuth ran.
func Identity(c echo.Context) (identity.Identity, bool) {
	id, ok := c.Get(ctxIdentity).(identity.Identity)
	return id, ok
}

// userID returns the caller's id or "anon" on public routes.
func userID(c echo.Context) string {
	if s, ok := c.Get(ctxUserID).(string); ok && s != "" {
		return s
	}
	return "anon"
}
