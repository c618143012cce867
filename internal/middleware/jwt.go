package middleware // reusable echo middleware: authentication, roles, rate limiting, caching

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-slot-reservation/internal/identity"
)

// JWTAuth validates the Bearer access token with p and stores the caller in
// the request context.  Handlers read it back with Identity(c); the raw
// user_id and role keys stay available for the rate limiter.
func JWTAuth(p identity.Provider) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			raw := ""
			if strings.HasPrefix(auth, "Bearer ") {
				raw = strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			}
			id, err := p.Identify(raw)
			if err != nil {
				msg := "invalid token"
				if errors.Is(err, identity.ErrMissingToken) {
					msg = "missing bearer token"
				}
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": msg})
			}
			setIdentity(c, id)
			return next(c)
		}
	}
}
