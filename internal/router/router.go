package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-slot-reservation/internal/handler"
	"github.com/iliyamo/parking-slot-reservation/internal/identity"
	"github.com/iliyamo/parking-slot-reservation/internal/middleware"
)

// RegisterRoutes registers routes that need neither authentication nor rate
// limiting.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo, health echo.HandlerFunc) {
	e.GET("/healthz", health)
}

// RegisterAuth registers the account endpoints under /auth.  register,
// login, refresh and logout work without an access token; /auth/me requires
// one.  rl may be nil.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, p identity.Provider, rl echo.MiddlewareFunc) {
	open := chain(rl)
	e.POST("/auth/register", a.Register, open...)
	e.POST("/auth/login", a.Login, open...)
	// rotates the refresh token
	e.POST("/auth/refresh", a.Refresh, open...)
	// accepts either a refresh_token body or a bearer header
	e.POST("/auth/logout", a.Logout, open...)

	e.GET("/auth/me", a.Me, chain(rl, middleware.JWTAuth(p))...)
}
