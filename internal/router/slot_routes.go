package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-slot-reservation/internal/handler"
	"github.com/iliyamo/parking-slot-reservation/internal/identity"
	"github.com/iliyamo/parking-slot-reservation/internal/middleware"
)

// SlotMiddleware carries the optional Redis-backed middleware.  Nil fields
// are skipped.
type SlotMiddleware struct {
	RateLimit echo.MiddlewareFunc
	Cache     echo.MiddlewareFunc
}

// chain drops nil entries.
func chain(mws ...echo.MiddlewareFunc) []echo.MiddlewareFunc {
	out := make([]echo.MiddlewareFunc, 0, len(mws))
	for _, mw := range mws {
		if mw != nil {
			out = append(out, mw)
		}
	}
	return out
}

// RegisterSlots registers the slot endpoints.
//
//	public:   GET /slots, GET /slots/:id (cached), GET /slots/stream
//	user:     POST /slots/reserve, /slots/payment-success, /slots/unlock, GET /user-slot-status
//	admin:    POST /slots/release
//	hardware: POST /slots/update-from-hardware (no auth, no rate limit)
//
// stream is the websocket handler; nil leaves the route unregistered.
func RegisterSlots(e *echo.Echo, h *handler.SlotHandler, stream echo.HandlerFunc, p identity.Provider, mw SlotMiddleware) {
	cached := chain(mw.RateLimit, mw.Cache)
	e.GET("/slots", h.List, cached...)
	e.GET("/slots/:id", h.Get, cached...)
	// static /slots/stream wins over /slots/:id in echo's router
	if stream != nil {
		e.GET("/slots/stream", stream, chain(mw.RateLimit)...)
	}

	user := chain(mw.RateLimit, middleware.JWTAuth(p))
	e.POST("/slots/reserve", h.Reserve, user...)
	e.POST("/slots/payment-success", h.PaymentSuccess, user...)
	e.POST("/slots/unlock", h.Unlock, user...)
	e.GET("/user-slot-status", h.UserStatus, user...)

	admin := chain(mw.RateLimit, middleware.JWTAuth(p), middleware.RequireRole(identity.RoleAdmin))
	e.POST("/slots/release", h.Release, admin...)

	// sensors sit on a trusted network and report far more often than users
	e.POST("/slots/update-from-hardware", h.Hardware)
}
