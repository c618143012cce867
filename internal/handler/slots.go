package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-slot-reservation/internal/logging"
	"github.com/iliyamo/parking-slot-reservation/internal/middleware"
	"github.com/iliyamo/parking-slot-reservation/internal/sensor"
	"github.com/iliyamo/parking-slot-reservation/internal/slot"
)

// maxReportBytes caps hardware report bodies.
const maxReportBytes = 4 << 10

// SlotHandler exposes the slot manager over HTTP.  Authenticated routes
// expect JWTAuth to have stored the caller; the hardware route is trusted.
type SlotHandler struct {
	Slots *slot.Manager
	Log   *logging.Logger
}

func NewSlotHandler(m *slot.Manager, log *logging.Logger) *SlotHandler {
	if m == nil {
		panic("nil manager passed to NewSlotHandler")
	}
	if log == nil {
		log = logging.Default()
	}
	return &SlotHandler{Slots: m, Log: log.With("component", "slot-handler")}
}

type slotReq struct {
	SlotID int `json:"slot_id"`
}

type paymentReq struct {
	SlotID        int    `json:"slot_id"`
	PaymentMethod string `json:"payment_method"`
}

// List handles GET /slots.
func (h *SlotHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	slots, err := h.Slots.List(ctx)
	if err != nil {
		return h.fail(c, err)
	}
	out := make([]slot.Record, len(slots))
	for i, s := range slots {
		out[i] = s.Record()
	}
	return c.JSON(http.StatusOK, out)
}

// Get handles GET /slots/:id.
func (h *SlotHandler) Get(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid slot id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	s, err := h.Slots.Get(ctx, id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, s.Record())
}

// Reserve handles POST /slots/reserve.
func (h *SlotHandler) Reserve(c echo.Context) error {
	return h.mutate(c, func(ctx context.Context, actor slot.Actor, id int) (slot.Slot, error) {
		return h.Slots.Reserve(ctx, actor, id)
	})
}

// PaymentSuccess handles POST /slots/payment-success.
func (h *SlotHandler) PaymentSuccess(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req paymentReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.SlotID <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "slot_id must be a positive integer"})
	}
	method := strings.TrimSpace(req.PaymentMethod)
	if len(method) > 32 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "payment_method is too long"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	s, err := h.Slots.Pay(ctx, actor, req.SlotID, method)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, s.Record())
}

// Unlock handles POST /slots/unlock.
func (h *SlotHandler) Unlock(c echo.Context) error {
	return h.mutate(c, func(ctx context.Context, actor slot.Actor, id int) (slot.Slot, error) {
		return h.Slots.Unlock(ctx, actor, id)
	})
}

// Release handles POST /slots/release.  RequireRole guards the route; the
// manager checks the role again.
func (h *SlotHandler) Release(c echo.Context) error {
	return h.mutate(c, func(ctx context.Context, actor slot.Actor, id int) (slot.Slot, error) {
		return h.Slots.Release(ctx, actor, id)
	})
}

// UserStatus handles GET /user-slot-status.
func (h *SlotHandler) UserStatus(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	s, held, err := h.Slots.ActiveClaim(ctx, actor)
	if err != nil {
		return h.fail(c, err)
	}
	if !held {
		return c.JSON(http.StatusOK, echo.Map{"status": "none"})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "active", "slot": s.Record()})
}

// Hardware handles POST /slots/update-from-hardware.  The body uses the same
// format as the MQTT and SQS feeds.
func (h *SlotHandler) Hardware(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxReportBytes))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	rep, err := sensor.ParseReport(body, 0)
	if err != nil {
		return h.fail(c, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	s, err := h.Slots.ReportOccupancy(ctx, rep.SlotID, rep.Occupied)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, s.Record())
}

type slotOp func(ctx context.Context, actor slot.Actor, id int) (slot.Slot, error)

// mutate runs the {slot_id}-only transitions.
func (h *SlotHandler) mutate(c echo.Context, op slotOp) error {
	actor, ok := actorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req slotReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.SlotID <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "slot_id must be a positive integer"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	s, err := op(ctx, actor, req.SlotID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, s.Record())
}

// actorFrom converts the identity stored by JWTAuth.
func actorFrom(c echo.Context) (slot.Actor, bool) {
	id, ok := middleware.Identity(c)
	if !ok || id.UserID == "" {
		return slot.Actor{}, false
	}
	return slot.Actor{UserID: id.UserID, Role: slot.Role(id.Role)}, true
}

// fail maps manager errors onto HTTP statuses.  The message of a classified
// error is safe to show; anything else is logged and hidden.
func (h *SlotHandler) fail(c echo.Context, err error) error {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.Log.Error("slot request failed",
			"method", c.Request().Method,
			"path", c.Path(),
			"error", err,
		)
		return c.JSON(status, echo.Map{"error": "internal error"})
	}
	return c.JSON(status, echo.Map{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, slot.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, slot.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, slot.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, slot.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, slot.ErrConflict):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
