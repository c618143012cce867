package slot

import "fmt"

// Action names one of the five lifecycle transitions.
type Action string

const (
	ActionReserve  Action = "reserve"
	ActionPay      Action = "pay"
	ActionUnlock   Action = "unlock"
	ActionRelease  Action = "release"
	ActionHardware Action = "hardware"
)

// Role is the role carried by an actor.
type Role string

const (
	RoleUser   Role = "user"
	RoleAdmin  Role = "admin"
	RoleSensor Role = "sensor"
)

// Actor is whoever asks for a transition.  Sensors have no UserID.
type Actor struct {
	UserID string
	Role   Role
}

// Sensor is the actor used for hardware occupancy reports.
var Sensor = Actor{Role: RoleSensor}

// Command is one requested transition.
type Command struct {
	Action        Action
	Actor         Actor
	PaymentMethod string // Pay only
	Occupied      bool   // Hardware only
}

// Policy holds the deployment-dependent knobs of the transition table.
type Policy struct {
	// OpenPayment lets any authenticated user confirm payment of a pending
	// slot instead of only the user who reserved it.
	OpenPayment bool
}

// Apply validates cmd against cur and returns the next state.  It has no side
// effects; the caller decides whether and how to persist the result.  The
// one-claim-per-user rule spans slots and is checked by the Manager.
func Apply(cur Slot, cmd Command, p Policy) (Slot, error) {
	next := cur
	switch cmd.Action {
	case ActionReserve:
		if cmd.Actor.UserID == "" {
			return cur, fmt.Errorf("%w: reserve requires a user", ErrUnauthorized)
		}
		if cur.State != Free {
			return cur, fmt.Errorf("%w: slot %d is already reserved", ErrConflict, cur.ID)
		}
		if cur.SensorOccupied {
			return cur, fmt.Errorf("%w: slot %d is physically occupied", ErrConflict, cur.ID)
		}
		next.State = Pending
		next.Owner = cmd.Actor.UserID
		next.PaymentMethod = ""

	case ActionPay:
		if cmd.Actor.UserID == "" {
			return cur, fmt.Errorf("%w: payment requires a user", ErrUnauthorized)
		}
		switch cur.State {
		case Free:
			return cur, fmt.Errorf("%w: slot %d is not reserved", ErrConflict, cur.ID)
		case Occupied:
			return cur, fmt.Errorf("%w: slot %d is already paid", ErrConflict, cur.ID)
		}
		if !p.OpenPayment && cur.Owner != cmd.Actor.UserID {
			return cur, fmt.Errorf("%w: slot %d is reserved by another user", ErrForbidden, cur.ID)
		}
		next.State = Occupied
		next.PaymentMethod = cmd.PaymentMethod

	case ActionUnlock:
		if cmd.Actor.UserID == "" {
			return cur, fmt.Errorf("%w: unlock requires a user", ErrUnauthorized)
		}
		if cur.State != Occupied {
			return cur, fmt.Errorf("%w: slot %d is not paid", ErrConflict, cur.ID)
		}
		if cur.Owner != cmd.Actor.UserID {
			return cur, fmt.Errorf("%w: slot %d was paid by another user", ErrForbidden, cur.ID)
		}
		next = freed(cur)

	case ActionRelease:
		if cmd.Actor.Role != RoleAdmin {
			return cur, fmt.Errorf("%w: only admins can release slots", ErrForbidden)
		}
		next = freed(cur)

	case ActionHardware:
		if cmd.Actor.Role != RoleSensor {
			return cur, fmt.Errorf("%w: occupancy reports come from sensors", ErrForbidden)
		}
		if !cmd.Occupied {
			// Car left: always wins, stale claims included.
			next = freed(cur)
			break
		}
		// A car on a claimed slot is expected; only an unclaimed bay changes.
		if cur.State == Free {
			next.SensorOccupied = true
		}

	default:
		return cur, fmt.Errorf("%w: unknown action %q", ErrValidation, cmd.Action)
	}
	return next, nil
}

// freed returns cur with every claim field cleared.
func freed(cur Slot) Slot {
	next := cur
	next.State = Free
	next.Owner = ""
	next.PaymentMethod = ""
	next.SensorOccupied = false
	return next
}
