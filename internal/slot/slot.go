// Package slot implements the parking slot lifecycle: the tagged slot state,
// the transition table that moves a slot between states, and the Manager that
// applies a transition to the store as a single compare-and-swap.
package slot

import (
	"fmt"
	"time"
)

// State is the claim state of a slot.
type State int

const (
	// Free means nobody holds a claim on the slot.
	Free State = iota
	// Pending means a user reserved the slot and has not paid yet.
	Pending
	// Occupied means the reservation has been paid.
	Occupied
)

func (s State) String() string {
	switch s {
	case Free:
		return "free"
	case Pending:
		return "pending"
	case Occupied:
		return "occupied"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Gate and light values rendered at the boundary.
const (
	GateOpen   = "open"
	GateClosed = "closed"

	LightGreen  = "green"
	LightYellow = "yellow"
	LightRed    = "red"
)

// Slot is the internal representation of one parking bay.  Owner and
// PaymentMethod are only meaningful for Pending/Occupied; SensorOccupied is
// only meaningful for Free and marks a bay with a car in it but no claim.
type Slot struct {
	ID             int
	State          State
	Owner          string
	PaymentMethod  string
	SensorOccupied bool
	Version        uint64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Claimed reports whether the slot carries an active user claim.
func (s Slot) Claimed() bool { return s.State == Pending || s.State == Occupied }

// sameState compares everything a transition may change.  Version and the
// timestamps are bookkeeping and are ignored.
func (s Slot) sameState(o Slot) bool {
	return s.ID == o.ID &&
		s.State == o.State &&
		s.Owner == o.Owner &&
		s.PaymentMethod == o.PaymentMethod &&
		s.SensorOccupied == o.SensorOccupied
}

// Record is the flat, wire- and storage-compatible rendering of a slot.
type Record struct {
	SlotID        int       `json:"slot_id"`
	IsAvailable   bool      `json:"is_available"`
	IsReserved    bool      `json:"is_reserved"`
	IsPaid        bool      `json:"is_paid"`
	GateStatus    string    `json:"gate_status"`
	LightStatus   string    `json:"light_status"`
	ReservedBy    *string   `json:"reserved_by"`
	PaymentMethod *string   `json:"payment_method"`
	Version       uint64    `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Record derives the flags and status strings from the tagged state.
func (s Slot) Record() Record {
	r := Record{
		SlotID:    s.ID,
		Version:   s.Version,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
	switch s.State {
	case Free:
		r.IsAvailable = !s.SensorOccupied
		r.GateStatus = GateOpen
		r.LightStatus = LightGreen
		if s.SensorOccupied {
			r.LightStatus = LightRed
		}
	case Pending:
		r.IsReserved = true
		r.GateStatus = GateClosed
		r.LightStatus = LightYellow
		r.ReservedBy = strPtr(s.Owner)
	case Occupied:
		r.IsReserved = true
		r.IsPaid = true
		r.GateStatus = GateClosed
		r.LightStatus = LightRed
		r.ReservedBy = strPtr(s.Owner)
		if s.PaymentMethod != "" {
			r.PaymentMethod = strPtr(s.PaymentMethod)
		}
	}
	return r
}

// FromRecord rebuilds the tagged state from stored flags.  Flag combinations
// that break the slot invariants are rejected rather than guessed at.
func FromRecord(r Record) (Slot, error) {
	s := Slot{
		ID:        r.SlotID,
		Version:   r.Version,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	owner := ""
	if r.ReservedBy != nil {
		owner = *r.ReservedBy
	}
	switch {
	case r.IsAvailable:
		if r.IsReserved || r.IsPaid || owner != "" {
			return Slot{}, fmt.Errorf("slot %d: available slot carries a claim", r.SlotID)
		}
		s.State = Free
	case r.IsPaid:
		if !r.IsReserved || owner == "" {
			return Slot{}, fmt.Errorf("slot %d: paid slot without reservation", r.SlotID)
		}
		s.State = Occupied
		s.Owner = owner
		if r.PaymentMethod != nil {
			s.PaymentMethod = *r.PaymentMethod
		}
	case r.IsReserved:
		if owner == "" {
			return Slot{}, fmt.Errorf("slot %d: reserved slot without owner", r.SlotID)
		}
		s.State = Pending
		s.Owner = owner
	default:
		if owner != "" {
			return Slot{}, fmt.Errorf("slot %d: unclaimed slot has reserved_by set", r.SlotID)
		}
		s.State = Free
		s.SensorOccupied = true
	}
	return s, nil
}

func strPtr(s string) *string { return &s }
