package slot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/parking-slot-reservation/internal/logging"
)

// Store is the persistence contract of the manager.  Implementations must
// make CompareAndSwap atomic: the write happens only if the stored version
// still equals expected, otherwise ErrStale is returned and nothing changes.
type Store interface {
	List(ctx context.Context) ([]Slot, error)
	Get(ctx context.Context, id int) (Slot, error)
	// FindClaimByOwner returns the slot on which owner holds a claim, if any.
	FindClaimByOwner(ctx context.Context, owner string) (Slot, bool, error)
	// CompareAndSwap stores next if the current version equals expected and
	// returns the stored slot with its new version and updated_at.
	CompareAndSwap(ctx context.Context, expected uint64, next Slot) (Slot, error)
}

// Publisher receives a Change after every successful transition.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
}

// Event topics, one per action.
const (
	TopicReserved  = "parking.slot.reserved"
	TopicPaid      = "parking.slot.paid"
	TopicUnlocked  = "parking.slot.unlocked"
	TopicReleased  = "parking.slot.released"
	TopicOccupancy = "parking.slot.occupancy"
)

var topics = map[Action]string{
	ActionReserve:  TopicReserved,
	ActionPay:      TopicPaid,
	ActionUnlock:   TopicUnlocked,
	ActionRelease:  TopicReleased,
	ActionHardware: TopicOccupancy,
}

// Change describes one applied transition.
type Change struct {
	EventID    string `json:"event_id"`
	Topic      string `json:"topic"`
	Action     Action `json:"action"`
	SlotID     int    `json:"slot_id"`
	ActorID    string `json:"actor_id,omitempty"`
	ActorRole  Role   `json:"actor_role"`
	From       string `json:"from"`
	To         string `json:"to"`
	Slot       Record `json:"slot"`
	OccurredAt string `json:"occurred_at"`
}

// Manager validates and applies slot transitions.
type Manager struct {
	store  Store
	pub    Publisher
	policy Policy
	log    *logging.Logger
}

// NewManager wires a Manager.  pub may be nil.
func NewManager(store Store, pub Publisher, policy Policy, log *logging.Logger) *Manager {
	if store == nil {
		panic("nil store passed to NewManager")
	}
	if log == nil {
		log = logging.Default()
	}
	return &Manager{store: store, pub: pub, policy: policy, log: log.With("component", "slot-manager")}
}

// List returns every slot ordered by slot_id.
func (m *Manager) List(ctx context.Context) ([]Slot, error) {
	slots, err := m.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	return slots, nil
}

// Get returns a single slot.
func (m *Manager) Get(ctx context.Context, id int) (Slot, error) {
	if id <= 0 {
		return Slot{}, fmt.Errorf("%w: slot_id must be a positive integer", ErrValidation)
	}
	return m.store.Get(ctx, id)
}

// ActiveClaim returns the slot the actor currently holds, if any.
func (m *Manager) ActiveClaim(ctx context.Context, actor Actor) (Slot, bool, error) {
	if actor.UserID == "" {
		return Slot{}, false, ErrUnauthorized
	}
	return m.store.FindClaimByOwner(ctx, actor.UserID)
}

// Reserve claims a free slot for actor.
func (m *Manager) Reserve(ctx context.Context, actor Actor, id int) (Slot, error) {
	if actor.UserID == "" {
		return Slot{}, ErrUnauthorized
	}
	held, ok, err := m.store.FindClaimByOwner(ctx, actor.UserID)
	if err != nil {
		return Slot{}, fmt.Errorf("lookup claim: %w", err)
	}
	if ok {
		return Slot{}, fmt.Errorf("%w: you already hold slot %d", ErrConflict, held.ID)
	}
	return m.apply(ctx, id, Command{Action: ActionReserve, Actor: actor})
}

// Pay marks a pending reservation as paid.
func (m *Manager) Pay(ctx context.Context, actor Actor, id int, method string) (Slot, error) {
	return m.apply(ctx, id, Command{Action: ActionPay, Actor: actor, PaymentMethod: method})
}

// Unlock ends a paid reservation and frees the slot.
func (m *Manager) Unlock(ctx context.Context, actor Actor, id int) (Slot, error) {
	return m.apply(ctx, id, Command{Action: ActionUnlock, Actor: actor})
}

// Release force-frees a slot.  Admin only.
func (m *Manager) Release(ctx context.Context, actor Actor, id int) (Slot, error) {
	return m.apply(ctx, id, Command{Action: ActionRelease, Actor: actor})
}

// ReportOccupancy applies a hardware occupancy reading.
func (m *Manager) ReportOccupancy(ctx context.Context, id int, occupied bool) (Slot, error) {
	return m.apply(ctx, id, Command{Action: ActionHardware, Actor: Sensor, Occupied: occupied})
}

// apply is read, validate, compare-and-swap.  Losing the swap is reported as
// a conflict and never retried.
func (m *Manager) apply(ctx context.Context, id int, cmd Command) (Slot, error) {
	if id <= 0 {
		return Slot{}, fmt.Errorf("%w: slot_id must be a positive integer", ErrValidation)
	}
	cur, err := m.store.Get(ctx, id)
	if err != nil {
		return Slot{}, err
	}
	next, err := Apply(cur, cmd, m.policy)
	if err != nil {
		return Slot{}, err
	}
	if next.sameState(cur) {
		return cur, nil
	}
	saved, err := m.store.CompareAndSwap(ctx, cur.Version, next)
	if err != nil {
		if errors.Is(err, ErrStale) {
			return Slot{}, fmt.Errorf("%w: slot %d was modified concurrently", ErrConflict, id)
		}
		return Slot{}, fmt.Errorf("%s slot %d: %w", cmd.Action, id, err)
	}
	m.log.Info("slot transition",
		"action", string(cmd.Action),
		"slot_id", id,
		"actor", cmd.Actor.UserID,
		"role", string(cmd.Actor.Role),
		"from", cur.State.String(),
		"to", saved.State.String(),
	)
	m.publish(ctx, cmd, cur, saved)
	return saved, nil
}

func (m *Manager) publish(ctx context.Context, cmd Command, from, to Slot) {
	if m.pub == nil {
		return
	}
	topic := topics[cmd.Action]
	ev := Change{
		EventID:    uuid.NewString(),
		Topic:      topic,
		Action:     cmd.Action,
		SlotID:     to.ID,
		ActorID:    cmd.Actor.UserID,
		ActorRole:  cmd.Actor.Role,
		From:       from.State.String(),
		To:         to.State.String(),
		Slot:       to.Record(),
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := m.pub.Publish(ctx, topic, ev); err != nil {
		m.log.Warn("publish slot event failed", "topic", topic, "slot_id", to.ID, "error", err)
	}
}
