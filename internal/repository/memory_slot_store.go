package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/parking-slot-reservation/internal/slot"
)

// MemorySlotStore keeps slots in process memory.  It is used by tests and by
// STORE_BACKEND=memory for single-instance demos.  Safe for concurrent use.
type MemorySlotStore struct {
	mu    sync.Mutex
	slots map[int]slot.Slot
	now   func() time.Time
}

// NewMemorySlotStore returns a store holding a free slot for each id.
func NewMemorySlotStore(ids ...int) *MemorySlotStore {
	m := &MemorySlotStore{slots: make(map[int]slot.Slot), now: func() time.Time { return time.Now().UTC() }}
	m.EnsureFree(context.Background(), ids)
	return m
}

func (m *MemorySlotStore) List(ctx context.Context) ([]slot.Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]slot.Slot, 0, len(m.slots))
	for _, s := range m.slots {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemorySlotStore) Get(ctx context.Context, id int) (slot.Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[id]
	if !ok {
		return slot.Slot{}, fmt.Errorf("%w: slot %d", slot.ErrNotFound, id)
	}
	return s, nil
}

func (m *MemorySlotStore) FindClaimByOwner(ctx context.Context, owner string) (slot.Slot, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var (
		found slot.Slot
		ok    bool
	)
	for _, s := range m.slots {
		if s.Claimed() && s.Owner == owner && (!ok || s.ID < found.ID) {
			found, ok = s, true
		}
	}
	return found, ok, nil
}

func (m *MemorySlotStore) CompareAndSwap(ctx context.Context, expected uint64, next slot.Slot) (slot.Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.slots[next.ID]
	if !ok {
		return slot.Slot{}, fmt.Errorf("%w: slot %d", slot.ErrNotFound, next.ID)
	}
	if cur.Version != expected {
		return slot.Slot{}, slot.ErrStale
	}
	next.Version = expected + 1
	next.CreatedAt = cur.CreatedAt
	next.UpdatedAt = m.now()
	m.slots[next.ID] = next
	return next, nil
}

// EnsureFree adds free slots for ids not present yet and reports how many
// were added.
func (m *MemorySlotStore) EnsureFree(ctx context.Context, ids []int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	added := 0
	now := m.now()
	for _, id := range ids {
		if _, ok := m.slots[id]; ok {
			continue
		}
		m.slots[id] = slot.Slot{ID: id, CreatedAt: now, UpdatedAt: now}
		added++
	}
	return added, nil
}
