package repository

import (
	"context"
	"sync"
	"time"

	"github.com/iliyamo/parking-slot-reservation/internal/utils"
)

// MemoryUserStore is the STORE_BACKEND=memory counterpart of UserRepo.
type MemoryUserStore struct {
	mu     sync.RWMutex
	nextID uint64
	byID   map[uint64]User
	byName map[string]uint64
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{byID: map[uint64]User{}, byName: map[string]uint64{}}
}

func (m *MemoryUserStore) Create(ctx context.Context, username, password, role string, cost int) (uint64, error) {
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	name := NormalizeUsername(username)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byName[name]; ok {
		return 0, ErrUsernameExists
	}
	m.nextID++
	now := time.Now().UTC()
	m.byID[m.nextID] = User{ID: m.nextID, Username: name, PasswordHash: hash, Role: role, CreatedAt: now, UpdatedAt: now}
	m.byName[name] = m.nextID
	return m.nextID, nil
}

func (m *MemoryUserStore) GetByUsername(ctx context.Context, username string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byName[NormalizeUsername(username)]
	if !ok {
		return User{}, ErrNotFound
	}
	return m.byID[id], nil
}

func (m *MemoryUserStore) GetByID(ctx context.Context, id uint64) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.byID[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

type memToken struct {
	userID  uint64
	expires time.Time
	revoked bool
}

// MemoryTokenStore is the STORE_BACKEND=memory counterpart of TokenRepo.
type MemoryTokenStore struct {
	mu     sync.Mutex
	tokens map[string]memToken
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{tokens: map[string]memToken{}}
}

func (m *MemoryTokenStore) StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[tokenHash] = memToken{userID: userID, expires: exp.UTC()}
	return nil
}

func (m *MemoryTokenStore) ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[tokenHash]
	if !ok || t.revoked || time.Now().UTC().After(t.expires) {
		return 0, ErrTokenInvalid
	}
	return t.userID, nil
}

func (m *MemoryTokenStore) Consume(ctx context.Context, tokenHash string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[tokenHash]
	if !ok || t.revoked || time.Now().UTC().After(t.expires) {
		return 0, ErrTokenInvalid
	}
	t.revoked = true
	m.tokens[tokenHash] = t
	return t.userID, nil
}

func (m *MemoryTokenStore) RevokeByHash(ctx context.Context, tokenHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tokens[tokenHash]; ok {
		t.revoked = true
		m.tokens[tokenHash] = t
	}
	return nil
}

func (m *MemoryTokenStore) RevokeAllForUser(ctx context.Context, userID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for h, t := range m.tokens {
		if t.userID == userID {
			t.revoked = true
			m.tokens[h] = t
		}
	}
	return nil
}
