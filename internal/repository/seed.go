package repository

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/iliyamo/parking-slot-reservation/internal/logging"
)

//go:embed seed.default.yaml
var defaultSeed []byte

// Seed is the provisioning fixture: the bays that exist and the accounts to
// create on an empty database.
type Seed struct {
	Slots []int      `yaml:"slots"`
	Users []SeedUser `yaml:"users"`
}

type SeedUser struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"`
}

// SlotSeeder adds missing free slots.  SlotRepo and MemorySlotStore
// implement it.
type SlotSeeder interface {
	EnsureFree(ctx context.Context, ids []int) (int, error)
}

// LoadSeed parses the fixture at path, or the built-in fixture when path is
// empty.  ${VAR} references are expanded from the environment.
func LoadSeed(path string) (Seed, error) {
	raw := defaultSeed
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Seed{}, fmt.Errorf("read seed file: %w", err)
		}
		raw = b
	}
	return ParseSeed(raw)
}

// ParseSeed decodes and validates a fixture.
func ParseSeed(raw []byte) (Seed, error) {
	var s Seed
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(raw))), &s); err != nil {
		return Seed{}, fmt.Errorf("parse seed: %w", err)
	}
	seen := map[int]bool{}
	for _, id := range s.Slots {
		if id <= 0 {
			return Seed{}, fmt.Errorf("parse seed: slot id %d must be positive", id)
		}
		if seen[id] {
			return Seed{}, fmt.Errorf("parse seed: duplicate slot id %d", id)
		}
		seen[id] = true
	}
	for i, u := range s.Users {
		if strings.TrimSpace(u.Username) == "" {
			return Seed{}, fmt.Errorf("parse seed: user %d has no username", i)
		}
		switch u.Role {
		case "":
			s.Users[i].Role = "user"
		case "user", "admin":
		default:
			return Seed{}, fmt.Errorf("parse seed: user %s has unknown role %q", u.Username, u.Role)
		}
	}
	return s, nil
}

// Apply inserts missing slots and accounts.  Running it twice is harmless.
func (s Seed) Apply(ctx context.Context, slots SlotSeeder, users UserStore, bcryptCost int, log *logging.Logger) error {
	added, err := slots.EnsureFree(ctx, s.Slots)
	if err != nil {
		return fmt.Errorf("seed slots: %w", err)
	}
	log.Info("slots seeded", "requested", len(s.Slots), "added", added)

	for _, u := range s.Users {
		if u.Password == "" {
			log.Warn("seed user skipped: empty password", "username", u.Username)
			continue
		}
		_, err := users.Create(ctx, u.Username, u.Password, u.Role, bcryptCost)
		switch {
		case errors.Is(err, ErrUsernameExists):
			log.Info("seed user already exists", "username", u.Username)
		case err != nil:
			return fmt.Errorf("seed user %s: %w", u.Username, err)
		default:
			log.Info("seed user created", "username", u.Username, "role", u.Role)
		}
	}
	return nil
}
