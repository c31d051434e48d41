package storage

import (
	"sort"

	"github.com/gravitas-games/storagehub/internal/logger"
)

// Position is a container's tile origin.
type Position struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

// ChestEntry is one persisted registration.
type ChestEntry struct {
	X       int  `json:"x" yaml:"x"`
	Y       int  `json:"y" yaml:"y"`
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// RegistryStore persists registrations. It is called after every change.
type RegistryStore interface {
	SaveChests(entries []ChestEntry) error
}

// ChestRegistry tracks which containers have opted into the unified pool.
// Registration is only ever granted through RegisterChest, which callers
// invoke when the player manually opens a container.
type ChestRegistry struct {
	entries map[Position]bool // position -> enabled
	store   RegistryStore
	log     logger.Logger
}

// NewChestRegistry creates an empty registry. store may be nil.
func NewChestRegistry(store RegistryStore, log logger.Logger) *ChestRegistry {
	return &ChestRegistry{
		entries: make(map[Position]bool),
		store:   store,
		log:     logger.OrNop(log),
	}
}

// Load replaces the registry contents with persisted entries without
// triggering a save.
func (r *ChestRegistry) Load(entries []ChestEntry) {
	r.entries = make(map[Position]bool, len(entries))
	for _, e := range entries {
		r.entries[Position{X: e.X, Y: e.Y}] = e.Enabled
	}
}

func (r *ChestRegistry) persist() {
	if r.store == nil {
		return
	}
	if err := r.store.SaveChests(r.Entries()); err != nil {
		r.log.Errorf("chest registry: failed to persist %d registrations: %v", len(r.entries), err)
	}
}

// RegisterChest adds the container at (x, y). It returns true when the
// position was not registered before.
func (r *ChestRegistry) RegisterChest(x, y int) bool {
	p := Position{X: x, Y: y}
	if _, exists := r.entries[p]; exists {
		return false
	}
	r.entries[p] = true
	r.persist()
	return true
}

// UnregisterChest removes the container at (x, y). It returns true when a
// registration was removed.
func (r *ChestRegistry) UnregisterChest(x, y int) bool {
	p := Position{X: x, Y: y}
	if _, exists := r.entries[p]; !exists {
		return false
	}
	delete(r.entries, p)
	r.persist()
	return true
}

// IsRegistered reports whether (x, y) is registered, enabled or not.
func (r *ChestRegistry) IsRegistered(x, y int) bool {
	_, ok := r.entries[Position{X: x, Y: y}]
	return ok
}

// IsActive reports whether (x, y) is registered and enabled.
func (r *ChestRegistry) IsActive(x, y int) bool {
	return r.entries[Position{X: x, Y: y}]
}

// SetEnabled toggles participation of a registered container. It returns
// false when the position is not registered.
func (r *ChestRegistry) SetEnabled(x, y int, enabled bool) bool {
	p := Position{X: x, Y: y}
	cur, exists := r.entries[p]
	if !exists {
		return false
	}
	if cur != enabled {
		r.entries[p] = enabled
		r.persist()
	}
	return true
}

// GetRegisteredPositions returns every registered position, sorted.
func (r *ChestRegistry) GetRegisteredPositions() []Position {
	return r.positions(false)
}

// ActivePositions returns the enabled positions, sorted.
func (r *ChestRegistry) ActivePositions() []Position {
	return r.positions(true)
}

func (r *ChestRegistry) positions(activeOnly bool) []Position {
	out := make([]Position, 0, len(r.entries))
	for p, enabled := range r.entries {
		if activeOnly && !enabled {
			continue
		}
		out = append(out, p)
	}
	sortPositions(out)
	return out
}

// Entries returns the persisted form of the registry, sorted by position.
func (r *ChestRegistry) Entries() []ChestEntry {
	out := make([]ChestEntry, 0, len(r.entries))
	for _, p := range r.positions(false) {
		out = append(out, ChestEntry{X: p.X, Y: p.Y, Enabled: r.entries[p]})
	}
	return out
}

// Len returns the number of registrations.
func (r *ChestRegistry) Len() int {
	return len(r.entries)
}

// ValidateRegistrations drops every position for which exists reports no
// container (destroyed while the registry was not loaded). It returns the
// number of dropped registrations.
func (r *ChestRegistry) ValidateRegistrations(exists func(x, y int) bool) int {
	if exists == nil {
		return 0
	}
	removed := 0
	for _, p := range r.positions(false) {
		if !exists(p.X, p.Y) {
			delete(r.entries, p)
			removed++
			r.log.Warnf("chest registry: container at (%d,%d) no longer exists, unregistered", p.X, p.Y)
		}
	}
	if removed > 0 {
		r.persist()
	}
	return removed
}

func sortPositions(ps []Position) {
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].Y != ps[j].Y {
			return ps[i].Y < ps[j].Y
		}
		return ps[i].X < ps[j].X
	})
}
