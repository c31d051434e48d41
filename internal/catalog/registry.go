// Package catalog stores item metadata keyed by numeric item id. The storage
// provider consults it to turn bare live slots into fully described
// snapshots; the catalog itself never holds item quantities.
package catalog

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/gravitas-games/storagehub/internal/item"
)

// DefaultMaxStack is used for items the catalog does not know about.
const DefaultMaxStack = 9999

// ItemDetails captures metadata about an item that is useful for display and
// stacking but not required to identify a stack.
type ItemDetails struct {
	ID       int        `json:"id" yaml:"id"`
	Name     string     `json:"name,omitempty" yaml:"name,omitempty"`
	MaxStack int        `json:"maxStack,omitempty" yaml:"max_stack,omitempty"`
	Rarity   int        `json:"rarity,omitempty" yaml:"rarity,omitempty"`
	Flags    item.Flags `json:"flags,omitempty" yaml:"-"`
	// Categories is the YAML-friendly spelling of Flags used by fixtures.
	Categories []string `json:"-" yaml:"categories,omitempty"`
}

// Registry stores item details keyed by item id.
type Registry struct {
	mu     sync.RWMutex
	items  map[int]ItemDetails
	byName map[string]int
}

// NewRegistry constructs a registry and optionally seeds it with details.
func NewRegistry(details ...ItemDetails) *Registry {
	r := &Registry{
		items:  make(map[int]ItemDetails, len(details)),
		byName: make(map[string]int, len(details)),
	}
	for _, d := range details {
		_ = r.RegisterDetails(d) // ignore invalid seeds
	}
	return r
}

// RegisterDetails inserts or updates metadata for an item. The id must be
// positive.
func (r *Registry) RegisterDetails(details ItemDetails) error {
	if details.ID <= 0 {
		return errors.New("catalog: item id must be positive")
	}
	if details.MaxStack < 0 {
		return errors.New("catalog: max stack cannot be negative")
	}
	for _, name := range details.Categories {
		if f, ok := item.ParseFlag(strings.ToLower(name)); ok {
			details.Flags |= f
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, exists := r.items[details.ID]; exists && old.Name != "" {
		delete(r.byName, strings.ToLower(old.Name))
	}
	r.items[details.ID] = details
	if details.Name != "" {
		r.byName[strings.ToLower(details.Name)] = details.ID
	}
	return nil
}

// Lookup returns details for the provided id, if present.
func (r *Registry) Lookup(id int) (ItemDetails, bool) {
	if r == nil {
		return ItemDetails{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.items[id]
	return d, ok
}

// LookupName resolves an item id by case-insensitive name.
func (r *Registry) LookupName(name string) (int, bool) {
	if r == nil {
		return 0, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byName[strings.ToLower(strings.TrimSpace(name))]
	return id, ok
}

// MaxStack returns the per-slot limit for an item.
func (r *Registry) MaxStack(id int) int {
	if d, ok := r.Lookup(id); ok && d.MaxStack > 0 {
		return d.MaxStack
	}
	return DefaultMaxStack
}

// Name returns the display name for an item, or an empty string.
func (r *Registry) Name(id int) string {
	d, _ := r.Lookup(id)
	return d.Name
}

// Describe builds a snapshot of a live slot located at (source, slot).
func (r *Registry) Describe(s item.Slot, source, slot int) item.Snapshot {
	snap := item.Snapshot{
		ItemID:   s.ItemID,
		Stack:    s.Stack,
		Prefix:   s.Prefix,
		MaxStack: DefaultMaxStack,
		Source:   source,
		Slot:     slot,
	}
	if d, ok := r.Lookup(s.ItemID); ok {
		snap.Name = d.Name
		snap.Rarity = d.Rarity
		snap.Flags = d.Flags
		if d.MaxStack > 0 {
			snap.MaxStack = d.MaxStack
		}
	}
	return snap
}

// Export copies registry contents into a slice sorted by id.
func (r *Registry) Export() []ItemDetails {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.items) == 0 {
		return nil
	}
	out := make([]ItemDetails, 0, len(r.items))
	for _, d := range r.items {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
