// Package persist stores the per-character, per-world storage record.
package persist

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/gravitas-games/storagehub/internal/item"
	"github.com/gravitas-games/storagehub/internal/storage"
)

// CurrentVersion is written into every saved record.
const CurrentVersion = 1

// ErrInvalidKey is returned for keys with an empty character or world.
var ErrInvalidKey = errors.New("invalid record key")

// Key identifies one record.
type Key struct {
	CharacterID string
	WorldID     string
}

// Validate checks that both halves of the key are present.
func (k Key) Validate() error {
	if strings.TrimSpace(k.CharacterID) == "" || strings.TrimSpace(k.WorldID) == "" {
		return fmt.Errorf("%w: character=%q world=%q", ErrInvalidKey, k.CharacterID, k.WorldID)
	}
	return nil
}

func (k Key) String() string {
	return k.CharacterID + "@" + k.WorldID
}

// Record is everything the storage core remembers about a character in one
// world.
type Record struct {
	Version              int                  `json:"version" yaml:"version"`
	Tier                 int                  `json:"tier" yaml:"tier"`
	RegisteredChests     []storage.ChestEntry `json:"registeredChests" yaml:"registered_chests"`
	RememberedStations   []int                `json:"rememberedStations" yaml:"remembered_stations"`
	StationMemoryEnabled bool                 `json:"stationMemoryEnabled" yaml:"station_memory_enabled"`
	SpecialUnlocks       []string             `json:"specialUnlocks" yaml:"special_unlocks"`
	Favorites            []int                `json:"favorites" yaml:"favorites"`
	SortMode             string               `json:"sortMode" yaml:"sort_mode"`
	CategoryFilter       string               `json:"categoryFilter" yaml:"category_filter"`
}

// NewRecord returns the record of a character that has never been saved.
// Decoders start from it so absent fields keep these values.
func NewRecord() *Record {
	return &Record{
		Version:              CurrentVersion,
		StationMemoryEnabled: true,
		SortMode:             storage.SortName,
		CategoryFilter:       storage.FilterAll,
	}
}

// Normalize repairs a decoded record in place.
func (r *Record) Normalize() {
	if r.Version <= 0 {
		r.Version = CurrentVersion
	}
	if r.Tier < 0 {
		r.Tier = 0
	}

	// later entries win so a re-saved position keeps its latest flag
	seen := make(map[storage.Position]int, len(r.RegisteredChests))
	chests := r.RegisteredChests[:0]
	for _, c := range r.RegisteredChests {
		p := storage.Position{X: c.X, Y: c.Y}
		if i, ok := seen[p]; ok {
			chests[i].Enabled = c.Enabled
			continue
		}
		seen[p] = len(chests)
		chests = append(chests, c)
	}
	if len(chests) == 0 {
		chests = nil
	}
	r.RegisteredChests = chests

	r.RememberedStations = uniqueIDs(r.RememberedStations, 0)
	r.Favorites = uniqueIDs(r.Favorites, 1)

	r.SpecialUnlocks = uniqueNames(r.SpecialUnlocks)

	switch r.SortMode {
	case storage.SortName, storage.SortCount, storage.SortID, storage.SortRarity, storage.SortFavorites:
	default:
		r.SortMode = storage.SortName
	}
	if r.CategoryFilter != storage.FilterAll {
		if _, ok := item.ParseFlag(r.CategoryFilter); !ok {
			r.CategoryFilter = storage.FilterAll
		}
	}
}

func uniqueIDs(ids []int, min int) []int {
	if len(ids) == 0 {
		return nil
	}
	set := make(map[int]bool, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if id < min || set[id] {
			continue
		}
		set[id] = true
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

// uniqueNames lower-cases, trims and dedupes unlock names.
func uniqueNames(names []string) []string {
	if len(names) == 0 {
		return nil
	}
	set := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" || set[n] {
			continue
		}
		set[n] = true
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// HasUnlock reports whether name was unlocked.
func (r *Record) HasUnlock(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, u := range r.SpecialUnlocks {
		if u == name {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	c := *r
	c.RegisteredChests = append([]storage.ChestEntry(nil), r.RegisteredChests...)
	c.RememberedStations = append([]int(nil), r.RememberedStations...)
	c.SpecialUnlocks = append([]string(nil), r.SpecialUnlocks...)
	c.Favorites = append([]int(nil), r.Favorites...)
	return &c
}
