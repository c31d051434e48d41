package session

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/gravitas-games/storagehub/internal/config"
	"github.com/gravitas-games/storagehub/internal/events"
	"github.com/gravitas-games/storagehub/internal/logger"
	"github.com/gravitas-games/storagehub/internal/persist"
	"github.com/gravitas-games/storagehub/internal/storage"
)

// Profile is the loaded record of one character. Every mutation is saved
// immediately.
type Profile struct {
	key   persist.Key
	rec   *persist.Record
	store persist.Store
	bus   events.Bus
	log   logger.Logger

	lastSaved time.Time
	saveErr   error
}

func newProfile(key persist.Key, rec *persist.Record, store persist.Store, bus events.Bus, log logger.Logger) *Profile {
	rec.Normalize()
	return &Profile{key: key, rec: rec, store: store, bus: bus, log: log}
}

// save writes the record after a mutation.
func (p *Profile) save() error {
	return p.Flush(context.Background())
}

// Flush writes the record. Failures are logged and kept for LastError; the
// in-memory state stays authoritative.
func (p *Profile) Flush(ctx context.Context) error {
	if p.store == nil {
		return nil
	}
	if err := p.store.Save(ctx, p.key, p.rec); err != nil {
		p.saveErr = fmt.Errorf("save %s: %w", p.key, err)
		p.log.Errorf("profile: %v", p.saveErr)
		return p.saveErr
	}
	p.saveErr = nil
	p.lastSaved = time.Now()
	return nil
}

// Record returns a copy of the current record.
func (p *Profile) Record() *persist.Record { return p.rec.Clone() }

// LastError returns the most recent save failure, if the last save failed.
func (p *Profile) LastError() error { return p.saveErr }

// LastSaved returns when the record was last written.
func (p *Profile) LastSaved() time.Time { return p.lastSaved }

func (p *Profile) Tier() int { return p.rec.Tier }

// SetTier stores a tier clamped into the configured ladder.
func (p *Profile) SetTier(cfg *config.Config, tier int) int {
	if tier < 0 {
		tier = 0
	}
	if top := cfg.MaxTier(); tier > top {
		tier = top
	}
	if tier != p.rec.Tier {
		p.rec.Tier = tier
		p.save()
	}
	return tier
}

func (p *Profile) StationMemoryEnabled() bool { return p.rec.StationMemoryEnabled }

// SetStationMemory toggles whether newly seen stations are remembered.
func (p *Profile) SetStationMemory(enabled bool) {
	if p.rec.StationMemoryEnabled != enabled {
		p.rec.StationMemoryEnabled = enabled
		p.save()
	}
}

func (p *Profile) RememberedStations() []int {
	return append([]int(nil), p.rec.RememberedStations...)
}

// RememberStations adds station types to the remembered set and returns how
// many were new.
func (p *Profile) RememberStations(ids []int) int {
	known := make(map[int]bool, len(p.rec.RememberedStations))
	for _, id := range p.rec.RememberedStations {
		known[id] = true
	}
	var fresh []int
	for _, id := range ids {
		if id < 0 || known[id] {
			continue
		}
		known[id] = true
		fresh = append(fresh, id)
	}
	if len(fresh) == 0 {
		return 0
	}
	p.rec.RememberedStations = append(p.rec.RememberedStations, fresh...)
	sort.Ints(p.rec.RememberedStations)
	p.save()
	for _, id := range fresh {
		p.bus.Publish(events.Event{Type: events.StationRemembered, ItemID: id})
	}
	return len(fresh)
}

// ForgetStations clears the remembered set.
func (p *Profile) ForgetStations() {
	if len(p.rec.RememberedStations) > 0 {
		p.rec.RememberedStations = nil
		p.save()
	}
}

func (p *Profile) SpecialUnlocked(name string) bool { return p.rec.HasUnlock(name) }

// Unlock records a special unlock. It returns false when it was already set.
func (p *Profile) Unlock(name string) bool {
	if name == "" || p.rec.HasUnlock(name) {
		return false
	}
	p.rec.SpecialUnlocks = append(p.rec.SpecialUnlocks, name)
	p.rec.Normalize()
	p.save()
	return true
}

// SaveChests implements storage.RegistryStore.
func (p *Profile) SaveChests(entries []storage.ChestEntry) error {
	p.rec.RegisteredChests = append([]storage.ChestEntry(nil), entries...)
	return p.save()
}

// Favorites returns the favorite item ids as a set.
func (p *Profile) Favorites() map[int]bool {
	out := make(map[int]bool, len(p.rec.Favorites))
	for _, id := range p.rec.Favorites {
		out[id] = true
	}
	return out
}

// ToggleFavorite flips itemID and returns whether it is now a favorite.
func (p *Profile) ToggleFavorite(itemID int) bool {
	if itemID <= 0 {
		return false
	}
	for i, id := range p.rec.Favorites {
		if id == itemID {
			p.rec.Favorites = append(p.rec.Favorites[:i], p.rec.Favorites[i+1:]...)
			p.save()
			return false
		}
	}
	p.rec.Favorites = append(p.rec.Favorites, itemID)
	sort.Ints(p.rec.Favorites)
	p.save()
	return true
}

// View returns the persisted sort mode and category filter.
func (p *Profile) View() (sortMode, category string) {
	return p.rec.SortMode, p.rec.CategoryFilter
}

// SetView stores a sort mode and category filter. Unknown values fall back
// to the defaults.
func (p *Profile) SetView(sortMode, category string) {
	p.rec.SortMode, p.rec.CategoryFilter = sortMode, category
	p.rec.Normalize()
	p.save()
}
