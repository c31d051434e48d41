// Package session owns the storage and crafting state of one character in
// one loaded world. Open it when the world loads and Close it when the world
// unloads; nothing survives between sessions except the persisted record.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gravitas-games/storagehub/internal/catalog"
	"github.com/gravitas-games/storagehub/internal/config"
	"github.com/gravitas-games/storagehub/internal/crafting"
	"github.com/gravitas-games/storagehub/internal/events"
	"github.com/gravitas-games/storagehub/internal/item"
	"github.com/gravitas-games/storagehub/internal/logger"
	"github.com/gravitas-games/storagehub/internal/persist"
	"github.com/gravitas-games/storagehub/internal/recipe"
	"github.com/gravitas-games/storagehub/internal/station"
	"github.com/gravitas-games/storagehub/internal/storage"
	"github.com/gravitas-games/storagehub/pkg/models"
)

var (
	ErrNoChest = errors.New("no container at position")
	ErrClosed  = errors.New("session closed")
)

// World is everything the session reads from the host game.
type World interface {
	storage.Host
	station.World
	recipe.Source
	ChestExists(x, y int) bool
	Items() *catalog.Registry
}

// Options configure Open.
type Options struct {
	Config    *config.Config
	World     World
	Store     persist.Store // owned by the caller
	Character models.Character
	Bus       events.Bus
	Logger    logger.Logger
}

// Status summarizes a session for display.
type Status struct {
	ID             string `json:"id"`
	Character      string `json:"character"`
	World          string `json:"world"`
	Tier           int    `json:"tier"`
	TierName       string `json:"tier_name"`
	StorageRange   int    `json:"storage_range"`
	Registered     int    `json:"registered"`
	Recipes        int    `json:"recipes"`
	SkippedRecipes int    `json:"skipped_recipes"`
	Uptime         int64  `json:"uptime"` // seconds
}

// Session wires the storage pool, station detector and crafting engine for
// one character.
type Session struct {
	ID        string
	CreatedAt time.Time

	cfg       *config.Config
	world     World
	character models.Character
	profile   *Profile
	bus       events.Bus
	log       logger.Logger

	registry *storage.ChestRegistry
	pool     *storage.Pool
	index    *recipe.Index
	detector *station.Detector
	checker  *crafting.Checker
	executor *crafting.Executor
	crafter  *crafting.Crafter

	lastX, lastY int
	closed       bool
}

// Open loads the character record and builds every component. A record that
// fails to load is replaced by a fresh one so the world stays playable.
func Open(ctx context.Context, opts Options) (*Session, error) {
	if opts.World == nil {
		return nil, errors.New("session: world is required")
	}
	if err := opts.Character.Validate(); err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	log := logger.OrNop(opts.Logger)
	bus := events.OrNull(opts.Bus)
	key := persist.Key{CharacterID: opts.Character.ID, WorldID: opts.Character.WorldID}

	rec := persist.NewRecord()
	if opts.Store != nil {
		loaded, err := opts.Store.Load(ctx, key)
		if err != nil {
			log.Errorf("session: failed to load record %s, starting fresh: %v", key, err)
		} else {
			rec = loaded
		}
	}

	s := &Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
		cfg:       cfg,
		world:     opts.World,
		character: opts.Character,
		bus:       bus,
		log:       log,
	}
	s.character.LoadedAt = s.CreatedAt
	s.profile = newProfile(key, rec, opts.Store, bus, log)

	s.registry = storage.NewChestRegistry(s.profile, log)
	s.registry.Load(rec.RegisteredChests)
	if dropped := s.registry.ValidateRegistrations(opts.World.ChestExists); dropped > 0 {
		log.Infof("session: dropped %d stale chest registrations", dropped)
	}

	s.pool = storage.NewPool(opts.World, opts.World.Items(), s.registry, cfg, log)
	s.pool.SetReach(cfg.Tier(rec.Tier).StorageRange)

	s.index = recipe.Build(opts.World, log)
	s.detector = station.NewDetector(opts.World, s.profile, cfg, nil, log)
	s.detector.SetRelevant(requiredStations(s.index))

	s.checker = crafting.NewChecker(s.pool, s.detector, s.index, log)
	s.executor = crafting.NewExecutor(s.pool, bus, log)
	s.crafter = crafting.NewCrafter(s.checker, s.executor, cfg, bus, log)

	s.lastX, s.lastY = opts.World.PlayerTile()
	log.Infof("session %s: opened for %s in %s (tier %d, %d chests, %d recipes)",
		s.ID, s.character.DisplayName(), key.WorldID, rec.Tier, s.registry.Len(), s.index.Len())
	return s, nil
}

func requiredStations(idx *recipe.Index) []int {
	seen := make(map[int]bool)
	var out []int
	for _, r := range idx.Recipes() {
		for _, t := range r.RequiredStations {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	return out
}

// Close saves the record one last time and detaches the session.
func (s *Session) Close(ctx context.Context) error {
	if s.closed {
		return nil
	}
	s.closed = true
	err := s.profile.Flush(ctx)
	s.log.Infof("session %s: closed for %s", s.ID, s.character.DisplayName())
	return err
}

// Profile returns the loaded record wrapper.
func (s *Session) Profile() *Profile { return s.profile }

// Character returns the character the session was opened for.
func (s *Session) Character() models.Character {
	c := s.character
	c.LastSaved = s.profile.LastSaved()
	return c
}

// Pool returns the unified storage pool.
func (s *Session) Pool() *storage.Pool { return s.pool }

// Index returns the recipe index built at Open.
func (s *Session) Index() *recipe.Index { return s.index }

// Checker returns the craftability checker.
func (s *Session) Checker() *crafting.Checker { return s.checker }

// Status summarizes the session.
func (s *Session) Status() Status {
	tier := s.profile.Tier()
	t := s.cfg.Tier(tier)
	return Status{
		ID:             s.ID,
		Character:      s.character.DisplayName(),
		World:          s.character.WorldID,
		Tier:           tier,
		TierName:       t.Name,
		StorageRange:   s.pool.Reach(),
		Registered:     s.registry.Len(),
		Recipes:        s.index.Len(),
		SkippedRecipes: s.index.Skipped(),
		Uptime:         int64(time.Since(s.CreatedAt).Seconds()),
	}
}

// Tick notices player movement and invalidates the range-dependent caches.
// It returns true when the player moved since the last tick.
func (s *Session) Tick() bool {
	x, y := s.world.PlayerTile()
	if x == s.lastX && y == s.lastY {
		return false
	}
	s.lastX, s.lastY = x, y
	s.checker.MarkDirty()
	return true
}

// OpenChest is called when the player manually opens the container at
// (x, y). The first open registers it. It returns true on a new
// registration.
func (s *Session) OpenChest(x, y int) (bool, error) {
	if s.closed {
		return false, ErrClosed
	}
	if !s.world.ChestExists(x, y) {
		return false, fmt.Errorf("%w (%d,%d)", ErrNoChest, x, y)
	}
	if !s.registry.RegisterChest(x, y) {
		return false, nil
	}
	s.checker.MarkMaterialsDirty()
	s.bus.Publish(events.Event{Type: events.ChestRegistered, X: x, Y: y})
	return true, nil
}

// BreakChest is called when the container at (x, y) is destroyed.
func (s *Session) BreakChest(x, y int) bool {
	if !s.registry.UnregisterChest(x, y) {
		return false
	}
	s.checker.MarkMaterialsDirty()
	s.bus.Publish(events.Event{Type: events.ChestUnregistered, X: x, Y: y})
	return true
}

// SetChestEnabled includes or excludes a registered container from the pool.
func (s *Session) SetChestEnabled(x, y int, enabled bool) bool {
	if !s.registry.SetEnabled(x, y, enabled) {
		return false
	}
	s.checker.MarkMaterialsDirty()
	return true
}

// SetTier changes the progression tier and applies its storage range.
func (s *Session) SetTier(tier int) int {
	tier = s.profile.SetTier(s.cfg, tier)
	s.pool.SetReach(s.cfg.Tier(tier).StorageRange)
	s.checker.MarkDirty()
	return tier
}

// Unlock records a special unlock such as a permanent environment.
func (s *Session) Unlock(name string) bool {
	if !s.profile.Unlock(name) {
		return false
	}
	s.checker.MarkDirty()
	return true
}

// SetStationMemory toggles station memory.
func (s *Session) SetStationMemory(enabled bool) {
	s.profile.SetStationMemory(enabled)
	s.checker.MarkDirty()
}

// ToggleFavorite flips an item's favorite flag.
func (s *Session) ToggleFavorite(itemID int) bool {
	return s.profile.ToggleFavorite(itemID)
}

// SetView persists the storage view's sort mode and category filter.
func (s *Session) SetView(sortMode, category string) {
	s.profile.SetView(sortMode, category)
}

// Items returns the aggregated storage view using the persisted sort and
// filter.
func (s *Session) Items() []storage.Stack {
	mode, category := s.profile.View()
	return storage.Aggregate(s.pool.AccessibleItems(), mode, category, s.profile.Favorites())
}

// Move transfers a pooled stack into the player's inventory.
func (s *Session) Move(containerID, slot, count int) bool {
	ok := s.pool.MoveToInventory(containerID, slot, count)
	if ok {
		s.checker.MarkMaterialsDirty()
	}
	return ok
}

// Deposit stores a stack held outside the pool.
func (s *Session) Deposit(it item.Snapshot) int {
	n, _ := s.pool.DepositItem(it)
	if n > 0 {
		s.checker.MarkMaterialsDirty()
	}
	return n
}

// Craftable lists every recipe that can be crafted right now.
func (s *Session) Craftable() []crafting.Result {
	return s.checker.GetCraftableRecipes()
}

// Partial lists recipes the player holds some but not all materials for.
func (s *Session) Partial() []crafting.Result {
	return s.checker.GetPartialRecipes()
}

// FindRecipe resolves a recipe by output name.
func (s *Session) FindRecipe(query string) (*recipe.Info, bool) {
	hits := s.index.Search(query, 1)
	if len(hits) == 0 {
		return nil, false
	}
	return hits[0], true
}

// Search returns up to limit recipes matching query.
func (s *Session) Search(query string, limit int) []*recipe.Info {
	return s.index.Search(query, limit)
}

// Plan computes a recursive crafting plan without touching storage.
func (s *Session) Plan(r *recipe.Info, count int) *crafting.Plan {
	return s.crafter.CalculatePlan(r, count)
}

// Craft performs count crafts of r from pooled materials. Station and
// environment requirements are checked before anything is taken.
func (s *Session) Craft(r *recipe.Info, count int) (*crafting.Outcome, error) {
	if s.closed {
		return nil, ErrClosed
	}
	if r != nil {
		if missing := s.checker.MissingStations(r); len(missing) > 0 {
			return nil, fmt.Errorf("%w: %v", crafting.ErrMissingStation, missing)
		}
		if env := s.checker.MissingEnvironment(r); env != 0 {
			return nil, fmt.Errorf("%w: %v", crafting.ErrMissingEnvironment, env.Names())
		}
	}
	out, err := s.executor.ExecuteCraft(r, count, false)
	s.checker.MarkMaterialsDirty()
	return out, err
}

// CraftRecursive plans and executes count crafts of r including every
// intermediate step.
func (s *Session) CraftRecursive(r *recipe.Info, count int) (*crafting.Plan, *crafting.PlanResult, error) {
	if s.closed {
		return nil, nil, ErrClosed
	}
	plan := s.crafter.CalculatePlan(r, count)
	res, err := s.crafter.ExecutePlan(plan)
	s.checker.MarkMaterialsDirty()
	return plan, res, err
}
