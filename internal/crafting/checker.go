// Package crafting evaluates, plans and executes recipe invocations against
// the unified storage pool.
package crafting

import (
	"sort"
	"strings"

	"github.com/gravitas-games/storagehub/internal/item"
	"github.com/gravitas-games/storagehub/internal/logger"
	"github.com/gravitas-games/storagehub/internal/recipe"
	"github.com/gravitas-games/storagehub/internal/station"
)

// Status classifies a recipe. Only the highest-priority problem is
// reported: materials, then station, then environment.
type Status int

const (
	StatusCraftable Status = iota
	StatusMissingMaterials
	StatusMissingStation
	StatusMissingEnvironment
)

// String returns a human-readable representation of the status.
func (s Status) String() string {
	switch s {
	case StatusCraftable:
		return "Craftable"
	case StatusMissingMaterials:
		return "MissingMaterials"
	case StatusMissingStation:
		return "MissingStation"
	case StatusMissingEnvironment:
		return "MissingEnvironment"
	default:
		return "Unknown"
	}
}

// Shortfall is one unmet ingredient.
type Shortfall struct {
	Ingredient recipe.Ingredient
	Have       int
	Need       int
}

// Missing returns how many units are lacking.
func (s Shortfall) Missing() int {
	return s.Need - s.Have
}

// Result is the craftability of one recipe at the time of the query.
type Result struct {
	Recipe             *recipe.Info
	Status             Status
	MaxCraftable       int
	MissingMaterials   []Shortfall
	MissingStations    []int
	MissingEnvironment recipe.Env
}

// CanCraft reports whether at least one craft is possible right now.
func (r Result) CanCraft() bool {
	return r.Status == StatusCraftable && r.MaxCraftable > 0
}

// ItemSource supplies the snapshots counted as available materials.
type ItemSource interface {
	AccessibleItems() []item.Snapshot
}

// StationSource supplies the available stations and environment.
type StationSource interface {
	ScanNearbyStations() map[int]bool
	ScanEnvironmentConditions() station.Environment
}

// Checker answers craftability queries from lazily refreshed caches.
// Callers must MarkDirty after anything that changes storage contents or
// the player's position.
type Checker struct {
	items    ItemSource
	stations StationSource
	index    *recipe.Index
	log      logger.Logger

	materialsDirty bool
	stationsDirty  bool
	generation     uint64

	counts    map[int]int
	available map[int]bool
	env       station.Environment
}

// NewChecker creates a checker with both caches dirty.
func NewChecker(items ItemSource, stations StationSource, index *recipe.Index, log logger.Logger) *Checker {
	if index == nil {
		index = recipe.NewIndex()
	}
	return &Checker{
		items:          items,
		stations:       stations,
		index:          index,
		log:            logger.OrNop(log),
		materialsDirty: true,
		stationsDirty:  true,
	}
}

// MarkDirty invalidates both caches.
func (c *Checker) MarkDirty() {
	c.materialsDirty = true
	c.stationsDirty = true
	c.generation++
}

// MarkMaterialsDirty invalidates only the material totals.
func (c *Checker) MarkMaterialsDirty() {
	c.materialsDirty = true
	c.generation++
}

// Generation changes every time a cache is invalidated.
func (c *Checker) Generation() uint64 {
	return c.generation
}

// Index returns the recipe index the checker classifies.
func (c *Checker) Index() *recipe.Index {
	return c.index
}

func (c *Checker) refreshMaterials() {
	if !c.materialsDirty && c.counts != nil {
		return
	}
	counts := make(map[int]int)
	if c.items != nil {
		for _, s := range c.items.AccessibleItems() {
			if s.IsEmpty() {
				continue
			}
			counts[s.ItemID] = item.AddQuantity(counts[s.ItemID], s.Stack)
		}
	}
	for _, g := range c.index.Groups() {
		total := 0
		for _, id := range g.ValidItemIDs {
			total = item.AddQuantity(total, counts[id])
		}
		counts[g.ItemID] = total
	}
	c.counts = counts
	c.materialsDirty = false
}

func (c *Checker) refreshStations() {
	if !c.stationsDirty && c.available != nil {
		return
	}
	c.available = make(map[int]bool)
	c.env = station.Environment{}
	if c.stations != nil {
		for id, ok := range c.stations.ScanNearbyStations() {
			if ok {
				c.available[id] = true
			}
		}
		c.env = c.stations.ScanEnvironmentConditions()
	}
	c.stationsDirty = false
}

// Count returns the available units of an item id or synthetic group id.
func (c *Checker) Count(itemID int) int {
	c.refreshMaterials()
	return c.counts[itemID]
}

// MaterialCounts returns a copy of the concrete item totals, without
// synthetic group entries.
func (c *Checker) MaterialCounts() map[int]int {
	c.refreshMaterials()
	out := make(map[int]int, len(c.counts))
	for id, n := range c.counts {
		if recipe.IsGroupID(id) {
			continue
		}
		out[id] = n
	}
	return out
}

// AvailableStations returns a copy of the available station set.
func (c *Checker) AvailableStations() map[int]bool {
	c.refreshStations()
	out := make(map[int]bool, len(c.available))
	for id := range c.available {
		out[id] = true
	}
	return out
}

// Environment returns the cached environment.
func (c *Checker) Environment() station.Environment {
	c.refreshStations()
	return c.env
}

// MissingStations lists the required stations of r that are unavailable.
func (c *Checker) MissingStations(r *recipe.Info) []int {
	c.refreshStations()
	var missing []int
	for _, id := range r.RequiredStations {
		if !c.available[id] {
			missing = append(missing, id)
		}
	}
	return missing
}

// MissingEnvironment returns the environment conditions of r that do not hold.
func (c *Checker) MissingEnvironment(r *recipe.Info) recipe.Env {
	c.refreshStations()
	return c.env.Missing(r.Env)
}

// Reachable reports whether r's stations and environment are satisfied,
// ignoring materials.
func (c *Checker) Reachable(r *recipe.Info) bool {
	return len(c.MissingStations(r)) == 0 && c.MissingEnvironment(r) == 0
}

// CanCraft classifies r against the current caches.
func (c *Checker) CanCraft(r *recipe.Info) Result {
	res := Result{Recipe: r, Status: StatusMissingMaterials}
	if r == nil {
		return res
	}
	c.refreshMaterials()

	maxCraftable := -1
	for _, ing := range r.Ingredients {
		if ing.RequiredStack <= 0 {
			continue
		}
		have := c.counts[ing.ItemID]
		if have < ing.RequiredStack {
			res.MissingMaterials = append(res.MissingMaterials, Shortfall{Ingredient: ing, Have: have, Need: ing.RequiredStack})
		}
		if n := have / ing.RequiredStack; maxCraftable < 0 || n < maxCraftable {
			maxCraftable = n
		}
	}
	if maxCraftable < 0 {
		maxCraftable = 0
	}
	res.MaxCraftable = maxCraftable
	res.MissingStations = c.MissingStations(r)
	res.MissingEnvironment = c.MissingEnvironment(r)

	switch {
	case len(res.MissingMaterials) > 0 || maxCraftable == 0:
		res.Status = StatusMissingMaterials
	case len(res.MissingStations) > 0:
		res.Status = StatusMissingStation
	case res.MissingEnvironment != 0:
		res.Status = StatusMissingEnvironment
	default:
		res.Status = StatusCraftable
	}
	return res
}

// GetCraftableRecipes returns every craftable recipe sorted by name.
func (c *Checker) GetCraftableRecipes() []Result {
	var out []Result
	for _, r := range c.index.Recipes() {
		if res := c.CanCraft(r); res.CanCraft() {
			out = append(out, res)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return lessByName(out[i].Recipe, out[j].Recipe) })
	return out
}

// GetPartialRecipes returns recipes that cannot be crafted but for which
// at least one ingredient is available, sorted by ascending number of
// missing ingredients, then name.
func (c *Checker) GetPartialRecipes() []Result {
	var out []Result
	for _, r := range c.index.Recipes() {
		res := c.CanCraft(r)
		if res.CanCraft() || !c.holdsAny(r) {
			continue
		}
		out = append(out, res)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := len(out[i].MissingMaterials), len(out[j].MissingMaterials)
		if a != b {
			return a < b
		}
		return lessByName(out[i].Recipe, out[j].Recipe)
	})
	return out
}

func (c *Checker) holdsAny(r *recipe.Info) bool {
	for _, ing := range r.Ingredients {
		if c.counts[ing.ItemID] > 0 {
			return true
		}
	}
	return false
}

func lessByName(a, b *recipe.Info) bool {
	an, bn := strings.ToLower(a.Name()), strings.ToLower(b.Name())
	if an != bn {
		return an < bn
	}
	return a.Index < b.Index
}
