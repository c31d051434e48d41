package station

import (
	"sort"

	"github.com/gravitas-games/storagehub/internal/config"
	"github.com/gravitas-games/storagehub/internal/logger"
	"github.com/gravitas-games/storagehub/internal/recipe"
)

// Environment is the set of liquid/biome conditions around the player.
type Environment struct {
	Water     bool `json:"water" yaml:"water"`
	Honey     bool `json:"honey" yaml:"honey"`
	Lava      bool `json:"lava" yaml:"lava"`
	Snow      bool `json:"snow" yaml:"snow"`
	Graveyard bool `json:"graveyard" yaml:"graveyard"`
}

// Has reports whether a single condition holds.
func (e Environment) Has(env recipe.Env) bool {
	switch env {
	case recipe.EnvWater:
		return e.Water
	case recipe.EnvHoney:
		return e.Honey
	case recipe.EnvLava:
		return e.Lava
	case recipe.EnvSnow:
		return e.Snow
	case recipe.EnvGraveyard:
		return e.Graveyard
	}
	return false
}

// Set switches a single condition on or off.
func (e *Environment) Set(env recipe.Env, on bool) {
	switch env {
	case recipe.EnvWater:
		e.Water = on
	case recipe.EnvHoney:
		e.Honey = on
	case recipe.EnvLava:
		e.Lava = on
	case recipe.EnvSnow:
		e.Snow = on
	case recipe.EnvGraveyard:
		e.Graveyard = on
	}
}

// Missing returns the subset of need that does not hold.
func (e Environment) Missing(need recipe.Env) recipe.Env {
	var missing recipe.Env
	for _, env := range recipe.AllEnv() {
		if need&env != 0 && !e.Has(env) {
			missing |= env
		}
	}
	return missing
}

// World is the live player/tile state the detector reads.
type World interface {
	PlayerTile() (x, y int)
	// AdjacentStations is the host's own short-range station read, with its
	// built-in equivalences already applied.
	AdjacentStations() []int
	TileAt(x, y int) (tileType int, ok bool)
	Environment() Environment
}

// Memory is the persisted progression state that extends detection.
type Memory interface {
	Tier() int
	StationMemoryEnabled() bool
	RememberedStations() []int
	RememberStations(ids []int) int
	SpecialUnlocked(name string) bool
}

// Detector determines which stations and environment conditions are
// currently available.
type Detector struct {
	world    World
	memory   Memory
	cfg      *config.Config
	eq       Equivalences
	relevant map[int]bool
	log      logger.Logger
}

// NewDetector creates a detector. memory may be nil, disabling remembered
// stations and special unlocks.
func NewDetector(world World, memory Memory, cfg *config.Config, eq Equivalences, log logger.Logger) *Detector {
	if cfg == nil {
		cfg = config.Default()
	}
	if eq == nil {
		eq = DefaultEquivalences()
	}
	return &Detector{world: world, memory: memory, cfg: cfg, eq: eq, log: logger.OrNop(log)}
}

// SetRelevant restricts the extended scan to the given tile types. A nil or
// empty set accepts every tile the world reports.
func (d *Detector) SetRelevant(types []int) {
	if len(types) == 0 {
		d.relevant = nil
		return
	}
	d.relevant = make(map[int]bool, len(types))
	for _, t := range types {
		d.relevant[t] = true
		for implied := range d.implications(t) {
			d.relevant[implied] = true
		}
	}
	// tiles that imply a relevant station are relevant too
	for from := range d.eq {
		for _, t := range d.eq.Resolve(from) {
			if d.relevant[t] {
				d.relevant[from] = true
				break
			}
		}
	}
}

func (d *Detector) implications(tile int) map[int]bool {
	out := make(map[int]bool)
	for _, t := range d.eq.Resolve(tile) {
		out[t] = true
	}
	return out
}

func (d *Detector) tier() int {
	if d.memory == nil {
		return 0
	}
	return d.memory.Tier()
}

// ScanNearbyStations returns every station type currently available.
func (d *Detector) ScanNearbyStations() map[int]bool {
	found := make(map[int]bool)
	if d.world != nil {
		for _, t := range d.world.AdjacentStations() {
			d.eq.AddResolved(found, t)
		}

		rng := d.cfg.Tier(d.tier()).StationRange
		vanilla := d.cfg.Stations.VanillaRange
		if rng == config.Unlimited || rng > vanilla {
			radius := rng
			if radius == config.Unlimited || radius > d.cfg.Stations.MaxScanRadius {
				radius = d.cfg.Stations.MaxScanRadius
			}
			d.scanTiles(found, radius)
		}
	}

	if d.memory == nil || !d.memory.StationMemoryEnabled() {
		return found
	}

	if d.tier() >= d.cfg.Stations.MemoryTier {
		remembered := make(map[int]bool)
		for _, t := range d.memory.RememberedStations() {
			remembered[t] = true
		}
		var fresh []int
		for t := range found {
			if !remembered[t] {
				fresh = append(fresh, t)
			}
		}
		if len(fresh) > 0 {
			sort.Ints(fresh)
			if n := d.memory.RememberStations(fresh); n > 0 {
				d.log.Infof("stations: remembered %d new station types %v", n, fresh)
			}
		}
	}

	for _, t := range d.memory.RememberedStations() {
		d.eq.AddResolved(found, t)
	}
	return found
}

func (d *Detector) scanTiles(found map[int]bool, radius int) {
	if radius <= 0 {
		return
	}
	px, py := d.world.PlayerTile()
	r2 := int64(radius) * int64(radius)
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if int64(dx)*int64(dx)+int64(dy)*int64(dy) > r2 {
				continue
			}
			tile, ok := d.world.TileAt(px+dx, py+dy)
			if !ok || tile < 0 {
				continue
			}
			if d.relevant != nil && !d.relevant[tile] {
				continue
			}
			d.eq.AddResolved(found, tile)
		}
	}
}

// ScanEnvironmentConditions returns the live environment with persisted
// special unlocks applied on top.
func (d *Detector) ScanEnvironmentConditions() Environment {
	var env Environment
	if d.world != nil {
		env = d.world.Environment()
	}
	if d.memory == nil {
		return env
	}
	for _, e := range recipe.AllEnv() {
		if env.Has(e) {
			continue
		}
		for _, name := range e.Names() {
			if d.memory.SpecialUnlocked(name) {
				env.Set(e, true)
			}
		}
	}
	return env
}
