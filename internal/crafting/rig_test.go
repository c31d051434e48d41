package crafting

import (
	"testing"

	"github.com/gravitas-games/storagehub/internal/catalog"
	"github.com/gravitas-games/storagehub/internal/config"
	"github.com/gravitas-games/storagehub/internal/events"
	"github.com/gravitas-games/storagehub/internal/host"
	"github.com/gravitas-games/storagehub/internal/item"
	"github.com/gravitas-games/storagehub/internal/logger"
	"github.com/gravitas-games/storagehub/internal/recipe"
	"github.com/gravitas-games/storagehub/internal/station"
	"github.com/gravitas-games/storagehub/internal/storage"
)

const (
	idPickaxe = 1
	idWood    = 9
	idOre     = 11
	idBar     = 22
	idLeadBar = 704
	idChain   = 85

	groupIronBar = 3
)

type rig struct {
	world   *host.Memory
	pool    *storage.Pool
	checker *Checker
	exec    *Executor
	crafter *Crafter
	events  []events.Event
}

func newRig(t *testing.T, recs []*recipe.Record, groups ...recipe.Group) *rig {
	return newRigWithConfig(t, config.Default(), recs, groups...)
}

func newRigWithConfig(t *testing.T, cfg *config.Config, recs []*recipe.Record, groups ...recipe.Group) *rig {
	t.Helper()
	cfg.Storage.InventoryScanSlots = 10
	w := host.NewMemory(10)
	for _, d := range []catalog.ItemDetails{
		{ID: idPickaxe, Name: "Iron Pickaxe", MaxStack: 1},
		{ID: idWood, Name: "Wood", MaxStack: 999},
		{ID: idOre, Name: "Iron Ore", MaxStack: 999},
		{ID: idBar, Name: "Iron Bar", MaxStack: 99},
		{ID: idLeadBar, Name: "Lead Bar", MaxStack: 99},
		{ID: idChain, Name: "Chain", MaxStack: 999},
	} {
		if err := w.Items().RegisterDetails(d); err != nil {
			t.Fatal(err)
		}
	}
	for _, g := range groups {
		w.AddGroup(g)
	}
	for _, r := range recs {
		w.AddRecipe(r)
	}

	r := &rig{world: w}
	r.pool = storage.NewPool(w, w.Items(), storage.NewChestRegistry(nil, logger.Nop()), cfg, logger.Nop())
	idx := recipe.Build(w, logger.Nop())
	det := station.NewDetector(w, nil, cfg, nil, logger.Nop())
	r.checker = NewChecker(r.pool, det, idx, logger.Nop())
	bus := events.NewSimpleBus()
	bus.Subscribe("test", func(e events.Event) { r.events = append(r.events, e) })
	r.exec = NewExecutor(r.pool, bus, logger.Nop())
	r.crafter = NewCrafter(r.checker, r.exec, cfg, bus, logger.Nop())
	return r
}

func (r *rig) give(slot, itemID, n int) {
	r.world.Inventory()[slot] = item.Slot{ItemID: itemID, Stack: n}
	r.checker.MarkDirty()
}

// chest places a registered container next to the player.
func (r *rig) chest(x, y int, contents ...item.Slot) int {
	id := r.world.PlaceChest(x, y, 8, contents...)
	r.pool.Registry().RegisterChest(x, y)
	r.checker.MarkDirty()
	return id
}

func (r *rig) recipe(t *testing.T, name string) *recipe.Info {
	t.Helper()
	for _, info := range r.checker.Index().Recipes() {
		if info.Name() == name {
			return info
		}
	}
	t.Fatalf("recipe %q not indexed", name)
	return nil
}

func (r *rig) lastEvent() events.Event {
	if len(r.events) == 0 {
		return events.Event{Type: -1}
	}
	return r.events[len(r.events)-1]
}

func needs(id, stack int) recipe.IngredientRecord {
	return recipe.IngredientRecord{ItemID: id, Stack: stack}
}

func barRecipe() *recipe.Record {
	return &recipe.Record{OutputItemID: idBar, OutputStack: 1, OutputName: "Iron Bar",
		Ingredients: []recipe.IngredientRecord{{ItemID: idOre, Stack: 3, Name: "Iron Ore"}}}
}

func pickaxeRecipe() *recipe.Record {
	return &recipe.Record{OutputItemID: idPickaxe, OutputStack: 1, OutputName: "Iron Pickaxe",
		Ingredients: []recipe.IngredientRecord{{ItemID: idBar, Stack: 2, Name: "Iron Bar"}, {ItemID: idWood, Stack: 2, Name: "Wood"}}}
}

// snapshotSlots copies every inventory and chest slot for later comparison.
func (r *rig) snapshotSlots(chests ...int) [][]item.Slot {
	out := [][]item.Slot{append([]item.Slot(nil), r.world.Inventory()...)}
	for _, id := range chests {
		out = append(out, append([]item.Slot(nil), r.world.Container(id)...))
	}
	return out
}

func sameSlots(a, b [][]item.Slot) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if len(a[i]) != len(b[i]) {
			return false
		}
		for j := range a[i] {
			if a[i][j] != b[i][j] {
				return false
			}
		}
	}
	return true
}
