// Package host provides an in-memory game world: the live containers,
// tiles, environment and recipe tables that storage and crafting consume.
package host

import (
	"sort"

	"github.com/gravitas-games/storagehub/internal/catalog"
	"github.com/gravitas-games/storagehub/internal/item"
	"github.com/gravitas-games/storagehub/internal/recipe"
	"github.com/gravitas-games/storagehub/internal/station"
)

// Default sizes of the personal containers.
const (
	DefaultInventorySize = 58
	DefaultBankSize      = 40
	DefaultChestSize     = 40
	DefaultAdjacentRange = 4
)

type chest struct {
	x, y  int
	slots []item.Slot
}

type tile struct{ x, y int }

// Memory is a single-player world held entirely in memory.
type Memory struct {
	px, py    int
	inventory []item.Slot
	banks     map[int][]item.Slot
	chests    map[int]*chest
	byPos     map[tile]int
	nextChest int
	stations  map[tile]int
	env       station.Environment
	cursor    item.Slot
	dropped   []item.Slot

	items         *catalog.Registry
	recipes       []*recipe.Record
	declared      int
	groups        []recipe.Group
	eq            station.Equivalences
	adjacentRange int
}

// NewMemory creates an empty world with an inventory of inventorySize slots
// and empty personal banks.
func NewMemory(inventorySize int) *Memory {
	if inventorySize <= 0 {
		inventorySize = DefaultInventorySize
	}
	m := &Memory{
		inventory:     make([]item.Slot, inventorySize),
		banks:         make(map[int][]item.Slot, len(item.BankSources)),
		chests:        make(map[int]*chest),
		byPos:         make(map[tile]int),
		stations:      make(map[tile]int),
		items:         catalog.NewRegistry(),
		eq:            station.DefaultEquivalences(),
		adjacentRange: DefaultAdjacentRange,
		declared:      -1,
	}
	for _, b := range item.BankSources {
		m.banks[b] = make([]item.Slot, DefaultBankSize)
	}
	return m
}

// Items returns the item catalog of the world.
func (m *Memory) Items() *catalog.Registry {
	return m.items
}

// SetPlayer moves the player.
func (m *Memory) SetPlayer(x, y int) {
	m.px, m.py = x, y
}

// PlayerTile returns the player's tile position.
func (m *Memory) PlayerTile() (int, int) {
	return m.px, m.py
}

// Inventory returns the live inventory slots.
func (m *Memory) Inventory() []item.Slot {
	return m.inventory
}

// Container returns the live slots of a container, or nil.
func (m *Memory) Container(id int) []item.Slot {
	switch {
	case id == item.SourceInventory:
		return m.inventory
	case item.IsBank(id):
		return m.banks[id]
	case item.IsChest(id):
		if c, ok := m.chests[id]; ok {
			return c.slots
		}
	}
	return nil
}

// PlaceChest creates a container at (x, y) and returns its id. An existing
// container at that position is returned unchanged.
func (m *Memory) PlaceChest(x, y, size int, contents ...item.Slot) int {
	if id, ok := m.byPos[tile{x, y}]; ok {
		return id
	}
	if size <= 0 {
		size = DefaultChestSize
	}
	if len(contents) > size {
		size = len(contents)
	}
	slots := make([]item.Slot, size)
	copy(slots, contents)
	id := m.nextChest
	m.nextChest++
	m.chests[id] = &chest{x: x, y: y, slots: slots}
	m.byPos[tile{x, y}] = id
	return id
}

// RemoveChest destroys the container at (x, y), returning its contents.
func (m *Memory) RemoveChest(x, y int) ([]item.Slot, bool) {
	id, ok := m.byPos[tile{x, y}]
	if !ok {
		return nil, false
	}
	c := m.chests[id]
	delete(m.chests, id)
	delete(m.byPos, tile{x, y})
	return c.slots, true
}

// ChestAt resolves a container id by position.
func (m *Memory) ChestAt(x, y int) (int, bool) {
	id, ok := m.byPos[tile{x, y}]
	return id, ok
}

// ChestPosition returns the position of a container.
func (m *Memory) ChestPosition(id int) (int, int, bool) {
	c, ok := m.chests[id]
	if !ok {
		return 0, 0, false
	}
	return c.x, c.y, true
}

// ChestExists reports whether a container stands at (x, y).
func (m *Memory) ChestExists(x, y int) bool {
	_, ok := m.byPos[tile{x, y}]
	return ok
}

// ChestPositions lists every container position sorted by id.
func (m *Memory) ChestPositions() [][2]int {
	ids := make([]int, 0, len(m.chests))
	for id := range m.chests {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([][2]int, 0, len(ids))
	for _, id := range ids {
		out = append(out, [2]int{m.chests[id].x, m.chests[id].y})
	}
	return out
}

// Cursor returns the holding slot.
func (m *Memory) Cursor() *item.Slot {
	return &m.cursor
}

// DropNearPlayer spawns s in the world next to the player.
func (m *Memory) DropNearPlayer(s item.Slot) bool {
	if s.IsEmpty() {
		return false
	}
	m.dropped = append(m.dropped, s)
	return true
}

// Dropped returns the stacks spawned next to the player.
func (m *Memory) Dropped() []item.Slot {
	return m.dropped
}

// PlaceStation puts a crafting station tile at (x, y).
func (m *Memory) PlaceStation(x, y, tileType int) {
	m.stations[tile{x, y}] = tileType
}

// RemoveStation clears the station tile at (x, y).
func (m *Memory) RemoveStation(x, y int) {
	delete(m.stations, tile{x, y})
}

// TileAt returns the station tile at (x, y), if any.
func (m *Memory) TileAt(x, y int) (int, bool) {
	t, ok := m.stations[tile{x, y}]
	return t, ok
}

// AdjacentStations returns the stations within the host's own short range,
// resolved through the host's equivalences.
func (m *Memory) AdjacentStations() []int {
	found := make(map[int]bool)
	r := m.adjacentRange
	for pos, t := range m.stations {
		dx, dy := pos.x-m.px, pos.y-m.py
		if dx < -r || dx > r || dy < -r || dy > r {
			continue
		}
		m.eq.AddResolved(found, t)
	}
	out := make([]int, 0, len(found))
	for t := range found {
		out = append(out, t)
	}
	sort.Ints(out)
	return out
}

// SetAdjacentRange changes the host's adjacency box half-width.
func (m *Memory) SetAdjacentRange(r int) {
	m.adjacentRange = r
}

// Environment returns the live environment around the player.
func (m *Memory) Environment() station.Environment {
	return m.env
}

// SetEnvironment replaces the live environment.
func (m *Memory) SetEnvironment(env station.Environment) {
	m.env = env
}

// AddRecipe appends a raw recipe record. nil records are kept, as a
// host table may contain holes.
func (m *Memory) AddRecipe(r *recipe.Record) {
	m.recipes = append(m.recipes, r)
}

// AddGroup registers a recipe group.
func (m *Memory) AddGroup(g recipe.Group) {
	m.groups = append(m.groups, g)
}

// SetDeclaredRecipeCount overrides the count reported by RecipeCount. A
// negative value reports the real table length.
func (m *Memory) SetDeclaredRecipeCount(n int) {
	m.declared = n
}

// RecipeCount returns the declared number of recipes.
func (m *Memory) RecipeCount() int {
	if m.declared < 0 {
		return len(m.recipes)
	}
	return m.declared
}

// RecipeRecords returns the raw recipe table.
func (m *Memory) RecipeRecords() []*recipe.Record {
	return m.recipes
}

// RecipeGroups returns the recipe groups.
func (m *Memory) RecipeGroups() []recipe.Group {
	return m.groups
}

// Count returns the units of itemID held anywhere in the world: inventory,
// banks, chests, the cursor and dropped stacks.
func (m *Memory) Count(itemID int) int {
	n := 0
	add := func(slots []item.Slot) {
		for _, s := range slots {
			if !s.IsEmpty() && s.ItemID == itemID {
				n += s.Stack
			}
		}
	}
	add(m.inventory)
	for _, b := range m.banks {
		add(b)
	}
	for _, c := range m.chests {
		add(c.slots)
	}
	add([]item.Slot{m.cursor})
	add(m.dropped)
	return n
}
