package storage

import (
	"errors"
	"math"
	"testing"

	"github.com/gravitas-games/storagehub/internal/catalog"
	"github.com/gravitas-games/storagehub/internal/config"
	"github.com/gravitas-games/storagehub/internal/item"
	"github.com/gravitas-games/storagehub/internal/logger"
)

const (
	itemWood = 9
	itemOre  = 11
	itemGel  = 23
)

type fakeHost struct {
	px, py     int
	containers map[int][]item.Slot
	chests     map[Position]int
	cursor     item.Slot
	dropped    []item.Slot
	noDrop     bool
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		containers: map[int][]item.Slot{item.SourceInventory: make([]item.Slot, 4)},
		chests:     make(map[Position]int),
	}
}

func (h *fakeHost) addChest(id, x, y int, slots ...item.Slot) {
	h.chests[Position{X: x, Y: y}] = id
	h.containers[id] = slots
}

func (h *fakeHost) PlayerTile() (int, int)        { return h.px, h.py }
func (h *fakeHost) Container(id int) []item.Slot { return h.containers[id] }
func (h *fakeHost) Cursor() *item.Slot            { return &h.cursor }
func (h *fakeHost) ChestAt(x, y int) (int, bool) {
	id, ok := h.chests[Position{X: x, Y: y}]
	return id, ok
}
func (h *fakeHost) ChestPosition(id int) (int, int, bool) {
	for p, cid := range h.chests {
		if cid == id {
			return p.X, p.Y, true
		}
	}
	return 0, 0, false
}
func (h *fakeHost) DropNearPlayer(s item.Slot) bool {
	if h.noDrop {
		return false
	}
	h.dropped = append(h.dropped, s)
	return true
}

type recordingStore struct {
	saves int
	last  []ChestEntry
	err   error
}

func (s *recordingStore) SaveChests(entries []ChestEntry) error {
	s.saves++
	s.last = entries
	return s.err
}

func testCatalog() *catalog.Registry {
	return catalog.NewRegistry(
		catalog.ItemDetails{ID: itemWood, Name: "Wood", MaxStack: 20, Flags: item.FlagMaterial},
		catalog.ItemDetails{ID: itemOre, Name: "Iron Ore", MaxStack: 20, Rarity: 1, Flags: item.FlagMaterial},
		catalog.ItemDetails{ID: itemGel, Name: "Gel", MaxStack: 20, Flags: item.FlagMaterial | item.FlagAmmo},
	)
}

func newTestPool(h *fakeHost, scan int) *Pool {
	cfg := config.Default()
	cfg.Storage.InventoryScanSlots = scan
	return NewPool(h, testCatalog(), NewChestRegistry(nil, logger.Nop()), cfg, logger.Nop())
}

func total(h *fakeHost, id int) int {
	n := 0
	for _, slots := range h.containers {
		for _, s := range slots {
			if s.ItemID == id {
				n += s.Stack
			}
		}
	}
	if h.cursor.ItemID == id {
		n += h.cursor.Stack
	}
	for _, s := range h.dropped {
		if s.ItemID == id {
			n += s.Stack
		}
	}
	return n
}

func TestRegistryPersistsEveryChange(t *testing.T) {
	store := &recordingStore{}
	r := NewChestRegistry(store, logger.Nop())
	if !r.RegisterChest(3, 4) {
		t.Fatal("first registration should be new")
	}
	if r.RegisterChest(3, 4) {
		t.Fatal("second registration should not be new")
	}
	if store.saves != 1 {
		t.Fatalf("expected 1 save, got %d", store.saves)
	}
	if r.SetEnabled(9, 9, false) {
		t.Fatal("SetEnabled accepted an unregistered position")
	}
	r.SetEnabled(3, 4, false)
	if !r.IsRegistered(3, 4) || r.IsActive(3, 4) {
		t.Fatal("disabled chest must stay registered but inactive")
	}
	if len(store.last) != 1 || store.last[0].Enabled {
		t.Fatalf("unexpected persisted entries %+v", store.last)
	}
	if !r.UnregisterChest(3, 4) || r.UnregisterChest(3, 4) {
		t.Fatal("unregister should succeed exactly once")
	}
	if store.saves != 3 {
		t.Fatalf("expected 3 saves, got %d", store.saves)
	}
}

func TestRegistrySaveFailureKeepsState(t *testing.T) {
	r := NewChestRegistry(&recordingStore{err: errors.New("disk full")}, logger.Nop())
	r.RegisterChest(1, 1)
	if !r.IsRegistered(1, 1) {
		t.Fatal("registration lost after save failure")
	}
}

func TestValidateRegistrations(t *testing.T) {
	r := NewChestRegistry(nil, logger.Nop())
	r.Load([]ChestEntry{{X: 1, Y: 1, Enabled: true}, {X: 2, Y: 2, Enabled: true}, {X: 3, Y: 3}})
	removed := r.ValidateRegistrations(func(x, y int) bool { return x != 2 })
	if removed != 1 || r.IsRegistered(2, 2) || r.Len() != 2 {
		t.Fatalf("removed=%d positions=%v", removed, r.GetRegisteredPositions())
	}
}

func TestUnregisteredChestIsInvisible(t *testing.T) {
	h := newFakeHost()
	h.addChest(1, 5, 5, item.Slot{ItemID: itemOre, Stack: 10})
	p := newTestPool(h, 4)
	if got := item.Total(p.GetAllItems()); got != 0 {
		t.Fatalf("unregistered chest contributed %d items", got)
	}
	if _, ok := p.TakeItem(1, 0, 5); ok {
		t.Fatal("took items from an unregistered chest")
	}
	p.Registry().RegisterChest(5, 5)
	if got := item.Total(p.GetAllItems()); got != 10 {
		t.Fatalf("registered chest total = %d", got)
	}
	p.Registry().SetEnabled(5, 5, false)
	if got := item.Total(p.GetAllItems()); got != 0 {
		t.Fatalf("disabled chest contributed %d items", got)
	}
}

func TestRangeFiltering(t *testing.T) {
	h := newFakeHost()
	h.addChest(1, 10, 0, item.Slot{ItemID: itemWood, Stack: 1})
	h.addChest(2, 8, 7, item.Slot{ItemID: itemWood, Stack: 2})
	h.addChest(3, math.MaxInt32, 0, item.Slot{ItemID: itemWood, Stack: 4})
	h.addChest(4, math.MinInt32, math.MinInt32, item.Slot{ItemID: itemWood, Stack: 8})
	p := newTestPool(h, 4)
	for _, pos := range []Position{{10, 0}, {8, 7}, {math.MaxInt32, 0}, {math.MinInt32, math.MinInt32}} {
		p.Registry().RegisterChest(pos.X, pos.Y)
	}

	tests := []struct {
		name   string
		ox, oy int
		rng    int
		want   int
	}{
		{"boundary inclusive", 0, 0, 10, 1},
		{"diagonal inside", 0, 0, 11, 3},
		{"unlimited", 0, 0, config.Unlimited, 15},
		{"far edge exact", 0, 0, math.MaxInt32, 7},
		{"far corner", math.MaxInt32, math.MaxInt32, math.MaxInt32, 4},
		{"negative range", 0, 0, -5, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := item.Total(p.GetItemsInRange(tt.ox, tt.oy, tt.rng))
			if got != tt.want {
				t.Fatalf("GetItemsInRange(%d,%d,%d) total = %d, want %d", tt.ox, tt.oy, tt.rng, got, tt.want)
			}
		})
	}
}

func TestAccessibleItemsUsesReach(t *testing.T) {
	h := newFakeHost()
	h.px, h.py = 100, 100
	h.addChest(1, 130, 100, item.Slot{ItemID: itemGel, Stack: 5})
	p := newTestPool(h, 4)
	p.Registry().RegisterChest(130, 100)
	p.SetReach(25)
	if got := item.Total(p.AccessibleItems()); got != 0 {
		t.Fatalf("chest beyond reach visible: %d", got)
	}
	p.SetReach(50)
	if got := item.Total(p.AccessibleItems()); got != 5 {
		t.Fatalf("chest within reach total = %d", got)
	}
}

func TestInventoryScanBoundary(t *testing.T) {
	h := newFakeHost()
	h.containers[item.SourceInventory] = []item.Slot{
		{ItemID: itemWood, Stack: 5}, {}, {ItemID: itemWood, Stack: 7}, {},
	}
	p := newTestPool(h, 2)
	if got := item.Total(p.GetAllItems()); got != 5 {
		t.Fatalf("items past the scan boundary counted: %d", got)
	}
	if _, ok := p.TakeItem(item.SourceInventory, 2, 1); ok {
		t.Fatal("took from a slot past the scan boundary")
	}
	if p.PlaceInInventory(item.Snapshot{ItemID: itemOre, Stack: 30}) {
		t.Fatal("placement should not spill past the scan boundary")
	}
	if !p.PlaceInInventory(item.Snapshot{ItemID: itemOre, Stack: 20}) {
		t.Fatal("placement into the free scanned slot failed")
	}
	if h.containers[item.SourceInventory][3].ItemID != 0 {
		t.Fatal("slot past the boundary was written")
	}
}

func TestTakeItemSnapshots(t *testing.T) {
	h := newFakeHost()
	h.addChest(7, 1, 1, item.Slot{}, item.Slot{ItemID: itemOre, Stack: 10, Prefix: 2})
	p := newTestPool(h, 4)
	p.Registry().RegisterChest(1, 1)

	s, ok := p.TakeItem(7, 1, 3)
	if !ok || s.Stack != 3 || s.Source != 7 || s.Slot != 1 || s.Prefix != 2 || s.Name != "Iron Ore" {
		t.Fatalf("unexpected snapshot %+v ok=%v", s, ok)
	}
	s, ok = p.TakeItem(7, 1, 50)
	if !ok || s.Stack != 7 {
		t.Fatalf("take past stack returned %+v", s)
	}
	if !h.containers[7][1].IsEmpty() {
		t.Fatal("emptied slot not cleared")
	}
	for _, tc := range []struct{ c, slot, n int }{{7, 0, 1}, {7, 5, 1}, {7, -1, 1}, {7, 1, 0}, {99, 0, 1}} {
		if _, ok := p.TakeItem(tc.c, tc.slot, tc.n); ok {
			t.Errorf("TakeItem(%d,%d,%d) should fail", tc.c, tc.slot, tc.n)
		}
	}
}

func TestDepositStacksBeforeEmptySlots(t *testing.T) {
	h := newFakeHost()
	h.addChest(1, 0, 1, item.Slot{ItemID: itemWood, Stack: 15}, item.Slot{})
	h.addChest(2, 0, 2, item.Slot{ItemID: itemWood, Stack: 18})
	p := newTestPool(h, 4)
	p.Registry().RegisterChest(0, 1)
	p.Registry().RegisterChest(0, 2)

	n, first := p.DepositItem(item.Snapshot{ItemID: itemWood, Stack: 10})
	if n != 10 || first != 1 {
		t.Fatalf("deposited %d into %d", n, first)
	}
	if h.containers[1][0].Stack != 20 || h.containers[2][0].Stack != 20 || h.containers[1][1].Stack != 3 {
		t.Fatalf("unexpected layout %v %v", h.containers[1], h.containers[2])
	}

	n, _ = p.DepositItem(item.Snapshot{ItemID: itemWood, Stack: 40})
	if n != 17 {
		t.Fatalf("partial deposit into a full pool = %d, want 17", n)
	}
	if n, c := p.DepositItem(item.Snapshot{}); n != 0 || c != NoContainer {
		t.Fatal("empty deposit should be a no-op")
	}
}

func TestRestoreItem(t *testing.T) {
	h := newFakeHost()
	h.addChest(1, 0, 0, item.Slot{ItemID: itemOre, Stack: 10})
	p := newTestPool(h, 4)
	p.Registry().RegisterChest(0, 0)
	taken, _ := p.TakeItem(1, 0, 10)
	h.containers[1][0] = item.Slot{ItemID: itemGel, Stack: 1}
	if p.RestoreItem(taken) {
		t.Fatal("restored over a different item")
	}
	h.containers[1][0] = item.Slot{}
	if !p.RestoreItem(taken) || h.containers[1][0].Stack != 10 {
		t.Fatal("restore into the emptied slot failed")
	}
	if p.RestoreItem(taken.WithStack(11)) {
		t.Fatal("restore exceeded the max stack")
	}
}

func TestMoveToInventoryOverflowReturnsToPool(t *testing.T) {
	h := newFakeHost()
	h.containers[item.SourceInventory] = []item.Slot{
		{ItemID: itemOre, Stack: 18}, {ItemID: itemGel, Stack: 20},
	}
	h.addChest(1, 0, 0, item.Slot{ItemID: itemOre, Stack: 10})
	p := newTestPool(h, 2)
	p.Registry().RegisterChest(0, 0)

	before := total(h, itemOre)
	if !p.MoveToInventory(1, 0, 10) {
		t.Fatal("partial move should report success")
	}
	if h.containers[item.SourceInventory][0].Stack != 20 {
		t.Fatalf("inventory stack = %d", h.containers[item.SourceInventory][0].Stack)
	}
	if h.containers[1][0].Stack != 8 {
		t.Fatalf("overflow not returned to its slot: %v", h.containers[1])
	}
	if total(h, itemOre) != before {
		t.Fatal("items were created or destroyed")
	}
	if p.MoveToInventory(1, 0, 5) {
		t.Fatal("move into a full inventory should fail")
	}
	if h.containers[1][0].Stack != 8 {
		t.Fatal("failed move changed the source")
	}
}

func TestGiveToPlayerDropsWhenFull(t *testing.T) {
	h := newFakeHost()
	h.containers[item.SourceInventory] = []item.Slot{{ItemID: itemGel, Stack: 20}}
	p := newTestPool(h, 1)
	if !p.GiveToPlayer(item.Snapshot{ItemID: itemWood, Stack: 4}) {
		t.Fatal("give should fall back to dropping")
	}
	if len(h.dropped) != 1 || h.dropped[0].Stack != 4 {
		t.Fatalf("dropped = %v", h.dropped)
	}
	h.noDrop = true
	if p.GiveToPlayer(item.Snapshot{ItemID: itemWood, Stack: 4}) {
		t.Fatal("give should fail when the host cannot drop")
	}
}

func TestCursor(t *testing.T) {
	h := newFakeHost()
	h.addChest(1, 0, 0, item.Slot{ItemID: itemWood, Stack: 6})
	p := newTestPool(h, 4)
	p.Registry().RegisterChest(0, 0)

	if !p.IsCursorEmpty() {
		t.Fatal("cursor should start empty")
	}
	if !p.TakeItemToCursor(1, 0, 4) || h.cursor.Stack != 4 || h.containers[1][0].Stack != 2 {
		t.Fatalf("cursor=%v chest=%v", h.cursor, h.containers[1])
	}
	if p.PlaceOnCursor(item.Snapshot{ItemID: itemGel, Stack: 1}) {
		t.Fatal("occupied cursor was overwritten")
	}
	if p.TakeItemToCursor(1, 0, 1) || h.containers[1][0].Stack != 2 {
		t.Fatal("take to occupied cursor changed storage")
	}
	if got := p.CursorItem(); got.ItemID != itemWood || got.Stack != 4 {
		t.Fatalf("CursorItem = %+v", got)
	}
	if n := p.DepositCursor(); n != 4 || !p.IsCursorEmpty() || h.containers[1][0].Stack != 6 {
		t.Fatalf("DepositCursor = %d chest=%v", n, h.containers[1])
	}
}

func TestGiveToPlayerFillsBeforeDropping(t *testing.T) {
	h := newFakeHost()
	h.containers[item.SourceInventory] = []item.Slot{{ItemID: itemWood, Stack: 17}, {ItemID: itemGel, Stack: 20}}
	p := newTestPool(h, 2)
	if !p.GiveToPlayer(item.Snapshot{ItemID: itemWood, Stack: 8}) {
		t.Fatal("give failed")
	}
	if h.containers[item.SourceInventory][0].Stack != 20 {
		t.Fatalf("matching stack not topped up: %v", h.containers[item.SourceInventory])
	}
	if len(h.dropped) != 1 || h.dropped[0].ItemID != itemWood || h.dropped[0].Stack != 5 {
		t.Fatalf("dropped = %v, want only the 5 that did not fit", h.dropped)
	}

	h.containers[item.SourceInventory][0] = item.Slot{ItemID: itemWood, Stack: 17}
	h.dropped, h.noDrop = nil, true
	if p.GiveToPlayer(item.Snapshot{ItemID: itemWood, Stack: 8}) {
		t.Fatal("give should fail when the remainder cannot be dropped")
	}
	if h.containers[item.SourceInventory][0].Stack != 17 {
		t.Fatal("refused give changed the inventory")
	}
}

func TestTakeRespectsReach(t *testing.T) {
	h := newFakeHost()
	h.addChest(1, 40, 0, item.Slot{ItemID: itemWood, Stack: 6})
	p := newTestPool(h, 4)
	p.Registry().RegisterChest(40, 0)
	p.SetReach(25)

	if _, ok := p.TakeItem(1, 0, 1); ok {
		t.Fatal("took from a chest outside reach")
	}
	if p.MoveToInventory(1, 0, 6) || p.TakeItemToCursor(1, 0, 6) {
		t.Fatal("moved items out of a chest outside reach")
	}
	if h.containers[1][0].Stack != 6 {
		t.Fatalf("chest changed: %v", h.containers[1])
	}

	p.SetReach(50)
	if !p.MoveToInventory(1, 0, 6) || total(h, itemWood) != 6 || !h.containers[1][0].IsEmpty() {
		t.Fatalf("move within reach failed: inv=%v chest=%v", h.containers[item.SourceInventory], h.containers[1])
	}
}

func TestRoom(t *testing.T) {
	h := newFakeHost()
	h.addChest(1, 0, 1, item.Slot{ItemID: itemWood, Stack: 15}, item.Slot{ItemID: itemGel, Stack: 1})
	h.addChest(2, 0, 2, item.Slot{})
	p := newTestPool(h, 4)
	p.Registry().RegisterChest(0, 1)

	if got := p.Room(item.Snapshot{ItemID: itemWood, Stack: 30}); got != 5 {
		t.Fatalf("room = %d, want 5", got)
	}
	p.Registry().RegisterChest(0, 2)
	if got := p.Room(item.Snapshot{ItemID: itemWood, Stack: 30}); got != 25 {
		t.Fatalf("room = %d, want 25", got)
	}
	if got := p.Room(item.Snapshot{ItemID: itemWood, Stack: 3}); got != 3 {
		t.Fatalf("room capped = %d, want 3", got)
	}
	if h.containers[1][0].Stack != 15 || !h.containers[2][0].IsEmpty() {
		t.Fatal("Room wrote to storage")
	}
}
