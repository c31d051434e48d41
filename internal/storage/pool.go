package storage

import (
	"math"

	"github.com/gravitas-games/storagehub/internal/catalog"
	"github.com/gravitas-games/storagehub/internal/config"
	"github.com/gravitas-games/storagehub/internal/item"
	"github.com/gravitas-games/storagehub/internal/logger"
)

// NoContainer is returned by DepositItem when nothing was deposited.
const NoContainer = math.MinInt32

// Host exposes the live containers. Returned slices alias host memory;
// only Pool writes through them.
type Host interface {
	PlayerTile() (x, y int)
	Container(id int) []item.Slot
	ChestAt(x, y int) (id int, ok bool)
	ChestPosition(id int) (x, y int, ok bool)
	Cursor() *item.Slot
	DropNearPlayer(s item.Slot) bool
}

// Provider is the storage seam consumed by crafting and UI code.
type Provider interface {
	GetAllItems() []item.Snapshot
	GetItemsInRange(originX, originY, rng int) []item.Snapshot
	AccessibleItems() []item.Snapshot
	TakeItem(containerID, slot, count int) (item.Snapshot, bool)
	DepositItem(s item.Snapshot) (deposited int, containerID int)
	Room(s item.Snapshot) int
	RestoreItem(s item.Snapshot) bool
	MoveToInventory(containerID, slot, count int) bool
	PlaceInInventory(s item.Snapshot) bool
	GiveToPlayer(s item.Snapshot) bool
	PlaceOnCursor(s item.Snapshot) bool
	TakeItemToCursor(containerID, slot, count int) bool
	IsCursorEmpty() bool
}

// Pool is the single-player Provider over inventory, personal banks and
// registered chests.
type Pool struct {
	host     Host
	items    *catalog.Registry
	registry *ChestRegistry
	scan     int
	reach    int
	log      logger.Logger
}

// NewPool creates a provider. The reach defaults to unlimited.
func NewPool(host Host, items *catalog.Registry, registry *ChestRegistry, cfg *config.Config, log logger.Logger) *Pool {
	if cfg == nil {
		cfg = config.Default()
	}
	if items == nil {
		items = catalog.NewRegistry()
	}
	if registry == nil {
		registry = NewChestRegistry(nil, log)
	}
	return &Pool{
		host:     host,
		items:    items,
		registry: registry,
		scan:     cfg.Storage.InventoryScanSlots,
		reach:    config.Unlimited,
		log:      logger.OrNop(log),
	}
}

// SetReach sets the range used by AccessibleItems and deposits.
func (p *Pool) SetReach(rng int) {
	p.reach = rng
}

// Reach returns the current access range.
func (p *Pool) Reach() int {
	return p.reach
}

// Registry returns the chest registry backing the pool.
func (p *Pool) Registry() *ChestRegistry {
	return p.registry
}

// inRange reports whether (x, y) lies within rng tiles of the origin. The
// distance is compared in unsigned 64-bit space after a bounding-box reject.
func inRange(ox, oy, x, y, rng int) bool {
	if rng == config.Unlimited {
		return true
	}
	if rng < 0 {
		return false
	}
	dx, dy, r := absDiff(x, ox), absDiff(y, oy), uint64(rng)
	if dx > r || dy > r {
		return false
	}
	if r <= 1<<31 {
		return dx*dx+dy*dy <= r*r
	}
	return math.Hypot(float64(dx), float64(dy)) <= float64(r)
}

func absDiff(a, b int) uint64 {
	if a >= b {
		return uint64(a) - uint64(b)
	}
	return uint64(b) - uint64(a)
}

// slots returns the live slots of a participating container, nil otherwise.
func (p *Pool) slots(id int) []item.Slot {
	switch {
	case id == item.SourceInventory:
		s := p.host.Container(id)
		if p.scan > 0 && len(s) > p.scan {
			s = s[:p.scan]
		}
		return s
	case item.IsBank(id):
		return p.host.Container(id)
	case item.IsChest(id):
		x, y, ok := p.host.ChestPosition(id)
		if !ok || !p.registry.IsActive(x, y) {
			return nil
		}
		return p.host.Container(id)
	}
	return nil
}

// chests returns the ids of active registered chests within rng of origin.
func (p *Pool) chests(ox, oy, rng int) []int {
	var ids []int
	for _, pos := range p.registry.ActivePositions() {
		if !inRange(ox, oy, pos.X, pos.Y, rng) {
			continue
		}
		id, ok := p.host.ChestAt(pos.X, pos.Y)
		if !ok {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func (p *Pool) collect(out []item.Snapshot, id int) []item.Snapshot {
	for i, s := range p.slots(id) {
		if s.IsEmpty() {
			continue
		}
		out = append(out, p.items.Describe(s, id, i))
	}
	return out
}

// GetAllItems enumerates inventory, banks and every registered chest.
func (p *Pool) GetAllItems() []item.Snapshot {
	return p.GetItemsInRange(0, 0, config.Unlimited)
}

// GetItemsInRange enumerates inventory, banks and registered chests within
// rng tiles of the origin.
func (p *Pool) GetItemsInRange(originX, originY, rng int) []item.Snapshot {
	var out []item.Snapshot
	out = p.collect(out, item.SourceInventory)
	for _, bank := range item.BankSources {
		out = p.collect(out, bank)
	}
	for _, id := range p.chests(originX, originY, rng) {
		out = p.collect(out, id)
	}
	return out
}

// AccessibleItems enumerates everything within the current reach of the player.
func (p *Pool) AccessibleItems() []item.Snapshot {
	x, y := p.host.PlayerTile()
	return p.GetItemsInRange(x, y, p.reach)
}

// withinReach reports whether a chest lies inside the current reach of the
// player. The inventory and banks are always within reach.
func (p *Pool) withinReach(id int) bool {
	if !item.IsChest(id) {
		return true
	}
	x, y, ok := p.host.ChestPosition(id)
	if !ok {
		return false
	}
	px, py := p.host.PlayerTile()
	return inRange(px, py, x, y, p.reach)
}

// TakeItem removes up to count units from one slot. Chests outside the
// current reach refuse.
func (p *Pool) TakeItem(containerID, slot, count int) (item.Snapshot, bool) {
	if count <= 0 {
		return item.Snapshot{}, false
	}
	if !p.withinReach(containerID) {
		p.log.Debugf("storage: take from container %d outside reach %d", containerID, p.reach)
		return item.Snapshot{}, false
	}
	slots := p.slots(containerID)
	if slot < 0 || slot >= len(slots) {
		p.log.Debugf("storage: take from invalid slot %d of container %d", slot, containerID)
		return item.Snapshot{}, false
	}
	live := &slots[slot]
	if live.IsEmpty() {
		return item.Snapshot{}, false
	}
	n := count
	if n > live.Stack {
		n = live.Stack
	}
	taken := p.items.Describe(item.Slot{ItemID: live.ItemID, Stack: n, Prefix: live.Prefix}, containerID, slot)
	live.Stack -= n
	if live.Stack <= 0 {
		live.Clear()
	}
	return taken, true
}

// depositTargets lists the pool containers deposits may use, chests first.
func (p *Pool) depositTargets() []int {
	x, y := p.host.PlayerTile()
	ids := p.chests(x, y, p.reach)
	return append(ids, item.BankSources...)
}

// fill places up to want units of s into slots, stacking first then using
// empty slots. With commit false it only counts.
func fill(slots []item.Slot, s item.Snapshot, want, maxStack int, commit bool) int {
	placed := 0
	for i := range slots {
		if placed >= want {
			break
		}
		if slots[i].IsEmpty() || !s.SameKind(slots[i]) || slots[i].Stack >= maxStack {
			continue
		}
		n := min(maxStack-slots[i].Stack, want-placed)
		if commit {
			slots[i].Stack += n
		}
		placed += n
	}
	for i := range slots {
		if placed >= want {
			break
		}
		if !slots[i].IsEmpty() {
			continue
		}
		n := min(maxStack, want-placed)
		if commit {
			slots[i] = item.Slot{ItemID: s.ItemID, Stack: n, Prefix: s.Prefix}
		}
		placed += n
	}
	return placed
}

// DepositItem stores s.Stack units in the pool: first onto matching stacks
// across every container, then into empty slots. The deposited amount may be
// partial when the pool is full.
func (p *Pool) DepositItem(s item.Snapshot) (int, int) {
	if s.IsEmpty() {
		return 0, NoContainer
	}
	maxStack := p.items.MaxStack(s.ItemID)
	targets := p.depositTargets()
	first := NoContainer
	deposited := 0

	// pass 1: existing stacks only
	for _, id := range targets {
		slots := p.slots(id)
		for i := range slots {
			if deposited >= s.Stack {
				break
			}
			if slots[i].IsEmpty() || !s.SameKind(slots[i]) || slots[i].Stack >= maxStack {
				continue
			}
			n := min(maxStack-slots[i].Stack, s.Stack-deposited)
			slots[i].Stack += n
			deposited += n
			if first == NoContainer {
				first = id
			}
		}
	}
	// pass 2: empty slots
	for _, id := range targets {
		if deposited >= s.Stack {
			break
		}
		slots := p.slots(id)
		for i := range slots {
			if deposited >= s.Stack {
				break
			}
			if !slots[i].IsEmpty() {
				continue
			}
			n := min(maxStack, s.Stack-deposited)
			slots[i] = item.Slot{ItemID: s.ItemID, Stack: n, Prefix: s.Prefix}
			deposited += n
			if first == NoContainer {
				first = id
			}
		}
	}
	if deposited < s.Stack {
		p.log.Warnf("storage: pool full, deposited %d of %d x item %d", deposited, s.Stack, s.ItemID)
	}
	return deposited, first
}

// Room reports how many units of s, up to s.Stack, the deposit targets could
// take right now.
func (p *Pool) Room(s item.Snapshot) int {
	if s.IsEmpty() {
		return 0
	}
	maxStack := p.items.MaxStack(s.ItemID)
	room := 0
	for _, id := range p.depositTargets() {
		if room >= s.Stack {
			break
		}
		room += fill(p.slots(id), s, s.Stack-room, maxStack, false)
	}
	return room
}

// RestoreItem puts s back into the exact slot it was taken from. It only
// succeeds when the whole stack fits there.
func (p *Pool) RestoreItem(s item.Snapshot) bool {
	if s.IsEmpty() {
		return false
	}
	slots := p.slots(s.Source)
	if s.Slot < 0 || s.Slot >= len(slots) {
		return false
	}
	live := &slots[s.Slot]
	if live.IsEmpty() {
		*live = s.Live()
		return true
	}
	if !s.SameKind(*live) {
		return false
	}
	if int64(live.Stack)+int64(s.Stack) > int64(p.items.MaxStack(s.ItemID)) {
		return false
	}
	live.Stack += s.Stack
	return true
}

// PlaceInInventory places the whole stack into the scanned inventory slots,
// or nothing at all.
func (p *Pool) PlaceInInventory(s item.Snapshot) bool {
	if s.IsEmpty() {
		return false
	}
	slots := p.slots(item.SourceInventory)
	maxStack := p.items.MaxStack(s.ItemID)
	if fill(slots, s, s.Stack, maxStack, false) < s.Stack {
		return false
	}
	fill(slots, s, s.Stack, maxStack, true)
	return true
}

// GiveToPlayer hands s to the player: as much as fits goes into the
// inventory, onto matching stacks first, and the rest is dropped at the
// player's feet by the host. When the host refuses the drop nothing is
// placed and it returns false.
func (p *Pool) GiveToPlayer(s item.Snapshot) bool {
	if s.IsEmpty() {
		return false
	}
	slots := p.slots(item.SourceInventory)
	maxStack := p.items.MaxStack(s.ItemID)
	fits := fill(slots, s, s.Stack, maxStack, false)
	if rem := s.Stack - fits; rem > 0 {
		if !p.host.DropNearPlayer(s.WithStack(rem).Live()) {
			return false
		}
	}
	fill(slots, s, fits, maxStack, true)
	return true
}

// MoveToInventory moves up to count units from a pool slot into the
// inventory. Units that do not fit go back to the pool.
func (p *Pool) MoveToInventory(containerID, slot, count int) bool {
	if containerID == item.SourceInventory {
		return false
	}
	taken, ok := p.TakeItem(containerID, slot, count)
	if !ok {
		return false
	}
	slots := p.slots(item.SourceInventory)
	placed := fill(slots, taken, taken.Stack, p.items.MaxStack(taken.ItemID), true)
	if rem := taken.Stack - placed; rem > 0 {
		p.recover(taken.WithStack(rem))
	}
	return placed > 0
}

// recover finds a home for units already removed from storage, trying the
// original slot, the pool, then the host's drop path.
func (p *Pool) recover(s item.Snapshot) {
	if p.RestoreItem(s) {
		return
	}
	deposited, _ := p.DepositItem(s)
	rem := s.Stack - deposited
	if rem <= 0 {
		return
	}
	if p.host.DropNearPlayer(item.Slot{ItemID: s.ItemID, Stack: rem, Prefix: s.Prefix}) {
		p.log.Warnf("storage: dropped %d x item %d near player, no room in storage", rem, s.ItemID)
		return
	}
	p.log.Criticalf("storage: LOST %d x item %d (prefix %d) from container %d slot %d, no room anywhere", rem, s.ItemID, s.Prefix, s.Source, s.Slot)
}

// IsCursorEmpty reports whether the holding slot is free.
func (p *Pool) IsCursorEmpty() bool {
	c := p.host.Cursor()
	return c == nil || c.IsEmpty()
}

// CursorItem returns a snapshot of the holding slot.
func (p *Pool) CursorItem() item.Snapshot {
	c := p.host.Cursor()
	if c == nil || c.IsEmpty() {
		return item.Snapshot{}
	}
	return p.items.Describe(*c, item.SourceInventory, -1)
}

// PlaceOnCursor puts s into the holding slot. It refuses an occupied slot.
func (p *Pool) PlaceOnCursor(s item.Snapshot) bool {
	c := p.host.Cursor()
	if c == nil || !c.IsEmpty() || s.IsEmpty() {
		return false
	}
	*c = s.Live()
	return true
}

// TakeItemToCursor moves up to count units from a slot into the holding slot.
func (p *Pool) TakeItemToCursor(containerID, slot, count int) bool {
	if !p.IsCursorEmpty() {
		return false
	}
	taken, ok := p.TakeItem(containerID, slot, count)
	if !ok {
		return false
	}
	if !p.PlaceOnCursor(taken) {
		p.recover(taken)
		return false
	}
	return true
}

// DepositCursor moves the holding slot's contents into the pool. Units that
// do not fit stay on the cursor.
func (p *Pool) DepositCursor() int {
	c := p.host.Cursor()
	if c == nil || c.IsEmpty() {
		return 0
	}
	snap := p.items.Describe(*c, item.SourceInventory, -1)
	deposited, _ := p.DepositItem(snap)
	c.Stack -= deposited
	if c.Stack <= 0 {
		c.Clear()
	}
	return deposited
}
