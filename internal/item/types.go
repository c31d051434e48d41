// Package item holds the value types shared by every storage and crafting
// component: the live Slot owned by the host and the disconnected Snapshot
// copies handed out by the storage provider.
package item

// Source identifiers for personal containers. Non-negative values are chest
// ids assigned by the host.
const (
	SourceInventory = -1
	SourcePiggyBank = -2
	SourceSafe      = -3
	SourceForge     = -4
	SourceVoidVault = -5
)

// BankSources lists the personal bank containers in tier order.
var BankSources = []int{SourcePiggyBank, SourceSafe, SourceForge, SourceVoidVault}

// IsBank reports whether source identifies one of the personal banks.
func IsBank(source int) bool {
	return source <= SourcePiggyBank && source >= SourceVoidVault
}

// IsChest reports whether source identifies an ordinary registered container.
func IsChest(source int) bool {
	return source >= 0
}

// SourceName returns a short human-readable label for a source identifier.
func SourceName(source int) string {
	switch source {
	case SourceInventory:
		return "inventory"
	case SourcePiggyBank:
		return "piggy bank"
	case SourceSafe:
		return "safe"
	case SourceForge:
		return "defender's forge"
	case SourceVoidVault:
		return "void vault"
	}
	if source >= 0 {
		return "chest"
	}
	return "unknown"
}

// Flags is a compact set of item categories.
type Flags uint32

const (
	FlagWeapon Flags = 1 << iota
	FlagArmor
	FlagAccessory
	FlagPlaceable
	FlagMaterial
	FlagAmmo
	FlagConsumable
	FlagTool
	FlagVanity
	FlagCoin
)

var flagNames = []struct {
	flag Flags
	name string
}{
	{FlagWeapon, "weapon"},
	{FlagArmor, "armor"},
	{FlagAccessory, "accessory"},
	{FlagPlaceable, "placeable"},
	{FlagMaterial, "material"},
	{FlagAmmo, "ammo"},
	{FlagConsumable, "consumable"},
	{FlagTool, "tool"},
	{FlagVanity, "vanity"},
	{FlagCoin, "coin"},
}

// Has reports whether every bit of want is set.
func (f Flags) Has(want Flags) bool {
	return want != 0 && f&want == want
}

// Names lists the category names set in f, in declaration order.
func (f Flags) Names() []string {
	var out []string
	for _, fn := range flagNames {
		if f&fn.flag != 0 {
			out = append(out, fn.name)
		}
	}
	return out
}

// ParseFlag resolves a category name. The boolean is false for unknown names.
func ParseFlag(name string) (Flags, bool) {
	for _, fn := range flagNames {
		if fn.name == name {
			return fn.flag, true
		}
	}
	return 0, false
}

// Slot is one live storage cell owned by the host. Only the storage provider
// mutates slots.
type Slot struct {
	ItemID int `json:"itemId" yaml:"item"`
	Stack  int `json:"stack" yaml:"stack"`
	Prefix int `json:"prefix,omitempty" yaml:"prefix,omitempty"`
}

// IsEmpty reports whether the slot holds nothing.
func (s Slot) IsEmpty() bool {
	return s.ItemID <= 0 || s.Stack <= 0
}

// Clear empties the slot.
func (s *Slot) Clear() {
	*s = Slot{}
}

// Snapshot is an immutable copy of one item stack plus where it came from.
// It never aliases the live slot it was taken from.
type Snapshot struct {
	ItemID   int
	Stack    int
	Prefix   int
	Name     string
	MaxStack int
	Rarity   int
	Source   int
	Slot     int
	Flags    Flags
}

// IsEmpty reports whether the snapshot describes no items.
func (s Snapshot) IsEmpty() bool {
	return s.ItemID <= 0 || s.Stack <= 0
}

// WithStack returns a copy with a different stack size.
func (s Snapshot) WithStack(n int) Snapshot {
	s.Stack = n
	return s
}

// Live converts the snapshot back into the slot contents it describes.
func (s Snapshot) Live() Slot {
	return Slot{ItemID: s.ItemID, Stack: s.Stack, Prefix: s.Prefix}
}

// SameKind reports whether two stacks may share a slot.
func (s Snapshot) SameKind(other Slot) bool {
	return s.ItemID == other.ItemID && s.Prefix == other.Prefix
}

// Total sums the stack sizes of snaps.
func Total(snaps []Snapshot) int {
	total := 0
	for _, s := range snaps {
		if !s.IsEmpty() {
			total += s.Stack
		}
	}
	return total
}
