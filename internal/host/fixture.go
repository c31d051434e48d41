package host

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/gravitas-games/storagehub/internal/catalog"
	"github.com/gravitas-games/storagehub/internal/item"
	"github.com/gravitas-games/storagehub/internal/recipe"
	"github.com/gravitas-games/storagehub/internal/station"
)

// Fixture is the YAML description of a world.
type Fixture struct {
	Player struct {
		X int `yaml:"x"`
		Y int `yaml:"y"`
	} `yaml:"player"`
	InventorySize int                    `yaml:"inventory_size"`
	Inventory     []item.Slot            `yaml:"inventory"`
	Banks         map[string][]item.Slot `yaml:"banks"`
	Chests        []ChestFixture         `yaml:"chests"`
	Stations      []StationFixture       `yaml:"stations"`
	Environment   station.Environment    `yaml:"environment"`
	Items         []catalog.ItemDetails  `yaml:"items"`
	Groups        []recipe.Group         `yaml:"groups"`
	Recipes       []*recipe.Record       `yaml:"recipes"`
	RecipeCount   *int                   `yaml:"recipe_count"`
}

// ChestFixture places one container.
type ChestFixture struct {
	X     int         `yaml:"x"`
	Y     int         `yaml:"y"`
	Size  int         `yaml:"size"`
	Items []item.Slot `yaml:"items"`
}

// StationFixture places one station tile.
type StationFixture struct {
	X    int `yaml:"x"`
	Y    int `yaml:"y"`
	Tile int `yaml:"tile"`
}

var bankNames = map[string]int{
	"piggy_bank": item.SourcePiggyBank,
	"safe":       item.SourceSafe,
	"forge":      item.SourceForge,
	"void_vault": item.SourceVoidVault,
}

// LoadFixture reads a YAML world file.
func LoadFixture(path string) (*Memory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read world file: %w", err)
	}
	return ParseFixture(data)
}

// ParseFixture decodes a YAML world description.
func ParseFixture(data []byte) (*Memory, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse world file: %w", err)
	}
	return FromFixture(&f)
}

// FromFixture builds a world from a decoded fixture.
func FromFixture(f *Fixture) (*Memory, error) {
	size := f.InventorySize
	if size < len(f.Inventory) {
		size = len(f.Inventory)
	}
	m := NewMemory(size)
	m.SetPlayer(f.Player.X, f.Player.Y)
	copy(m.inventory, f.Inventory)

	for name, slots := range f.Banks {
		id, ok := bankNames[name]
		if !ok {
			return nil, fmt.Errorf("unknown bank %q", name)
		}
		if len(slots) > len(m.banks[id]) {
			m.banks[id] = make([]item.Slot, len(slots))
		}
		copy(m.banks[id], slots)
	}
	for _, c := range f.Chests {
		if m.ChestExists(c.X, c.Y) {
			return nil, fmt.Errorf("two chests at (%d,%d)", c.X, c.Y)
		}
		m.PlaceChest(c.X, c.Y, c.Size, c.Items...)
	}
	for _, s := range f.Stations {
		m.PlaceStation(s.X, s.Y, s.Tile)
	}
	m.SetEnvironment(f.Environment)

	for _, d := range f.Items {
		if err := m.items.RegisterDetails(d); err != nil {
			return nil, fmt.Errorf("item %d: %w", d.ID, err)
		}
	}
	m.groups = append(m.groups, f.Groups...)
	m.recipes = append(m.recipes, f.Recipes...)
	if f.RecipeCount != nil {
		m.declared = *f.RecipeCount
	}
	return m, nil
}
