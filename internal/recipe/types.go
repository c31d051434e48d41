package recipe

// GroupIDOffset separates synthetic group ingredient ids from real item ids.
// A group ingredient for group g carries ItemID g+GroupIDOffset.
const GroupIDOffset = 1_000_000

// IsGroupID reports whether id is a synthetic group ingredient id.
func IsGroupID(id int) bool {
	return id >= GroupIDOffset
}

// Env is the set of environmental conditions a recipe requires.
type Env uint8

const (
	EnvWater Env = 1 << iota
	EnvHoney
	EnvLava
	EnvSnow
	EnvGraveyard
)

var envNames = []struct {
	env  Env
	name string
}{
	{EnvWater, "water"},
	{EnvHoney, "honey"},
	{EnvLava, "lava"},
	{EnvSnow, "snow"},
	{EnvGraveyard, "graveyard"},
}

// Names lists the conditions set in e.
func (e Env) Names() []string {
	var out []string
	for _, en := range envNames {
		if e&en.env != 0 {
			out = append(out, en.name)
		}
	}
	return out
}

// ParseEnv resolves one condition name.
func ParseEnv(name string) (Env, bool) {
	for _, en := range envNames {
		if en.name == name {
			return en.env, true
		}
	}
	return 0, false
}

// AllEnv lists every condition in declaration order.
func AllEnv() []Env {
	out := make([]Env, 0, len(envNames))
	for _, en := range envNames {
		out = append(out, en.env)
	}
	return out
}

// Ingredient is one requirement of an indexed recipe. For group ingredients
// ItemID is the synthetic group id and ValidItemIDs lists the accepted items.
type Ingredient struct {
	ItemID        int
	RequiredStack int
	Name          string
	IsGroup       bool
	GroupID       int
	ValidItemIDs  []int
}

// Accepts reports whether a concrete item satisfies this ingredient.
func (ing Ingredient) Accepts(itemID int) bool {
	if !ing.IsGroup {
		return ing.ItemID == itemID
	}
	for _, id := range ing.ValidItemIDs {
		if id == itemID {
			return true
		}
	}
	return false
}

// Members returns the concrete ids that satisfy the ingredient.
func (ing Ingredient) Members() []int {
	if ing.IsGroup {
		return ing.ValidItemIDs
	}
	return []int{ing.ItemID}
}

// Info is the derived, indexed form of one host recipe.
type Info struct {
	Index            int // position in the compacted index
	OriginalIndex    int // position in the host recipe table
	OutputItemID     int
	OutputStack      int
	OutputName       string
	Ingredients      []Ingredient
	RequiredStations []int
	Env              Env
}

// Name returns the output name, falling back to a generic label.
func (r *Info) Name() string {
	if r.OutputName != "" {
		return r.OutputName
	}
	return "recipe"
}

// Record is one raw host recipe. Host tables may contain nil or partially
// filled records; the index skips those.
type Record struct {
	OutputItemID   int                `yaml:"output"`
	OutputStack    int                `yaml:"output_stack"`
	OutputName     string             `yaml:"name"`
	Ingredients    []IngredientRecord `yaml:"ingredients"`
	AcceptedGroups []int              `yaml:"groups,omitempty"`
	Stations       []int              `yaml:"stations,omitempty"`
	NeedWater      bool               `yaml:"water,omitempty"`
	NeedHoney      bool               `yaml:"honey,omitempty"`
	NeedLava       bool               `yaml:"lava,omitempty"`
	NeedSnow       bool               `yaml:"snow,omitempty"`
	NeedGraveyard  bool               `yaml:"graveyard,omitempty"`
}

// IngredientRecord is one raw ingredient slot of a host recipe.
type IngredientRecord struct {
	ItemID int    `yaml:"item"`
	Stack  int    `yaml:"stack"`
	Name   string `yaml:"name,omitempty"`
}

// Group is a named set of interchangeable items ("any iron bar").
type Group struct {
	ID      int    `yaml:"id"`
	Name    string `yaml:"name"`
	ItemIDs []int  `yaml:"items"`
}

// Contains reports whether itemID belongs to the group.
func (g Group) Contains(itemID int) bool {
	for _, id := range g.ItemIDs {
		if id == itemID {
			return true
		}
	}
	return false
}

// Source is the host's recipe table. RecipeCount is the host's declared
// count, which is not trusted beyond the length of RecipeRecords.
type Source interface {
	RecipeCount() int
	RecipeRecords() []*Record
	RecipeGroups() []Group
}
