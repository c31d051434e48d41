package recipe

import (
	"fmt"
	"sort"

	"github.com/gravitas-games/storagehub/internal/item"
	"github.com/gravitas-games/storagehub/internal/logger"
)

// Index holds the compacted recipe list and its lookup tables. It is built
// once per world load and read-only afterwards.
type Index struct {
	recipes      []*Info
	byOutput     map[int][]int
	byIngredient map[int][]int
	byStation    map[int][]int
	byOriginal   map[int]int
	groups       map[int]Group // keyed by synthetic id
	skipped      int
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{
		byOutput:     make(map[int][]int),
		byIngredient: make(map[int][]int),
		byStation:    make(map[int][]int),
		byOriginal:   make(map[int]int),
		groups:       make(map[int]Group),
	}
}

// Build indexes every usable record of src in a single pass. Malformed
// records are logged and skipped; they never abort the build.
func Build(src Source, log logger.Logger) *Index {
	log = logger.OrNop(log)
	idx := NewIndex()
	if src == nil {
		log.Errorf("recipe index: no recipe source available, crafting disabled")
		return idx
	}

	groupsByID := make(map[int]Group)
	for _, g := range src.RecipeGroups() {
		if g.ID < 0 || len(g.ItemIDs) == 0 {
			log.Warnf("recipe index: skipping empty or invalid group %d (%s)", g.ID, g.Name)
			continue
		}
		groupsByID[g.ID] = g
	}

	records := src.RecipeRecords()
	count := src.RecipeCount()
	if count > len(records) {
		log.Warnf("recipe index: declared recipe count %d exceeds table length %d, clamping", count, len(records))
		count = len(records)
	}
	if count < 0 {
		log.Warnf("recipe index: negative recipe count %d", count)
		count = 0
	}

	for i := 0; i < count; i++ {
		info, err := idx.extract(i, records[i], groupsByID, log)
		if err != nil {
			idx.skipped++
			log.Debugf("recipe index: skipping recipe %d: %v", i, err)
			continue
		}
		idx.add(info)
	}

	log.Infof("recipe index: %d recipes indexed, %d skipped, %d groups", len(idx.recipes), idx.skipped, len(idx.groups))
	return idx
}

func (idx *Index) extract(original int, rec *Record, groups map[int]Group, log logger.Logger) (*Info, error) {
	if rec == nil {
		return nil, fmt.Errorf("nil record")
	}
	if rec.OutputItemID <= 0 {
		return nil, fmt.Errorf("output item id %d", rec.OutputItemID)
	}
	if rec.OutputStack <= 0 {
		return nil, fmt.Errorf("output stack %d", rec.OutputStack)
	}

	info := &Info{
		OriginalIndex: original,
		OutputItemID:  rec.OutputItemID,
		OutputStack:   rec.OutputStack,
		OutputName:    rec.OutputName,
	}

	positions := make(map[int]int) // ingredient id -> position in info.Ingredients
	for n, raw := range rec.Ingredients {
		if raw.ItemID <= 0 && raw.Stack <= 0 {
			continue // unused ingredient slot
		}
		if raw.ItemID <= 0 || raw.Stack <= 0 {
			log.Warnf("recipe index: recipe %d ingredient %d malformed (item %d, stack %d), skipped", original, n, raw.ItemID, raw.Stack)
			continue
		}
		ing := Ingredient{ItemID: raw.ItemID, RequiredStack: raw.Stack, Name: raw.Name}
		for _, gid := range rec.AcceptedGroups {
			g, ok := groups[gid]
			if !ok {
				log.Warnf("recipe index: recipe %d references unknown group %d", original, gid)
				continue
			}
			if g.Contains(raw.ItemID) {
				ing.IsGroup = true
				ing.GroupID = g.ID
				ing.ItemID = g.ID + GroupIDOffset
				ing.ValidItemIDs = append([]int(nil), g.ItemIDs...)
				if g.Name != "" {
					ing.Name = g.Name
				}
				idx.groups[ing.ItemID] = g
				break
			}
		}
		if pos, dup := positions[ing.ItemID]; dup {
			merged := int64(info.Ingredients[pos].RequiredStack) + int64(ing.RequiredStack)
			if merged > item.MaxQuantity {
				return nil, fmt.Errorf("ingredient %s needs more than %d", ing.Name, item.MaxQuantity)
			}
			info.Ingredients[pos].RequiredStack = int(merged)
			continue
		}
		positions[ing.ItemID] = len(info.Ingredients)
		info.Ingredients = append(info.Ingredients, ing)
	}

	seen := make(map[int]bool)
	for _, st := range rec.Stations {
		if st < 0 || seen[st] {
			continue
		}
		seen[st] = true
		info.RequiredStations = append(info.RequiredStations, st)
	}

	if rec.NeedWater {
		info.Env |= EnvWater
	}
	if rec.NeedHoney {
		info.Env |= EnvHoney
	}
	if rec.NeedLava {
		info.Env |= EnvLava
	}
	if rec.NeedSnow {
		info.Env |= EnvSnow
	}
	if rec.NeedGraveyard {
		info.Env |= EnvGraveyard
	}
	return info, nil
}

func (idx *Index) add(info *Info) {
	pos := len(idx.recipes)
	info.Index = pos
	idx.recipes = append(idx.recipes, info)
	idx.byOriginal[info.OriginalIndex] = pos
	idx.byOutput[info.OutputItemID] = append(idx.byOutput[info.OutputItemID], pos)
	for _, ing := range info.Ingredients {
		idx.byIngredient[ing.ItemID] = appendUnique(idx.byIngredient[ing.ItemID], pos)
		if ing.IsGroup {
			for _, member := range ing.ValidItemIDs {
				idx.byIngredient[member] = appendUnique(idx.byIngredient[member], pos)
			}
		}
	}
	for _, st := range info.RequiredStations {
		idx.byStation[st] = append(idx.byStation[st], pos)
	}
}

func appendUnique(list []int, pos int) []int {
	if n := len(list); n > 0 && list[n-1] == pos {
		return list
	}
	return append(list, pos)
}

func (idx *Index) resolve(positions []int) []*Info {
	if len(positions) == 0 {
		return nil
	}
	out := make([]*Info, 0, len(positions))
	for _, p := range positions {
		out = append(out, idx.recipes[p])
	}
	return out
}

// GetRecipesByOutput returns the recipes producing itemID.
func (idx *Index) GetRecipesByOutput(itemID int) []*Info {
	return idx.resolve(idx.byOutput[itemID])
}

// GetRecipesUsingIngredient returns the recipes consuming itemID, either
// directly or through a group containing it. Synthetic group ids are
// accepted too.
func (idx *Index) GetRecipesUsingIngredient(itemID int) []*Info {
	return idx.resolve(idx.byIngredient[itemID])
}

// GetRecipesByStation returns the recipes requiring stationID.
func (idx *Index) GetRecipesByStation(stationID int) []*Info {
	return idx.resolve(idx.byStation[stationID])
}

// GetRecipe returns the recipe at a compacted index.
func (idx *Index) GetRecipe(index int) (*Info, bool) {
	if index < 0 || index >= len(idx.recipes) {
		return nil, false
	}
	return idx.recipes[index], true
}

// GetRecipeByOriginalIndex returns the recipe at a host table position.
func (idx *Index) GetRecipeByOriginalIndex(original int) (*Info, bool) {
	pos, ok := idx.byOriginal[original]
	if !ok {
		return nil, false
	}
	return idx.recipes[pos], true
}

// ProducersOf returns every recipe whose output satisfies ing. For group
// ingredients this is the union over all member items, in member order.
func (idx *Index) ProducersOf(ing Ingredient) []*Info {
	if !ing.IsGroup {
		return idx.GetRecipesByOutput(ing.ItemID)
	}
	var out []*Info
	seen := make(map[int]bool)
	for _, member := range ing.ValidItemIDs {
		for _, p := range idx.byOutput[member] {
			if seen[p] {
				continue
			}
			seen[p] = true
			out = append(out, idx.recipes[p])
		}
	}
	return out
}

// Recipes returns every indexed recipe in compacted order.
func (idx *Index) Recipes() []*Info {
	out := make([]*Info, len(idx.recipes))
	copy(out, idx.recipes)
	return out
}

// Len returns the number of indexed recipes.
func (idx *Index) Len() int {
	return len(idx.recipes)
}

// Skipped returns how many source records were rejected during Build.
func (idx *Index) Skipped() int {
	return idx.skipped
}

// Groups describes, as group ingredients, every group that appears in at
// least one recipe, sorted by synthetic id.
func (idx *Index) Groups() []Ingredient {
	ids := make([]int, 0, len(idx.groups))
	for id := range idx.groups {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]Ingredient, 0, len(ids))
	for _, id := range ids {
		g := idx.groups[id]
		out = append(out, Ingredient{ItemID: id, Name: g.Name, IsGroup: true, GroupID: g.ID, ValidItemIDs: g.ItemIDs})
	}
	return out
}
