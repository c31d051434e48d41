package storage

import (
	"sort"
	"strings"

	"github.com/gravitas-games/storagehub/internal/item"
)

// Sort modes accepted by Aggregate.
const (
	SortName      = "name"
	SortCount     = "count"
	SortID        = "id"
	SortRarity    = "rarity"
	SortFavorites = "favorites"
)

// FilterAll disables category filtering.
const FilterAll = "all"

// Stack is one aggregated line of the unified item view.
type Stack struct {
	ItemID   int
	Prefix   int
	Name     string
	Rarity   int
	Flags    item.Flags
	Total    int
	Sources  []int
	Favorite bool
}

type stackKey struct{ id, prefix int }

// Aggregate merges snapshots by (item id, prefix), filters by category and
// sorts by mode. Unknown modes fall back to name order. favorites may be nil.
func Aggregate(snaps []item.Snapshot, mode, category string, favorites map[int]bool) []Stack {
	var want item.Flags
	if category != "" && category != FilterAll {
		f, ok := item.ParseFlag(strings.ToLower(category))
		if !ok {
			return nil
		}
		want = f
	}

	byKey := make(map[stackKey]int)
	var out []Stack
	for _, s := range snaps {
		if s.IsEmpty() {
			continue
		}
		if want != 0 && !s.Flags.Has(want) {
			continue
		}
		k := stackKey{s.ItemID, s.Prefix}
		i, ok := byKey[k]
		if !ok {
			i = len(out)
			byKey[k] = i
			out = append(out, Stack{
				ItemID:   s.ItemID,
				Prefix:   s.Prefix,
				Name:     s.Name,
				Rarity:   s.Rarity,
				Flags:    s.Flags,
				Favorite: favorites[s.ItemID],
			})
		}
		st := &out[i]
		st.Total = item.AddQuantity(st.Total, s.Stack)
		if !containsInt(st.Sources, s.Source) {
			st.Sources = append(st.Sources, s.Source)
		}
	}

	byName := func(a, b Stack) bool {
		an, bn := strings.ToLower(a.Name), strings.ToLower(b.Name)
		if an != bn {
			return an < bn
		}
		if a.ItemID != b.ItemID {
			return a.ItemID < b.ItemID
		}
		return a.Prefix < b.Prefix
	}
	var less func(a, b Stack) bool
	switch mode {
	case SortCount:
		less = func(a, b Stack) bool {
			if a.Total != b.Total {
				return a.Total > b.Total
			}
			return byName(a, b)
		}
	case SortID:
		less = func(a, b Stack) bool {
			if a.ItemID != b.ItemID {
				return a.ItemID < b.ItemID
			}
			return a.Prefix < b.Prefix
		}
	case SortRarity:
		less = func(a, b Stack) bool {
			if a.Rarity != b.Rarity {
				return a.Rarity > b.Rarity
			}
			return byName(a, b)
		}
	case SortFavorites:
		less = func(a, b Stack) bool {
			if a.Favorite != b.Favorite {
				return a.Favorite
			}
			return byName(a, b)
		}
	default:
		less = byName
	}
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func containsInt(list []int, v int) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
