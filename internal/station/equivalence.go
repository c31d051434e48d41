package station

import "sort"

// Equivalences maps a station tile type to the station types it also counts
// as (an upgraded furnace also counts as a furnace). Implications chain: if
// A implies B and B implies C, A implies C.
type Equivalences map[int][]int

// DefaultEquivalences mirrors the host's built-in upgrade chains.
func DefaultEquivalences() Equivalences {
	return Equivalences{
		TileHellforge:        {TileFurnace},
		TileAdamantiteForge:  {TileHellforge},
		TileMythrilAnvil:     {TileAnvil},
		TileAlchemyTable:     {TileBottle},
		TileLunarCraftingSta: {TileAnvil, TileMythrilAnvil, TileAdamantiteForge, TileWorkBench, TileTinkerersTable},
		TileBewitchingTable:  {TileTable},
	}
}

// Common station tile types.
const (
	TileWorkBench        = 18
	TileFurnace          = 17
	TileAnvil            = 16
	TileTable            = 14
	TileBottle           = 13
	TileSawmill          = 106
	TileLoom             = 86
	TileHellforge        = 77
	TileMythrilAnvil     = 134
	TileAdamantiteForge  = 133
	TileTinkerersTable   = 114
	TileAlchemyTable     = 355
	TileBewitchingTable  = 287
	TileLunarCraftingSta = 412
)

// Resolve returns tile plus every type it transitively implies, sorted.
// Cycles in the table are tolerated.
func (e Equivalences) Resolve(tile int) []int {
	seen := map[int]bool{tile: true}
	queue := []int{tile}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range e[cur] {
			if seen[next] {
				continue
			}
			seen[next] = true
			queue = append(queue, next)
		}
	}
	out := make([]int, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Ints(out)
	return out
}

// AddResolved adds tile and every type it implies to set.
func (e Equivalences) AddResolved(set map[int]bool, tile int) {
	if set[tile] {
		return
	}
	for _, t := range e.Resolve(tile) {
		set[t] = true
	}
}
