package recipe

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

type searchHit struct {
	info  *Info
	score int // 0 exact, 1 prefix, 2 substring, 3+dist fuzzy
}

// Search finds recipes by output name. Exact, prefix and substring matches
// rank ahead of fuzzy matches; ties break by name then compacted index.
func (idx *Index) Search(query string, limit int) []*Info {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}

	var hits []searchHit
	for _, info := range idx.recipes {
		name := strings.ToLower(info.OutputName)
		if name == "" {
			continue
		}
		switch {
		case name == q:
			hits = append(hits, searchHit{info, 0})
		case strings.HasPrefix(name, q):
			hits = append(hits, searchHit{info, 1})
		case strings.Contains(name, q):
			hits = append(hits, searchHit{info, 2})
		default:
			if len(q) < 3 {
				continue
			}
			dist := levenshtein.ComputeDistance(q, name)
			if dist > fuzzyLimit(len(name)) {
				continue
			}
			hits = append(hits, searchHit{info, 3 + dist})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score < hits[j].score
		}
		if hits[i].info.OutputName != hits[j].info.OutputName {
			return hits[i].info.OutputName < hits[j].info.OutputName
		}
		return hits[i].info.Index < hits[j].info.Index
	})

	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]*Info, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.info)
	}
	return out
}

func fuzzyLimit(length int) int {
	switch {
	case length <= 4:
		return 1
	case length <= 8:
		return 2
	default:
		return 3
	}
}
