package engine

import (
	"sort"

	"github.com/cachegrid/query/services"
)

// sortMatches orders matches by the given criteria, applied in sequence.
// Documents missing a sort field rank after documents that have it. Ties
// (and the no-criteria case) fall back to document identifier order so
// pagination windows are stable across executions.
func sortMatches(matches []match, criteria []services.SortCriterion) {
	sort.SliceStable(matches, func(i, j int) bool {
		for _, c := range criteria {
			av, aok := matches[i].doc[c.Field]
			bv, bok := matches[j].doc[c.Field]
			if !aok && !bok {
				continue
			}
			if !aok {
				return false
			}
			if !bok {
				return true
			}

			cmp, ok := compareOrdered(av, bv)
			if !ok || cmp == 0 {
				continue
			}
			if c.Order == services.SortDesc {
				return cmp > 0
			}
			return cmp < 0
		}
		return matches[i].docID < matches[j].docID
	})
}
