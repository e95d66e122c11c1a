package search

import (
	"cmp"
	"slices"

	"github.com/kailas-cloud/storefront/internal/domain/search/result"
)

// mergeByProduct folds several ranked lists into one, keeping each product
// once with its best score and the keyword that produced it. Ties keep the
// order in which products were first seen, so earlier lists win.
func mergeByProduct(lists [][]result.Result, limit int) []result.Result {
	type entry struct {
		res   result.Result
		order int
	}

	merged := make(map[string]*entry)
	for _, list := range lists {
		for _, r := range list {
			existing, ok := merged[r.ID()]
			if !ok {
				merged[r.ID()] = &entry{res: r, order: len(merged)}
				continue
			}
			if r.Score() > existing.res.Score() {
				existing.res = r
			}
		}
	}

	entries := make([]*entry, 0, len(merged))
	for _, e := range merged {
		entries = append(entries, e)
	}
	slices.SortFunc(entries, func(a, b *entry) int {
		if c := cmp.Compare(b.res.Score(), a.res.Score()); c != 0 {
			return c
		}
		return cmp.Compare(a.order, b.order)
	})

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	out := make([]result.Result, len(entries))
	for i, e := range entries {
		out[i] = e.res
	}
	return out
}
