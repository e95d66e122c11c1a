package relevance

import (
	"sort"
	"strings"
)

// synonymGroups maps a part-name substring to its interchangeable alternatives.
var synonymGroups = []struct {
	from string
	to   []string
}{
	{from: "board", to: []string{"module", "shield"}},
	{from: "module", to: []string{"board", "shield"}},
}

// ExpandTerms returns every term together with its hardware synonyms and a
// naive singular/plural toggle. Empty terms are ignored.
func ExpandTerms(terms []string) map[string]struct{} {
	out := make(map[string]struct{}, len(terms)*4)
	for _, term := range terms {
		if term == "" {
			continue
		}
		out[term] = struct{}{}
		for _, g := range synonymGroups {
			if !strings.Contains(term, g.from) {
				continue
			}
			for _, to := range g.to {
				out[strings.ReplaceAll(term, g.from, to)] = struct{}{}
			}
		}
		if strings.HasSuffix(term, "s") {
			if singular := strings.TrimSuffix(term, "s"); singular != "" {
				out[singular] = struct{}{}
			}
		} else {
			out[term+"s"] = struct{}{}
		}
	}
	return out
}

// SortedTerms returns the members of a term set in lexical order.
func SortedTerms(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
