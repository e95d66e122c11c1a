package relevance

import (
	"cmp"
	"slices"
)

// DefaultMaxSuggestions is used when a non-positive limit is passed to Suggest.
const DefaultMaxSuggestions = 8

// minQueryLength is the shortest normalized query that produces results.
const minQueryLength = 2

// Candidate is a searchable text bound to an external identifier.
type Candidate struct {
	ID   string
	Text string
}

// Scored is a candidate with its relevance score.
type Scored struct {
	Candidate
	Score int
}

// Rank scores every candidate, drops non-positive scores, sorts descending
// (ties keep input order) and truncates to limit. limit <= 0 means no limit.
func (e *Engine) Rank(candidates []Candidate, query string, limit int) []Scored {
	if len(Normalize(query)) < minQueryLength {
		return nil
	}

	out := make([]Scored, 0, len(candidates))
	for _, c := range candidates {
		if s := e.Score(c.Text, query); s > 0 {
			out = append(out, Scored{Candidate: c, Score: s})
		}
	}

	slices.SortStableFunc(out, func(a, b Scored) int {
		return cmp.Compare(b.Score, a.Score)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Suggest returns up to maxResults candidate strings ordered by relevance.
// Queries that normalize to fewer than two characters produce no suggestions.
func (e *Engine) Suggest(candidates []string, query string, maxResults int) []string {
	if maxResults <= 0 {
		maxResults = DefaultMaxSuggestions
	}
	cands := make([]Candidate, len(candidates))
	for i, c := range candidates {
		cands[i] = Candidate{Text: c}
	}

	ranked := e.Rank(cands, query, maxResults)
	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = r.Text
	}
	return out
}
