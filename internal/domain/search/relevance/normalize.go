// Package relevance scores free-text product queries against candidate strings.
//
// Every function here is total over arbitrary input and free of shared mutable
// state, so an Engine can be used from any number of goroutines.
package relevance

import (
	"iter"
	"regexp"
	"slices"
	"strings"
)

var (
	separatorRun = regexp.MustCompile(`[/_\-,:]+`)
	nonAlnum     = regexp.MustCompile(`[^a-z0-9\s]`)
	spaceRun     = regexp.MustCompile(`\s+`)
)

// Normalize lowercases text, turns separator runs into a single space, strips
// everything that is not an ASCII letter, digit or space, and collapses whitespace.
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	s := strings.ToLower(text)
	s = separatorRun.ReplaceAllString(s, " ")
	s = nonAlnum.ReplaceAllString(s, "")
	s = spaceRun.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Keywords yields the keywords of text in input order: normalized tokens of at
// least two characters that are neither stop words nor purely numeric.
// The sequence can be ranged over any number of times.
func (e *Engine) Keywords(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, tok := range strings.Fields(Normalize(text)) {
			if len(tok) < 2 || isDigits(tok) {
				continue
			}
			if _, stop := e.dict.stopWords[tok]; stop {
				continue
			}
			if !yield(tok) {
				return
			}
		}
	}
}

// ExtractKeywords collects Keywords into a slice.
func (e *Engine) ExtractKeywords(text string) []string {
	return slices.Collect(e.Keywords(text))
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}
