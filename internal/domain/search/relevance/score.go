package relevance

import (
	"math"
	"strings"
	"unicode/utf8"
)

// Weights are the additive signal magnitudes used by Score.
type Weights struct {
	ExactRaw           int
	ExactNormalized    int
	PrefixRaw          int
	PrefixNormalized   int
	ContainsRaw        int
	ContainsNormalized int
	// CoverageScale multiplies the fraction of query tokens found in the candidate.
	CoverageScale   int
	WordPrefix      int
	ProductKeyword  int
	BrandKeyword    int
	CategoryKeyword int
	ShortBonus      int
	// ShortLength is exclusive: candidates shorter than this get ShortBonus.
	ShortLength int
	// LongLength is exclusive: candidates longer than this are penalized by
	// (length-LongLength)/LongStep, capped at LongPenaltyCap.
	LongLength     int
	LongStep       int
	LongPenaltyCap int
	DomainTerm     int
}

// DefaultWeights returns the production tuning.
func DefaultWeights() Weights {
	return Weights{
		ExactRaw:           200,
		ExactNormalized:    220,
		PrefixRaw:          80,
		PrefixNormalized:   90,
		ContainsRaw:        60,
		ContainsNormalized: 70,
		CoverageScale:      100,
		WordPrefix:         30,
		ProductKeyword:     20,
		BrandKeyword:       15,
		CategoryKeyword:    10,
		ShortBonus:         10,
		ShortLength:        20,
		LongLength:         60,
		LongStep:           5,
		LongPenaltyCap:     20,
		DomainTerm:         25,
	}
}

// Engine scores and ranks candidates with a fixed dictionary and weight table.
type Engine struct {
	dict    Dictionary
	weights Weights
}

// New creates an Engine. The dictionary is copied and lowercased.
func New(dict Dictionary, weights Weights) *Engine {
	if weights.LongStep <= 0 {
		weights.LongStep = 1
	}
	return &Engine{dict: dict.compile(), weights: weights}
}

// Default returns an Engine with DefaultDictionary and DefaultWeights.
func Default() *Engine {
	return New(DefaultDictionary(), DefaultWeights())
}

// Score computes the relevance of candidate for query. The result is a ranking
// signal only and may be negative.
func (e *Engine) Score(candidate, query string) int {
	w := e.weights
	score := 0

	rawC := strings.ToLower(candidate)
	rawQ := strings.ToLower(query)
	normC := Normalize(candidate)
	normQ := Normalize(query)

	if rawC == rawQ {
		score += w.ExactRaw
	}
	if normC == normQ {
		score += w.ExactNormalized
	}
	if strings.HasPrefix(rawC, rawQ) {
		score += w.PrefixRaw
	}
	if strings.HasPrefix(normC, normQ) {
		score += w.PrefixNormalized
	}
	if strings.Contains(rawC, rawQ) {
		score += w.ContainsRaw
	}
	if strings.Contains(normC, normQ) {
		score += w.ContainsNormalized
	}

	candWords := strings.Fields(normC)
	score += int(math.Round(coverage(strings.Fields(normQ), candWords) * float64(w.CoverageScale)))

	for _, word := range candWords {
		if strings.HasPrefix(word, normQ) {
			score += w.WordPrefix
		}
	}

	if containsAny(rawC, e.dict.ProductKeywords) {
		score += w.ProductKeyword
	}
	if containsAny(rawC, e.dict.BrandKeywords) {
		score += w.BrandKeyword
	}
	if containsAny(rawC, e.dict.CategoryKeywords) {
		score += w.CategoryKeyword
	}

	length := utf8.RuneCountInString(candidate)
	if length < w.ShortLength {
		score += w.ShortBonus
	}
	if length > w.LongLength {
		score -= min(w.LongPenaltyCap, (length-w.LongLength)/w.LongStep)
	}

	for _, term := range e.dict.DomainTerms {
		if strings.Contains(normC, term) {
			score += w.DomainTerm
		}
	}

	return score
}

// coverage is the fraction of distinct query tokens present in the candidate.
func coverage(queryTokens, candTokens []string) float64 {
	if len(queryTokens) == 0 {
		return 0
	}
	have := make(map[string]struct{}, len(candTokens))
	for _, t := range candTokens {
		have[t] = struct{}{}
	}
	distinct := make(map[string]struct{}, len(queryTokens))
	found := 0
	for _, t := range queryTokens {
		if _, dup := distinct[t]; dup {
			continue
		}
		distinct[t] = struct{}{}
		if _, ok := have[t]; ok {
			found++
		}
	}
	return float64(found) / float64(len(distinct))
}
