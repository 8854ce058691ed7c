package resolver

import (
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"

	"ai-trivia-bot/pkg/store"
)

// Match methods, reported so callers (and logs) can tell how a hit was made.
const (
	MethodContainment = "containment"
	MethodFuzzy       = "fuzzy"
	MethodSemantic    = "semantic"
)

// DefaultThreshold is the recommended fuzzy acceptance score. The value is a
// tunable trade-off between recall and precision and should come from config.
const DefaultThreshold = 85.0

// MatchResult is the outcome of resolving a free-text query against an
// archive snapshot. Produced fresh per query, never persisted.
type MatchResult struct {
	Matched  bool    `json:"matched"`
	Question string  `json:"question,omitempty"`
	Answer   string  `json:"answer,omitempty"`
	Score    float64 `json:"score,omitempty"`
	Method   string  `json:"method,omitempty"`
}

// Resolver ranks archive entries against free-text queries. It is pure: it
// only reads the snapshot passed in, so it can be tested without storage.
type Resolver struct {
	threshold float64
	lev       *metrics.Levenshtein
}

func New(threshold float64) *Resolver {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	lev := metrics.NewLevenshtein()
	lev.CaseSensitive = false
	// Uniform edit costs keep the score an intuitive 1 - distance/maxLen.
	lev.ReplaceCost = 1
	return &Resolver{
		threshold: threshold,
		lev:       lev,
	}
}

// Threshold returns the configured fuzzy acceptance score.
func (r *Resolver) Threshold() float64 {
	return r.threshold
}

// Resolve decides whether query matches a known entry.
//
// Ordered strategy, first success wins:
//  1. Containment: case-insensitive substring in either direction. Cheap,
//     deterministic, first entry in insertion order wins.
//  2. Fuzzy: normalized Levenshtein similarity scaled to [0,100]; the best
//     candidate is accepted when its score reaches the threshold.
//
// No match is a valid outcome, not an error.
func (r *Resolver) Resolve(query string, snapshot []store.Entry) MatchResult {
	normalized := Normalize(query)
	if normalized == "" {
		return MatchResult{}
	}

	// 1. Containment
	for _, entry := range snapshot {
		key := Normalize(entry.Question)
		if key == "" {
			continue
		}
		if strings.Contains(key, normalized) || strings.Contains(normalized, key) {
			return MatchResult{
				Matched:  true,
				Question: entry.Question,
				Answer:   entry.Answer,
				Score:    100,
				Method:   MethodContainment,
			}
		}
	}

	// 2. Fuzzy ranking
	best := MatchResult{Score: -1}
	for _, entry := range snapshot {
		score := strutil.Similarity(normalized, Normalize(entry.Question), r.lev) * 100
		if score > best.Score {
			best = MatchResult{
				Question: entry.Question,
				Answer:   entry.Answer,
				Score:    score,
				Method:   MethodFuzzy,
			}
		}
	}
	if best.Score >= r.threshold {
		best.Matched = true
		return best
	}

	return MatchResult{}
}

// Normalize prepares text for comparison: trimmed, lowercased, inner
// whitespace collapsed. Stored questions keep their original casing; only
// comparisons are normalized.
func Normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}
