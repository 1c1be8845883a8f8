// Package normalizer maps noisy point-of-sale merchant strings to
// canonical names through staged strategies: preprocessing, exact
// canonical lookup, fuzzy matching, and a learned knowledge base.
// Stages run cheapest-first and short-circuit on the first confident
// hit.
package normalizer

import (
	"fmt"
	"strings"
)

// MaxBatchSize bounds NormalizeMerchants input to keep request latency
// predictable.
const MaxBatchSize = 1000

// fallbackConfidence is reported when no stage matches and the
// preprocessed string itself is returned.
const fallbackConfidence = 0.3

// Source records which stage produced a result.
type Source string

const (
	SourcePreprocessing Source = "preprocessing"
	SourceCanonicalMap  Source = "canonical_map"
	SourceFuzzyMatch    Source = "fuzzy_match"
	SourceKnowledgeBase Source = "knowledge_base"
)

// Result is the outcome of normalizing one merchant string.
type Result struct {
	Input         string  `json:"input"`
	CanonicalName string  `json:"canonical_name"`
	Confidence    float64 `json:"confidence"`
	Source        Source  `json:"source"`
}

// BatchStats aggregates a batch normalization call.
type BatchStats struct {
	Total          int            `json:"total"`
	BySource       map[Source]int `json:"by_source"`
	MeanConfidence float64        `json:"mean_confidence"`
}

// KnowledgeStore is the narrow interface over the persisted store of
// historical raw -> canonical associations. Agreement is the fraction
// of observations backing the returned name; a miss is ("", 0, nil),
// not an error.
type KnowledgeStore interface {
	LookupMerchant(pattern string) (canonical string, agreement float64, err error)
}

// Normalizer runs the staged pipeline. The core stays a pure function
// of its input plus the injected lookup collaborators.
type Normalizer struct {
	canonical *CanonicalMap
	knowledge KnowledgeStore
}

// New creates a Normalizer. knowledge may be nil, which disables the
// knowledge-base stage entirely.
func New(canonical *CanonicalMap, knowledge KnowledgeStore) *Normalizer {
	if canonical == nil {
		canonical = NewCanonicalMap()
	}
	return &Normalizer{canonical: canonical, knowledge: knowledge}
}

// NormalizeMerchantName normalizes a single raw merchant string.
// useDatabase=false skips the knowledge-base stage, for offline or
// pure normalization.
func (n *Normalizer) NormalizeMerchantName(raw string, useDatabase bool) Result {
	cleaned := Preprocess(raw)
	key := keyOf(cleaned)

	if name, ok := n.canonical.Lookup(key); ok {
		return Result{Input: raw, CanonicalName: name, Confidence: 1.0, Source: SourceCanonicalMap}
	}

	if name, score, ok := bestFuzzyMatch(key, n.canonical); ok {
		return Result{Input: raw, CanonicalName: name, Confidence: score, Source: SourceFuzzyMatch}
	}

	if useDatabase && n.knowledge != nil {
		// A store error degrades to the fallback rather than failing
		// the call; normalization must work when the database is down.
		if name, agreement, err := n.knowledge.LookupMerchant(key); err == nil && name != "" {
			return Result{Input: raw, CanonicalName: name, Confidence: agreement, Source: SourceKnowledgeBase}
		}
	}

	return Result{Input: raw, CanonicalName: cleaned, Confidence: fallbackConfidence, Source: SourcePreprocessing}
}

// NormalizeMerchants normalizes a batch, preserving input order. Items
// are processed independently; one item's knowledge-base miss or error
// never fails the batch. Batches over MaxBatchSize are rejected before
// any work happens.
func (n *Normalizer) NormalizeMerchants(raws []string, useDatabase bool) ([]Result, BatchStats, error) {
	if len(raws) == 0 {
		return nil, BatchStats{}, fmt.Errorf("empty merchant list")
	}
	if len(raws) > MaxBatchSize {
		return nil, BatchStats{}, fmt.Errorf("batch of %d exceeds limit of %d", len(raws), MaxBatchSize)
	}

	results := make([]Result, len(raws))
	stats := BatchStats{Total: len(raws), BySource: make(map[Source]int)}
	var sum float64
	for i, raw := range raws {
		r := n.NormalizeMerchantName(raw, useDatabase)
		results[i] = r
		stats.BySource[r.Source]++
		sum += r.Confidence
	}
	stats.MeanConfidence = sum / float64(len(raws))
	return results, stats, nil
}

// keyOf is the uppercase lookup form of a preprocessed name.
func keyOf(cleaned string) string {
	return strings.ToUpper(cleaned)
}
