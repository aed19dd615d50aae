// Package retrieval applies the relevance gate to raw vector search results.
// Candidates are accepted by distance threshold; when nothing passes, a
// keyword overlap check on the single nearest chunk decides between a
// fallback answer and a refusal.
package retrieval

import (
	"strings"

	"github.com/docassist/docassist/internal/store"
)

// DefaultDistanceThreshold is the default maximum cosine distance for a
// chunk to count as relevant.
const DefaultDistanceThreshold = 1.3

// Outcome classifies the result of gating.
type Outcome string

const (
	// OutcomeRelevant means at least one chunk passed the distance gate.
	OutcomeRelevant Outcome = "relevant"
	// OutcomeFallback means no chunk passed, but the nearest chunk shares
	// a keyword with the question and is used alone.
	OutcomeFallback Outcome = "fallback"
	// OutcomeRefused means nothing usable was found.
	OutcomeRefused Outcome = "refused"
)

// Decision is the gate's verdict on one retrieval.
type Decision struct {
	// Accepted are the chunks to answer from, nearest first. Empty only
	// when Outcome is OutcomeRefused.
	Accepted []store.Result
	// Raw is the ungated candidate list, nearest first.
	Raw     []store.Result
	Outcome Outcome
}

// Gate filters raw candidates by distance threshold.
type Gate struct {
	threshold float32
}

// NewGate creates a gate with the given maximum cosine distance. A chunk at
// exactly the threshold is accepted.
func NewGate(threshold float64) *Gate {
	return &Gate{threshold: float32(threshold)}
}

// Decide applies the gate to the raw candidates for the given question.
// raw must be ordered nearest first.
func (g *Gate) Decide(question string, raw []store.Result) Decision {
	var accepted []store.Result
	for _, r := range raw {
		if r.Distance <= g.threshold {
			accepted = append(accepted, r)
		}
	}

	if len(accepted) > 0 {
		return Decision{Accepted: accepted, Raw: raw, Outcome: OutcomeRelevant}
	}

	if len(raw) > 0 && keywordOverlap(question, raw[0].Chunk.Text) {
		return Decision{Accepted: raw[:1], Raw: raw, Outcome: OutcomeFallback}
	}

	return Decision{Raw: raw, Outcome: OutcomeRefused}
}

// keywordOverlap reports whether the question and the chunk text share at
// least one word: case-insensitive, whitespace-tokenized, exact word
// equality.
func keywordOverlap(question, text string) bool {
	chunkWords := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		chunkWords[w] = true
	}
	for _, w := range strings.Fields(strings.ToLower(question)) {
		if chunkWords[w] {
			return true
		}
	}
	return false
}
