package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docassist/docassist/internal/document"
	"github.com/docassist/docassist/internal/store"
)

func result(text string, distance float32) store.Result {
	return store.Result{
		Chunk:    document.Chunk{Text: text, DocTitle: "doc.pdf"},
		Distance: distance,
	}
}

func TestDecide_AcceptsWithinThreshold(t *testing.T) {
	gate := NewGate(1.3)
	raw := []store.Result{
		result("nearest chunk", 0.4),
		result("close chunk", 1.1),
		result("too far", 1.5),
	}

	d := gate.Decide("how do I restart the service", raw)

	assert.Equal(t, OutcomeRelevant, d.Outcome)
	require.Len(t, d.Accepted, 2)
	assert.Equal(t, "nearest chunk", d.Accepted[0].Chunk.Text)
	assert.Len(t, d.Raw, 3)
}

func TestDecide_ThresholdIsInclusive(t *testing.T) {
	gate := NewGate(1.3)
	raw := []store.Result{result("boundary chunk", 1.3)}

	d := gate.Decide("anything", raw)

	assert.Equal(t, OutcomeRelevant, d.Outcome)
	require.Len(t, d.Accepted, 1)
}

func TestDecide_FallbackOnKeywordOverlap(t *testing.T) {
	// Given: nothing passes the gate, but the nearest chunk mentions a
	// question keyword
	gate := NewGate(1.3)
	raw := []store.Result{
		result("restart nginx with systemctl restart nginx", 1.6),
		result("unrelated database text", 1.8),
	}

	d := gate.Decide("how do I restart nginx?", raw)

	assert.Equal(t, OutcomeFallback, d.Outcome)
	require.Len(t, d.Accepted, 1)
	assert.Equal(t, raw[0].Chunk.Text, d.Accepted[0].Chunk.Text)
}

func TestDecide_FallbackOnlyConsidersNearestChunk(t *testing.T) {
	// Given: the keyword appears in the second chunk, not the first
	gate := NewGate(1.3)
	raw := []store.Result{
		result("completely unrelated text", 1.6),
		result("restart nginx here", 1.7),
	}

	d := gate.Decide("how do I restart nginx?", raw)

	assert.Equal(t, OutcomeRefused, d.Outcome)
	assert.Empty(t, d.Accepted)
}

func TestDecide_RefusesWithoutOverlap(t *testing.T) {
	gate := NewGate(1.3)
	raw := []store.Result{result("postgres vacuum tuning notes", 1.9)}

	d := gate.Decide("how do I rotate TLS certificates?", raw)

	assert.Equal(t, OutcomeRefused, d.Outcome)
	assert.Empty(t, d.Accepted)
	assert.Len(t, d.Raw, 1)
}

func TestDecide_OverlapIsExactWordMatch(t *testing.T) {
	// "nginx?" with trailing punctuation is not the word "nginx"
	gate := NewGate(0.1)
	raw := []store.Result{result("restart nginx now", 1.9)}

	d := gate.Decide("nginx?", raw)

	assert.Equal(t, OutcomeRefused, d.Outcome)
}

func TestDecide_ThresholdMonotonicity(t *testing.T) {
	raw := []store.Result{
		result("a", 0.2),
		result("b", 0.8),
		result("c", 1.4),
	}

	var prev int
	for _, th := range []float64{0.1, 0.5, 1.0, 1.5} {
		d := NewGate(th).Decide("zzz", raw)
		assert.GreaterOrEqual(t, len(d.Accepted), prev)
		prev = len(d.Accepted)
	}
}

func TestDecide_EmptyRawRefuses(t *testing.T) {
	gate := NewGate(1.3)

	d := gate.Decide("any question", nil)

	assert.Equal(t, OutcomeRefused, d.Outcome)
	assert.Empty(t, d.Accepted)
	assert.Empty(t, d.Raw)
}

func TestDecide_CaseInsensitiveOverlap(t *testing.T) {
	gate := NewGate(0.1)
	raw := []store.Result{result("Configure KUBERNETES ingress rules", 1.9)}

	d := gate.Decide("what about kubernetes", raw)

	assert.Equal(t, OutcomeFallback, d.Outcome)
}
