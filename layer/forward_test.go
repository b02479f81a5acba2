package layer

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/damienstanton/EOgmaNeo/compute"
)

// assertValidCode checks the defining invariant of a chunked code:
// exactly one in-range active unit per chunk.
func assertValidCode(t *testing.T, code []int, chunks, unitsPerChunk int) {
	t.Helper()
	require.Len(t, code, chunks)
	for i, c := range code {
		if c < 0 || c >= unitsPerChunk {
			t.Fatalf("chunk %d holds invalid winner %d", i, c)
		}
	}
}

func TestForwardProducesOneWinnerPerChunk(t *testing.T) {
	l := newTestLayer(t, 1, 21)
	cs := compute.New(4)
	defer cs.Stop()

	rng := rand.New(rand.NewSource(17))
	for i := 0; i < 20; i++ {
		l.Forward([][]int{randomCode(rng, 16, 9)}, cs, 0.2, 0.95)
		l.Backward([][]int{randomCode(rng, 16, 9)}, cs, 0.1)

		assertValidCode(t, l.HiddenStates(), 16, 9)
		assertValidCode(t, l.Predictions(0), 16, 9)
		assertValidCode(t, l.Inputs(0), 16, 9)
		assertValidCode(t, l.FeedBack(0), 16, 9)
	}
}

// Two layers created from the same seed and fed the same stream must end
// up bit-identical, regardless of pool size: items are seeded per chunk,
// not per thread.
func TestDeterminism(t *testing.T) {
	run := func(workers int) *Layer {
		l := newTestLayer(t, 1, 77)
		cs := compute.New(workers)
		defer cs.Stop()

		rng := rand.New(rand.NewSource(31))
		for i := 0; i < 50; i++ {
			l.Forward([][]int{randomCode(rng, 16, 9)}, cs, 0.3, 0.9)
			l.Backward([][]int{randomCode(rng, 16, 9)}, cs, 0.2)
		}
		return l
	}

	a := run(1)
	b := run(4)

	assert.Equal(t, a.HiddenStates(), b.HiddenStates())
	assert.Equal(t, a.Predictions(0), b.Predictions(0))
	for y := 0; y < 12; y++ {
		for x := 0; x < 12; x++ {
			require.Equal(t, a.FeedForwardWeights(0, x, y), b.FeedForwardWeights(0, x, y), "unit (%d, %d)", x, y)
			require.Equal(t, a.PredictionWeights(0, 0, x, y), b.PredictionWeights(0, 0, x, y), "unit (%d, %d)", x, y)
		}
	}
}

// The feedforward rule is error-driven: once the reconstruction
// accumulators have saturated on a constant input, repeating that input
// must leave the weights alone.
func TestLearningIsErrorDriven(t *testing.T) {
	l := newTestLayer(t, 0, 5)
	cs := compute.New(2)
	defer cs.Stop()

	in := make([]int, 16)
	for i := range in {
		in[i] = (i * 2) % 9
	}
	for i := 0; i < 600; i++ {
		l.Forward([][]int{in}, cs, 0.5, 0.99)
		l.Backward(nil, cs, 0)
	}

	before := make([][]float32, 0, 144)
	for y := 0; y < 12; y++ {
		for x := 0; x < 12; x++ {
			before = append(before, append([]float32(nil), l.FeedForwardWeights(0, x, y)...))
		}
	}

	l.Forward([][]int{in}, cs, 0.5, 0.99)

	i := 0
	for y := 0; y < 12; y++ {
		for x := 0; x < 12; x++ {
			after := l.FeedForwardWeights(0, x, y)
			for k := range after {
				assert.InDelta(t, before[i][k], after[k], 1e-2, "unit (%d, %d) weight %d", x, y, k)
			}
			i++
		}
	}
}
