package layer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/damienstanton/EOgmaNeo/compute"
)

// With zero feedback sources, Backward must not panic, must leave
// prediction weights alone (there are none to touch) and must still emit a
// valid prediction derived from the hidden state.
func TestBackwardWithoutFeedBack(t *testing.T) {
	l := newTestLayer(t, 0, 13)
	cs := compute.New(2)
	defer cs.Stop()

	in := make([]int, 16)
	for i := range in {
		in[i] = (i * 5) % 9
	}

	l.Forward([][]int{in}, cs, 0.3, 0.95)
	require.NotPanics(t, func() { l.Backward(nil, cs, 0.3) })

	assert.Equal(t, 0, l.NumFeedBack())
	assertValidCode(t, l.Predictions(0), 16, 9)
}

// A constant repeating input must be predicted perfectly once the layer
// has converged: by timestep 100 every chunk of the prediction matches the
// input that follows.
func TestConstantInputConverges(t *testing.T) {
	l := newTestLayer(t, 1, 2019)
	cs := compute.New(4)
	defer cs.Stop()

	in := make([]int, 16)
	for i := range in {
		in[i] = (i*2 + 1) % 9
	}

	for i := 0; i < 100; i++ {
		l.Forward([][]int{in}, cs, 0.5, 0.95)
		// the layer is its own top: feed its hidden states back
		l.Backward([][]int{l.HiddenStates()}, cs, 0.1)
	}

	pred := l.Predictions(0)
	mismatch := 0
	for i := range in {
		if pred[i] != in[i] {
			mismatch++
		}
	}
	assert.Zero(t, mismatch, "prediction: %v, input: %v", pred, in)
}

// Same convergence without any feedback: emission falls back to pure
// feedforward reconstruction, which also locks on to a constant input.
func TestConstantInputConvergesWithoutFeedBack(t *testing.T) {
	l := newTestLayer(t, 0, 4)
	cs := compute.New(4)
	defer cs.Stop()

	in := make([]int, 16)
	for i := range in {
		in[i] = (i * 7) % 9
	}

	for i := 0; i < 100; i++ {
		l.Forward([][]int{in}, cs, 0.5, 0.95)
		l.Backward(nil, cs, 0)
	}

	assert.Equal(t, in, l.Predictions(0))
}

// Every hidden chunk projecting into [vc-radius, vc+radius] must fall
// inside the candidate range, including grids where the hidden side is
// more than twice as dense as the visible one.
func TestReverseChunkRangeCoversProjection(t *testing.T) {
	cases := []struct {
		visChunks, hiddenChunks, radius int
	}{
		{4, 4, 2},
		{4, 12, 0},
		{4, 12, 1},
		{2, 16, 0},
		{3, 7, 1},
		{12, 4, 2},
		{5, 1, 0},
	}
	for _, c := range cases {
		for vc := 0; vc < c.visChunks; vc++ {
			lo, hi := reverseChunkRange(vc, c.visChunks, c.hiddenChunks, c.radius)
			for hc := 0; hc < c.hiddenChunks; hc++ {
				center := hc * c.visChunks / c.hiddenChunks
				if center < vc-c.radius || center > vc+c.radius {
					continue
				}
				if hc < lo || hc > hi {
					t.Errorf("V=%d H=%d r=%d: hidden chunk %d projects to %d covering visible chunk %d but range is [%d, %d]",
						c.visChunks, c.hiddenChunks, c.radius, hc, center, vc, lo, hi)
				}
			}
		}
	}
}

// With a hidden chunk grid three times as dense as the visible one and
// radius 0, every visible chunk is covered by exactly a 3x3 block of
// hidden chunks; emission must sum contributions from all nine.
func TestPredictionCoversDenseHiddenGrid(t *testing.T) {
	desc := VisibleLayerDesc{Width: 12, Height: 12, ChunkSize: 3, Radius: 0, Predict: true}
	l, err := New(36, 36, 3, 0, []VisibleLayerDesc{desc}, 61)
	require.NoError(t, err)

	cs := compute.New(4)
	defer cs.Stop()

	in := make([]int, 16)
	for i := range in {
		in[i] = (i * 4) % 9
	}
	l.Forward([][]int{in}, cs, 0.3, 0.95)
	l.Backward(nil, cs, 0)

	for j, cnt := range l.predCounts[0] {
		assert.Equal(t, float32(9), cnt, "visible unit (%d, %d)", j%12, j/12)
	}
}

// Convergence must also hold when the hidden grid is denser than the
// visible one.
func TestConstantInputConvergesDenseHiddenGrid(t *testing.T) {
	desc := VisibleLayerDesc{Width: 12, Height: 12, ChunkSize: 3, Radius: 1, Predict: true}
	l, err := New(36, 36, 3, 1, []VisibleLayerDesc{desc}, 307)
	require.NoError(t, err)

	cs := compute.New(4)
	defer cs.Stop()

	in := make([]int, 16)
	for i := range in {
		in[i] = (i*5 + 2) % 9
	}
	for i := 0; i < 100; i++ {
		l.Forward([][]int{in}, cs, 0.5, 0.95)
		l.Backward([][]int{l.HiddenStates()}, cs, 0.1)
	}

	assert.Equal(t, in, l.Predictions(0))
}

// Sources flagged Predict: false are skipped by emission and never get
// prediction weights.
func TestNonPredictedSource(t *testing.T) {
	descs := []VisibleLayerDesc{
		testDesc(),
		{Width: 12, Height: 12, ChunkSize: 3, Radius: 2, Predict: false},
	}
	l, err := New(12, 12, 3, 1, descs, 8)
	require.NoError(t, err)

	cs := compute.New(2)
	defer cs.Stop()

	in0 := make([]int, 16)
	in1 := make([]int, 16)
	for i := range in0 {
		in0[i] = i % 9
		in1[i] = (i + 3) % 9
	}
	l.Forward([][]int{in0, in1}, cs, 0.3, 0.95)
	l.Backward([][]int{l.HiddenStates()}, cs, 0.3)

	assert.Empty(t, l.PredictionWeights(0, 1, 0, 0))
	assert.Equal(t, make([]int, 16), l.Predictions(1), "unpredicted source must stay untouched")
	assertValidCode(t, l.Predictions(0), 16, 9)
}
