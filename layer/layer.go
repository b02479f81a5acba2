// Package layer implements a single sparse predictive coding layer over
// chunked codes. A layer competitively encodes its inputs into one winner
// per hidden chunk, learns feedforward weights that reconstruct the input,
// and learns prediction weights that forecast the next input from top-down
// feedback.
package layer

import (
	"github.com/leesper/go_rng"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// VisibleLayerDesc describes one input source of a layer. It is immutable
// once the layer is created.
type VisibleLayerDesc struct {
	Width, Height int // grid extents, in units
	ChunkSize     int // side of a competitive chunk
	Radius        int // receptive field radius, in chunks
	Predict       bool
}

// DefaultVisibleLayerDesc returns the original default description.
func DefaultVisibleLayerDesc() VisibleLayerDesc {
	return VisibleLayerDesc{
		Width:     36,
		Height:    36,
		ChunkSize: 6,
		Radius:    9,
		Predict:   true,
	}
}

// IsValid reports whether the description is usable: positive extents that
// divide evenly into chunks, and a non-negative radius.
func (d VisibleLayerDesc) IsValid() bool {
	return d.Width > 0 && d.Height > 0 &&
		d.ChunkSize > 0 &&
		d.Width%d.ChunkSize == 0 && d.Height%d.ChunkSize == 0 &&
		d.Radius >= 0
}

func (d VisibleLayerDesc) chunksX() int { return d.Width / d.ChunkSize }
func (d VisibleLayerDesc) chunksY() int { return d.Height / d.ChunkSize }

// Layer is the mutable predictive coding unit. All containers are
// preallocated by New; Forward and Backward mutate it in place, once each
// per timestep. Accessors are only safe between timesteps.
type Layer struct {
	hiddenWidth   int
	hiddenHeight  int
	chunkSize     int
	hiddenChunksX int
	hiddenChunksY int

	descs []VisibleLayerDesc

	// one winner (chunk-local row-major index) per hidden chunk
	hiddenStates []int

	// per hidden unit: last normalized activation plus the raw sums that
	// feed the reconstruction accumulators. Written disjointly per chunk.
	activations []float32
	rawSums     []float32
	rawCounts   []float32

	// ragged per-unit weight vectors, indexed v + numV*(x + y*hiddenWidth)
	ffWeights [][]float32
	// prediction weights, one set per feedback source, same inner indexing
	predWeights [][][]float32

	// reconstruction accumulators, per hidden unit
	reconActs       []float32
	reconCounts     []float32
	reconActsPrev   []float32
	reconCountsPrev []float32

	// predicted chunked code per visible source (only Predict sources are
	// ever written)
	predictions [][]int

	// prediction accumulators, per visible unit per source
	predActs       [][]float32
	predCounts     [][]float32
	predActsPrev   [][]float32
	predCountsPrev [][]float32

	inputs       [][]int
	inputsPrev   [][]int
	feedBack     [][]int
	feedBackPrev [][]int

	alpha float32
	beta  float32
	gamma float32

	seed int64
	step int64
}

// New creates a layer. Feedforward and prediction weights are initialized
// pseudorandomly in [0, 1) from seed; everything else starts at zero.
// Feedback codes live in the hidden chunk grid: each of the numFeedBack
// sources supplies one entry per hidden chunk.
func New(hiddenWidth, hiddenHeight, chunkSize, numFeedBack int, descs []VisibleLayerDesc, seed int64) (*Layer, error) {
	if hiddenWidth <= 0 || hiddenHeight <= 0 || chunkSize <= 0 {
		return nil, errors.Errorf("layer: bad hidden extents %dx%d (chunk %d)", hiddenWidth, hiddenHeight, chunkSize)
	}
	if hiddenWidth%chunkSize != 0 || hiddenHeight%chunkSize != 0 {
		return nil, errors.Errorf("layer: hidden extents %dx%d not divisible by chunk size %d", hiddenWidth, hiddenHeight, chunkSize)
	}
	if numFeedBack < 0 {
		return nil, errors.Errorf("layer: negative feedback count %d", numFeedBack)
	}
	if len(descs) == 0 {
		return nil, errors.New("layer: at least one visible source is required")
	}
	for v, d := range descs {
		if !d.IsValid() {
			return nil, errors.Errorf("layer: visible source %d has invalid description %+v", v, d)
		}
	}

	l := &Layer{
		hiddenWidth:   hiddenWidth,
		hiddenHeight:  hiddenHeight,
		chunkSize:     chunkSize,
		hiddenChunksX: hiddenWidth / chunkSize,
		hiddenChunksY: hiddenHeight / chunkSize,
		descs:         append([]VisibleLayerDesc(nil), descs...),
		seed:          seed,
	}

	numHidden := hiddenWidth * hiddenHeight
	numChunks := l.hiddenChunksX * l.hiddenChunksY
	numV := len(descs)

	l.hiddenStates = make([]int, numChunks)
	l.activations = make([]float32, numHidden)
	l.rawSums = make([]float32, numHidden)
	l.rawCounts = make([]float32, numHidden)

	l.reconActs = make([]float32, numHidden)
	l.reconCounts = make([]float32, numHidden)
	l.reconActsPrev = make([]float32, numHidden)
	l.reconCountsPrev = make([]float32, numHidden)

	uni := rng.NewUniformGenerator(seed)

	l.ffWeights = make([][]float32, numV*numHidden)
	l.predWeights = make([][][]float32, numFeedBack)
	for f := range l.predWeights {
		l.predWeights[f] = make([][]float32, numV*numHidden)
	}

	for y := 0; y < hiddenHeight; y++ {
		for x := 0; x < hiddenWidth; x++ {
			hcx := x / chunkSize
			hcy := y / chunkSize
			for v, d := range descs {
				win := receptiveWindow(hcx, hcy, l.hiddenChunksX, l.hiddenChunksY, d.chunksX(), d.chunksY(), d.Radius)
				n := win.chunks() * d.ChunkSize * d.ChunkSize
				i := l.weightIndex(v, x, y)

				w := make([]float32, n)
				for k := range w {
					w[k] = uni.Float32()
				}
				l.ffWeights[i] = w

				if !d.Predict {
					continue
				}
				for f := range l.predWeights {
					p := make([]float32, n)
					for k := range p {
						p[k] = uni.Float32()
					}
					l.predWeights[f][i] = p
				}
			}
		}
	}

	l.predictions = make([][]int, numV)
	l.predActs = make([][]float32, numV)
	l.predCounts = make([][]float32, numV)
	l.predActsPrev = make([][]float32, numV)
	l.predCountsPrev = make([][]float32, numV)
	l.inputs = make([][]int, numV)
	l.inputsPrev = make([][]int, numV)
	for v, d := range descs {
		l.predictions[v] = make([]int, d.chunksX()*d.chunksY())
		l.predActs[v] = make([]float32, d.Width*d.Height)
		l.predCounts[v] = make([]float32, d.Width*d.Height)
		l.predActsPrev[v] = make([]float32, d.Width*d.Height)
		l.predCountsPrev[v] = make([]float32, d.Width*d.Height)
		l.inputs[v] = make([]int, d.chunksX()*d.chunksY())
		l.inputsPrev[v] = make([]int, d.chunksX()*d.chunksY())
	}

	l.feedBack = make([][]int, numFeedBack)
	l.feedBackPrev = make([][]int, numFeedBack)
	for f := 0; f < numFeedBack; f++ {
		l.feedBack[f] = make([]int, numChunks)
		l.feedBackPrev[f] = make([]int, numChunks)
	}

	return l, nil
}

// weightIndex returns the index of the weight vector of the hidden unit at
// (x, y) for visible source v.
func (l *Layer) weightIndex(v, x, y int) int {
	return v + len(l.descs)*(x+y*l.hiddenWidth)
}

// HiddenWidth returns the hidden grid width in units.
func (l *Layer) HiddenWidth() int { return l.hiddenWidth }

// HiddenHeight returns the hidden grid height in units.
func (l *Layer) HiddenHeight() int { return l.hiddenHeight }

// ChunkSize returns the side length of a hidden chunk.
func (l *Layer) ChunkSize() int { return l.chunkSize }

// NumVisible returns the number of visible sources.
func (l *Layer) NumVisible() int { return len(l.descs) }

// VisibleDesc returns the description of visible source v.
func (l *Layer) VisibleDesc(v int) VisibleLayerDesc { return l.descs[v] }

// NumFeedBack returns the number of feedback sources.
func (l *Layer) NumFeedBack() int { return len(l.feedBack) }

// HiddenStates returns a copy of the hidden chunked code.
func (l *Layer) HiddenStates() []int {
	return append([]int(nil), l.hiddenStates...)
}

// Inputs returns a copy of the current input code of visible source v.
func (l *Layer) Inputs(v int) []int {
	return append([]int(nil), l.inputs[v]...)
}

// InputsPrev returns a copy of the previous timestep's input code of
// visible source v.
func (l *Layer) InputsPrev(v int) []int {
	return append([]int(nil), l.inputsPrev[v]...)
}

// Predictions returns a copy of the predicted next code for visible
// source v.
func (l *Layer) Predictions(v int) []int {
	return append([]int(nil), l.predictions[v]...)
}

// FeedBack returns a copy of the current code of feedback source f.
func (l *Layer) FeedBack(f int) []int {
	return append([]int(nil), l.feedBack[f]...)
}

// FeedBackPrev returns a copy of the previous timestep's code of feedback
// source f.
func (l *Layer) FeedBackPrev(f int) []int {
	return append([]int(nil), l.feedBackPrev[f]...)
}

// FeedForwardWeights returns the weight vector of the hidden unit at
// (x, y) for visible source v. The slice aliases layer state and must be
// treated as read-only.
func (l *Layer) FeedForwardWeights(v, x, y int) []float32 {
	return l.ffWeights[l.weightIndex(v, x, y)]
}

// PredictionWeights returns the prediction weight vector of the hidden
// unit at (x, y) for feedback source f and visible source v. The slice
// aliases layer state and must be treated as read-only.
func (l *Layer) PredictionWeights(f, v, x, y int) []float32 {
	return l.predWeights[f][l.weightIndex(v, x, y)]
}

// HiddenActivations returns the normalized activations of the last
// forward pass as a hiddenHeight x hiddenWidth tensor snapshot.
func (l *Layer) HiddenActivations() *tensor.Dense {
	return tensor.New(
		tensor.WithShape(l.hiddenHeight, l.hiddenWidth),
		tensor.WithBacking(append([]float32(nil), l.activations...)),
	)
}
