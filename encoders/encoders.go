// Package encoders provides front-ends that turn raw values into the
// chunked codes a hierarchy ingests, and back.
package encoders

import (
	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/damienstanton/EOgmaNeo/layer"
)

// ScalarEncoder quantizes a fixed set of scalars into a chunked code with
// one chunk per scalar: the active unit index is the quantization bucket.
// The resulting grid is a single row of chunks.
type ScalarEncoder struct {
	n         int
	lo, hi    float32
	chunkSize int
}

// NewScalarEncoder encodes n scalars clamped to [lo, hi] with the given
// chunk size (resolution chunkSize^2 buckets per scalar).
func NewScalarEncoder(n int, lo, hi float32, chunkSize int) (*ScalarEncoder, error) {
	if n <= 0 || chunkSize <= 0 {
		return nil, errors.Errorf("encoders: bad scalar encoder shape n=%d chunkSize=%d", n, chunkSize)
	}
	if hi <= lo {
		return nil, errors.Errorf("encoders: bad scalar range [%v, %v]", lo, hi)
	}
	return &ScalarEncoder{n: n, lo: lo, hi: hi, chunkSize: chunkSize}, nil
}

// Desc returns the visible description matching this encoder's output.
func (e *ScalarEncoder) Desc(radius int, predict bool) layer.VisibleLayerDesc {
	return layer.VisibleLayerDesc{
		Width:     e.n * e.chunkSize,
		Height:    e.chunkSize,
		ChunkSize: e.chunkSize,
		Radius:    radius,
		Predict:   predict,
	}
}

// Encode quantizes vals into prealloc (reallocated if too small) and
// returns the chunked code.
func (e *ScalarEncoder) Encode(vals []float32, prealloc []int) []int {
	if len(prealloc) != e.n {
		prealloc = make([]int, e.n)
	}
	buckets := e.chunkSize*e.chunkSize - 1
	for i := 0; i < e.n; i++ {
		t := (vals[i] - e.lo) / (e.hi - e.lo)
		t = math32.Max(0, math32.Min(1, t))
		prealloc[i] = int(t*float32(buckets) + 0.5)
	}
	return prealloc
}

// Decode is the inverse of Encode up to quantization error.
func (e *ScalarEncoder) Decode(code []int, prealloc []float32) []float32 {
	if len(prealloc) != e.n {
		prealloc = make([]float32, e.n)
	}
	buckets := e.chunkSize*e.chunkSize - 1
	for i := 0; i < e.n; i++ {
		prealloc[i] = e.lo + (e.hi-e.lo)*float32(code[i])/float32(buckets)
	}
	return prealloc
}

// ImageEncoder turns a grayscale image into a chunked code by picking the
// brightest unit of every chunk. Lossy by design: a chunked code keeps one
// unit per chunk.
type ImageEncoder struct {
	width, height int
	chunkSize     int
}

// NewImageEncoder encodes height x width images with the given chunk size.
func NewImageEncoder(width, height, chunkSize int) (*ImageEncoder, error) {
	if width <= 0 || height <= 0 || chunkSize <= 0 ||
		width%chunkSize != 0 || height%chunkSize != 0 {
		return nil, errors.Errorf("encoders: bad image encoder shape %dx%d chunk %d", width, height, chunkSize)
	}
	return &ImageEncoder{width: width, height: height, chunkSize: chunkSize}, nil
}

// Desc returns the visible description matching this encoder's output.
func (e *ImageEncoder) Desc(radius int, predict bool) layer.VisibleLayerDesc {
	return layer.VisibleLayerDesc{
		Width:     e.width,
		Height:    e.height,
		ChunkSize: e.chunkSize,
		Radius:    radius,
		Predict:   predict,
	}
}

// Encode expects a height x width float32 tensor.
func (e *ImageEncoder) Encode(img *tensor.Dense, prealloc []int) ([]int, error) {
	shp := img.Shape()
	if len(shp) != 2 || shp[0] != e.height || shp[1] != e.width {
		return nil, errors.Errorf("encoders: image shape %v, want (%d, %d)", shp, e.height, e.width)
	}
	data, ok := img.Data().([]float32)
	if !ok {
		return nil, errors.Errorf("encoders: image dtype %v, want float32", img.Dtype())
	}

	ch := e.chunkSize
	cx := e.width / ch
	cy := e.height / ch
	if len(prealloc) != cx*cy {
		prealloc = make([]int, cx*cy)
	}
	for c := range prealloc {
		baseX := (c % cx) * ch
		baseY := (c / cx) * ch
		best := 0
		bestVal := data[baseX+baseY*e.width]
		for dy := 0; dy < ch; dy++ {
			for dx := 0; dx < ch; dx++ {
				v := data[(baseX+dx)+(baseY+dy)*e.width]
				if v > bestVal {
					bestVal = v
					best = dx + dy*ch
				}
			}
		}
		prealloc[c] = best
	}
	return prealloc, nil
}

// Decode renders a chunked code back into a height x width float32 tensor
// with the active units set to 1.
func (e *ImageEncoder) Decode(code []int) *tensor.Dense {
	ch := e.chunkSize
	cx := e.width / ch
	backing := make([]float32, e.width*e.height)
	for c, local := range code {
		x := (c%cx)*ch + local%ch
		y := (c/cx)*ch + local/ch
		backing[x+y*e.width] = 1
	}
	return tensor.New(tensor.WithShape(e.height, e.width), tensor.WithBacking(backing))
}
