// Package eogmaneo implements online sparse predictive hierarchies over
// chunked codes. A Hierarchy stacks layers: each layer competitively
// encodes the one below and feeds its predictions back down, so the bottom
// layer ends up predicting the external input one timestep ahead.
package eogmaneo

import (
	"bytes"
	"encoding/gob"
	"io"
	"log"
	"runtime"

	"github.com/pkg/errors"

	"github.com/damienstanton/EOgmaNeo/compute"
	"github.com/damienstanton/EOgmaNeo/layer"
)

// LayerConfig configures one hidden layer of the stack.
type LayerConfig struct {
	HiddenWidth  int
	HiddenHeight int
	ChunkSize    int
	Radius       int // receptive field radius onto the layer below, in chunks

	Alpha float32 // feedforward learning rate
	Beta  float32 // prediction learning rate
	Gamma float32 // accumulator decay
}

// DefaultLayerConfig returns a workable mid-sized layer configuration.
func DefaultLayerConfig() LayerConfig {
	return LayerConfig{
		HiddenWidth:  36,
		HiddenHeight: 36,
		ChunkSize:    6,
		Radius:       9,
		Alpha:        0.1,
		Beta:         0.1,
		Gamma:        0.95,
	}
}

// IsValid reports whether the configuration can build a layer.
func (c LayerConfig) IsValid() bool {
	return c.HiddenWidth > 0 && c.HiddenHeight > 0 &&
		c.ChunkSize > 0 &&
		c.HiddenWidth%c.ChunkSize == 0 && c.HiddenHeight%c.ChunkSize == 0 &&
		c.Radius >= 0 &&
		c.Alpha >= 0 && c.Beta >= 0 &&
		c.Gamma >= 0 && c.Gamma < 1
}

// Config configures a Hierarchy.
type Config struct {
	Name   string
	Inputs []layer.VisibleLayerDesc // external input sources seen by layer 0
	Layers []LayerConfig            // bottom first
	Seed   int64

	// Workers is the compute pool size; 0 means one worker per CPU.
	Workers int
}

// Hierarchy owns a stack of layers and the compute pool they run on. It is
// driven by calling Step once per timestep and is not safe for concurrent
// use.
type Hierarchy struct {
	Statistics

	name   string
	inputs []layer.VisibleLayerDesc
	confs  []LayerConfig
	layers []*layer.Layer
	seed   int64
	step   int64

	cs *compute.System

	buf    bytes.Buffer
	logger *log.Logger
}

// New builds a hierarchy. Layer 0 sees the configured external inputs;
// every layer above sees the hidden grid of the layer below as its single
// visible source. All layers except the top receive one feedback source:
// the layer above's prediction of their hidden states.
func New(conf Config) (*Hierarchy, error) {
	if len(conf.Inputs) == 0 {
		return nil, errors.New("eogmaneo: at least one input source is required")
	}
	if len(conf.Layers) == 0 {
		return nil, errors.New("eogmaneo: at least one layer is required")
	}
	for i, lc := range conf.Layers {
		if !lc.IsValid() {
			return nil, errors.Errorf("eogmaneo: layer %d config is invalid: %+v", i, lc)
		}
	}

	workers := conf.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	h := &Hierarchy{
		name:   conf.Name,
		inputs: append([]layer.VisibleLayerDesc(nil), conf.Inputs...),
		confs:  append([]LayerConfig(nil), conf.Layers...),
		seed:   conf.Seed,
		cs:     compute.New(workers),
	}
	h.logger = log.New(&h.buf, "", log.Ltime)
	h.Statistics = makeStatistics(len(conf.Inputs))

	if err := h.build(); err != nil {
		h.cs.Stop()
		return nil, err
	}
	h.logger.Printf("built hierarchy %q: %d layers, %d workers", h.name, len(h.layers), workers)
	return h, nil
}

func (h *Hierarchy) build() error {
	h.layers = make([]*layer.Layer, len(h.confs))
	for i, lc := range h.confs {
		var descs []layer.VisibleLayerDesc
		if i == 0 {
			descs = h.inputs
		} else {
			below := h.confs[i-1]
			descs = []layer.VisibleLayerDesc{{
				Width:     below.HiddenWidth,
				Height:    below.HiddenHeight,
				ChunkSize: below.ChunkSize,
				Radius:    lc.Radius,
				Predict:   true,
			}}
		}

		numFeedBack := 1
		if i == len(h.confs)-1 {
			numFeedBack = 0
		}

		l, err := layer.New(lc.HiddenWidth, lc.HiddenHeight, lc.ChunkSize, numFeedBack, descs, h.seed+int64(i)*12289)
		if err != nil {
			return errors.Wrapf(err, "eogmaneo: building layer %d", i)
		}
		h.layers[i] = l
	}
	return nil
}

// NumLayers returns the stack depth.
func (h *Hierarchy) NumLayers() int { return len(h.layers) }

// Layer returns the i-th layer, bottom first.
func (h *Hierarchy) Layer(i int) *layer.Layer { return h.layers[i] }

// Predictions returns the bottom layer's prediction of external input
// source v for the next timestep.
func (h *Hierarchy) Predictions(v int) []int {
	return h.layers[0].Predictions(v)
}

// Log returns the accumulated lifecycle log.
func (h *Hierarchy) Log() string { return h.buf.String() }

// Stop releases the compute pool. The hierarchy must not be stepped
// afterwards.
func (h *Hierarchy) Stop() { h.cs.Stop() }

// Step runs one timestep: a forward sweep bottom-up followed by a backward
// sweep top-down that routes each layer's predictions to the layer below
// as feedback. inputs holds one chunked code per configured external
// source. With learn=false all learning rates are zeroed and only the
// codes update.
func (h *Hierarchy) Step(inputs [][]int, learn bool) {
	// score the forecast made last step before it is overwritten
	if h.step > 0 {
		for v := range inputs {
			h.Statistics.record(v, mismatchedChunks(h.layers[0].Predictions(v), inputs[v]))
		}
	}

	codes := inputs
	for i, l := range h.layers {
		alpha, gamma := h.confs[i].Alpha, h.confs[i].Gamma
		if !learn {
			alpha = 0
		}
		l.Forward(codes, h.cs, alpha, gamma)
		codes = [][]int{l.HiddenStates()}
	}

	for i := len(h.layers) - 1; i >= 0; i-- {
		var feedBack [][]int
		if i < len(h.layers)-1 {
			feedBack = [][]int{h.layers[i+1].Predictions(0)}
		}
		beta := h.confs[i].Beta
		if !learn {
			beta = 0
		}
		h.layers[i].Backward(feedBack, h.cs, beta)
	}

	h.step++
}

func mismatchedChunks(pred, actual []int) int {
	n := 0
	for i := range actual {
		if pred[i] != actual[i] {
			n++
		}
	}
	return n
}

// hierarchyState is the gob image of a hierarchy; layers serialize through
// their binary stream format.
type hierarchyState struct {
	Name   string
	Inputs []layer.VisibleLayerDesc
	Confs  []LayerConfig
	Layers []*layer.Layer
	Seed   int64
	Step   int64
}

// Save writes the hierarchy to w. The compute pool and statistics are
// runtime artifacts and are not part of the image.
func (h *Hierarchy) Save(w io.Writer) error {
	enc := gob.NewEncoder(w)
	st := hierarchyState{
		Name:   h.name,
		Inputs: h.inputs,
		Confs:  h.confs,
		Layers: h.layers,
		Seed:   h.seed,
		Step:   h.step,
	}
	return errors.Wrap(enc.Encode(st), "eogmaneo: encoding hierarchy")
}

// LoadHierarchy restores a hierarchy written by Save. workers follows the
// same convention as Config.Workers.
func LoadHierarchy(r io.Reader, workers int) (*Hierarchy, error) {
	var st hierarchyState
	dec := gob.NewDecoder(r)
	if err := dec.Decode(&st); err != nil {
		return nil, errors.Wrap(err, "eogmaneo: decoding hierarchy")
	}

	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	h := &Hierarchy{
		name:   st.Name,
		inputs: st.Inputs,
		confs:  st.Confs,
		layers: st.Layers,
		seed:   st.Seed,
		step:   st.Step,
		cs:     compute.New(workers),
	}
	h.logger = log.New(&h.buf, "", log.Ltime)
	h.Statistics = makeStatistics(len(st.Inputs))
	h.logger.Printf("restored hierarchy %q at step %d", h.name, h.step)
	return h, nil
}
