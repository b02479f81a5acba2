package layer

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// Stream format: little-endian, versioned. Weight vector lengths are not
// stored; they are recomputed from the geometry, so a stream is only the
// configuration plus raw values. Resuming from a stream is bit-identical
// to an uninterrupted run.

var streamMagic = [4]byte{'E', 'O', 'G', 'L'}

const streamVersion uint32 = 1

func writeInts(w io.Writer, xs []int) error {
	buf := make([]int32, len(xs))
	for i, x := range xs {
		buf[i] = int32(x)
	}
	return binary.Write(w, binary.LittleEndian, buf)
}

func readInts(r io.Reader, xs []int) error {
	buf := make([]int32, len(xs))
	if err := binary.Read(r, binary.LittleEndian, buf); err != nil {
		return err
	}
	for i, x := range buf {
		xs[i] = int(x)
	}
	return nil
}

// Save writes the complete layer state to w.
func (l *Layer) Save(w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, streamMagic); err != nil {
		return errors.Wrap(err, "layer: writing magic")
	}
	head := []interface{}{
		streamVersion,
		int32(l.hiddenWidth), int32(l.hiddenHeight), int32(l.chunkSize),
		int32(len(l.descs)), int32(len(l.feedBack)),
		l.seed, l.step,
		l.alpha, l.beta, l.gamma,
	}
	for _, h := range head {
		if err := binary.Write(w, binary.LittleEndian, h); err != nil {
			return errors.Wrap(err, "layer: writing header")
		}
	}
	for _, d := range l.descs {
		pred := uint8(0)
		if d.Predict {
			pred = 1
		}
		desc := []interface{}{int32(d.Width), int32(d.Height), int32(d.ChunkSize), int32(d.Radius), pred}
		for _, h := range desc {
			if err := binary.Write(w, binary.LittleEndian, h); err != nil {
				return errors.Wrap(err, "layer: writing visible description")
			}
		}
	}

	if err := writeInts(w, l.hiddenStates); err != nil {
		return errors.Wrap(err, "layer: writing hidden states")
	}
	floats := [][]float32{
		l.activations, l.rawSums, l.rawCounts,
		l.reconActs, l.reconCounts, l.reconActsPrev, l.reconCountsPrev,
	}
	for _, fs := range floats {
		if err := binary.Write(w, binary.LittleEndian, fs); err != nil {
			return errors.Wrap(err, "layer: writing accumulators")
		}
	}

	for v := range l.descs {
		for _, code := range [][]int{l.predictions[v], l.inputs[v], l.inputsPrev[v]} {
			if err := writeInts(w, code); err != nil {
				return errors.Wrap(err, "layer: writing visible codes")
			}
		}
		for _, fs := range [][]float32{l.predActs[v], l.predCounts[v], l.predActsPrev[v], l.predCountsPrev[v]} {
			if err := binary.Write(w, binary.LittleEndian, fs); err != nil {
				return errors.Wrap(err, "layer: writing prediction accumulators")
			}
		}
	}
	for f := range l.feedBack {
		if err := writeInts(w, l.feedBack[f]); err != nil {
			return errors.Wrap(err, "layer: writing feedback")
		}
		if err := writeInts(w, l.feedBackPrev[f]); err != nil {
			return errors.Wrap(err, "layer: writing previous feedback")
		}
	}

	for _, ws := range l.ffWeights {
		if err := binary.Write(w, binary.LittleEndian, ws); err != nil {
			return errors.Wrap(err, "layer: writing feedforward weights")
		}
	}
	for f := range l.predWeights {
		for _, ws := range l.predWeights[f] {
			if len(ws) == 0 {
				continue
			}
			if err := binary.Write(w, binary.LittleEndian, ws); err != nil {
				return errors.Wrap(err, "layer: writing prediction weights")
			}
		}
	}
	return nil
}

// Load reads a layer previously written by Save.
func Load(r io.Reader) (*Layer, error) {
	var magic [4]byte
	if err := binary.Read(r, binary.LittleEndian, &magic); err != nil {
		return nil, errors.Wrap(err, "layer: reading magic")
	}
	if magic != streamMagic {
		return nil, errors.Errorf("layer: bad stream magic %q", magic)
	}
	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, errors.Wrap(err, "layer: reading version")
	}
	if version != streamVersion {
		return nil, errors.Errorf("layer: unsupported stream version %d", version)
	}

	var hw, hh, ch, numV, numFB int32
	var seed, step int64
	var alpha, beta, gamma float32
	head := []interface{}{&hw, &hh, &ch, &numV, &numFB, &seed, &step, &alpha, &beta, &gamma}
	for _, h := range head {
		if err := binary.Read(r, binary.LittleEndian, h); err != nil {
			return nil, errors.Wrap(err, "layer: reading header")
		}
	}

	descs := make([]VisibleLayerDesc, numV)
	for v := range descs {
		var w, h, c, rad int32
		var pred uint8
		fields := []interface{}{&w, &h, &c, &rad, &pred}
		for _, f := range fields {
			if err := binary.Read(r, binary.LittleEndian, f); err != nil {
				return nil, errors.Wrap(err, "layer: reading visible description")
			}
		}
		descs[v] = VisibleLayerDesc{
			Width: int(w), Height: int(h), ChunkSize: int(c), Radius: int(rad),
			Predict: pred != 0,
		}
	}

	l, err := New(int(hw), int(hh), int(ch), int(numFB), descs, seed)
	if err != nil {
		return nil, errors.Wrap(err, "layer: rebuilding from stream header")
	}
	l.step = step
	l.alpha = alpha
	l.beta = beta
	l.gamma = gamma

	if err := readInts(r, l.hiddenStates); err != nil {
		return nil, errors.Wrap(err, "layer: reading hidden states")
	}
	floats := [][]float32{
		l.activations, l.rawSums, l.rawCounts,
		l.reconActs, l.reconCounts, l.reconActsPrev, l.reconCountsPrev,
	}
	for _, fs := range floats {
		if err := binary.Read(r, binary.LittleEndian, fs); err != nil {
			return nil, errors.Wrap(err, "layer: reading accumulators")
		}
	}

	for v := range l.descs {
		for _, code := range [][]int{l.predictions[v], l.inputs[v], l.inputsPrev[v]} {
			if err := readInts(r, code); err != nil {
				return nil, errors.Wrap(err, "layer: reading visible codes")
			}
		}
		for _, fs := range [][]float32{l.predActs[v], l.predCounts[v], l.predActsPrev[v], l.predCountsPrev[v]} {
			if err := binary.Read(r, binary.LittleEndian, fs); err != nil {
				return nil, errors.Wrap(err, "layer: reading prediction accumulators")
			}
		}
	}
	for f := range l.feedBack {
		if err := readInts(r, l.feedBack[f]); err != nil {
			return nil, errors.Wrap(err, "layer: reading feedback")
		}
		if err := readInts(r, l.feedBackPrev[f]); err != nil {
			return nil, errors.Wrap(err, "layer: reading previous feedback")
		}
	}

	for _, ws := range l.ffWeights {
		if err := binary.Read(r, binary.LittleEndian, ws); err != nil {
			return nil, errors.Wrap(err, "layer: reading feedforward weights")
		}
	}
	for f := range l.predWeights {
		for _, ws := range l.predWeights[f] {
			if len(ws) == 0 {
				continue
			}
			if err := binary.Read(r, binary.LittleEndian, ws); err != nil {
				return nil, errors.Wrap(err, "layer: reading prediction weights")
			}
		}
	}
	return l, nil
}

// GobEncode implements gob.GobEncoder by delegating to Save, so a layer
// can ride inside gob-encoded structures.
func (l *Layer) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	if err := l.Save(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder.
func (l *Layer) GobDecode(p []byte) error {
	ll, err := Load(bytes.NewReader(p))
	if err != nil {
		return err
	}
	*l = *ll
	return nil
}
