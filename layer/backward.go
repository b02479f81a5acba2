package layer

import (
	"math/rand"

	"github.com/chewxy/math32"

	"github.com/damienstanton/EOgmaNeo/compute"
)

// backwardWorkItem trains the prediction weights owned by one hidden
// chunk. For each feedback source, the unit that the previous timestep's
// feedback selected in this chunk is the one whose stale forecast is now
// corrected against the input that actually arrived.
type backwardWorkItem struct {
	l     *Layer
	chunk int
}

func (w *backwardWorkItem) Run(threadIndex int) { w.l.backwardChunk(w.chunk) }

// predictionWorkItem emits the prediction for one chunk of one predicted
// visible source, reconstructing from the current hidden state and the
// current feedback through the just-updated prediction weights.
type predictionWorkItem struct {
	l       *Layer
	visible int
	chunk   int
	rng     *rand.Rand
}

func (w *predictionWorkItem) Run(threadIndex int) { w.l.predictChunk(w.visible, w.chunk, w.rng) }

// Backward runs one timestep of predictive learning and prediction
// emission. feedBack holds one chunked code per configured feedback
// source, each in the hidden chunk geometry; with zero feedback sources it
// may be nil, predictive learning is skipped and predictions are
// reconstructed from the hidden state alone. beta is the prediction
// learning rate. Forward must have run earlier in the same timestep.
func (l *Layer) Backward(feedBack [][]int, cs *compute.System, beta float32) {
	l.beta = beta

	for f := range l.feedBack {
		copy(l.feedBackPrev[f], l.feedBack[f])
		copy(l.feedBack[f], feedBack[f])
	}
	for v := range l.descs {
		copy(l.predActsPrev[v], l.predActs[v])
		copy(l.predCountsPrev[v], l.predCounts[v])
	}

	numChunks := l.hiddenChunksX * l.hiddenChunksY
	if len(l.feedBack) > 0 {
		items := make([]compute.WorkItem, numChunks)
		for c := 0; c < numChunks; c++ {
			items[c] = &backwardWorkItem{l: l, chunk: c}
		}
		cs.Run(items)
	}

	var items []compute.WorkItem
	for v := range l.descs {
		if !l.descs[v].Predict {
			continue
		}
		n := l.descs[v].chunksX() * l.descs[v].chunksY()
		for c := 0; c < n; c++ {
			items = append(items, &predictionWorkItem{
				l:       l,
				visible: v,
				chunk:   c,
				rng:     l.itemRNG(predictionSalt, len(items)),
			})
		}
	}
	cs.Run(items)
}

func (l *Layer) backwardChunk(chunk int) {
	ch := l.chunkSize
	hcx := chunk % l.hiddenChunksX
	hcy := chunk / l.hiddenChunksX

	for f := range l.feedBackPrev {
		local := l.feedBackPrev[f][chunk]
		ux := hcx*ch + local%ch
		uy := hcy*ch + local/ch

		for v := range l.descs {
			d := &l.descs[v]
			if !d.Predict {
				continue
			}
			win := receptiveWindow(hcx, hcy, l.hiddenChunksX, l.hiddenChunksY, d.chunksX(), d.chunksY(), d.Radius)
			weights := l.predWeights[f][l.weightIndex(v, ux, uy)]
			vch := d.ChunkSize

			for cy := win.loY; cy <= win.hiY; cy++ {
				for cx := win.loX; cx <= win.hiX; cx++ {
					base := win.chunkOffset(cx, cy) * vch * vch
					for lj := 0; lj < vch*vch; lj++ {
						jx := cx*vch + lj%vch
						jy := cy*vch + lj/vch
						j := jx + jy*d.Width

						// target is 1 iff j is its chunk's active input
						var target float32
						if lj == l.inputs[v][chunkIndex(jx, jy, vch, d.chunksX())] {
							target = 1
						}
						pred := l.predActsPrev[v][j] / math32.Max(1, l.predCountsPrev[v][j])
						weights[base+lj] += l.beta * (target - pred)
					}
				}
			}
		}
	}
}

// reverseChunkRange returns a conservative range of hidden chunk
// coordinates (one axis) whose receptive windows may cover visible chunk
// vc; candidates still need a containment check. A hidden chunk hc
// projects to visible chunk hc*visChunks/hiddenChunks, so qualifying
// chunks are those projecting into [vc-radius, vc+radius]; the bounds
// invert that projection, rounding outward, and stay valid when the
// hidden chunk grid is denser than the visible one.
func reverseChunkRange(vc, visChunks, hiddenChunks, radius int) (lo, hi int) {
	lo = (vc-radius)*hiddenChunks/visChunks - 1
	hi = ((vc+radius+1)*hiddenChunks+visChunks-1)/visChunks - 1
	if lo < 0 {
		lo = 0
	}
	if hi > hiddenChunks-1 {
		hi = hiddenChunks - 1
	}
	return lo, hi
}

func (l *Layer) predictChunk(v, chunk int, rng *rand.Rand) {
	d := &l.descs[v]
	vch := d.ChunkSize
	vcx := chunk % d.chunksX()
	vcy := chunk / d.chunksX()

	loX, hiX := reverseChunkRange(vcx, d.chunksX(), l.hiddenChunksX, d.Radius)
	loY, hiY := reverseChunkRange(vcy, d.chunksY(), l.hiddenChunksY, d.Radius)

	ch := l.chunkSize
	winLocal := 0
	var winAct float32
	first := true
	ties := 0

	for lj := 0; lj < vch*vch; lj++ {
		jx := vcx*vch + lj%vch
		jy := vcy*vch + lj/vch
		j := jx + jy*d.Width

		var sum float32
		cnt := 0
		for hcy := loY; hcy <= hiY; hcy++ {
			for hcx := loX; hcx <= hiX; hcx++ {
				win := receptiveWindow(hcx, hcy, l.hiddenChunksX, l.hiddenChunksY, d.chunksX(), d.chunksY(), d.Radius)
				if !win.contains(vcx, vcy) {
					continue
				}
				off := win.chunkOffset(vcx, vcy)*vch*vch + lj
				hc := hcx + hcy*l.hiddenChunksX

				local := l.hiddenStates[hc]
				ux := hcx*ch + local%ch
				uy := hcy*ch + local/ch
				sum += l.ffWeights[l.weightIndex(v, ux, uy)][off]
				cnt++

				for f := range l.feedBack {
					local = l.feedBack[f][hc]
					ux = hcx*ch + local%ch
					uy = hcy*ch + local/ch
					sum += l.predWeights[f][l.weightIndex(v, ux, uy)][off]
					cnt++
				}
			}
		}

		var act float32
		if cnt > 0 {
			act = sum / float32(cnt)
		}
		// raw sum and count are kept so the next backward pass can
		// renormalize the stale forecast during learning
		l.predActs[v][j] = sum
		l.predCounts[v][j] = float32(cnt)

		switch {
		case first || act > winAct:
			winAct = act
			winLocal = lj
			first = false
			ties = 1
		case act == winAct:
			ties++
			if rng.Intn(ties) == 0 {
				winLocal = lj
			}
		}
	}

	l.predictions[v][chunk] = winLocal
}
