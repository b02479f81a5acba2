package layer

import (
	"math/rand"

	"github.com/chewxy/math32"
	"gorgonia.org/vecf32"

	"github.com/damienstanton/EOgmaNeo/compute"
)

// per-phase salts for work item rng seeding
const (
	forwardSalt    = 0x1e35a7bd
	predictionSalt = 0x27d4eb2f
)

func (l *Layer) itemRNG(salt, index int) *rand.Rand {
	seed := l.seed + int64(salt) + int64(index+1)*7919 + l.step*104729
	return rand.New(rand.NewSource(seed))
}

// forwardWorkItem computes activation, competition and feedforward
// learning for a single hidden chunk. Items of the same batch write
// disjoint chunks, so they share the layer without locking.
type forwardWorkItem struct {
	l     *Layer
	chunk int
	rng   *rand.Rand
}

func (w *forwardWorkItem) Run(threadIndex int) { w.l.forwardChunk(w.chunk, w.rng) }

// Forward runs one timestep of activation and feedforward learning.
// inputs holds one chunked code per visible source and must match the
// configured descriptions; mismatches are a caller bug, not a checked
// error. alpha is the feedforward learning rate, gamma the accumulator
// decay.
func (l *Layer) Forward(inputs [][]int, cs *compute.System, alpha, gamma float32) {
	l.alpha = alpha
	l.gamma = gamma

	for v := range l.inputs {
		copy(l.inputsPrev[v], l.inputs[v])
		copy(l.inputs[v], inputs[v])
	}

	// roll accumulators and pre-apply the decay; work items only add the
	// winner contributions on top.
	copy(l.reconActsPrev, l.reconActs)
	copy(l.reconCountsPrev, l.reconCounts)
	vecf32.Scale(l.reconActs, gamma)
	vecf32.Scale(l.reconCounts, gamma)

	numChunks := l.hiddenChunksX * l.hiddenChunksY
	items := make([]compute.WorkItem, numChunks)
	for c := 0; c < numChunks; c++ {
		items[c] = &forwardWorkItem{l: l, chunk: c, rng: l.itemRNG(forwardSalt, c)}
	}
	cs.Run(items)

	l.step++
}

func (l *Layer) forwardChunk(chunk int, rng *rand.Rand) {
	ch := l.chunkSize
	hcx := chunk % l.hiddenChunksX
	hcy := chunk / l.hiddenChunksX

	winLocal := 0
	winIndex := -1
	var winAct float32
	ties := 0

	for dy := 0; dy < ch; dy++ {
		for dx := 0; dx < ch; dx++ {
			x := hcx*ch + dx
			y := hcy*ch + dy
			i := x + y*l.hiddenWidth

			var sum float32
			cnt := 0
			for v := range l.descs {
				d := &l.descs[v]
				win := receptiveWindow(hcx, hcy, l.hiddenChunksX, l.hiddenChunksY, d.chunksX(), d.chunksY(), d.Radius)
				weights := l.ffWeights[l.weightIndex(v, x, y)]
				vch := d.ChunkSize
				for cy := win.loY; cy <= win.hiY; cy++ {
					for cx := win.loX; cx <= win.hiX; cx++ {
						active := l.inputs[v][cx+cy*d.chunksX()]
						sum += weights[win.chunkOffset(cx, cy)*vch*vch+active]
						cnt++
					}
				}
			}

			var act float32
			if cnt > 0 {
				act = (sum / float32(cnt)) / (1 + l.reconCountsPrev[i])
			}
			l.activations[i] = act
			l.rawSums[i] = sum
			l.rawCounts[i] = float32(cnt)

			// reservoir tie-break keeps the draw uniform over exact ties
			switch {
			case winIndex < 0 || act > winAct:
				winAct = act
				winIndex = i
				winLocal = dx + dy*ch
				ties = 1
			case act == winAct:
				ties++
				if rng.Intn(ties) == 0 {
					winIndex = i
					winLocal = dx + dy*ch
				}
			}
		}
	}

	l.hiddenStates[chunk] = winLocal

	// winner accumulates; everyone else only decays (done by Forward)
	l.reconActs[winIndex] += l.rawSums[winIndex]
	l.reconCounts[winIndex] += l.rawCounts[winIndex]

	// error-driven learning: once the winner's accumulated reconstruction
	// saturates, the residual vanishes and weights stop moving.
	res := 1 - l.reconActsPrev[winIndex]/math32.Max(1, l.reconCountsPrev[winIndex])
	if res <= 0 {
		return
	}
	rate := l.alpha * res

	wx := winIndex % l.hiddenWidth
	wy := winIndex / l.hiddenWidth
	for v := range l.descs {
		d := &l.descs[v]
		win := receptiveWindow(hcx, hcy, l.hiddenChunksX, l.hiddenChunksY, d.chunksX(), d.chunksY(), d.Radius)
		weights := l.ffWeights[l.weightIndex(v, wx, wy)]
		vch := d.ChunkSize
		for cy := win.loY; cy <= win.hiY; cy++ {
			for cx := win.loX; cx <= win.hiX; cx++ {
				active := l.inputs[v][cx+cy*d.chunksX()]
				off := win.chunkOffset(cx, cy)*vch*vch + active
				weights[off] += rate * (1 - weights[off])
			}
		}
	}
}
