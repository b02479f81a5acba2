package layer

// Chunk addressing. A grid of width*height units is partitioned into
// square chunks of side chunkSize; a chunked code holds, per chunk, the
// row-major index within the chunk of the single active unit.

// chunkIndex returns the linear chunk index of the unit at (x, y).
func chunkIndex(x, y, chunkSize, chunksInX int) int {
	return (x / chunkSize) + (y/chunkSize)*chunksInX
}

// window is an inclusive rectangle of chunk coordinates, clipped to the
// grid it was computed against.
type window struct {
	loX, loY, hiX, hiY int
}

func (w window) width() int  { return w.hiX - w.loX + 1 }
func (w window) height() int { return w.hiY - w.loY + 1 }

// chunks returns the number of chunks covered by the window.
func (w window) chunks() int { return w.width() * w.height() }

func (w window) contains(cx, cy int) bool {
	return cx >= w.loX && cx <= w.hiX && cy >= w.loY && cy <= w.hiY
}

// chunkOffset returns the position of chunk (cx, cy) in a row-major walk
// of the window. The caller must ensure containment.
func (w window) chunkOffset(cx, cy int) int {
	return (cy-w.loY)*w.width() + (cx - w.loX)
}

// receptiveWindow projects hidden chunk (hcx, hcy) onto a visible chunk
// grid and returns the radius-bounded window around the projected center,
// clipped to the visible grid. Clipping at the borders is what makes the
// per-unit weight vectors ragged.
func receptiveWindow(hcx, hcy, hiddenChunksX, hiddenChunksY, visChunksX, visChunksY, radius int) window {
	cx := (hcx * visChunksX) / hiddenChunksX
	cy := (hcy * visChunksY) / hiddenChunksY
	return window{
		loX: max(0, cx-radius),
		loY: max(0, cy-radius),
		hiX: min(visChunksX-1, cx+radius),
		hiY: min(visChunksY-1, cy+radius),
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
