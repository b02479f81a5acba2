// Package gif renders sequences of chunked codes as animated GIFs, for
// eyeballing what a hierarchy sees and predicts.
package gif

import (
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"io"
	"math"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/math/fixed"
)

var regular *truetype.Font

const (
	dpi        = 144.0
	fontsize   = 12.0
	lineheight = 1.2
)

func init() {
	var err error
	if regular, err = truetype.Parse(gomono.TTF); err != nil {
		panic(err)
	}
}

var globPalette = color.Palette{
	color.Gray{255},
	color.Gray{200},
	color.Gray{0},
}

const (
	bgIdx = iota
	gridIdx
	cellIdx
)

// Encoder accumulates frames, one per chunked code, and writes an animated
// GIF on Flush. Cells are scaled up so individual units stay visible.
type Encoder struct {
	font.Drawer

	out *gif.GIF
	io.Writer

	width, height int // code grid extents, in units
	chunkSize     int
	scale         int // pixels per unit
	delay         int // per frame, in 1/100ths of a second
}

// NewEncoder renders width x height codes with the given chunk size into
// w. scale is pixels per unit; anything less than 1 becomes 4.
func NewEncoder(w io.Writer, width, height, chunkSize, scale int) *Encoder {
	if scale < 1 {
		scale = 4
	}
	enc := &Encoder{
		Writer:    w,
		width:     width,
		height:    height,
		chunkSize: chunkSize,
		scale:     scale,
		delay:     10,
		out:       &gif.GIF{LoopCount: -1},
	}
	enc.Drawer.Src = image.Black
	enc.Drawer.Face = truetype.NewFace(regular, &truetype.Options{
		Size:    fontsize,
		DPI:     dpi,
		Hinting: font.HintingFull,
	})
	return enc
}

// Add appends one frame showing the code, captioned.
func (enc *Encoder) Add(code []int, caption string) {
	dy := int(math.Ceil(fontsize * lineheight * dpi / 72))
	imW := enc.width * enc.scale
	imH := enc.height*enc.scale + dy

	im := image.NewPaletted(image.Rect(0, 0, imW, imH), globPalette)
	draw.Draw(im, im.Bounds(), image.White, image.ZP, draw.Src)

	ch := enc.chunkSize
	chunksX := enc.width / ch

	// chunk boundaries
	for x := 0; x < enc.width; x += ch {
		for y := 0; y < enc.height*enc.scale; y++ {
			im.SetColorIndex(x*enc.scale, y, gridIdx)
		}
	}
	for y := 0; y < enc.height; y += ch {
		for x := 0; x < enc.width*enc.scale; x++ {
			im.SetColorIndex(x, y*enc.scale, gridIdx)
		}
	}

	// active units
	for c, local := range code {
		x := (c%chunksX)*ch + local%ch
		y := (c/chunksX)*ch + local/ch
		for py := 0; py < enc.scale; py++ {
			for px := 0; px < enc.scale; px++ {
				im.SetColorIndex(x*enc.scale+px, y*enc.scale+py, cellIdx)
			}
		}
	}

	enc.Dst = im
	enc.Dot = fixed.P(2, imH-dy/4)
	enc.DrawString(caption)

	enc.out.Image = append(enc.out.Image, im)
	enc.out.Delay = append(enc.out.Delay, enc.delay)
}

// Flush writes the gif into the writer.
func (enc *Encoder) Flush() error { return gif.EncodeAll(enc.Writer, enc.out) }
