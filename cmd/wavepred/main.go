// Command wavepred steps a small hierarchy over a periodic scalar signal
// and reports how well the next sample is predicted, online.
package main

import (
	"flag"
	"log"
	"math"
	"os"

	eogmaneo "github.com/damienstanton/EOgmaNeo"
	"github.com/damienstanton/EOgmaNeo/encoders"
	gifenc "github.com/damienstanton/EOgmaNeo/encoding/gif"
	"github.com/damienstanton/EOgmaNeo/layer"
)

func main() {
	steps := flag.Int("steps", 2000, "timesteps to run")
	seed := flag.Int64("seed", 1337, "creation seed")
	gifOut := flag.String("gif", "", "write a GIF of the final predictions to this file")
	dotOut := flag.String("dot", "", "write the hierarchy connectivity as graphviz to this file")
	csvOut := flag.String("csv", "", "write the per-step chunk mismatch history to this file")
	flag.Parse()

	enc, err := encoders.NewScalarEncoder(1, -1, 1, 6)
	if err != nil {
		log.Fatalf("%+v", err)
	}

	h, err := eogmaneo.New(eogmaneo.Config{
		Name:   "wavepred",
		Inputs: []layer.VisibleLayerDesc{enc.Desc(2, true)},
		Layers: []eogmaneo.LayerConfig{
			{HiddenWidth: 12, HiddenHeight: 12, ChunkSize: 3, Radius: 2, Alpha: 0.2, Beta: 0.2, Gamma: 0.95},
			{HiddenWidth: 12, HiddenHeight: 12, ChunkSize: 3, Radius: 2, Alpha: 0.2, Beta: 0.2, Gamma: 0.95},
		},
		Seed: *seed,
	})
	if err != nil {
		log.Fatalf("%+v", err)
	}
	defer h.Stop()

	var frames *gifenc.Encoder
	var gifFile *os.File
	if *gifOut != "" {
		gifFile, err = os.Create(*gifOut)
		if err != nil {
			log.Fatal(err)
		}
		defer gifFile.Close()
		d := enc.Desc(2, true)
		frames = gifenc.NewEncoder(gifFile, d.Width, d.Height, d.ChunkSize, 8)
	}

	var code []int
	var decoded []float32
	for t := 0; t < *steps; t++ {
		v := float32(math.Sin(float64(t) * 0.125))
		code = enc.Encode([]float32{v}, code)
		h.Step([][]int{code}, true)

		if t%100 == 99 {
			decoded = enc.Decode(h.Predictions(0), decoded)
			log.Printf("step %4d: input %+.3f, predicted next %+.3f, mismatched chunks last step: %d",
				t, v, decoded[0], h.LastMismatch(0))
		}
		if frames != nil && t >= *steps-100 {
			frames.Add(h.Predictions(0), "predicted next input")
		}
	}

	if frames != nil {
		if err := frames.Flush(); err != nil {
			log.Fatal(err)
		}
	}
	if *dotOut != "" {
		if err := os.WriteFile(*dotOut, []byte(h.ToDot()), 0644); err != nil {
			log.Fatal(err)
		}
	}
	if *csvOut != "" {
		if err := h.Dump(*csvOut); err != nil {
			log.Fatal(err)
		}
	}
}
