package eogmaneo

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/awalterschulze/gographviz"
)

type dotLayer struct {
	ID       int
	Hidden   string
	Chunk    int
	Radius   int
	FeedBack int
}

type dotInput struct {
	ID      int
	Size    string
	Chunk   int
	Predict bool
}

// ToDot renders the stack connectivity as a graphviz document: inputs at
// the bottom, layers above, solid edges for the feedforward path and
// dashed ones for the feedback path.
func (h *Hierarchy) ToDot() string {
	g := gographviz.NewGraph()
	if err := g.SetName("G"); err != nil {
		panic(err)
	}
	g.SetDir(true)

	var buf bytes.Buffer
	for v, d := range h.inputs {
		in := dotInput{ID: v, Size: fmt.Sprintf("%dx%d", d.Width, d.Height), Chunk: d.ChunkSize, Predict: d.Predict}
		inputTmpl.Execute(&buf, in)
		g.AddNode("G", inputName(v), map[string]string{
			"fontname": "Monaco",
			"shape":    "none",
			"label":    buf.String(),
		})
		buf.Reset()
	}

	for i, lc := range h.confs {
		dl := dotLayer{
			ID:       i,
			Hidden:   fmt.Sprintf("%dx%d", lc.HiddenWidth, lc.HiddenHeight),
			Chunk:    lc.ChunkSize,
			Radius:   lc.Radius,
			FeedBack: h.layers[i].NumFeedBack(),
		}
		layerTmpl.Execute(&buf, dl)
		g.AddNode("G", layerName(i), map[string]string{
			"fontname": "Monaco",
			"shape":    "none",
			"label":    buf.String(),
		})
		buf.Reset()

		if i == 0 {
			for v := range h.inputs {
				g.AddEdge(inputName(v), layerName(0), true, nil)
			}
		} else {
			g.AddEdge(layerName(i-1), layerName(i), true, nil)
		}
		if i < len(h.confs)-1 {
			g.AddEdge(layerName(i+1), layerName(i), true, map[string]string{"style": "dashed"})
		}
	}
	return g.String()
}

func inputName(v int) string { return fmt.Sprintf("input%d", v) }
func layerName(i int) string { return fmt.Sprintf("layer%d", i) }

const layerTmplRaw = `<
<TABLE BORDER="0" CELLBORDER="1" CELLSPACING="0">
<TR><TD>Layer</TD><TD>{{.ID}}</TD></TR>
<TR><TD>Hidden</TD><TD>{{.Hidden}}</TD></TR>
<TR><TD>Chunk</TD><TD>{{.Chunk}}</TD></TR>
<TR><TD>Radius</TD><TD>{{.Radius}}</TD></TR>
<TR><TD>FeedBack</TD><TD>{{.FeedBack}}</TD></TR>
</TABLE>
>
`

const inputTmplRaw = `<
<TABLE BORDER="0" CELLBORDER="1" CELLSPACING="0">
<TR><TD>Input</TD><TD>{{.ID}}</TD></TR>
<TR><TD>Size</TD><TD>{{.Size}}</TD></TR>
<TR><TD>Chunk</TD><TD>{{.Chunk}}</TD></TR>
<TR><TD>Predict</TD><TD>{{.Predict}}</TD></TR>
</TABLE>
>
`

var layerTmpl *template.Template
var inputTmpl *template.Template

func init() {
	layerTmpl = template.Must(template.New("layer").Parse(layerTmplRaw))
	inputTmpl = template.Must(template.New("input").Parse(inputTmplRaw))
}
