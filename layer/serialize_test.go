package layer

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/damienstanton/EOgmaNeo/compute"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	l := newTestLayer(t, 1, 91)
	cs := compute.New(2)
	defer cs.Stop()

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 30; i++ {
		l.Forward([][]int{randomCode(rng, 16, 9)}, cs, 0.3, 0.95)
		l.Backward([][]int{randomCode(rng, 16, 9)}, cs, 0.2)
	}

	var buf bytes.Buffer
	require.NoError(t, l.Save(&buf))
	ll, err := Load(&buf)
	require.NoError(t, err)

	if diff := cmp.Diff(l, ll, cmp.AllowUnexported(Layer{})); diff != "" {
		t.Errorf("layer state changed across save/load (-want +got):\n%s", diff)
	}
}

// Resuming from a stream must be bit-identical to never having stopped.
func TestLoadResumesBitIdentical(t *testing.T) {
	cs := compute.New(4)
	defer cs.Stop()

	a := newTestLayer(t, 1, 123)
	rng := rand.New(rand.NewSource(44))
	codes := make([][]int, 80)
	fbs := make([][]int, 80)
	for i := range codes {
		codes[i] = randomCode(rng, 16, 9)
		fbs[i] = randomCode(rng, 16, 9)
	}

	for i := 0; i < 40; i++ {
		a.Forward([][]int{codes[i]}, cs, 0.3, 0.95)
		a.Backward([][]int{fbs[i]}, cs, 0.2)
	}

	var buf bytes.Buffer
	require.NoError(t, a.Save(&buf))
	b, err := Load(&buf)
	require.NoError(t, err)

	for i := 40; i < 80; i++ {
		a.Forward([][]int{codes[i]}, cs, 0.3, 0.95)
		a.Backward([][]int{fbs[i]}, cs, 0.2)
		b.Forward([][]int{codes[i]}, cs, 0.3, 0.95)
		b.Backward([][]int{fbs[i]}, cs, 0.2)
	}

	if diff := cmp.Diff(a, b, cmp.AllowUnexported(Layer{})); diff != "" {
		t.Errorf("resumed run diverged (-uninterrupted +resumed):\n%s", diff)
	}
}

func TestLoadRejectsGarbage(t *testing.T) {
	_, err := Load(bytes.NewReader([]byte("not a layer stream")))
	assert.Error(t, err)

	_, err = Load(bytes.NewReader(nil))
	assert.Error(t, err)
}

func TestGobRoundTrip(t *testing.T) {
	l := newTestLayer(t, 2, 9)
	p, err := l.GobEncode()
	require.NoError(t, err)

	var ll Layer
	require.NoError(t, ll.GobDecode(p))
	if diff := cmp.Diff(l, &ll, cmp.AllowUnexported(Layer{})); diff != "" {
		t.Errorf("gob round trip changed state (-want +got):\n%s", diff)
	}
}
