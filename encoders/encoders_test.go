package encoders

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

func TestScalarEncoderRoundTrip(t *testing.T) {
	enc, err := NewScalarEncoder(3, -1, 1, 6)
	require.NoError(t, err)
	assert.True(t, enc.Desc(2, true).IsValid())

	vals := []float32{-1, 0.25, 1}
	code := enc.Encode(vals, nil)
	require.Len(t, code, 3)
	for i, c := range code {
		if c < 0 || c >= 36 {
			t.Fatalf("chunk %d encodes out-of-range unit %d", i, c)
		}
	}

	got := enc.Decode(code, nil)
	for i := range vals {
		assert.InDelta(t, vals[i], got[i], 2.0/35, "scalar %d", i)
	}
}

func TestScalarEncoderClamps(t *testing.T) {
	enc, err := NewScalarEncoder(1, 0, 1, 4)
	require.NoError(t, err)

	lo := enc.Encode([]float32{-5}, nil)
	hi := enc.Encode([]float32{5}, nil)
	assert.Equal(t, 0, lo[0])
	assert.Equal(t, 15, hi[0])
}

func TestScalarEncoderValidation(t *testing.T) {
	_, err := NewScalarEncoder(0, 0, 1, 4)
	assert.Error(t, err)
	_, err = NewScalarEncoder(1, 1, 1, 4)
	assert.Error(t, err)
}

func TestImageEncoder(t *testing.T) {
	enc, err := NewImageEncoder(8, 8, 4)
	require.NoError(t, err)

	backing := make([]float32, 64)
	backing[2+1*8] = 1   // chunk 0, local (2, 1)
	backing[5+6*8] = 0.5 // chunk 3, local (1, 2)
	img := tensor.New(tensor.WithShape(8, 8), tensor.WithBacking(backing))

	code, err := enc.Encode(img, nil)
	require.NoError(t, err)
	require.Len(t, code, 4)
	assert.Equal(t, 2+1*4, code[0])
	assert.Equal(t, 1+2*4, code[3])

	dec := enc.Decode(code)
	data := dec.Data().([]float32)
	assert.Equal(t, float32(1), data[2+1*8])
	assert.Equal(t, float32(1), data[5+6*8])
}

func TestImageEncoderRejectsBadShape(t *testing.T) {
	enc, err := NewImageEncoder(8, 8, 4)
	require.NoError(t, err)

	img := tensor.New(tensor.WithShape(4, 4), tensor.WithBacking(make([]float32, 16)))
	_, err = enc.Encode(img, nil)
	assert.Error(t, err)

	_, err = NewImageEncoder(9, 8, 4)
	assert.Error(t, err)
}
