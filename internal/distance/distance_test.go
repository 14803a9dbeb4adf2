package distance

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHamming_KnownValues(t *testing.T) {
	tests := []struct {
		name string
		a, b []byte
		want float64
	}{
		{"identical zero", []byte{0x00}, []byte{0x00}, 0},
		{"all bits differ", []byte{0x00}, []byte{0xFF}, 1},
		{"half differ", []byte{0x0F}, []byte{0xFF}, 0.5},
		{"alternating", []byte{0b10101010}, []byte{0b01010101}, 1},
		{"two byte swap", []byte{0b10101010, 0b01010101}, []byte{0b01010101, 0b10101010}, 1},
		{"quarter differ", []byte{0xFF, 0x0F}, []byte{0x0F, 0x0F}, 0.25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Hamming(tt.a, tt.b)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHamming_SelfDistanceZero(t *testing.T) {
	vecs := [][]byte{{0x01}, {0xAB, 0xCD}, {0x00, 0xFF, 0x7F, 0x80}}
	for _, v := range vecs {
		d, err := Hamming(v, v)
		require.NoError(t, err)
		assert.Zero(t, d)
	}
}

func TestByte_KnownValues(t *testing.T) {
	d, err := Byte([]byte{0}, []byte{255})
	require.NoError(t, err)
	assert.Equal(t, 1.0, d)

	d, err = Byte([]byte{10, 20}, []byte{10, 20})
	require.NoError(t, err)
	assert.Zero(t, d)

	d, err = Byte([]byte{0, 255}, []byte{255, 0})
	require.NoError(t, err)
	assert.Equal(t, 1.0, d)
}

func TestCosine_SelfDistanceNearZero(t *testing.T) {
	vecs := [][]byte{{255, 0}, {0, 255}, {200, 17, 99}}
	for _, v := range vecs {
		d, err := Cosine(v, v)
		require.NoError(t, err)
		assert.Less(t, d, 1e-6)
	}
}

func TestCosine_OrthogonalIsLarge(t *testing.T) {
	d, err := Cosine([]byte{255, 0}, []byte{0, 255})
	require.NoError(t, err)
	assert.Greater(t, d, 2.0)
}

func TestCosine_AntiParallelIsFinite(t *testing.T) {
	// Anti-parallel vectors hit the 1e-6 similarity floor instead of
	// going negative or dividing by zero.
	d, err := Cosine([]byte{255, 255}, []byte{0, 0})
	require.NoError(t, err)
	assert.Greater(t, d, 2.0)
	assert.False(t, math.IsInf(d, 1))
	assert.False(t, math.IsNaN(d))
}

func TestDistances_Symmetric(t *testing.T) {
	a := []byte{0x12, 0xF0, 0x55}
	b := []byte{0xFF, 0x0F, 0xAA}

	for name, fn := range Registry() {
		t.Run(name, func(t *testing.T) {
			ab, err := fn(a, b)
			require.NoError(t, err)
			ba, err := fn(b, a)
			require.NoError(t, err)
			assert.Equal(t, ab, ba)
		})
	}
}

func TestDistances_RejectMismatchedLengths(t *testing.T) {
	for name, fn := range Registry() {
		t.Run(name, func(t *testing.T) {
			_, err := fn([]byte{1, 2}, []byte{1})
			assert.Error(t, err)
		})
	}
}

func TestDistances_RejectEmptyVectors(t *testing.T) {
	for name, fn := range Registry() {
		t.Run(name, func(t *testing.T) {
			_, err := fn(nil, nil)
			assert.Error(t, err)
			_, err = fn([]byte{}, []byte{1})
			assert.Error(t, err)
		})
	}
}

func TestLookup(t *testing.T) {
	fn, err := Lookup(FuncCosine)
	require.NoError(t, err)
	require.NotNil(t, fn)

	_, err = Lookup("euclidean_distance")
	assert.Error(t, err)
}
