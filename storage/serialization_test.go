package storage

import (
	"math"
	"testing"

	"github.com/poiesic/moodshelf/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalID(t *testing.T) {
	tests := []struct {
		name string
		id   core.ID
	}{
		{"zero ID", core.ID(0)},
		{"small ID", core.ID(42)},
		{"large ID", core.ID(18446744073709551615)}, // max uint64
		{"content-based ID", core.IDFromContent("test content")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := MarshalID(tt.id)
			require.NotEmpty(t, data)

			decoded, err := UnmarshalID(data)
			require.NoError(t, err)
			assert.Equal(t, tt.id, decoded)
		})
	}
}

func TestUnmarshalID_Invalid(t *testing.T) {
	_, err := UnmarshalID([]byte{})
	assert.ErrorIs(t, err, ErrSerializationFailed)
}

func TestMarshalUnmarshalVector(t *testing.T) {
	tests := []struct {
		name   string
		vector []float32
	}{
		{"empty", []float32{}},
		{"unit", []float32{1, 0, 0}},
		{"mixed", []float32{-0.25, 0.5, 3.75, float32(math.Pi)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := MarshalVector(tt.vector)
			assert.Len(t, data, VectorSize(tt.vector))

			decoded, n, err := UnmarshalVector(data)
			require.NoError(t, err)
			assert.Equal(t, len(data), n)
			assert.Equal(t, tt.vector, decoded)
		})
	}
}

func TestUnmarshalVector_Consecutive(t *testing.T) {
	a := []float32{1, 2}
	b := []float32{3, 4, 5}
	buf := make([]byte, VectorSize(a)+VectorSize(b))
	n := MarshalVectorTo(a, buf)
	MarshalVectorTo(b, buf[n:])

	first, m, err := UnmarshalVector(buf)
	require.NoError(t, err)
	second, _, err := UnmarshalVector(buf[m:])
	require.NoError(t, err)

	assert.Equal(t, a, first)
	assert.Equal(t, b, second)
}

func TestUnmarshalVector_Truncated(t *testing.T) {
	data := MarshalVector([]float32{1, 2, 3})

	_, _, err := UnmarshalVector(data[:len(data)-2])
	assert.ErrorIs(t, err, ErrTruncatedData)

	_, _, err = UnmarshalVector(nil)
	assert.ErrorIs(t, err, ErrSerializationFailed)
}
