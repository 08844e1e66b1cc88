package storage

import (
	"testing"
	"time"

	"github.com/poiesic/sitebot/core"
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
			require.Len(t, data, 8)

			decoded, err := UnmarshalID(data)
			require.NoError(t, err)
			assert.Equal(t, tt.id, decoded)
		})
	}
}

func TestMarshalID_SortsNumerically(t *testing.T) {
	assert.Less(t, string(MarshalID(1)), string(MarshalID(256)))
}

func TestUnmarshalID_Invalid(t *testing.T) {
	_, err := UnmarshalID([]byte{})
	assert.ErrorIs(t, err, ErrSerializationFailed)
}

func TestMarshalUnmarshalPoint(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Millisecond)

	point := &core.Point{
		ID:         core.ID(18446744073709551615),
		Collection: "docs",
		Text:       "Sentence one. Sentence two.",
		Source:     "http://example.com/",
		ChunkIndex: 3,
		Vector:     []float32{0.1, -0.25, 3.5e-7},
		CreatedAt:  now,
	}

	data, err := MarshalPoint(point)
	require.NoError(t, err)

	decoded, err := UnmarshalPoint(data)
	require.NoError(t, err)
	assert.Equal(t, point.ID, decoded.ID)
	assert.Equal(t, point.Collection, decoded.Collection)
	assert.Equal(t, point.Text, decoded.Text)
	assert.Equal(t, point.Source, decoded.Source)
	assert.Equal(t, point.ChunkIndex, decoded.ChunkIndex)
	assert.Equal(t, point.Vector, decoded.Vector)
	assert.True(t, point.CreatedAt.Equal(decoded.CreatedAt))
}

func TestUnmarshalPoint_Invalid(t *testing.T) {
	_, err := UnmarshalPoint([]byte{0x01, 0x02})
	assert.ErrorIs(t, err, ErrSerializationFailed)
}

func TestMarshalUnmarshalCollection(t *testing.T) {
	c := &core.Collection{Name: "docs", Dimension: 384, CreatedAt: time.Now().UTC().Truncate(time.Millisecond)}

	data, err := MarshalCollection(c)
	require.NoError(t, err)

	decoded, err := UnmarshalCollection(data)
	require.NoError(t, err)
	assert.Equal(t, c.Name, decoded.Name)
	assert.Equal(t, c.Dimension, decoded.Dimension)
	assert.True(t, c.CreatedAt.Equal(decoded.CreatedAt))
}
