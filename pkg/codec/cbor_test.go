package codec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type link struct {
	Asset    string    `cbor:"asset"`
	Sequence uint64    `cbor:"seq"`
	Location string    `cbor:"loc,omitempty"`
	At       time.Time `cbor:"at"`
	Labels   map[string]string
}

func TestMarshalDeterministic(t *testing.T) {
	v := link{
		Asset:    "0xabc",
		Sequence: 3,
		Location: "Mombasa port",
		At:       time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Labels:   map[string]string{"z": "1", "a": "2", "m": "3"},
	}

	first, err := Marshal(v)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := Marshal(v)
		require.NoError(t, err)
		assert.Equal(t, first, again, "map iteration order must not leak into the encoding")
	}
}

func TestUnmarshalPreservesFields(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 123, time.UTC)
	data, err := Marshal(link{Asset: "0xabc", Sequence: 9, At: at})
	require.NoError(t, err)

	var got link
	require.NoError(t, Unmarshal(data, &got))
	assert.Equal(t, "0xabc", got.Asset)
	assert.Equal(t, uint64(9), got.Sequence)
	assert.True(t, at.Equal(got.At))
}
