package windowpool

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeatProfile_RoundTrip(t *testing.T) {
	const pageSize = 16

	ch := newTestChannel(t, pageSize*100)
	p, err := New("heat", pageSize, ch, WithMappedMemory(pageSize*100))
	require.NoError(t, err)
	defer p.Close()

	for position := int64(0); position < 10; position++ {
		w, err := p.Acquire(position, OpRead)
		require.NoError(t, err)
		require.NoError(t, p.Release(w))
	}

	var buf bytes.Buffer
	require.NoError(t, p.WriteHeatProfile(&buf))

	profile, err := ReadHeatProfile(&buf)
	require.NoError(t, err)

	assert.Equal(t, "heat", profile.StoreName)
	assert.Equal(t, pageSize, profile.PageSize)
	assert.Equal(t, p.Stats().BrickCount, profile.BrickCount)
	assert.Len(t, profile.Bricks, profile.BrickCount)

	var heat int64
	for _, b := range profile.Bricks {
		heat += b.Hit
	}
	assert.Positive(t, heat, "touched bricks must show demand")
}
