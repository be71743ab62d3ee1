package windowpool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRowMap_PutIfAbsent(t *testing.T) {
	ch := newTestChannel(t, 64)
	m := NewRowMap()

	first, err := newPersistenceRow(1, 8, ch)
	require.NoError(t, err)
	second, err := newPersistenceRow(1, 8, ch)
	require.NoError(t, err)

	assert.Nil(t, m.PutIfAbsent(1, first))
	assert.Same(t, first, m.PutIfAbsent(1, second), "losing insert must return the winner")
	assert.Same(t, first, m.Get(1))
	assert.Nil(t, m.Get(2))
}

func TestRowMap_RemoveComparesValue(t *testing.T) {
	ch := newTestChannel(t, 64)
	m := NewRowMap()

	published, err := newPersistenceRow(1, 8, ch)
	require.NoError(t, err)
	stranger, err := newPersistenceRow(1, 8, ch)
	require.NoError(t, err)

	require.Nil(t, m.PutIfAbsent(1, published))

	// Removing with a different row must not drop the published one.
	assert.False(t, m.Remove(1, stranger))
	assert.Same(t, published, m.Get(1))

	assert.True(t, m.Remove(1, published))
	assert.Nil(t, m.Get(1))

	assert.False(t, m.Remove(1, published), "second remove finds nothing")
}

func TestRowMap_Clear(t *testing.T) {
	ch := newTestChannel(t, 64)
	m := NewRowMap()

	row, err := newPersistenceRow(3, 8, ch)
	require.NoError(t, err)
	require.Nil(t, m.PutIfAbsent(3, row))

	m.Clear()
	assert.Nil(t, m.Get(3))
}
