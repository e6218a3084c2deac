package rtdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreSetAndSnapshot(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.SetLED(2, 1))
	require.NoError(t, s.SetButtons([Pins]int{1, 0, 0, 1}))
	snap, err := s.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, [Pins]int{0, 0, 1, 0}, snap.LEDs)
	assert.Equal(t, [Pins]int{1, 0, 0, 1}, snap.Buttons)

	require.NoError(t, s.SetLEDs([Pins]int{1, 1, 1, 1}))
	snap, _ = s.Snapshot()
	assert.Equal(t, [Pins]int{1, 1, 1, 1}, snap.LEDs)

	assert.ErrorIs(t, s.SetLED(4, 1), ErrPin)
	assert.ErrorIs(t, s.SetLED(-1, 1), ErrPin)
}

func TestSanitizeRepairsCorruption(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.SetLEDs([Pins]int{1, 0, 1, 0}))
	require.NoError(t, s.Corrupt(0))
	require.NoError(t, s.SetButtons([Pins]int{0, 7, 1, 0}))

	n, err := s.Sanitize()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	snap, _ := s.Snapshot()
	assert.Equal(t, [Pins]int{0, 0, 1, 0}, snap.LEDs)
	assert.Equal(t, [Pins]int{0, 0, 1, 0}, snap.Buttons)

	n, _ = s.Sanitize()
	assert.Zero(t, n)
}

func TestMemoryStoreToggleLEDs(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.SetLEDs([Pins]int{1, 0, -1, 1}))
	require.NoError(t, s.ToggleLEDs([Pins]bool{true, true, true, false}))
	snap, err := s.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, [Pins]int{0, 1, 1, 1}, snap.LEDs)
}
