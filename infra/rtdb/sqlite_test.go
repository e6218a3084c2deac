package rtdb

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/stbs/core/rtdb"
)

func TestSQLiteStoreRoundTrip(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "pins.db"))
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	snap, err := s.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, rtdb.Snapshot{}, snap)

	require.NoError(t, s.SetLED(2, 1))
	require.NoError(t, s.SetButtons([rtdb.Pins]int{0, 1, 1, 0}))
	snap, err = s.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, [rtdb.Pins]int{0, 0, 1, 0}, snap.LEDs)
	assert.Equal(t, [rtdb.Pins]int{0, 1, 1, 0}, snap.Buttons)

	require.NoError(t, s.SetLEDs([rtdb.Pins]int{1, 1, 0, 1}))
	snap, err = s.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, [rtdb.Pins]int{1, 1, 0, 1}, snap.LEDs)

	assert.ErrorIs(t, s.SetLED(4, 1), rtdb.ErrPin)
	assert.ErrorIs(t, s.Corrupt(-1), rtdb.ErrPin)
}

func TestSQLiteStoreSanitize(t *testing.T) {
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	require.NoError(t, s.SetLEDs([rtdb.Pins]int{1, 1, 1, 1}))
	require.NoError(t, s.Corrupt(0))
	require.NoError(t, s.SetButtons([rtdb.Pins]int{7, 0, 0, 1}))

	n, err := s.Sanitize()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	snap, err := s.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, [rtdb.Pins]int{0, 1, 1, 1}, snap.LEDs)
	assert.Equal(t, [rtdb.Pins]int{0, 0, 0, 1}, snap.Buttons)

	n, err = s.Sanitize()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pins.db")
	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.SetLED(3, 1))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	snap, err := s.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, [rtdb.Pins]int{0, 0, 0, 1}, snap.LEDs)
}

func TestOpen(t *testing.T) {
	st, closeFn, err := Open(Config{})
	require.NoError(t, err)
	assert.IsType(t, &rtdb.MemoryStore{}, st)
	require.NoError(t, closeFn())

	st, closeFn, err = Open(Config{Backend: "sqlite", Path: filepath.Join(t.TempDir(), "x.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, st)
	require.NoError(t, closeFn())

	_, _, err = Open(Config{Backend: "redis"})
	assert.EqualError(t, err, `rtdb.backend: unsupported "redis"`)
}

func TestSQLiteStoreToggleLEDs(t *testing.T) {
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	require.NoError(t, s.SetLEDs([rtdb.Pins]int{1, 0, 0, 1}))
	require.NoError(t, s.Corrupt(2))
	require.NoError(t, s.ToggleLEDs([rtdb.Pins]bool{true, true, true, false}))
	snap, err := s.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, [rtdb.Pins]int{0, 1, 1, 1}, snap.LEDs)
	assert.Equal(t, [rtdb.Pins]int{}, snap.Buttons)
}
