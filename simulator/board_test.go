package simulator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/stbs/core/device"
	"github.com/kilianp07/stbs/core/rtdb"
)

var _ device.Board = (*Board)(nil)

func buttons(b *Board) [rtdb.Pins]bool {
	var out [rtdb.Pins]bool
	for i := range out {
		out[i], _ = b.Button(i)
	}
	return out
}

func TestBoardSeededDeterminism(t *testing.T) {
	a := NewBoard(Config{Seed: 7, PressProbability: 0.3}, nil)
	b := NewBoard(Config{Seed: 7, PressProbability: 0.3}, nil)
	pressed := 0
	for i := 0; i < 50; i++ {
		a.Step()
		b.Step()
		require.Equal(t, buttons(a), buttons(b), "step %d", i)
		for _, on := range buttons(a) {
			if on {
				pressed++
			}
		}
	}
	assert.Positive(t, pressed)
}

func TestBoardPressIsReleasedNextStep(t *testing.T) {
	b := NewBoard(Config{PressProbability: 1}, nil)
	b.Step()
	assert.Equal(t, [rtdb.Pins]bool{true, true, true, true}, buttons(b))
	b.Step()
	assert.Equal(t, [rtdb.Pins]bool{}, buttons(b))
	b.Step()
	assert.Equal(t, [rtdb.Pins]bool{true, true, true, true}, buttons(b))
}

func TestBoardScriptTakesPrecedence(t *testing.T) {
	b := NewBoard(Config{PressProbability: 1}, nil)
	b.Script([rtdb.Pins]bool{false, true, false, false}, [rtdb.Pins]bool{})
	b.Step()
	assert.Equal(t, [rtdb.Pins]bool{false, true, false, false}, buttons(b))
	b.Step()
	assert.Equal(t, [rtdb.Pins]bool{}, buttons(b))
	b.Step()
	assert.Equal(t, [rtdb.Pins]bool{true, true, true, true}, buttons(b))
	steps, _ := b.Steps()
	assert.Equal(t, 3, steps)
}

func TestBoardLEDsAndPins(t *testing.T) {
	b := NewBoard(Config{}, nil)
	require.NoError(t, b.SetLED(0, true))
	require.NoError(t, b.SetLED(0, true))
	require.NoError(t, b.SetLED(3, true))
	assert.Equal(t, [rtdb.Pins]bool{true, false, false, true}, b.LEDs())
	_, flips := b.Steps()
	assert.Equal(t, 2, flips)

	require.NoError(t, b.Press(2))
	on, err := b.Button(2)
	require.NoError(t, err)
	assert.True(t, on)
	require.NoError(t, b.Release(2))
	on, _ = b.Button(2)
	assert.False(t, on)

	assert.ErrorIs(t, b.SetLED(4, true), rtdb.ErrPin)
	_, err = b.Button(-1)
	assert.ErrorIs(t, err, rtdb.ErrPin)
	assert.ErrorIs(t, b.Press(9), rtdb.ErrPin)
}

func TestConfigValidate(t *testing.T) {
	c := Config{}
	c.SetDefaults()
	require.NoError(t, c.Validate())
	assert.Equal(t, 200, c.StepMS)
	assert.InDelta(t, 0.05, c.PressProbability, 1e-12)

	c.PressProbability = 1.5
	assert.ErrorContains(t, c.Validate(), "press_probability")
}

// stepClock cancels the run after a fixed number of sleeps.
type stepClock struct {
	now    time.Time
	left   int
	cancel context.CancelFunc
}

func (c *stepClock) Now() time.Time { return c.now }

func (c *stepClock) SleepUntil(ctx context.Context, deadline time.Time) error {
	if c.left == 0 {
		c.cancel()
		return ctx.Err()
	}
	c.left--
	c.now = deadline
	return nil
}

func TestBoardRunSteps(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	clk := &stepClock{now: time.Unix(0, 0), left: 3, cancel: cancel}
	b := NewBoard(Config{StepMS: 100}, nil)

	require.NoError(t, b.Run(ctx, clk))
	steps, _ := b.Steps()
	assert.Equal(t, 3, steps)
	assert.Equal(t, time.Unix(0, 0).Add(300*time.Millisecond), clk.now)
}
