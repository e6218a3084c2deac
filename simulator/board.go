// Package simulator provides an in-memory IO board whose buttons are pressed
// at random or by script, for running the controller without hardware.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/kilianp07/stbs/core/clock"
	"github.com/kilianp07/stbs/core/logger"
	"github.com/kilianp07/stbs/core/rtdb"
)

// Config controls the simulated operator.
type Config struct {
	// PressProbability is the chance per step that a released button gets
	// pressed. A pressed button is released on the next step.
	PressProbability float64 `json:"press_probability" koanf:"press_probability"`
	Seed             uint64  `json:"seed" koanf:"seed"`
	StepMS           int     `json:"step_ms" koanf:"step_ms"`
}

// SetDefaults applies a 200 ms step and a 5% press chance.
func (c *Config) SetDefaults() {
	if c.StepMS <= 0 {
		c.StepMS = 200
	}
	if c.PressProbability == 0 {
		c.PressProbability = 0.05
	}
}

// Validate checks the probability range.
func (c Config) Validate() error {
	if c.PressProbability < 0 || c.PressProbability > 1 {
		return fmt.Errorf("simulator.press_probability: %v not in [0,1]", c.PressProbability)
	}
	if c.StepMS <= 0 {
		return errors.New("simulator.step_ms must be > 0")
	}
	return nil
}

// Board is a simulated four LED, four button board. It is safe for
// concurrent use.
type Board struct {
	cfg Config
	log logger.Logger

	mu       sync.Mutex
	rng      *rand.Rand
	leds     [rtdb.Pins]bool
	buttons  [rtdb.Pins]bool
	script   [][rtdb.Pins]bool
	steps    int
	ledFlips int
}

// NewBoard returns a board seeded from cfg.Seed.
func NewBoard(cfg Config, log logger.Logger) *Board {
	cfg.SetDefaults()
	return &Board{
		cfg: cfg,
		log: logger.OrNop(log),
		rng: rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
	}
}

// SetLED implements device.Board.
func (b *Board) SetLED(i int, on bool) error {
	if err := rtdb.CheckPin(i); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.leds[i] != on {
		b.ledFlips++
		b.log.Debugf("led %d -> %t", i+1, on)
	}
	b.leds[i] = on
	return nil
}

// Button implements device.Board.
func (b *Board) Button(i int) (bool, error) {
	if err := rtdb.CheckPin(i); err != nil {
		return false, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buttons[i], nil
}

// Press holds button i down until the next step or Release.
func (b *Board) Press(i int) error { return b.setButton(i, true) }

// Release lets go of button i.
func (b *Board) Release(i int) error { return b.setButton(i, false) }

func (b *Board) setButton(i int, down bool) error {
	if err := rtdb.CheckPin(i); err != nil {
		return err
	}
	b.mu.Lock()
	b.buttons[i] = down
	b.mu.Unlock()
	return nil
}

// Script queues button states applied by the next steps, one per step,
// before random presses resume.
func (b *Board) Script(states ...[rtdb.Pins]bool) {
	b.mu.Lock()
	b.script = append(b.script, states...)
	b.mu.Unlock()
}

// Step advances the simulated operator by one step.
func (b *Board) Step() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.steps++
	if len(b.script) > 0 {
		b.buttons = b.script[0]
		b.script = b.script[1:]
		return
	}
	for i := range b.buttons {
		if b.buttons[i] {
			b.buttons[i] = false
			continue
		}
		b.buttons[i] = b.rng.Float64() < b.cfg.PressProbability
	}
}

// Run steps the board every StepMS until ctx is canceled.
func (b *Board) Run(ctx context.Context, clk clock.Clock) error {
	if clk == nil {
		clk = clock.System{}
	}
	step := time.Duration(b.cfg.StepMS) * time.Millisecond
	next := clk.Now().Add(step)
	for {
		if err := clk.SleepUntil(ctx, next); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
		b.Step()
		next = next.Add(step)
	}
}

// LEDs returns the current LED outputs.
func (b *Board) LEDs() [rtdb.Pins]bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.leds
}

// Steps returns how many steps ran and how many LED changes were observed.
func (b *Board) Steps() (steps, ledFlips int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.steps, b.ledFlips
}
