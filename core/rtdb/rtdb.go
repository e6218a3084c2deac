// Package rtdb holds the process image shared by the device tasks and the
// frame protocol: the commanded LED states and the sampled button states.
package rtdb

import (
	"errors"
	"fmt"
	"sync"
)

// Pins is the number of LEDs and of buttons on the board.
const Pins = 4

// ErrPin is returned for a pin index outside [0, Pins).
var ErrPin = errors.New("rtdb: pin index out of range")

// Snapshot is a consistent copy of the process image. Valid values are 0
// and 1; anything else is corruption that Sanitize repairs.
type Snapshot struct {
	LEDs    [Pins]int `json:"leds"`
	Buttons [Pins]int `json:"buttons"`
}

// Store is the process image.
type Store interface {
	Snapshot() (Snapshot, error)
	SetLED(i, v int) error
	SetLEDs(v [Pins]int) error
	SetButtons(v [Pins]int) error
	// ToggleLEDs flips every LED selected by mask in one atomic step.
	// A selected LED holding an invalid value is switched on.
	ToggleLEDs(mask [Pins]bool) error
	// Sanitize resets every value outside {0,1} to 0 and returns how many
	// values were repaired.
	Sanitize() (int, error)
	// Corrupt writes an invalid value to LED i. It exists for fault
	// injection.
	Corrupt(i int) error
}

// CheckPin validates a pin index.
func CheckPin(i int) error {
	if i < 0 || i >= Pins {
		return fmt.Errorf("%w: %d", ErrPin, i)
	}
	return nil
}

// Valid reports whether v is a legal pin value.
func Valid(v int) bool { return v == 0 || v == 1 }

// Toggled returns the value an LED takes when toggled.
func Toggled(v int) int {
	if v == 1 {
		return 0
	}
	return 1
}

// SanitizeSnapshot repairs s in place and returns the number of repaired values.
func SanitizeSnapshot(s *Snapshot) int {
	n := 0
	for i := range s.LEDs {
		if !Valid(s.LEDs[i]) {
			s.LEDs[i] = 0
			n++
		}
		if !Valid(s.Buttons[i]) {
			s.Buttons[i] = 0
			n++
		}
	}
	return n
}

// MemoryStore is a mutex-protected in-memory Store.
type MemoryStore struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewMemoryStore returns a store with every value at 0.
func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) Snapshot() (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap, nil
}

func (m *MemoryStore) SetLED(i, v int) error {
	if err := CheckPin(i); err != nil {
		return err
	}
	m.mu.Lock()
	m.snap.LEDs[i] = v
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) SetLEDs(v [Pins]int) error {
	m.mu.Lock()
	m.snap.LEDs = v
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) SetButtons(v [Pins]int) error {
	m.mu.Lock()
	m.snap.Buttons = v
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) ToggleLEDs(mask [Pins]bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, on := range mask {
		if on {
			m.snap.LEDs[i] = Toggled(m.snap.LEDs[i])
		}
	}
	return nil
}

func (m *MemoryStore) Sanitize() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return SanitizeSnapshot(&m.snap), nil
}

func (m *MemoryStore) Corrupt(i int) error { return m.SetLED(i, -1) }
