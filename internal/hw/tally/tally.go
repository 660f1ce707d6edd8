package tally

import (
	"fmt"
	"sync"

	"github.com/cjeanneret/camsession/internal/debug"
	"github.com/cjeanneret/camsession/internal/hw/gpio"
)

// Lamp is a recording tally light wired to a single GPIO output:
// HIGH while the camera is recording, LOW otherwise.
// A pin of 0 disables the lamp; every call becomes a no-op.
type Lamp struct {
	gpio gpio.Driver
	pin  int

	mu sync.Mutex
	on bool
}

// NewLamp configures pin as an output and switches the lamp off.
func NewLamp(g gpio.Driver, pin int) (*Lamp, error) {
	l := &Lamp{gpio: g, pin: pin}
	if pin <= 0 {
		return l, nil
	}
	if err := g.SetupPin(pin, gpio.Output); err != nil {
		return nil, fmt.Errorf("tally pin %d: setup: %w", pin, err)
	}
	if err := g.WritePin(pin, gpio.Low); err != nil {
		return nil, fmt.Errorf("tally pin %d: write: %w", pin, err)
	}
	return l, nil
}

// Set switches the lamp. Writes are skipped when the level would not change.
func (l *Lamp) Set(on bool) error {
	if l.pin <= 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.on == on {
		return nil
	}

	level := gpio.Low
	if on {
		level = gpio.High
	}
	debug.Verbose("Tally: pin %d -> %v", l.pin, level)
	if err := l.gpio.WritePin(l.pin, level); err != nil {
		return err
	}
	l.on = on
	return nil
}

// On reports whether the lamp is currently lit.
func (l *Lamp) On() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.on
}

// Off is a convenience for Set(false), used on shutdown.
func (l *Lamp) Off() error {
	return l.Set(false)
}
