package button

import (
	"fmt"

	"github.com/diva-fw/diva/hal"
	"github.com/diva-fw/diva/pkg"
)

// Default register values for the DiVA board.
const (
	DefaultHoldMask      uint32 = 1 << 0 // BUTTON_A_HOLD
	DefaultResetSentinel uint32 = 0xAC
)

// Watch issues a hardware reset when the hold gesture is seen.
type Watch struct {
	button   hal.Button
	reset    hal.ResetController
	hold     uint32
	sentinel uint32
}

// New creates a watch for the hold pattern. A zero pattern would match
// every sample and is rejected.
func New(button hal.Button, reset hal.ResetController, hold, sentinel uint32) (*Watch, error) {
	if button == nil || reset == nil {
		return nil, fmt.Errorf("button watch: %w", pkg.ErrInvalidParameter)
	}
	if hold == 0 {
		return nil, fmt.Errorf("button hold mask: %w", pkg.ErrInvalidParameter)
	}
	return &Watch{
		button:   button,
		reset:    reset,
		hold:     hold,
		sentinel: sentinel,
	}, nil
}

// Held reports whether raw contains every bit of the hold pattern.
func (w *Watch) Held(raw uint32) bool {
	return raw&w.hold == w.hold
}

// Run samples the button and resets the device on a hold. On hardware the
// reset write does not return; the result only matters to a simulated
// board, where it reports that a reset was issued.
func (w *Watch) Run() bool {
	if !w.Held(w.button.Raw()) {
		return false
	}
	pkg.LogInfo(pkg.ComponentButton, "hold detected, resetting",
		"sentinel", w.sentinel)
	w.reset.Reset(w.sentinel)
	return true
}
