package clock

import (
	"golang.org/x/exp/constraints"

	"github.com/diva-fw/diva/hal"
)

// Cell is a single-writer value shared with interrupt context on targets
// where the value is wider than an atomic access. The interrupt handler
// writes it directly; loop-context reads and writes run with interrupts
// masked so they never observe a torn value.
type Cell[T constraints.Unsigned] struct {
	masker hal.InterruptMasker
	value  T
}

// NewCell creates a cell guarded by m.
func NewCell[T constraints.Unsigned](m hal.InterruptMasker) *Cell[T] {
	return &Cell[T]{masker: m}
}

// Add adds delta from interrupt context, where the loop cannot run.
func (c *Cell[T]) Add(delta T) {
	c.value += delta
}

// Load reads the value from loop context with interrupts masked.
func (c *Cell[T]) Load() T {
	state := c.masker.Disable()
	v := c.value
	c.masker.Restore(state)
	return v
}

// Store writes the value from loop context with interrupts masked.
func (c *Cell[T]) Store(v T) {
	state := c.masker.Disable()
	c.value = v
	c.masker.Restore(state)
}

// Wide is a 64-bit uptime counter in tick units. It never wraps in
// practice, at the cost of a masked read.
type Wide struct {
	cell *Cell[uint64]
}

// NewWide creates an uptime counter guarded by m.
func NewWide(m hal.InterruptMasker) *Wide {
	return &Wide{cell: NewCell[uint64](m)}
}

// Tick advances the counter by one. Call it only from the timer handler.
func (w *Wide) Tick() {
	w.cell.Add(1)
}

// Uptime returns the ticks since power-on.
func (w *Wide) Uptime() uint64 {
	return w.cell.Load()
}

// Now returns the low word of the uptime as a wrapping tick reading.
func (w *Wide) Now() Ticks {
	return Ticks(w.cell.Load())
}

// Reset sets the counter back to zero, as on power-on.
func (w *Wide) Reset() {
	w.cell.Store(0)
}

// Compile-time interface checks
var (
	_ Source   = (*Wide)(nil)
	_ Tickable = (*Wide)(nil)
)
