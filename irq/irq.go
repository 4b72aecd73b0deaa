package irq

import (
	"fmt"
	"math/bits"

	"github.com/diva-fw/diva/clock"
	"github.com/diva-fw/diva/hal"
	"github.com/diva-fw/diva/pkg"
)

// Handler services one interrupt source. Service runs in interrupt
// context: it must not block, allocate or log, and must return quickly.
type Handler interface {
	Service()
}

// HandlerFunc adapts a plain function to [Handler].
type HandlerFunc func()

// Service calls f.
func (f HandlerFunc) Service() { f() }

// Forward returns a handler that passes control straight to an external
// interrupt entry point, such as a USB stack's low-level handler. The
// dispatcher does not interpret what the entry point does.
func Forward(entry func()) Handler {
	return HandlerFunc(entry)
}

// Dispatcher is the single entry point for external interrupts. Each call
// to [Dispatcher.Dispatch] services every line that is both pending and
// enabled; bits without a registered handler are ignored.
//
// Handlers are registered during setup, before interrupts are enabled. The
// handler table is fixed-size so dispatch never allocates.
type Dispatcher struct {
	ctrl     hal.InterruptController
	handlers [hal.MaxLines]Handler
}

// New creates a dispatcher reading pending and mask bits from ctrl.
func New(ctrl hal.InterruptController) *Dispatcher {
	return &Dispatcher{ctrl: ctrl}
}

// Register installs h for line.
func (d *Dispatcher) Register(line hal.Line, h Handler) error {
	if !line.Valid() || h == nil {
		return fmt.Errorf("register line %d: %w", line, pkg.ErrInvalidParameter)
	}
	if d.handlers[line] != nil {
		return fmt.Errorf("register line %d: %w", line, pkg.ErrLineInUse)
	}
	d.handlers[line] = h
	pkg.LogDebug(pkg.ComponentIRQ, "handler registered", "line", line)
	return nil
}

// Enable unmasks line.
func (d *Dispatcher) Enable(line hal.Line) error {
	if !line.Valid() {
		return fmt.Errorf("enable line %d: %w", line, pkg.ErrInvalidParameter)
	}
	d.ctrl.SetMask(d.ctrl.Mask() | line.Bit())
	return nil
}

// Disable masks line.
func (d *Dispatcher) Disable(line hal.Line) error {
	if !line.Valid() {
		return fmt.Errorf("disable line %d: %w", line, pkg.ErrInvalidParameter)
	}
	d.ctrl.SetMask(d.ctrl.Mask() &^ line.Bit())
	return nil
}

// Dispatch services all asserted and enabled lines, lowest line first.
// The pending set is sampled once; a source that refires while its
// handler runs stays pending and is serviced on the next entry.
func (d *Dispatcher) Dispatch() {
	irqs := d.ctrl.Pending() & d.ctrl.Mask()
	for irqs != 0 {
		line := bits.TrailingZeros32(irqs)
		irqs &^= 1 << line
		if h := d.handlers[line]; h != nil {
			h.Service()
		}
	}
}

// TickSource is the timer interrupt handler. It acknowledges the timer and
// then advances each clock by exactly one tick.
//
// A refire that lands while the handler runs re-asserts the line after the
// acknowledge and is counted on the next dispatcher entry.
type TickSource struct {
	timer  hal.Timer
	clocks []clock.Tickable
}

// NewTickSource creates the timer handler for timer, advancing clocks.
func NewTickSource(timer hal.Timer, clocks ...clock.Tickable) *TickSource {
	return &TickSource{timer: timer, clocks: clocks}
}

// Service acknowledges the timer and advances the clocks.
func (t *TickSource) Service() {
	t.timer.Acknowledge()
	for _, c := range t.clocks {
		c.Tick()
	}
}

// Compile-time interface checks
var (
	_ Handler = HandlerFunc(nil)
	_ Handler = (*TickSource)(nil)
)
