package sim

import (
	"sync"

	"github.com/diva-fw/diva/hal"
	"github.com/diva-fw/diva/pkg"
)

// MaxReentry bounds how many times [Board.Deliver] re-enters the dispatcher
// while lines stay pending. A line that is never acknowledged would otherwise
// spin forever, which is the refire storm real hardware produces.
const MaxReentry = 64

// Board is an in-memory board implementing every interface in package hal.
// Interrupt lines are level-pending: a raised line stays pending until its
// source acknowledges it.
//
// Board is safe for concurrent use. [Board.Deliver] and the critical
// sections entered through [Board.Disable] exclude each other, modelling a
// single core on which the interrupt handler cannot run inside a masked
// region. Critical sections themselves have a single owner: the goroutine
// playing the firmware loop.
type Board struct {
	mutex sync.Mutex

	// cpu is held while the dispatcher runs and while interrupts are masked.
	cpu   sync.Mutex
	depth int

	pending   uint32
	mask      uint32
	enabled   bool
	timerLine hal.Line

	timerAcks uint64
	storms    uint64

	level  bool
	writes int
	raw    uint32
	resets []uint32

	onIndicator func(on bool)
	onReset     func(sentinel uint32)
}

// New creates a board whose timer raises the given line.
func New(timerLine hal.Line) *Board {
	return &Board{timerLine: timerLine}
}

// Pending returns the bitmask of asserted lines.
func (b *Board) Pending() uint32 {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.pending
}

// Mask returns the bitmask of enabled lines.
func (b *Board) Mask() uint32 {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.mask
}

// SetMask replaces the bitmask of enabled lines.
func (b *Board) SetMask(mask uint32) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.mask = mask
}

// SetEnabled sets the global interrupt enable.
func (b *Board) SetEnabled(enabled bool) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.enabled = enabled
}

// Enabled reports the global interrupt enable.
func (b *Board) Enabled() bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.enabled
}

// Interrupt states returned by [Board.Disable]. A nested section only
// unwinds depth on Restore; an outermost one records the global enable it
// found.
const (
	stateNested hal.InterruptState = iota
	stateDisabled
	stateEnabled
)

// Disable enters a critical section: it masks interrupts and waits for an
// in-flight dispatch to finish. Critical sections belong to one goroutine,
// the one running the loop, as they belong to the one core on hardware.
// Nested calls on that goroutine only count depth and do not block.
func (b *Board) Disable() hal.InterruptState {
	b.mutex.Lock()
	if b.depth > 0 {
		b.depth++
		b.mutex.Unlock()
		return stateNested
	}
	b.mutex.Unlock()

	b.cpu.Lock()
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.depth = 1
	prev := b.enabled
	b.enabled = false
	if prev {
		return stateEnabled
	}
	return stateDisabled
}

// Restore leaves a critical section. The outermost Restore puts the global
// enable back as Disable found it and lets dispatch run again.
func (b *Board) Restore(state hal.InterruptState) {
	b.mutex.Lock()
	if b.depth == 0 {
		b.mutex.Unlock()
		return
	}
	b.depth--
	if state == stateNested || b.depth > 0 {
		b.mutex.Unlock()
		return
	}
	b.enabled = state == stateEnabled
	b.mutex.Unlock()
	b.cpu.Unlock()
}

// Raise asserts an interrupt line. Out-of-range lines are ignored.
func (b *Board) Raise(line hal.Line) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.pending |= line.Bit()
}

// Clear deasserts an interrupt line.
func (b *Board) Clear(line hal.Line) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.pending &^= line.Bit()
}

// FireTimer raises the timer line, as the hardware timer does at the end of
// each period.
func (b *Board) FireTimer() {
	b.Raise(b.timerLine)
}

// Acknowledge clears the pending timer event.
func (b *Board) Acknowledge() {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.pending &^= b.timerLine.Bit()
	b.timerAcks++
}

// TimerAcks returns how many times the timer was acknowledged.
func (b *Board) TimerAcks() uint64 {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.timerAcks
}

// Storms returns how many deliveries hit [MaxReentry].
func (b *Board) Storms() uint64 {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.storms
}

// Deliver runs dispatch for as long as interrupts are enabled and an enabled
// line is pending, re-entering the handler the way hardware re-asserts a
// level interrupt on return. It returns the number of dispatcher entries.
func (b *Board) Deliver(dispatch func()) int {
	n := 0
	for ; n < MaxReentry; n++ {
		b.cpu.Lock()
		b.mutex.Lock()
		active := b.enabled && b.pending&b.mask != 0
		b.mutex.Unlock()
		if !active {
			b.cpu.Unlock()
			return n
		}
		dispatch()
		b.cpu.Unlock()
	}

	b.mutex.Lock()
	b.storms++
	pending := b.pending & b.mask
	b.mutex.Unlock()
	pkg.LogWarn(pkg.ComponentSim, "interrupt storm",
		"pending", pending,
		"entries", n)
	return n
}

// Set drives the status indicator.
func (b *Board) Set(on bool) {
	b.mutex.Lock()
	b.level = on
	b.writes++
	cb := b.onIndicator
	b.mutex.Unlock()

	if cb != nil {
		cb(on)
	}
}

// Indicator returns the last level written to the indicator.
func (b *Board) Indicator() bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.level
}

// IndicatorWrites returns the number of indicator writes.
func (b *Board) IndicatorWrites() int {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.writes
}

// OnIndicator sets a callback invoked on every indicator write.
func (b *Board) OnIndicator(cb func(on bool)) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.onIndicator = cb
}

// Press sets the raw button register.
func (b *Board) Press(raw uint32) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.raw = raw
}

// Raw returns the raw button register.
func (b *Board) Raw() uint32 {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.raw
}

// Reset records a write to the reset control register.
func (b *Board) Reset(sentinel uint32) {
	b.mutex.Lock()
	b.resets = append(b.resets, sentinel)
	cb := b.onReset
	b.mutex.Unlock()

	pkg.LogDebug(pkg.ComponentSim, "reset register written",
		"sentinel", sentinel)

	if cb != nil {
		cb(sentinel)
	}
}

// Resets returns a copy of the values written to the reset register.
func (b *Board) Resets() []uint32 {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	out := make([]uint32, len(b.resets))
	copy(out, b.resets)
	return out
}

// OnReset sets a callback invoked on every reset register write.
func (b *Board) OnReset(cb func(sentinel uint32)) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.onReset = cb
}

// Compile-time interface checks
var (
	_ hal.InterruptController = (*Board)(nil)
	_ hal.InterruptMasker     = (*Board)(nil)
	_ hal.Timer               = (*Board)(nil)
	_ hal.Indicator           = (*Board)(nil)
	_ hal.Button              = (*Board)(nil)
	_ hal.ResetController     = (*Board)(nil)
)
