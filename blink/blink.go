package blink

import (
	"strconv"

	"github.com/diva-fw/diva/cdc"
	"github.com/diva-fw/diva/clock"
	"github.com/diva-fw/diva/hal"
	"github.com/diva-fw/diva/pkg"
)

// greetingPrefix starts each line sent to a connected terminal.
const greetingPrefix = "Hello! "

// Task blinks the status indicator at a rate that shows the USB connection
// state and, while a terminal is connected, sends it a numbered greeting on
// every toggle.
//
// Task implements [cdc.Events]; the transport delivers mount, unmount,
// suspend and resume from within its own task, so every method runs in loop
// context and the task needs no locking.
type Task struct {
	cdc.NopEvents

	indicator hal.Indicator
	port      cdc.Port

	state  State
	period clock.Ticks

	// Blink phase
	last  clock.Ticks
	level bool

	greetings uint32
	buf       [32]byte
}

// New creates a blink task in the not-mounted state.
func New(indicator hal.Indicator, port cdc.Port) *Task {
	return &Task{
		indicator: indicator,
		port:      port,
		state:     StateNotMounted,
		period:    Period(StateNotMounted),
	}
}

// State returns the current connection state.
func (t *Task) State() State { return t.state }

// Period returns the current blink period.
func (t *Task) Period() clock.Ticks { return t.period }

// Level returns the level the next toggle will write.
func (t *Task) Level() bool { return t.level }

// Last returns the timestamp of the most recent toggle.
func (t *Task) Last() clock.Ticks { return t.last }

// Greetings returns the number of greetings sent.
func (t *Task) Greetings() uint32 { return t.greetings }

// Apply feeds e through [Transition].
func (t *Task) Apply(e Event) {
	prev := t.state
	t.state, t.period = Transition(t.state, e)
	if prev != t.state {
		pkg.LogDebug(pkg.ComponentBlink, "connection state changed",
			"event", e.String(),
			"from", prev.String(),
			"to", t.state.String(),
			"period", uint32(t.period))
	}
}

// Mount handles the stack's mount callback.
func (t *Task) Mount() { t.Apply(EventMount) }

// Unmount handles the stack's unmount callback.
func (t *Task) Unmount() { t.Apply(EventUnmount) }

// Suspend handles the stack's suspend callback. The remote wakeup
// permission is not used.
func (t *Task) Suspend(bool) { t.Apply(EventSuspend) }

// Resume handles the stack's resume callback.
func (t *Task) Resume() { t.Apply(EventResume) }

// Run toggles the indicator once the current period has elapsed since the
// last toggle. The phase advances by exactly one period, not to now, so a
// late iteration does not shift later toggles.
func (t *Task) Run(now clock.Ticks) {
	if clock.Since(now, t.last) < t.period {
		return
	}
	t.last += t.period

	t.indicator.Set(t.level)

	if t.state == StateMounted && t.port.Connected() {
		t.greet()
	}

	t.level = !t.level
}

// greet sends "Hello! <n>\r\n" and flushes it.
func (t *Task) greet() {
	b := append(t.buf[:0], greetingPrefix...)
	b = strconv.AppendUint(b, uint64(t.greetings), 10)
	b = append(b, '\r', '\n')
	t.greetings++

	t.port.Write(b)
	t.port.Flush()
}

// Compile-time interface check
var _ cdc.Events = (*Task)(nil)
