package clock

import (
	"sync/atomic"
	"time"

	"golang.org/x/exp/constraints"
)

// Ticks is a reading of the monotonic clock in tick units. It wraps on
// overflow; use [Since] for elapsed time.
type Ticks uint32

// Since returns the ticks elapsed from then to now. The unsigned
// subtraction stays correct across one wraparound of the counter.
func Since(now, then Ticks) Ticks {
	return now - then
}

// Duration converts a tick count, wrapping or wide, to wall time given the
// tick period.
func Duration[T constraints.Unsigned](t T, period time.Duration) time.Duration {
	return time.Duration(t) * period
}

// Source is a readable monotonic clock.
type Source interface {
	Now() Ticks
}

// Tickable is advanced once per timer interrupt.
type Tickable interface {
	Tick()
}

// Counter is the monotonic tick counter shared between the interrupt
// dispatcher and the cooperative loop. The dispatcher is the only writer;
// any number of loop tasks may read it.
//
// The value is a single machine word updated atomically, so reads need no
// critical section. Use [Cell] on targets without atomic word access.
type Counter struct {
	value atomic.Uint32
}

// Tick advances the counter by one. Call it only from the timer handler.
func (c *Counter) Tick() {
	c.value.Add(1)
}

// Now returns the current tick count.
func (c *Counter) Now() Ticks {
	return Ticks(c.value.Load())
}

// Reset sets the counter back to zero, as on power-on.
func (c *Counter) Reset() {
	c.value.Store(0)
}

// Compile-time interface checks
var (
	_ Source   = (*Counter)(nil)
	_ Tickable = (*Counter)(nil)
)
