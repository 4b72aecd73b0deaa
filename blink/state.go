package blink

import "github.com/diva-fw/diva/clock"

// State is the USB connection state that selects the blink pattern.
type State uint8

// Connection states.
const (
	StateNotMounted State = iota // Initial state; no host
	StateMounted                 // Enumerated by a host
	StateSuspended               // Bus suspended by the host
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateNotMounted:
		return "not-mounted"
	case StateMounted:
		return "mounted"
	case StateSuspended:
		return "suspended"
	default:
		return "unknown"
	}
}

// Event is a transport-layer callback that changes the connection state.
type Event uint8

// Transport events.
const (
	EventMount Event = iota
	EventUnmount
	EventSuspend
	EventResume
)

// String returns a human-readable event name.
func (e Event) String() string {
	switch e {
	case EventMount:
		return "mount"
	case EventUnmount:
		return "unmount"
	case EventSuspend:
		return "suspend"
	case EventResume:
		return "resume"
	default:
		return "unknown"
	}
}

// Blink periods in ticks.
const (
	PeriodNotMounted clock.Ticks = 250
	PeriodMounted    clock.Ticks = 1000
	PeriodSuspended  clock.Ticks = 2500
)

// Period returns the blink period for s. Unknown states blink as not
// mounted.
func Period(s State) clock.Ticks {
	switch s {
	case StateMounted:
		return PeriodMounted
	case StateSuspended:
		return PeriodSuspended
	default:
		return PeriodNotMounted
	}
}

// Transition returns the state that follows e and its blink period. Every
// event is accepted in every state; the result depends only on the event.
func Transition(s State, e Event) (State, clock.Ticks) {
	next := s
	switch e {
	case EventMount, EventResume:
		next = StateMounted
	case EventUnmount:
		next = StateNotMounted
	case EventSuspend:
		next = StateSuspended
	}
	return next, Period(next)
}
