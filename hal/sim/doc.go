// Package sim implements an in-memory board for the firmware core.
//
// This board is primarily intended for testing and simulation. It models
// the interrupt pending and mask registers with level-pending semantics, a
// timer that must be acknowledged, a status indicator, a button register
// and the reset control register.
//
// # Interrupt Delivery
//
// Hardware re-enters the interrupt handler for as long as an enabled line
// stays pending. [Board.Deliver] reproduces this by calling the dispatcher
// in a loop, bounded by [MaxReentry] so that a handler that never
// acknowledges its source shows up as a counted storm instead of a hang:
//
//	board := sim.New(timerLine)
//	board.FireTimer()
//	board.Deliver(dispatcher.Dispatch)
//
// Critical sections entered with [Board.Disable] exclude delivery, so a
// loop-context read of a multi-word counter cannot observe a half-written
// value even when Deliver runs on another goroutine.
package sim
