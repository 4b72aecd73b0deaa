// Package cdc implements the firmware's USB serial transport task.
//
// The device-side USB stack is an external collaborator reached through
// two small interfaces: [Stack] for the stack's background task and
// interrupt entry, and [Port] for the CDC serial interface. The stack
// reports bus and line events through [Events]; those callbacks are
// delivered synchronously from [Stack.Task], so they run in loop context.
//
// # Echo
//
// [EchoTask] is polled once per loop iteration and never blocks:
//
//	echo := cdc.NewEchoTask(stack, port)
//	for {
//	    echo.Run()
//	}
//
// Each run reads at most [EchoBufferSize] bytes, writes exactly those
// bytes back and flushes. A run with nothing to read transmits nothing.
//
// # Implementations
//
//   - [github.com/diva-fw/diva/cdc/sim] simulates the stack and port with
//     host-side controls for mount, suspend, DTR and data
//   - [github.com/diva-fw/diva/cdc/serialport] stands a real serial device
//     in for the CDC interface
package cdc
