// Package irq implements the firmware's interrupt dispatcher.
//
// The dispatcher is invoked whenever any enabled interrupt line is
// asserted. It intersects the pending bitmask with the enabled mask and
// calls the handler registered for every resulting bit:
//
//	d := irq.New(board)
//	d.Register(timerLine, irq.NewTickSource(board, &counter))
//	d.Register(usbLine, irq.Forward(stack.HandleInterrupt))
//	d.Enable(timerLine)
//	d.Enable(usbLine)
//
// Tick accounting ([TickSource]) and USB forwarding ([Forward]) are
// separate handlers so each can be tested on its own. Unrecognized bits
// are ignored; they are not an error.
package irq
