// Package sim simulates a device-side USB stack with one CDC serial
// interface.
//
// A [Device] is both the [cdc.Stack] polled by the firmware and the
// [cdc.Port] the echo and blink tasks write to. Test code plays the host:
//
//	dev := sim.New(blinkTask)
//	dev.Plug()
//	dev.SetLineState(true, false)
//	dev.Task() // delivers Mount and LineStateChanged
//	dev.Send([]byte("ping"))
//
// The transmit FIFO is bounded, so writes may be short, and flushed bytes
// become visible through [Device.Received].
package sim
