// Package clock implements the firmware's monotonic clock.
//
// The clock is a tick counter advanced by the timer interrupt and read by
// the cooperative loop to measure elapsed time. Two variants exist:
//
//   - [Counter] holds a 32-bit value with atomic access and needs no
//     critical section
//   - [Cell] and [Wide] hold values wider than an atomic access and mask
//     interrupts through [hal.InterruptMasker] around loop-context reads
//
// Elapsed time is always computed with [Since], whose unsigned subtraction
// is correct across wraparound:
//
//	if clock.Since(c.Now(), last) >= period {
//	    last += period
//	}
package clock
