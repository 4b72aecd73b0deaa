// Package hal defines the hardware boundary of the firmware core.
//
// The core touches hardware only through the small interfaces in this
// package: the interrupt pending/mask registers, a masker for critical
// sections, the timer acknowledge register, the status indicator, the
// button input register and the reset control register. Implementations
// live in sub-packages:
//
//   - [github.com/diva-fw/diva/hal/sim] simulates a board in memory for
//     tests and the host simulator
//   - [github.com/diva-fw/diva/hal/csr] drives LiteX CSRs on the real
//     board; cmd/diva-fw runs it under TinyGo
package hal
