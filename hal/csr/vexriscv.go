//go:build tinygo && riscv

package csr

import (
	"runtime/interrupt"
	"runtime/volatile"
	"unsafe"

	"device/riscv"

	"github.com/diva-fw/diva/hal"
)

// MachineExternalIRQ is the RISC-V cause number of the machine external
// interrupt, which VexRiscv raises for any pending unmasked line.
const MachineExternalIRQ = 11

const (
	mstatusMIE = 1 << 3
	mieMEIE    = 1 << MachineExternalIRQ
)

// VexRiscv is the interrupt side of a LiteX VexRiscv core. Its external
// interrupt lines sit behind the core's custom pending (0xFC0) and mask
// (0xBC0) CSRs.
type VexRiscv struct{}

// Pending returns the pending interrupt lines.
func (VexRiscv) Pending() uint32 {
	return uint32(riscv.AsmFull("csrr {}, 0xFC0", nil))
}

// Mask returns the enabled interrupt lines.
func (VexRiscv) Mask() uint32 {
	return uint32(riscv.AsmFull("csrr {}, 0xBC0", nil))
}

// SetMask writes the interrupt mask.
func (VexRiscv) SetMask(mask uint32) {
	riscv.AsmFull("csrw 0xBC0, {mask}", map[string]interface{}{
		"mask": mask,
	})
}

// SetEnabled sets mstatus.MIE together with mie.MEIE.
func (VexRiscv) SetEnabled(enabled bool) {
	if enabled {
		riscv.MIE.SetBits(mieMEIE)
		riscv.MSTATUS.SetBits(mstatusMIE)
	} else {
		riscv.MSTATUS.ClearBits(mstatusMIE)
	}
}

// Disable masks interrupts for a critical section.
func (VexRiscv) Disable() hal.InterruptState {
	return hal.InterruptState(interrupt.Disable())
}

// Restore ends a critical section.
func (VexRiscv) Restore(state hal.InterruptState) {
	interrupt.Restore(interrupt.State(state))
}

// Reg maps the CSR at addr.
func Reg(addr uintptr) Register {
	return (*volatile.Register32)(unsafe.Pointer(addr))
}

var _ CPU = VexRiscv{}
