//go:build tinygo && riscv

// Command diva-fw is the DiVA control core for the LiteX VexRiscv SoC.
//
// The USB interrupt line carries the gateware's CDC-ACM UART. Holding
// button A reboots into the bootloader.
package main

import (
	"context"
	"runtime/interrupt"

	"github.com/diva-fw/diva/firmware"
	"github.com/diva-fw/diva/hal/csr"
)

// CSR addresses from the gateware's generated csr.h. Regenerate when the
// SoC changes.
const (
	addrButtonRaw  = 0xF000_1000
	addrLedsOut    = 0xF000_2800
	addrRebootCtrl = 0xF000_3000

	addrTimer0Load      = 0xF000_4800
	addrTimer0Reload    = 0xF000_4804
	addrTimer0En        = 0xF000_4808
	addrTimer0EvPending = 0xF000_4818
	addrTimer0EvEnable  = 0xF000_481C

	addrUARTRxTx      = 0xF000_5000
	addrUARTTxFull    = 0xF000_5004
	addrUARTRxEmpty   = 0xF000_5008
	addrUARTEvPending = 0xF000_5010
	addrUARTEvEnable  = 0xF000_5014
)

// System clock and tick rate.
const (
	sysClockHz = 48_000_000
	tickHz     = 1000
)

var fw *firmware.Firmware

func main() {
	board, err := csr.New(csr.VexRiscv{}, csr.Registers{
		TimerEvPending: csr.Reg(addrTimer0EvPending),
		Leds:           csr.Reg(addrLedsOut),
		Button:         csr.Reg(addrButtonRaw),
		Reboot:         csr.Reg(addrRebootCtrl),
	})
	if err != nil {
		halt()
	}

	uart, err := csr.NewUART(csr.UARTRegisters{
		RxTx:      csr.Reg(addrUARTRxTx),
		TxFull:    csr.Reg(addrUARTTxFull),
		RxEmpty:   csr.Reg(addrUARTRxEmpty),
		EvPending: csr.Reg(addrUARTEvPending),
		EvEnable:  csr.Reg(addrUARTEvEnable),
	})
	if err != nil {
		halt()
	}

	fw, err = firmware.New(board, uart, firmware.DefaultConfig())
	if err != nil {
		halt()
	}

	err = csr.StartTimer(csr.TimerRegisters{
		Load:      csr.Reg(addrTimer0Load),
		Reload:    csr.Reg(addrTimer0Reload),
		En:        csr.Reg(addrTimer0En),
		EvPending: csr.Reg(addrTimer0EvPending),
		EvEnable:  csr.Reg(addrTimer0EvEnable),
	}, sysClockHz/tickHz)
	if err != nil {
		halt()
	}

	interrupt.New(csr.MachineExternalIRQ, isr).Enable()
	if err := fw.Init(); err != nil {
		halt()
	}

	// Returns only after the reboot register has been written.
	fw.Run(context.Background())
	halt()
}

func isr(interrupt.Interrupt) {
	fw.ISR()
}

// halt parks the core. After a reboot request the SoC resets out from
// under it.
func halt() {
	for {
	}
}
