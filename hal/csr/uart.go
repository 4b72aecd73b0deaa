package csr

import (
	"fmt"
	"sync/atomic"

	"github.com/diva-fw/diva/cdc"
	"github.com/diva-fw/diva/pkg"
)

// UART event bits in ev_pending and ev_enable.
const (
	UARTEventTX = 1 << 0
	UARTEventRX = 1 << 1
)

// UARTRxCapacity is the size of the software receive buffer.
const UARTRxCapacity = 256

// UARTRegisters holds the CSRs of a LiteX UART.
type UARTRegisters struct {
	RxTx      Register // uart_rxtx
	TxFull    Register // uart_txfull
	RxEmpty   Register // uart_rxempty
	EvPending Register // uart_ev_pending
	EvEnable  Register // uart_ev_enable
}

func (r UARTRegisters) validate() error {
	if r.RxTx == nil || r.TxFull == nil || r.RxEmpty == nil || r.EvPending == nil || r.EvEnable == nil {
		return fmt.Errorf("csr: missing uart register: %w", pkg.ErrInvalidParameter)
	}
	return nil
}

// UART is the serial interface of a LiteX UART whose PHY is a USB CDC-ACM
// function in the gateware. The host enumerates the function without the
// CPU, so the port mounts and connects on the first [UART.Task] and never
// suspends.
//
// The RX interrupt only masks the event; [UART.Task] drains the hardware
// FIFO into a software buffer from the loop and unmasks it again.
type UART struct {
	regs   UARTRegisters
	events cdc.Events

	started    bool
	rxReady    atomic.Bool
	interrupts atomic.Uint32

	rx    [UARTRxCapacity]byte
	rxLen int
}

// NewUART creates the port on regs with the RX event enabled.
func NewUART(regs UARTRegisters) (*UART, error) {
	if err := regs.validate(); err != nil {
		return nil, err
	}
	u := &UART{regs: regs, events: cdc.NopEvents{}}
	regs.EvPending.Set(UARTEventTX | UARTEventRX)
	regs.EvEnable.Set(UARTEventRX)
	return u, nil
}

// SetEvents selects the receiver of the port's callbacks.
func (u *UART) SetEvents(events cdc.Events) {
	if events == nil {
		events = cdc.NopEvents{}
	}
	u.events = events
}

// HandleInterrupt masks the RX event so the line drops until the loop has
// drained the FIFO.
func (u *UART) HandleInterrupt() {
	u.interrupts.Add(1)
	u.regs.EvEnable.Set(0)
	u.rxReady.Store(true)
}

// Interrupts returns how many times HandleInterrupt ran.
func (u *UART) Interrupts() uint32 {
	return u.interrupts.Load()
}

// Task reports the connection once, then moves received bytes from the
// hardware FIFO into the software buffer.
func (u *UART) Task() {
	if !u.started {
		u.started = true
		pkg.LogDebug(pkg.ComponentCDC, "uart port up")
		u.events.Mount()
		u.events.LineStateChanged(0, true, true)
	}

	n := u.drain()
	if u.rxReady.Swap(false) {
		u.regs.EvEnable.Set(UARTEventRX)
	}
	if n > 0 {
		u.events.DataReceived(0)
	}
}

// drain pops bytes from the hardware FIFO while there is room for them.
// Reading rxtx shows the head byte; acknowledging the RX event pops it.
func (u *UART) drain() int {
	n := 0
	for u.rxLen < len(u.rx) && u.regs.RxEmpty.Get() == 0 {
		u.rx[u.rxLen] = byte(u.regs.RxTx.Get())
		u.regs.EvPending.Set(UARTEventRX)
		u.rxLen++
		n++
	}
	return n
}

// Available returns the number of buffered received bytes.
func (u *UART) Available() int {
	return u.rxLen
}

// Read moves up to len(buf) bytes out of the receive buffer.
func (u *UART) Read(buf []byte) int {
	n := copy(buf, u.rx[:u.rxLen])
	copy(u.rx[:], u.rx[n:u.rxLen])
	u.rxLen -= n
	return n
}

// Write loads the transmit FIFO until it reports full and returns the
// number of bytes taken.
func (u *UART) Write(data []byte) int {
	for i, c := range data {
		if u.regs.TxFull.Get() != 0 {
			return i
		}
		u.regs.RxTx.Set(uint32(c))
	}
	return len(data)
}

// WriteString is Write for a string.
func (u *UART) WriteString(s string) int {
	for i := 0; i < len(s); i++ {
		if u.regs.TxFull.Get() != 0 {
			return i
		}
		u.regs.RxTx.Set(uint32(s[i]))
	}
	return len(s)
}

// Flush does nothing; the FIFO drains on its own.
func (u *UART) Flush() {}

// Connected reports whether the port has come up.
func (u *UART) Connected() bool {
	return u.started
}

// Compile-time interface checks
var (
	_ cdc.Stack = (*UART)(nil)
	_ cdc.Port  = (*UART)(nil)
)
