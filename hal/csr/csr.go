package csr

import (
	"fmt"

	"github.com/diva-fw/diva/hal"
	"github.com/diva-fw/diva/pkg"
)

// Register is one 32-bit CSR.
type Register interface {
	Get() uint32
	Set(value uint32)
}

// CPU is the interrupt side of the core: the external interrupt pending and
// mask registers, the global enable and critical sections.
type CPU interface {
	hal.InterruptController
	hal.InterruptMasker
}

// Registers holds the peripheral CSRs the board drives.
type Registers struct {
	TimerEvPending Register // timer0_ev_pending
	Leds           Register // leds_out
	Button         Register // button_raw
	Reboot         Register // reboot_ctrl
}

func (r Registers) validate() error {
	if r.TimerEvPending == nil || r.Leds == nil || r.Button == nil || r.Reboot == nil {
		return fmt.Errorf("csr: missing board register: %w", pkg.ErrInvalidParameter)
	}
	return nil
}

// Board drives the DiVA peripherals through CSRs.
type Board struct {
	CPU
	regs Registers
}

// New creates a board on cpu and regs.
func New(cpu CPU, regs Registers) (*Board, error) {
	if cpu == nil {
		return nil, fmt.Errorf("csr: missing cpu: %w", pkg.ErrInvalidParameter)
	}
	if err := regs.validate(); err != nil {
		return nil, err
	}
	return &Board{CPU: cpu, regs: regs}, nil
}

// Acknowledge clears the timer event. Any write clears it.
func (b *Board) Acknowledge() {
	b.regs.TimerEvPending.Set(1)
}

// Set drives the status LED.
func (b *Board) Set(on bool) {
	if on {
		b.regs.Leds.Set(1)
	} else {
		b.regs.Leds.Set(0)
	}
}

// Raw returns the button register.
func (b *Board) Raw() uint32 {
	return b.regs.Button.Get()
}

// Reset writes the reboot controller. With the right sentinel the SoC
// restarts a few cycles later; the caller must not touch the board again.
func (b *Board) Reset(sentinel uint32) {
	pkg.LogInfo(pkg.ComponentHAL, "reboot",
		"sentinel", fmt.Sprintf("0x%02x", sentinel))
	b.regs.Reboot.Set(sentinel)
}

// TimerRegisters holds the CSRs of a LiteX timer.
type TimerRegisters struct {
	Load      Register // timer0_load
	Reload    Register // timer0_reload
	En        Register // timer0_en
	EvPending Register // timer0_ev_pending
	EvEnable  Register // timer0_ev_enable
}

// StartTimer runs t as a periodic timer firing every reload clock cycles
// with its interrupt event enabled.
func StartTimer(t TimerRegisters, reload uint32) error {
	if t.Load == nil || t.Reload == nil || t.En == nil || t.EvPending == nil || t.EvEnable == nil {
		return fmt.Errorf("csr: missing timer register: %w", pkg.ErrInvalidParameter)
	}
	if reload == 0 {
		return fmt.Errorf("csr: timer reload 0: %w", pkg.ErrInvalidParameter)
	}
	t.En.Set(0)
	t.Load.Set(0)
	t.Reload.Set(reload)
	t.En.Set(1)
	t.EvPending.Set(1)
	t.EvEnable.Set(1)
	return nil
}

// Compile-time interface checks
var (
	_ hal.InterruptController = (*Board)(nil)
	_ hal.InterruptMasker     = (*Board)(nil)
	_ hal.Timer               = (*Board)(nil)
	_ hal.Indicator           = (*Board)(nil)
	_ hal.Button              = (*Board)(nil)
	_ hal.ResetController     = (*Board)(nil)
)
