package firmware

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/diva-fw/diva/blink"
	"github.com/diva-fw/diva/button"
	"github.com/diva-fw/diva/cdc"
	"github.com/diva-fw/diva/clock"
	"github.com/diva-fw/diva/hal"
	"github.com/diva-fw/diva/irq"
	"github.com/diva-fw/diva/pkg"
)

// Default interrupt lines of the DiVA SoC.
const (
	DefaultTimerLine hal.Line = 1
	DefaultUSBLine   hal.Line = 4
)

// Board is the hardware the firmware runs on.
type Board interface {
	hal.InterruptController
	hal.InterruptMasker
	hal.Timer
	hal.Indicator
	hal.Button
	hal.ResetController
}

// USB is the device-side USB stack together with its CDC interface.
type USB interface {
	cdc.Stack
	cdc.Port

	// SetEvents selects the receiver of the stack's callbacks.
	SetEvents(events cdc.Events)
}

// Config selects interrupt lines and button behavior.
type Config struct {
	TimerLine     hal.Line
	USBLine       hal.Line
	HoldMask      uint32
	ResetSentinel uint32

	// Events receives the stack's callbacks after the blink task.
	Events []cdc.Events

	// Idle, if set, runs at the end of each [Firmware.Run] iteration.
	Idle func()
}

// DefaultConfig returns the DiVA board configuration.
func DefaultConfig() Config {
	return Config{
		TimerLine:     DefaultTimerLine,
		USBLine:       DefaultUSBLine,
		HoldMask:      button.DefaultHoldMask,
		ResetSentinel: button.DefaultResetSentinel,
	}
}

// Firmware is the device's control core: an interrupt dispatcher that
// keeps the tick count and forwards USB interrupts, and a cooperative loop
// running the echo, blink and button tasks back to back.
type Firmware struct {
	board Board
	usb   USB
	cfg   Config

	dispatcher *irq.Dispatcher
	ticks      clock.Counter
	uptime     *clock.Wide

	echo   *cdc.EchoTask
	blink  *blink.Task
	button *button.Watch

	iterations  uint64
	initialized bool
	cause       pkg.ResetCause
	running     atomic.Bool
}

// New builds the firmware for board and usb. Call [Firmware.Init] before
// polling.
func New(board Board, usb USB, cfg Config) (*Firmware, error) {
	if board == nil || usb == nil {
		return nil, fmt.Errorf("firmware: %w", pkg.ErrInvalidParameter)
	}
	if !cfg.TimerLine.Valid() || !cfg.USBLine.Valid() || cfg.TimerLine == cfg.USBLine {
		return nil, fmt.Errorf("firmware: interrupt lines %d/%d: %w",
			cfg.TimerLine, cfg.USBLine, pkg.ErrInvalidParameter)
	}

	watch, err := button.New(board, board, cfg.HoldMask, cfg.ResetSentinel)
	if err != nil {
		return nil, fmt.Errorf("firmware: %w", err)
	}

	f := &Firmware{
		board:      board,
		usb:        usb,
		cfg:        cfg,
		dispatcher: irq.New(board),
		uptime:     clock.NewWide(board),
		echo:       cdc.NewEchoTask(usb, usb),
		blink:      blink.New(board, usb),
		button:     watch,
	}

	events := cdc.EventMux{f.blink}
	events = append(events, cfg.Events...)
	usb.SetEvents(events)

	return f, nil
}

// Init masks all lines, zeroes the clocks, installs the timer and USB
// handlers, unmasks their lines and enables interrupts.
func (f *Firmware) Init() error {
	if f.initialized {
		return fmt.Errorf("firmware init: %w", pkg.ErrInvalidState)
	}
	f.board.SetMask(0)
	f.ticks.Reset()
	f.uptime.Reset()

	tick := irq.NewTickSource(f.board, &f.ticks, f.uptime)
	if err := f.dispatcher.Register(f.cfg.TimerLine, tick); err != nil {
		return fmt.Errorf("timer init: %w", err)
	}
	if err := f.dispatcher.Register(f.cfg.USBLine, irq.Forward(f.usb.HandleInterrupt)); err != nil {
		return fmt.Errorf("usb init: %w", err)
	}
	if err := f.dispatcher.Enable(f.cfg.TimerLine); err != nil {
		return fmt.Errorf("timer init: %w", err)
	}
	if err := f.dispatcher.Enable(f.cfg.USBLine); err != nil {
		return fmt.Errorf("usb init: %w", err)
	}

	f.board.SetEnabled(true)
	f.initialized = true

	pkg.LogDebug(pkg.ComponentLoop, "interrupts enabled",
		"timerLine", f.cfg.TimerLine,
		"usbLine", f.cfg.USBLine)
	return nil
}

// ISR is the interrupt entry point.
func (f *Firmware) ISR() {
	f.dispatcher.Dispatch()
}

// Poll runs one loop iteration. It reports whether the button watch issued
// a reset.
func (f *Firmware) Poll() bool {
	f.iterations++
	f.echo.Run()
	f.blink.Run(f.ticks.Now())
	return f.button.Run()
}

// Run polls until ctx is done or the button watch resets the device, in
// which case it returns [pkg.ErrReset]. Each iteration checks ctx without
// blocking.
func (f *Firmware) Run(ctx context.Context) error {
	if !f.initialized {
		return fmt.Errorf("firmware run: %w", pkg.ErrNotConfigured)
	}
	if !f.running.CompareAndSwap(false, true) {
		return pkg.ErrAlreadyRunning
	}
	defer f.running.Store(false)

	f.cause = pkg.ResetCauseNone
	pkg.LogInfo(pkg.ComponentLoop, "loop started")
	for {
		select {
		case <-ctx.Done():
			f.cause = pkg.ResetCausePowerOff
			pkg.LogInfo(pkg.ComponentLoop, "loop stopped",
				"iterations", f.iterations)
			return f.cause.Err()
		default:
		}

		if f.Poll() {
			f.cause = pkg.ResetCauseButton
			return f.cause.Err()
		}
		if f.cfg.Idle != nil {
			f.cfg.Idle()
		}
	}
}

// Now returns the tick count.
func (f *Firmware) Now() clock.Ticks { return f.ticks.Now() }

// Uptime returns the ticks since Init, read in a critical section.
func (f *Firmware) Uptime() uint64 { return f.uptime.Uptime() }

// Iterations returns the number of loop iterations run.
func (f *Firmware) Iterations() uint64 { return f.iterations }

// Cause returns why the last [Firmware.Run] ended.
func (f *Firmware) Cause() pkg.ResetCause { return f.cause }

// Blink returns the blink task.
func (f *Firmware) Blink() *blink.Task { return f.blink }

// Echo returns the USB transport task.
func (f *Firmware) Echo() *cdc.EchoTask { return f.echo }
