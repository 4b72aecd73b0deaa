package config

import (
	"fmt"

	"github.com/diva-fw/diva/hal"
	"github.com/diva-fw/diva/pkg"
)

// Validate checks a profile. Errors wrap [pkg.ErrInvalidParameter].
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil: %w", pkg.ErrInvalidParameter)
	}

	b := cfg.Board
	if b.TickPeriod <= 0 {
		return invalid("board.tick_period must be positive, got %v", b.TickPeriod)
	}
	if !hal.Line(b.IRQ.TimerLine).Valid() {
		return invalid("board.irq.timer_line %d out of range", b.IRQ.TimerLine)
	}
	if !hal.Line(b.IRQ.USBLine).Valid() {
		return invalid("board.irq.usb_line %d out of range", b.IRQ.USBLine)
	}
	if b.IRQ.TimerLine == b.IRQ.USBLine {
		return invalid("board.irq timer_line and usb_line share line %d", b.IRQ.TimerLine)
	}
	if b.Button.HoldMask == 0 {
		return invalid("board.button.hold_mask must be non-zero")
	}
	if b.Reset.Sentinel > 0xFF {
		return invalid("board.reset.sentinel 0x%x does not fit 8 bits", b.Reset.Sentinel)
	}

	switch cfg.USB.Backend {
	case BackendSim:
	case BackendSerial:
		if err := validateSerial(cfg.USB.Serial); err != nil {
			return err
		}
	default:
		return invalid("usb.backend %q unknown", cfg.USB.Backend)
	}

	if _, err := pkg.ParseLogLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("config: log.level: %w", err)
	}
	if _, err := pkg.ParseLogFormat(cfg.Log.Format); err != nil {
		return fmt.Errorf("config: log.format: %w", err)
	}
	return nil
}

func validateSerial(s SerialConfig) error {
	if s.Address == "" {
		return invalid("usb.serial.address required for serial backend")
	}
	lc := s.LineCoding
	if lc.Baud == 0 {
		return invalid("usb.serial.line_coding.baud must be non-zero")
	}
	switch lc.DataBits {
	case 5, 6, 7, 8:
	default:
		return invalid("usb.serial.line_coding.data_bits %d unsupported", lc.DataBits)
	}
	switch lc.StopBits {
	case 1, 2:
	default:
		return invalid("usb.serial.line_coding.stop_bits %d unsupported", lc.StopBits)
	}
	switch lc.Parity {
	case "none", "odd", "even", "mark", "space":
	default:
		return invalid("usb.serial.line_coding.parity %q unknown", lc.Parity)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("config: %s: %w", fmt.Sprintf(format, args...), pkg.ErrInvalidParameter)
}
