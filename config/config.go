package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/diva-fw/diva/button"
	"github.com/diva-fw/diva/cdc"
	"github.com/diva-fw/diva/firmware"
	"github.com/diva-fw/diva/hal"
	"github.com/diva-fw/diva/pkg"
)

// USB backends.
const (
	BackendSim    = "sim"
	BackendSerial = "serial"
)

// Config is a simulator board profile.
type Config struct {
	Board BoardConfig `yaml:"board"`
	USB   USBConfig   `yaml:"usb"`
	Log   LogConfig   `yaml:"log"`
}

// ---- BOARD ----

type BoardConfig struct {
	TickPeriod time.Duration `yaml:"tick_period"`
	IRQ        IRQConfig     `yaml:"irq"`
	Button     ButtonConfig  `yaml:"button"`
	Reset      ResetConfig   `yaml:"reset"`
}

type IRQConfig struct {
	TimerLine uint8 `yaml:"timer_line"`
	USBLine   uint8 `yaml:"usb_line"`
}

type ButtonConfig struct {
	HoldMask uint32 `yaml:"hold_mask"`
}

type ResetConfig struct {
	Sentinel uint32 `yaml:"sentinel"`
}

// ---- USB ----

type USBConfig struct {
	Backend string       `yaml:"backend"`
	Serial  SerialConfig `yaml:"serial"`
}

type SerialConfig struct {
	Address     string           `yaml:"address"`
	LineCoding  LineCodingConfig `yaml:"line_coding"`
	ReadTimeout time.Duration    `yaml:"read_timeout"`
}

type LineCodingConfig struct {
	Baud     uint32 `yaml:"baud"`
	DataBits uint8  `yaml:"data_bits"`
	StopBits uint8  `yaml:"stop_bits"`
	Parity   string `yaml:"parity"`
}

// ---- LOG ----

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the DiVA board profile with the simulated USB stack.
func Default() Config {
	return Config{
		Board: BoardConfig{
			TickPeriod: time.Millisecond,
			IRQ: IRQConfig{
				TimerLine: uint8(firmware.DefaultTimerLine),
				USBLine:   uint8(firmware.DefaultUSBLine),
			},
			Button: ButtonConfig{HoldMask: button.DefaultHoldMask},
			Reset:  ResetConfig{Sentinel: button.DefaultResetSentinel},
		},
		USB: USBConfig{
			Backend: BackendSim,
			Serial: SerialConfig{
				LineCoding: LineCodingConfig{
					Baud:     cdc.DefaultLineCoding.DTERate,
					DataBits: cdc.DefaultLineCoding.DataBits,
					StopBits: 1,
					Parity:   "none",
				},
			},
		},
		Log: LogConfig{Level: "warn", Format: "text"},
	}
}

// Load reads a YAML profile from path over the defaults and validates it.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config load: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML profile over the defaults and validates it.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config parse: %w", err)
	}
	Normalize(&cfg)
	if err := Validate(&cfg); err != nil {
		return Config{}, err
	}
	pkg.LogDebug(pkg.ComponentConfig, "profile loaded",
		"tickPeriod", cfg.Board.TickPeriod,
		"backend", cfg.USB.Backend)
	return cfg, nil
}

// Normalize lowercases enumerated string fields.
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}
	cfg.USB.Backend = strings.ToLower(strings.TrimSpace(cfg.USB.Backend))
	cfg.USB.Serial.LineCoding.Parity = strings.ToLower(strings.TrimSpace(cfg.USB.Serial.LineCoding.Parity))
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	cfg.Log.Format = strings.ToLower(strings.TrimSpace(cfg.Log.Format))
}

// Firmware returns the firmware configuration the profile describes.
func (c *Config) Firmware() firmware.Config {
	return firmware.Config{
		TimerLine:     hal.Line(c.Board.IRQ.TimerLine),
		USBLine:       hal.Line(c.Board.IRQ.USBLine),
		HoldMask:      c.Board.Button.HoldMask,
		ResetSentinel: c.Board.Reset.Sentinel,
	}
}

// LineCoding converts the serial line settings to a CDC line coding.
func (l LineCodingConfig) LineCoding() cdc.LineCoding {
	lc := cdc.LineCoding{
		DTERate:    l.Baud,
		DataBits:   l.DataBits,
		CharFormat: cdc.StopBits1,
		ParityType: cdc.ParityNone,
	}
	if l.StopBits == 2 {
		lc.CharFormat = cdc.StopBits2
	}
	switch l.Parity {
	case "odd":
		lc.ParityType = cdc.ParityOdd
	case "even":
		lc.ParityType = cdc.ParityEven
	case "mark":
		lc.ParityType = cdc.ParityMark
	case "space":
		lc.ParityType = cdc.ParitySpace
	}
	return lc
}
