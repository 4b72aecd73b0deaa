package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/pflag"

	"github.com/diva-fw/diva/config"
	"github.com/diva-fw/diva/pkg"
)

// hexUint32 is a uint32 flag accepting decimal, 0x hex, 0o octal or 0b
// binary and printing as hex.
type hexUint32 uint32

func (h *hexUint32) String() string { return fmt.Sprintf("0x%x", uint32(*h)) }

func (h *hexUint32) Set(s string) error {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return fmt.Errorf("%q: %w", s, pkg.ErrInvalidParameter)
	}
	*h = hexUint32(v)
	return nil
}

func (h *hexUint32) Type() string { return "uint32" }

var _ pflag.Value = (*hexUint32)(nil)

// profileOpts are the flags shared by commands that load a board profile.
type profileOpts struct {
	config   string
	serial   string
	holdMask hexUint32
	verbose  bool
	json     bool
}

func (o *profileOpts) register(fs *pflag.FlagSet) {
	fs.StringVarP(&o.config, "config", "c", "", "board profile (YAML)")
	fs.StringVar(&o.serial, "serial", "", "use the serial device at this address as the CDC port")
	fs.Var(&o.holdMask, "hold-mask", "button bits that must all be held to reboot")
	fs.BoolVarP(&o.verbose, "verbose", "v", false, "debug logging")
	fs.BoolVar(&o.json, "json", false, "JSON log output")
}

// load reads the profile, applies flags that were set on fs and configures
// logging.
func (o *profileOpts) load(fs *pflag.FlagSet) (config.Config, error) {
	cfg := config.Default()
	if o.config != "" {
		var err error
		if cfg, err = config.Load(o.config); err != nil {
			return config.Config{}, err
		}
	}

	if fs.Changed("serial") {
		cfg.USB.Backend = config.BackendSerial
		cfg.USB.Serial.Address = o.serial
	}
	if fs.Changed("hold-mask") {
		cfg.Board.Button.HoldMask = uint32(o.holdMask)
	}
	if o.verbose {
		cfg.Log.Level = "debug"
	}
	if o.json {
		cfg.Log.Format = "json"
	}

	config.Normalize(&cfg)
	if err := config.Validate(&cfg); err != nil {
		return config.Config{}, err
	}

	level, _ := pkg.ParseLogLevel(cfg.Log.Level)
	format, _ := pkg.ParseLogFormat(cfg.Log.Format)
	pkg.SetLogLevel(level)
	pkg.SetLogFormat(format)

	return cfg, nil
}
