package firmware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/diva-fw/diva/blink"
	"github.com/diva-fw/diva/cdc"
	cdcsim "github.com/diva-fw/diva/cdc/sim"
	"github.com/diva-fw/diva/hal/sim"
	"github.com/diva-fw/diva/pkg"
)

type harness struct {
	board *sim.Board
	usb   *cdcsim.Device
	fw    *Firmware
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	h := &harness{
		board: sim.New(cfg.TimerLine),
		usb:   cdcsim.New(nil),
	}
	h.usb.AttachInterrupt(
		func() { h.board.Raise(cfg.USBLine) },
		func() { h.board.Clear(cfg.USBLine) },
	)

	fw, err := New(h.board, h.usb, cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := fw.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	h.fw = fw
	return h
}

// step delivers pending interrupts and runs one loop iteration.
func (h *harness) step() bool {
	h.board.Deliver(h.fw.ISR)
	return h.fw.Poll()
}

func (h *harness) tick(n int) {
	for i := 0; i < n; i++ {
		h.board.FireTimer()
		h.step()
	}
}

func TestNew_Validation(t *testing.T) {
	board := sim.New(1)
	usb := cdcsim.New(nil)

	tests := []struct {
		name string
		cfg  func(*Config)
	}{
		{"same line", func(c *Config) { c.USBLine = c.TimerLine }},
		{"timer line out of range", func(c *Config) { c.TimerLine = 32 }},
		{"usb line out of range", func(c *Config) { c.USBLine = 40 }},
		{"zero hold mask", func(c *Config) { c.HoldMask = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.cfg(&cfg)
			if _, err := New(board, usb, cfg); !errors.Is(err, pkg.ErrInvalidParameter) {
				t.Errorf("New() error = %v, want ErrInvalidParameter", err)
			}
		})
	}

	if _, err := New(nil, usb, DefaultConfig()); !errors.Is(err, pkg.ErrInvalidParameter) {
		t.Errorf("New(nil board) error = %v, want ErrInvalidParameter", err)
	}
}

func TestInit(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	if got := h.board.Mask(); got != 1<<1|1<<4 {
		t.Errorf("Mask() = %#x, want %#x", got, 1<<1|1<<4)
	}
	if !h.board.Enabled() {
		t.Error("interrupts not enabled after Init")
	}
	if err := h.fw.Init(); !errors.Is(err, pkg.ErrInvalidState) {
		t.Errorf("second Init() error = %v, want ErrInvalidState", err)
	}
}

func TestInit_ZeroesClocks(t *testing.T) {
	board := sim.New(DefaultTimerLine)
	fw, err := New(board, cdcsim.New(nil), DefaultConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	for i := 0; i < 5; i++ {
		fw.ticks.Tick()
		fw.uptime.Tick()
	}

	if err := fw.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if fw.Now() != 0 || fw.Uptime() != 0 {
		t.Errorf("after Init, Now() = %d, Uptime() = %d, want 0, 0", fw.Now(), fw.Uptime())
	}

	board.FireTimer()
	board.Deliver(fw.ISR)
	if fw.Now() != 1 || fw.Uptime() != 1 {
		t.Errorf("after one tick, Now() = %d, Uptime() = %d, want 1, 1", fw.Now(), fw.Uptime())
	}
}

func TestFirmware_EndToEnd(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	b := h.fw.Blink()

	if b.State() != blink.StateNotMounted || b.Period() != 250 {
		t.Fatalf("power-on state = %s/%d, want not-mounted/250", b.State(), b.Period())
	}

	h.usb.Plug()
	h.step()
	h.usb.SetLineState(true, true)
	h.step()

	if b.State() != blink.StateMounted || b.Period() != 1000 {
		t.Fatalf("after mount: %s/%d, want mounted/1000", b.State(), b.Period())
	}
	if !h.usb.Connected() {
		t.Fatal("host terminal not connected")
	}

	h.tick(999)
	if h.board.IndicatorWrites() != 0 {
		t.Errorf("indicator written %d times before the period elapsed", h.board.IndicatorWrites())
	}
	if got := h.usb.Received(); got != nil {
		t.Errorf("received %q before the period elapsed", got)
	}

	h.tick(1)
	if h.board.IndicatorWrites() != 1 {
		t.Errorf("IndicatorWrites() = %d, want 1", h.board.IndicatorWrites())
	}
	if got := string(h.usb.Received()); got != "Hello! 0\r\n" {
		t.Errorf("received %q, want %q", got, "Hello! 0\r\n")
	}

	h.tick(1000)
	if h.board.IndicatorWrites() != 2 {
		t.Errorf("IndicatorWrites() = %d, want 2", h.board.IndicatorWrites())
	}
	if got := string(h.usb.Received()); got != "Hello! 1\r\n" {
		t.Errorf("received %q, want %q", got, "Hello! 1\r\n")
	}

	if h.fw.Now() != 2000 || h.fw.Uptime() != 2000 {
		t.Errorf("Now() = %d, Uptime() = %d, want 2000", h.fw.Now(), h.fw.Uptime())
	}
	if h.board.TimerAcks() != 2000 {
		t.Errorf("TimerAcks() = %d, want 2000", h.board.TimerAcks())
	}
}

func TestFirmware_Echo(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.usb.Plug()
	h.step()

	h.usb.Send([]byte("abc"))
	h.step()
	if got := string(h.usb.Received()); got != "abc" {
		t.Errorf("echo = %q, want abc", got)
	}
	if h.fw.Echo().Echoed() != 3 {
		t.Errorf("Echoed() = %d, want 3", h.fw.Echo().Echoed())
	}

	before := h.usb.Stats()
	for i := 0; i < 10; i++ {
		h.step()
	}
	after := h.usb.Stats()
	if after.Writes != before.Writes || after.Flushes != before.Flushes {
		t.Errorf("idle iterations wrote %d and flushed %d times",
			after.Writes-before.Writes, after.Flushes-before.Flushes)
	}
}

func TestFirmware_SuspendResume(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	b := h.fw.Blink()

	h.usb.Plug()
	h.usb.SuspendBus(false)
	h.step()
	if b.State() != blink.StateSuspended || b.Period() != 2500 {
		t.Errorf("suspended: %s/%d", b.State(), b.Period())
	}

	h.usb.ResumeBus()
	h.step()
	if b.State() != blink.StateMounted {
		t.Errorf("resumed: %s", b.State())
	}

	h.usb.Unplug()
	h.step()
	if b.State() != blink.StateNotMounted {
		t.Errorf("unplugged: %s", b.State())
	}
}

type mountCounter struct {
	cdc.NopEvents
	mounts int
}

func (m *mountCounter) Mount() { m.mounts++ }

func TestFirmware_ExtraEvents(t *testing.T) {
	extra := &mountCounter{}
	cfg := DefaultConfig()
	cfg.Events = []cdc.Events{extra}
	h := newHarness(t, cfg)

	h.usb.Plug()
	h.step()
	if extra.mounts != 1 {
		t.Errorf("extra receiver mounts = %d, want 1", extra.mounts)
	}
	if h.fw.Blink().State() != blink.StateMounted {
		t.Error("blink task did not see the mount")
	}
}

func TestFirmware_ButtonReset(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	h.board.Press(0x2)
	if h.step() {
		t.Fatal("non-matching button reset the device")
	}

	h.board.Press(0x1)
	if !h.step() {
		t.Fatal("hold did not reset the device")
	}
	if got := h.board.Resets(); len(got) != 1 || got[0] != 0xAC {
		t.Errorf("Resets() = %#v, want [0xac]", got)
	}
}

func TestFirmware_Run(t *testing.T) {
	t.Run("reset", func(t *testing.T) {
		h := newHarness(t, DefaultConfig())
		h.board.Press(DefaultConfig().HoldMask)
		if err := h.fw.Run(context.Background()); !errors.Is(err, pkg.ErrReset) {
			t.Errorf("Run() error = %v, want ErrReset", err)
		}
		if h.fw.Iterations() != 1 {
			t.Errorf("Iterations() = %d, want 1", h.fw.Iterations())
		}
		if h.fw.Cause() != pkg.ResetCauseButton {
			t.Errorf("Cause() = %s, want button", h.fw.Cause())
		}
	})

	t.Run("not initialized", func(t *testing.T) {
		fw, err := New(sim.New(1), cdcsim.New(nil), DefaultConfig())
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		if err := fw.Run(context.Background()); !errors.Is(err, pkg.ErrNotConfigured) {
			t.Errorf("Run() error = %v, want ErrNotConfigured", err)
		}
	})

	t.Run("cancel", func(t *testing.T) {
		h := newHarness(t, DefaultConfig())
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := h.fw.Run(ctx); err != nil {
			t.Errorf("Run() error = %v, want nil", err)
		}
		if h.fw.Cause() != pkg.ResetCausePowerOff {
			t.Errorf("Cause() = %s, want power-off", h.fw.Cause())
		}
	})

	t.Run("already running", func(t *testing.T) {
		started := make(chan struct{})
		var once sync.Once

		cfg := DefaultConfig()
		cfg.Idle = func() {
			once.Do(func() { close(started) })
			time.Sleep(time.Millisecond)
		}
		h := newHarness(t, cfg)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- h.fw.Run(ctx) }()

		<-started
		if err := h.fw.Run(ctx); !errors.Is(err, pkg.ErrAlreadyRunning) {
			t.Errorf("second Run() error = %v, want ErrAlreadyRunning", err)
		}

		cancel()
		if err := <-done; err != nil {
			t.Errorf("Run() error = %v, want nil", err)
		}
	})
}
