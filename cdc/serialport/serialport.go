package serialport

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/goburrow/serial"

	"github.com/diva-fw/diva/cdc"
	"github.com/diva-fw/diva/pkg"
)

// Buffer sizes.
const (
	RxCapacity = 1024
	TxCapacity = 1024
)

// DefaultReadTimeout bounds each read on the underlying device so the
// reader notices Close promptly.
const DefaultReadTimeout = 50 * time.Millisecond

// Config describes the serial device standing in for the CDC interface.
type Config struct {
	Address     string         // Device path, e.g. /dev/ttyUSB0
	LineCoding  cdc.LineCoding // Baud rate, framing
	ReadTimeout time.Duration  // Per-read timeout (default DefaultReadTimeout)
}

// Port adapts a blocking serial device to the non-blocking [cdc.Port] and
// [cdc.Stack] interfaces. A reader goroutine fills a bounded receive
// buffer; [Port.Task] reports the device as mounted and connected once
// open, and as unmounted after a read or write failure.
type Port struct {
	mutex sync.Mutex
	dev   io.ReadWriteCloser

	events cdc.Events

	rx    [RxCapacity]byte
	rxLen int
	tx    [TxCapacity]byte
	txLen int

	mounted   bool // Mount delivered
	failed    bool // Device error seen
	closed    bool
	newData   bool
	overflows int

	done chan struct{}
}

// Open opens the serial device described by cfg.
func Open(cfg Config, events cdc.Events) (*Port, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("serial port: address: %w", pkg.ErrInvalidParameter)
	}
	lc := cfg.LineCoding
	if lc.DTERate == 0 {
		lc = cdc.DefaultLineCoding
	}
	timeout := cfg.ReadTimeout
	if timeout <= 0 {
		timeout = DefaultReadTimeout
	}

	dev, err := serial.Open(&serial.Config{
		Address:  cfg.Address,
		BaudRate: int(lc.DTERate),
		DataBits: int(lc.DataBits),
		StopBits: lc.StopBitCount(),
		Parity:   lc.ParityName(),
		Timeout:  timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("serial port %s: %w: %w", cfg.Address, pkg.ErrNoDevice, err)
	}

	pkg.LogInfo(pkg.ComponentCDC, "serial port opened",
		"address", cfg.Address,
		"baud", lc.DTERate)

	return New(dev, events), nil
}

// New wraps an already open device and starts the reader.
func New(dev io.ReadWriteCloser, events cdc.Events) *Port {
	if events == nil {
		events = cdc.NopEvents{}
	}
	p := &Port{
		dev:    dev,
		events: events,
		done:   make(chan struct{}),
	}
	go p.readLoop()
	return p
}

// SetEvents replaces the callback receiver.
func (p *Port) SetEvents(events cdc.Events) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if events == nil {
		events = cdc.NopEvents{}
	}
	p.events = events
}

// readLoop copies device input into the receive buffer until the port is
// closed or the device fails.
func (p *Port) readLoop() {
	defer close(p.done)

	var buf [cdc.EchoBufferSize]byte
	for {
		n, err := p.dev.Read(buf[:])
		p.mutex.Lock()
		if p.closed {
			p.mutex.Unlock()
			return
		}
		if n > 0 {
			m := copy(p.rx[p.rxLen:], buf[:n])
			p.rxLen += m
			if m < n {
				p.overflows++
			}
			p.newData = true
		}
		if err != nil && !errors.Is(err, serial.ErrTimeout) {
			p.failed = true
			p.mutex.Unlock()
			pkg.LogWarn(pkg.ComponentCDC, "serial read failed", "error", err)
			return
		}
		p.mutex.Unlock()
	}
}

// Task delivers connection changes and data notifications.
func (p *Port) Task() {
	p.mutex.Lock()
	events := p.events
	var mount, unmount, data bool
	switch {
	case !p.mounted && !p.failed && !p.closed:
		p.mounted = true
		mount = true
	case p.mounted && (p.failed || p.closed):
		p.mounted = false
		p.rxLen, p.txLen = 0, 0
		unmount = true
	}
	if p.newData && p.mounted {
		p.newData = false
		data = true
	}
	p.mutex.Unlock()

	if mount {
		events.Mount()
		events.LineStateChanged(0, true, true)
	}
	if unmount {
		events.LineStateChanged(0, false, false)
		events.Unmount()
	}
	if data {
		events.DataReceived(0)
	}
}

// HandleInterrupt is a no-op; a host serial device raises no USB interrupt.
func (p *Port) HandleInterrupt() {}

// Available returns the number of buffered received bytes.
func (p *Port) Available() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.rxLen
}

// Read moves up to len(buf) buffered bytes into buf.
func (p *Port) Read(buf []byte) int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	n := copy(buf, p.rx[:p.rxLen])
	copy(p.rx[:], p.rx[n:p.rxLen])
	p.rxLen -= n
	return n
}

// Write queues data for the next Flush.
func (p *Port) Write(data []byte) int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if !p.mounted {
		return 0
	}
	n := copy(p.tx[p.txLen:], data)
	p.txLen += n
	return n
}

// WriteString queues s for the next Flush.
func (p *Port) WriteString(s string) int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if !p.mounted {
		return 0
	}
	n := copy(p.tx[p.txLen:], s)
	p.txLen += n
	return n
}

// Flush writes queued bytes to the device. A write failure marks the port
// failed; the next Task reports the disconnect.
func (p *Port) Flush() {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if !p.mounted || p.failed || p.txLen == 0 {
		return
	}
	_, err := p.dev.Write(p.tx[:p.txLen])
	p.txLen = 0
	if err != nil {
		p.failed = true
		pkg.LogWarn(pkg.ComponentCDC, "serial write failed", "error", err)
	}
}

// Connected reports whether the device is open and healthy.
func (p *Port) Connected() bool {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.mounted && !p.failed && !p.closed
}

// Overflows returns how many reads did not fit the receive buffer.
func (p *Port) Overflows() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.overflows
}

// Close closes the device and waits for the reader to exit.
func (p *Port) Close() error {
	p.mutex.Lock()
	if p.closed {
		p.mutex.Unlock()
		return nil
	}
	p.closed = true
	p.mutex.Unlock()

	err := p.dev.Close()
	<-p.done
	return err
}

// Compile-time interface checks
var (
	_ cdc.Stack = (*Port)(nil)
	_ cdc.Port  = (*Port)(nil)
)
