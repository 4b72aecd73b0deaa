package csr

import (
	"errors"
	"testing"

	"github.com/diva-fw/diva/cdc"
	"github.com/diva-fw/diva/pkg"
)

// fakeUART models the CSRs of a LiteX UART with a bounded TX FIFO.
type fakeUART struct {
	rx      []byte
	tx      []byte
	txCap   int
	enable  uint32
	onLevel func(asserted bool)
}

func newFakeUART(txCap int) *fakeUART {
	return &fakeUART{txCap: txCap}
}

func (f *fakeUART) registers() UARTRegisters {
	return UARTRegisters{
		RxTx: hookReg{
			get: func() uint32 {
				if len(f.rx) == 0 {
					return 0
				}
				return uint32(f.rx[0])
			},
			set: func(v uint32) { f.tx = append(f.tx, byte(v)) },
		},
		TxFull: hookReg{get: func() uint32 {
			if len(f.tx) >= f.txCap {
				return 1
			}
			return 0
		}},
		RxEmpty: hookReg{get: func() uint32 {
			if len(f.rx) == 0 {
				return 1
			}
			return 0
		}},
		EvPending: hookReg{set: func(v uint32) {
			if v&UARTEventRX != 0 && len(f.rx) > 0 {
				f.rx = f.rx[1:]
			}
			f.update()
		}},
		EvEnable: hookReg{
			get: func() uint32 { return f.enable },
			set: func(v uint32) {
				f.enable = v
				f.update()
			},
		},
	}
}

// send is the host writing to the port.
func (f *fakeUART) send(data string) {
	f.rx = append(f.rx, data...)
	f.update()
}

func (f *fakeUART) asserted() bool {
	return f.enable&UARTEventRX != 0 && len(f.rx) > 0
}

func (f *fakeUART) update() {
	if f.onLevel != nil {
		f.onLevel(f.asserted())
	}
}

// eventLog records callbacks in order.
type eventLog struct {
	cdc.NopEvents
	calls []string
}

func (l *eventLog) Mount() { l.calls = append(l.calls, "mount") }
func (l *eventLog) DataReceived(uint8) { l.calls = append(l.calls, "data") }

func (l *eventLog) LineStateChanged(_ uint8, dtr, rts bool) {
	if dtr && rts {
		l.calls = append(l.calls, "line")
	}
}

func TestNewUART(t *testing.T) {
	f := newFakeUART(16)
	if _, err := NewUART(f.registers()); err != nil {
		t.Fatalf("NewUART() error = %v", err)
	}
	if f.enable != UARTEventRX {
		t.Errorf("ev_enable = %#x, want RX", f.enable)
	}

	regs := f.registers()
	regs.TxFull = nil
	if _, err := NewUART(regs); !errors.Is(err, pkg.ErrInvalidParameter) {
		t.Errorf("NewUART(missing txfull) error = %v, want ErrInvalidParameter", err)
	}
}

func TestUART_Task(t *testing.T) {
	f := newFakeUART(16)
	u, err := NewUART(f.registers())
	if err != nil {
		t.Fatalf("NewUART() error = %v", err)
	}
	log := &eventLog{}
	u.SetEvents(log)

	if u.Connected() {
		t.Error("Connected() before the first Task")
	}
	u.Task()
	u.Task()
	if !u.Connected() {
		t.Error("Connected() = false after Task")
	}
	if len(log.calls) != 2 || log.calls[0] != "mount" || log.calls[1] != "line" {
		t.Fatalf("callbacks = %v, want [mount line]", log.calls)
	}

	f.send("ping")
	u.Task()
	if u.Available() != 4 {
		t.Errorf("Available() = %d, want 4", u.Available())
	}
	if log.calls[len(log.calls)-1] != "data" {
		t.Errorf("last callback = %q, want data", log.calls[len(log.calls)-1])
	}
	if len(f.rx) != 0 {
		t.Errorf("hardware FIFO holds %d bytes after Task, want 0", len(f.rx))
	}

	buf := make([]byte, 3)
	if n := u.Read(buf); n != 3 || string(buf) != "pin" {
		t.Errorf("Read() = %d %q, want 3 %q", n, buf[:n], "pin")
	}
	if n := u.Read(buf); n != 1 || buf[0] != 'g' {
		t.Errorf("Read() = %d %q, want 1 %q", n, buf[:n], "g")
	}
}

func TestUART_InterruptMasksRX(t *testing.T) {
	f := newFakeUART(16)
	var levels []bool
	f.onLevel = func(asserted bool) { levels = append(levels, asserted) }

	u, err := NewUART(f.registers())
	if err != nil {
		t.Fatalf("NewUART() error = %v", err)
	}

	f.send("x")
	if !f.asserted() {
		t.Fatal("RX line not asserted with data in the FIFO")
	}

	u.HandleInterrupt()
	if f.asserted() || f.enable != 0 {
		t.Errorf("RX still asserted after HandleInterrupt, ev_enable = %#x", f.enable)
	}
	if u.Interrupts() != 1 {
		t.Errorf("Interrupts() = %d, want 1", u.Interrupts())
	}

	u.Task()
	if f.enable != UARTEventRX {
		t.Errorf("ev_enable = %#x after Task, want RX", f.enable)
	}
	if f.asserted() {
		t.Error("RX asserted after the FIFO was drained")
	}
	if levels[len(levels)-1] {
		t.Error("last line level = asserted, want deasserted")
	}
}

func TestUART_BufferFull(t *testing.T) {
	f := newFakeUART(16)
	u, err := NewUART(f.registers())
	if err != nil {
		t.Fatalf("NewUART() error = %v", err)
	}

	data := make([]byte, UARTRxCapacity+10)
	for i := range data {
		data[i] = byte(i)
	}
	f.send(string(data))
	u.Task()

	if u.Available() != UARTRxCapacity {
		t.Errorf("Available() = %d, want %d", u.Available(), UARTRxCapacity)
	}
	if len(f.rx) != 10 {
		t.Errorf("hardware FIFO holds %d bytes, want 10 left behind", len(f.rx))
	}

	u.Read(make([]byte, 64))
	u.Task()
	if len(f.rx) != 0 {
		t.Errorf("hardware FIFO holds %d bytes after room was made, want 0", len(f.rx))
	}
}

func TestUART_Write(t *testing.T) {
	tests := []struct {
		name  string
		txCap int
		data  string
		want  int
	}{
		{"fits", 16, "hello", 5},
		{"short", 3, "hello", 3},
		{"full", 0, "hello", 0},
		{"empty", 16, "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeUART(tt.txCap)
			u, err := NewUART(f.registers())
			if err != nil {
				t.Fatalf("NewUART() error = %v", err)
			}
			if n := u.Write([]byte(tt.data)); n != tt.want {
				t.Errorf("Write() = %d, want %d", n, tt.want)
			}
			if string(f.tx) != tt.data[:tt.want] {
				t.Errorf("tx = %q, want %q", f.tx, tt.data[:tt.want])
			}

			f.tx = nil
			if n := cdc.WriteString(u, tt.data); n != tt.want {
				t.Errorf("WriteString() = %d, want %d", n, tt.want)
			}
			u.Flush()
		})
	}
}
