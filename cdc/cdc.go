package cdc

// EchoBufferSize is the capacity of the echo buffer, one full-speed bulk
// packet.
const EchoBufferSize = 64

// Port is the device side of a CDC serial interface. All operations are
// non-blocking.
type Port interface {
	// Available returns the number of received bytes ready to read.
	Available() int

	// Read copies up to len(buf) received bytes into buf and returns the
	// count. Short reads are normal.
	Read(buf []byte) int

	// Write queues data for transmission and returns the number of bytes
	// accepted, which may be less than len(data).
	Write(data []byte) int

	// Flush forces queued bytes out to the host.
	Flush()

	// Connected reports whether a terminal holds the line open (DTR set).
	// This is distinct from the device being mounted.
	Connected() bool
}

// Stack is the device-side USB stack.
type Stack interface {
	// Task runs the stack's background work. Connection callbacks are
	// invoked synchronously from within Task.
	Task()

	// HandleInterrupt is the stack's low-level interrupt entry point.
	HandleInterrupt()
}

// Events receives the stack's device and CDC callbacks.
type Events interface {
	Mount()
	Unmount()
	Suspend(remoteWakeup bool)
	Resume()
	LineStateChanged(itf uint8, dtr, rts bool)
	DataReceived(itf uint8)
}

// NopEvents implements [Events] with no-op methods. Embed it to handle a
// subset of the callbacks.
type NopEvents struct{}

func (NopEvents) Mount() {}
func (NopEvents) Unmount() {}
func (NopEvents) Suspend(bool) {}
func (NopEvents) Resume() {}
func (NopEvents) LineStateChanged(uint8, bool, bool) {}
func (NopEvents) DataReceived(uint8) {}

// EventMux fans one stack's callbacks out to several listeners, in order.
type EventMux []Events

func (m EventMux) Mount() {
	for _, e := range m {
		e.Mount()
	}
}

func (m EventMux) Unmount() {
	for _, e := range m {
		e.Unmount()
	}
}

func (m EventMux) Suspend(remoteWakeup bool) {
	for _, e := range m {
		e.Suspend(remoteWakeup)
	}
}

func (m EventMux) Resume() {
	for _, e := range m {
		e.Resume()
	}
}

func (m EventMux) LineStateChanged(itf uint8, dtr, rts bool) {
	for _, e := range m {
		e.LineStateChanged(itf, dtr, rts)
	}
}

func (m EventMux) DataReceived(itf uint8) {
	for _, e := range m {
		e.DataReceived(itf)
	}
}

// WriteString queues s on p and returns the number of bytes accepted.
func WriteString(p Port, s string) int {
	if sw, ok := p.(interface{ WriteString(string) int }); ok {
		return sw.WriteString(s)
	}
	return p.Write([]byte(s))
}

// EchoTask is the USB transport task. Each run yields to the stack and
// then echoes whatever the host sent back to it.
type EchoTask struct {
	stack Stack
	port  Port

	// Fixed buffer, reused every run
	buf [EchoBufferSize]byte

	echoed uint64
}

// NewEchoTask creates the transport task for stack and port.
func NewEchoTask(stack Stack, port Port) *EchoTask {
	return &EchoTask{stack: stack, port: port}
}

// Run performs one iteration: stack work, then at most one buffer of echo.
// Nothing is written or flushed when no bytes were read.
func (t *EchoTask) Run() {
	t.stack.Task()

	if t.port.Available() == 0 {
		return
	}

	n := t.port.Read(t.buf[:])
	if n <= 0 {
		return
	}

	t.port.Write(t.buf[:n])
	t.port.Flush()
	t.echoed += uint64(n)
}

// Echoed returns the total number of bytes read and written back.
func (t *EchoTask) Echoed() uint64 {
	return t.echoed
}

// Compile-time interface checks
var (
	_ Events = NopEvents{}
	_ Events = EventMux(nil)
)
