package sim

import (
	"sync"

	"github.com/diva-fw/diva/cdc"
	"github.com/diva-fw/diva/pkg"
)

// Buffer and queue sizes.
const (
	RxCapacity = 256 // Host-to-device FIFO
	TxCapacity = 256 // Device-to-host FIFO awaiting flush
	MaxEvents  = 32  // Pending bus events
)

type eventKind uint8

const (
	eventMount eventKind = iota
	eventUnmount
	eventSuspend
	eventResume
	eventLineState
	eventData
)

func (k eventKind) String() string {
	switch k {
	case eventMount:
		return "mount"
	case eventUnmount:
		return "unmount"
	case eventSuspend:
		return "suspend"
	case eventResume:
		return "resume"
	case eventLineState:
		return "line-state"
	case eventData:
		return "data"
	default:
		return "unknown"
	}
}

type event struct {
	kind     eventKind
	wakeup   bool
	lineCtrl uint16
}

// queue is a fixed-capacity FIFO of bus events.
type queue struct {
	items [MaxEvents]event
	head  int
	count int
}

func (q *queue) push(e event) bool {
	if q.count == MaxEvents {
		return false
	}
	q.items[(q.head+q.count)%MaxEvents] = e
	q.count++
	return true
}

func (q *queue) pop() (event, bool) {
	if q.count == 0 {
		return event{}, false
	}
	e := q.items[q.head]
	q.head = (q.head + 1) % MaxEvents
	q.count--
	return e, true
}

// Device simulates a device-side USB stack with one CDC interface. The
// host side is driven through Plug, Unplug, SuspendBus, ResumeBus,
// Control and Send; the firmware side sees a [cdc.Stack] and a
// [cdc.Port].
//
// Bus events follow the path they take on hardware. A host action latches
// the event and raises the USB interrupt line; [Device.HandleInterrupt]
// moves latched events to the stack's queue; [Device.Task] drains the
// queue and invokes the [cdc.Events] callbacks. Without an attached
// interrupt line, host actions queue events directly.
type Device struct {
	mutex sync.Mutex

	events cdc.Events
	raise  func()
	lower  func()

	latched queue
	queued  queue
	dropped int

	mounted   bool
	suspended bool
	dtr, rts  bool
	coding    cdc.LineCoding

	rx      [RxCapacity]byte
	rxLen   int
	tx      [TxCapacity]byte
	txLen   int
	flushed []byte

	writes     int
	flushes    int
	breaks     int
	interrupts uint64
}

// New creates a detached device delivering callbacks to events, which may
// be nil.
func New(events cdc.Events) *Device {
	if events == nil {
		events = cdc.NopEvents{}
	}
	return &Device{
		events: events,
		coding: cdc.DefaultLineCoding,
	}
}

// SetEvents replaces the callback receiver.
func (d *Device) SetEvents(events cdc.Events) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if events == nil {
		events = cdc.NopEvents{}
	}
	d.events = events
}

// AttachInterrupt routes host actions through an interrupt line. raise
// asserts the line; lower deasserts it once the handler has taken the
// latched events.
func (d *Device) AttachInterrupt(raise, lower func()) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.raise = raise
	d.lower = lower
}

// post records a host action. Called with the mutex held; returns the
// raise hook to call after unlocking.
func (d *Device) post(e event) func() {
	if d.raise == nil {
		if !d.queued.push(e) {
			d.dropped++
		}
		return nil
	}
	if !d.latched.push(e) {
		d.dropped++
	}
	return d.raise
}

func (d *Device) postUnlock(e event) {
	raise := d.post(e)
	d.mutex.Unlock()
	if raise != nil {
		raise()
	}
}

// Plug connects the device to a host, which enumerates it.
func (d *Device) Plug() {
	d.mutex.Lock()
	d.postUnlock(event{kind: eventMount})
}

// Unplug removes the device from the bus.
func (d *Device) Unplug() {
	d.mutex.Lock()
	d.postUnlock(event{kind: eventUnmount})
}

// SuspendBus suspends the bus. remoteWakeup reports whether the host
// allows the device to wake it.
func (d *Device) SuspendBus(remoteWakeup bool) {
	d.mutex.Lock()
	d.postUnlock(event{kind: eventSuspend, wakeup: remoteWakeup})
}

// ResumeBus resumes a suspended bus.
func (d *Device) ResumeBus() {
	d.mutex.Lock()
	d.postUnlock(event{kind: eventResume})
}

// Control issues a class-specific request on the CDC interface, as the host
// does over the default control pipe. data is the OUT data stage and reply
// the IN data stage. ok is false when the interface stalls the request.
func (d *Device) Control(request uint8, value uint16, data []byte) (reply []byte, ok bool) {
	d.mutex.Lock()
	switch request {
	case cdc.RequestSetLineCoding:
		var lc cdc.LineCoding
		if !cdc.ParseLineCoding(data, &lc) {
			d.mutex.Unlock()
			return nil, false
		}
		d.coding = lc
		d.mutex.Unlock()
		return nil, true

	case cdc.RequestGetLineCoding:
		reply = make([]byte, cdc.LineCodingSize)
		d.coding.MarshalTo(reply)
		d.mutex.Unlock()
		return reply, true

	case cdc.RequestSetControlLineState:
		d.postUnlock(event{kind: eventLineState, lineCtrl: value})
		return nil, true

	case cdc.RequestSendBreak:
		d.breaks++
		d.mutex.Unlock()
		return nil, true
	}
	d.mutex.Unlock()

	pkg.LogDebug(pkg.ComponentSim, "control request stalled",
		"request", request)
	return nil, false
}

// SetLineState issues SET_CONTROL_LINE_STATE, as a terminal does when it
// opens (DTR set) or closes (DTR clear) the port.
func (d *Device) SetLineState(dtr, rts bool) {
	d.Control(cdc.RequestSetControlLineState, cdc.ControlLineState(dtr, rts), nil)
}

// SetLineCoding issues SET_LINE_CODING.
func (d *Device) SetLineCoding(lc cdc.LineCoding) {
	var buf [cdc.LineCodingSize]byte
	lc.MarshalTo(buf[:])
	d.Control(cdc.RequestSetLineCoding, 0, buf[:])
}

// LineCoding issues GET_LINE_CODING and returns the decoded reply.
func (d *Device) LineCoding() cdc.LineCoding {
	var lc cdc.LineCoding
	reply, _ := d.Control(cdc.RequestGetLineCoding, 0, nil)
	cdc.ParseLineCoding(reply, &lc)
	return lc
}

// SendBreak issues SEND_BREAK for the given duration in milliseconds.
func (d *Device) SendBreak(ms uint16) {
	d.Control(cdc.RequestSendBreak, ms, nil)
}

// Send transfers data from the host to the device's receive FIFO and
// returns the number of bytes that fit.
func (d *Device) Send(data []byte) int {
	d.mutex.Lock()
	if !d.mounted {
		d.mutex.Unlock()
		return 0
	}
	n := copy(d.rx[d.rxLen:], data)
	d.rxLen += n
	if n == 0 {
		d.mutex.Unlock()
		return 0
	}
	d.postUnlock(event{kind: eventData})
	return n
}

// Received drains and returns the bytes the device has flushed to the host.
func (d *Device) Received() []byte {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	out := d.flushed
	d.flushed = nil
	return out
}

// HandleInterrupt deasserts the interrupt line and takes latched bus
// events into the stack's queue. The line is lowered before draining so
// that an event latched meanwhile raises it again.
func (d *Device) HandleInterrupt() {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.interrupts++
	if d.lower != nil {
		d.lower()
	}
	for {
		e, ok := d.latched.pop()
		if !ok {
			return
		}
		if !d.queued.push(e) {
			d.dropped++
		}
	}
}

// Task processes queued bus events and invokes the callbacks. Callbacks run
// without the device lock held so they may call back into the port.
func (d *Device) Task() {
	for {
		d.mutex.Lock()
		e, ok := d.queued.pop()
		if !ok {
			d.mutex.Unlock()
			return
		}
		events := d.apply(e)
		d.mutex.Unlock()

		pkg.LogDebug(pkg.ComponentSim, "usb event", "event", e.kind.String())
		d.deliver(events, e)
	}
}

// apply updates stack state for e. Called with the mutex held.
func (d *Device) apply(e event) cdc.Events {
	switch e.kind {
	case eventMount:
		d.mounted = true
		d.suspended = false
	case eventUnmount:
		d.mounted = false
		d.suspended = false
		d.dtr, d.rts = false, false
		d.rxLen, d.txLen = 0, 0
	case eventSuspend:
		d.suspended = true
	case eventResume:
		d.suspended = false
	case eventLineState:
		d.dtr, d.rts = cdc.ParseControlLineState(e.lineCtrl)
	}
	return d.events
}

func (d *Device) deliver(events cdc.Events, e event) {
	switch e.kind {
	case eventMount:
		events.Mount()
	case eventUnmount:
		events.Unmount()
	case eventSuspend:
		events.Suspend(e.wakeup)
	case eventResume:
		events.Resume()
	case eventLineState:
		dtr, rts := cdc.ParseControlLineState(e.lineCtrl)
		events.LineStateChanged(0, dtr, rts)
	case eventData:
		events.DataReceived(0)
	}
}

// Available returns the number of bytes in the receive FIFO.
func (d *Device) Available() int {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.rxLen
}

// Read moves up to len(buf) bytes out of the receive FIFO.
func (d *Device) Read(buf []byte) int {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	n := copy(buf, d.rx[:d.rxLen])
	copy(d.rx[:], d.rx[n:d.rxLen])
	d.rxLen -= n
	return n
}

// Write queues data in the transmit FIFO. Bytes beyond the free space are
// not accepted. Nothing is accepted while unmounted.
func (d *Device) Write(data []byte) int {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.writes++
	if !d.mounted {
		return 0
	}
	n := copy(d.tx[d.txLen:], data)
	d.txLen += n
	return n
}

// WriteString queues s in the transmit FIFO without converting it to a
// byte slice.
func (d *Device) WriteString(s string) int {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.writes++
	if !d.mounted {
		return 0
	}
	n := copy(d.tx[d.txLen:], s)
	d.txLen += n
	return n
}

// Flush transmits the FIFO to the host if the bus is active.
func (d *Device) Flush() {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.flushes++
	if !d.mounted || d.suspended || d.txLen == 0 {
		return
	}
	d.flushed = append(d.flushed, d.tx[:d.txLen]...)
	d.txLen = 0
}

// Connected reports whether the bus is active and DTR is set.
func (d *Device) Connected() bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.mounted && !d.suspended && d.dtr
}

// Mounted reports whether the stack has processed a mount.
func (d *Device) Mounted() bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.mounted
}

// Stats reports port activity counters.
type Stats struct {
	Writes     int    // Write and WriteString calls
	Flushes    int    // Flush calls
	Breaks     int    // SEND_BREAK requests
	Interrupts uint64 // HandleInterrupt calls
	Dropped    int    // Events lost to a full queue
}

// Stats returns the activity counters.
func (d *Device) Stats() Stats {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return Stats{
		Writes:     d.writes,
		Flushes:    d.flushes,
		Breaks:     d.breaks,
		Interrupts: d.interrupts,
		Dropped:    d.dropped,
	}
}

// Compile-time interface checks
var (
	_ cdc.Stack = (*Device)(nil)
	_ cdc.Port  = (*Device)(nil)
)
