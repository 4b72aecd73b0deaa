package sim

import (
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/diva-fw/diva/hal"
)

func TestBoard_Deliver(t *testing.T) {
	b := New(1)
	b.SetMask(1<<1 | 1<<4)

	calls := 0
	dispatch := func() {
		calls++
		b.Acknowledge()
		b.Clear(4)
	}

	b.FireTimer()
	if n := b.Deliver(dispatch); n != 0 {
		t.Errorf("Deliver() with interrupts disabled = %d, want 0", n)
	}

	b.SetEnabled(true)
	if n := b.Deliver(dispatch); n != 1 {
		t.Errorf("Deliver() = %d, want 1", n)
	}
	if b.Pending() != 0 {
		t.Errorf("Pending() = %#x, want 0", b.Pending())
	}

	b.Raise(7)
	if n := b.Deliver(dispatch); n != 0 {
		t.Errorf("Deliver() for masked line = %d, want 0", n)
	}
	if calls != 1 {
		t.Errorf("dispatch called %d times, want 1", calls)
	}
}

func TestBoard_DeliverStorm(t *testing.T) {
	b := New(1)
	b.SetMask(1 << 4)
	b.SetEnabled(true)
	b.Raise(4)

	n := b.Deliver(func() {})
	if n != MaxReentry {
		t.Errorf("Deliver() = %d, want %d", n, MaxReentry)
	}
	if b.Storms() != 1 {
		t.Errorf("Storms() = %d, want 1", b.Storms())
	}
}

func TestBoard_DisableRestore(t *testing.T) {
	b := New(1)
	b.SetEnabled(true)

	outer := b.Disable()
	if b.Enabled() {
		t.Fatal("Enabled() = true inside critical section")
	}
	inner := b.Disable()
	if inner != stateNested {
		t.Errorf("nested Disable() = %d, want %d", inner, stateNested)
	}
	b.Restore(inner)
	if b.Enabled() {
		t.Error("nested Restore re-enabled interrupts")
	}
	b.Restore(outer)
	if !b.Enabled() {
		t.Error("Enabled() = false after outer Restore")
	}
}

func TestBoard_DisableWhileDisabled(t *testing.T) {
	b := New(1)

	state := b.Disable()
	if state != stateDisabled {
		t.Errorf("Disable() = %d, want %d", state, stateDisabled)
	}
	b.Restore(state)
	if b.Enabled() {
		t.Error("Restore enabled interrupts that were off before Disable")
	}

	// A stray Restore outside any section is ignored.
	b.Restore(stateEnabled)
	if b.Enabled() {
		t.Error("unmatched Restore enabled interrupts")
	}
}

func TestBoard_NestedSectionHoldsDispatch(t *testing.T) {
	b := New(1)
	b.SetMask(1 << 1)
	b.SetEnabled(true)

	outer := b.Disable()
	inner := b.Disable()
	b.FireTimer()
	b.Restore(inner)

	dispatched := make(chan int, 1)
	go func() {
		dispatched <- b.Deliver(func() { b.Acknowledge() })
	}()

	select {
	case <-dispatched:
		t.Fatal("Deliver ran after the inner Restore while the outer section was held")
	case <-time.After(20 * time.Millisecond):
	}

	b.Restore(outer)
	if n := <-dispatched; n != 1 {
		t.Errorf("Deliver() = %d, want 1 after the outer Restore", n)
	}
}

func TestBoard_DisableWaitsForDispatch(t *testing.T) {
	b := New(1)
	b.SetMask(1 << 1)
	b.SetEnabled(true)
	b.FireTimer()

	entered := make(chan struct{})
	release := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		b.Deliver(func() {
			close(entered)
			<-release
			b.Acknowledge()
		})
	}()

	<-entered
	masked := make(chan hal.InterruptState)
	go func() { masked <- b.Disable() }()

	select {
	case <-masked:
		t.Fatal("Disable returned while the handler was running")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	state := <-masked
	b.Restore(state)
	wg.Wait()
}

func TestBoard_Peripherals(t *testing.T) {
	b := New(1)

	var levels []bool
	b.OnIndicator(func(on bool) { levels = append(levels, on) })
	b.Set(true)
	b.Set(false)
	if !reflect.DeepEqual(levels, []bool{true, false}) {
		t.Errorf("indicator callbacks = %v", levels)
	}
	if b.Indicator() || b.IndicatorWrites() != 2 {
		t.Errorf("Indicator() = %v, IndicatorWrites() = %d", b.Indicator(), b.IndicatorWrites())
	}

	b.Press(0x5)
	if b.Raw() != 0x5 {
		t.Errorf("Raw() = %#x, want 0x5", b.Raw())
	}

	var got uint32
	b.OnReset(func(s uint32) { got = s })
	b.Reset(0xAC)
	if got != 0xAC {
		t.Errorf("reset callback got %#x, want 0xac", got)
	}
	resets := b.Resets()
	resets[0] = 0
	if b.Resets()[0] != 0xAC {
		t.Error("Resets() returned internal slice")
	}
}

func TestBoard_RaiseOutOfRange(t *testing.T) {
	b := New(1)
	b.Raise(hal.MaxLines)
	if b.Pending() != 0 {
		t.Errorf("Pending() = %#x, want 0", b.Pending())
	}
}
