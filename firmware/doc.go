// Package firmware composes the DiVA control core.
//
// Two contexts share one core. The interrupt dispatcher runs whenever an
// enabled line is asserted and may preempt the loop at any point; it only
// advances the tick counter and forwards USB interrupts. The loop runs the
// USB transport task, the blink task and the button watch back to back,
// forever, never blocking:
//
//	fw, err := firmware.New(board, usb, firmware.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	if err := fw.Init(); err != nil {
//	    return err
//	}
//	// install fw.ISR as the interrupt entry point
//	for {
//	    fw.Poll()
//	}
//
// The tick counter is the only value written in interrupt context and read
// by the loop. Connection state changes arrive through callbacks that the
// USB stack invokes from its own task, inside the loop.
package firmware
