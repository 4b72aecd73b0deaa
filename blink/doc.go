// Package blink implements the connection-state blink task.
//
// The status indicator blinks at a period chosen by the USB connection
// state:
//
//	not mounted  250 ticks
//	mounted     1000 ticks
//	suspended   2500 ticks
//
// [Transition] is the pure state machine; [Task] owns the blink phase and
// performs the indicator write and the greeting on each toggle.
package blink
