// Package config loads the simulator's board profile.
//
// A profile is YAML decoded over [Default]:
//
//	board:
//	  tick_period: 1ms
//	  irq:
//	    timer_line: 1
//	    usb_line: 4
//	  button:
//	    hold_mask: 0x1
//	  reset:
//	    sentinel: 0xac
//	usb:
//	  backend: serial
//	  serial:
//	    address: /dev/ttyUSB0
//	    line_coding: {baud: 115200, data_bits: 8, stop_bits: 1, parity: none}
//	log:
//	  level: debug
//
// The profile configures the host simulator only; the device itself keeps
// no configuration.
package config
