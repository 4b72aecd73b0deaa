// Package serialport stands a real serial device in for the CDC interface.
//
// Running the firmware model on a workstation, the USB CDC interface can be
// replaced by a UART adapter or a pseudo-terminal opened with
// [github.com/goburrow/serial]. The [cdc.LineCoding] chosen for the port
// maps onto the serial configuration:
//
//	port, err := serialport.Open(serialport.Config{
//	    Address:    "/dev/ttyUSB0",
//	    LineCoding: cdc.DefaultLineCoding,
//	}, events)
//	if err != nil {
//	    return err
//	}
//	defer port.Close()
//
// The port behaves as a device that is mounted, with DTR set, for as long
// as the serial device stays healthy.
package serialport
