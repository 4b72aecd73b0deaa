// Package button implements the hold-to-reboot button watch.
//
// Each loop iteration samples the button register once. When every bit of
// the hold pattern is set the watch writes the reset sentinel to the reboot
// controller. There is no debounce and no confirmation.
package button
