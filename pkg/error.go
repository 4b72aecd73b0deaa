package pkg

import "errors"

// Firmware errors. None of these are raised on the interrupt or loop paths;
// they are returned by setup-time constructors and host-side tooling.
var (
	// ErrInvalidParameter indicates an invalid parameter was provided.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrInvalidState indicates an operation was attempted in the wrong state.
	ErrInvalidState = errors.New("invalid state")

	// ErrNotConfigured indicates a component was used before it was configured.
	ErrNotConfigured = errors.New("not configured")

	// ErrAlreadyRunning indicates the loop is already running.
	ErrAlreadyRunning = errors.New("already running")

	// ErrNoDevice indicates the transport device is not present.
	ErrNoDevice = errors.New("device not present")

	// ErrLineInUse indicates an interrupt line already has a handler.
	ErrLineInUse = errors.New("interrupt line in use")

	// ErrReset indicates the device issued a hardware reset.
	ErrReset = errors.New("device reset")
)

// ResetCause records why a simulated device session ended.
type ResetCause int

// Reset causes.
const (
	ResetCauseNone     ResetCause = iota // Session still running
	ResetCauseButton                     // Hold gesture on the button
	ResetCausePowerOff                   // Host stopped the session
)

// String returns a string representation of the reset cause.
func (c ResetCause) String() string {
	switch c {
	case ResetCauseNone:
		return "none"
	case ResetCauseButton:
		return "button"
	case ResetCausePowerOff:
		return "power-off"
	default:
		return "unknown"
	}
}

// Err returns the error a session reports for the reset cause.
func (c ResetCause) Err() error {
	switch c {
	case ResetCauseNone, ResetCausePowerOff:
		return nil
	default:
		return ErrReset
	}
}
