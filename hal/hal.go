package hal

// MaxLines is the number of interrupt lines addressable by a 32-bit
// pending/mask register pair. Bit N corresponds to line N.
const MaxLines = 32

// Line identifies an interrupt source by its bit position.
type Line uint8

// Bit returns the mask bit for the line, or 0 if the line is out of range.
func (l Line) Bit() uint32 {
	if l >= MaxLines {
		return 0
	}
	return 1 << l
}

// Valid reports whether the line fits the pending/mask registers.
func (l Line) Valid() bool {
	return l < MaxLines
}

// InterruptState is the opaque global interrupt-enable state returned by
// [InterruptMasker.Disable].
type InterruptState uint32

// InterruptController exposes the pending and enable masks of the CPU's
// external interrupt lines.
type InterruptController interface {
	// Pending returns the bitmask of asserted interrupt lines.
	Pending() uint32

	// Mask returns the bitmask of enabled interrupt lines.
	Mask() uint32

	// SetMask replaces the bitmask of enabled interrupt lines.
	SetMask(mask uint32)

	// SetEnabled sets the global interrupt enable.
	SetEnabled(enabled bool)
}

// InterruptMasker suspends interrupt delivery for a critical section.
type InterruptMasker interface {
	// Disable masks interrupts and returns the previous state.
	Disable() InterruptState

	// Restore returns interrupt delivery to a state obtained from Disable.
	Restore(state InterruptState)
}

// Timer is the tick source. Any acknowledge clears the pending timer event;
// an unacknowledged event refires immediately.
type Timer interface {
	Acknowledge()
}

// Indicator is the single-bit status output.
type Indicator interface {
	Set(on bool)
}

// Button is the raw input register of the physical button.
type Button interface {
	Raw() uint32
}

// ResetController is the reboot control register. Writing the board's
// sentinel value restarts the device.
type ResetController interface {
	Reset(sentinel uint32)
}
