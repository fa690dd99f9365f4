package pmw3360

import "errors"

var (
	// ErrNotReady is returned when a motion read is attempted before
	// Initialize has completed, or after the device has faulted. This
	// is a programming error on the caller's side, never ignored.
	ErrNotReady = errors.New("pmw3360: device not ready")

	// ErrFirmwareUpload means the post-download SROM identifier read
	// back zero or changed within the session. Fatal to the current
	// initialization; retry only via a fresh Initialize.
	ErrFirmwareUpload = errors.New("pmw3360: firmware upload failed")

	// ErrInvalidConfig means a configuration value is outside the
	// sensor's encodable range.
	ErrInvalidConfig = errors.New("pmw3360: invalid configuration")

	// ErrBadProductID means the chip did not identify as a PMW3360
	// after reset (wiring fault or wrong silicon).
	ErrBadProductID = errors.New("pmw3360: unexpected product id")

	// ErrNoInterruptLine means interrupt-driven streaming was requested
	// but the device was built without an interrupt line.
	ErrNoInterruptLine = errors.New("pmw3360: no interrupt line configured")
)
