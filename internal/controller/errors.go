package controller

import "errors"

// Domain errors for the synchronization controller.
var (
	// ErrDeviceUnavailable indicates the device could not be opened or queried
	// during the mandatory startup refresh.
	ErrDeviceUnavailable = errors.New("controller: device unavailable")

	// ErrUnrecognizedWriteTarget indicates a write to a characteristic that no
	// device command maps to. It is only ever logged at debug level.
	ErrUnrecognizedWriteTarget = errors.New("controller: unrecognized write target")

	// ErrInvalidRequestedValue indicates a write whose value is outside the
	// target's valid values. No command is sent.
	ErrInvalidRequestedValue = errors.New("controller: invalid requested value")

	// ErrInvalidOptions indicates New was called without a required collaborator.
	ErrInvalidOptions = errors.New("controller: invalid options")
)
