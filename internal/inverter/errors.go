package inverter

import "errors"

// Domain errors for inverter access.
var (
	// ErrTransport indicates the device could not be opened or a round-trip failed.
	ErrTransport = errors.New("inverter: transport error")

	// ErrRejected indicates the device answered but refused a command (NAK).
	ErrRejected = errors.New("inverter: command rejected")

	// ErrUnknownDriver indicates no driver is registered under the requested name.
	ErrUnknownDriver = errors.New("inverter: unknown driver")

	// ErrUnknownQuery indicates a QueryKind outside the closed set.
	ErrUnknownQuery = errors.New("inverter: unknown query")

	// ErrInvalidCommand indicates a command that cannot be encoded, such as an
	// empty flag change or an unsupported output frequency.
	ErrInvalidCommand = errors.New("inverter: invalid command")

	// ErrClosed indicates use of a handle after Close.
	ErrClosed = errors.New("inverter: handle closed")
)
