package accessory

import "errors"

// Domain errors for characteristic access.
var (
	// ErrUnknownCharacteristic indicates no characteristic has the given ID.
	ErrUnknownCharacteristic = errors.New("accessory: unknown characteristic")

	// ErrReadOnly indicates a write to a characteristic without write permission.
	ErrReadOnly = errors.New("accessory: characteristic is read-only")

	// ErrInvalidValue indicates a written value that cannot be converted to the
	// characteristic's format.
	ErrInvalidValue = errors.New("accessory: invalid value")

	// ErrNoWriteHandler indicates a write arrived before a handler was installed.
	ErrNoWriteHandler = errors.New("accessory: no write handler")
)
