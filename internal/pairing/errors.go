package pairing

import "errors"

// Domain errors for pairing.
var (
	// ErrInvalidSetupCode indicates a malformed or trivial setup code.
	ErrInvalidSetupCode = errors.New("pairing: invalid setup code")

	// ErrSetupCodeMismatch indicates a pairing attempt with the wrong code.
	ErrSetupCodeMismatch = errors.New("pairing: setup code does not match")

	// ErrInvalidIdentity indicates a malformed device or setup ID.
	ErrInvalidIdentity = errors.New("pairing: invalid identity")

	// ErrInvalidPairing indicates a pairing record without ID or key.
	ErrInvalidPairing = errors.New("pairing: invalid pairing")

	// ErrPairingNotFound indicates no pairing has the given controller ID.
	ErrPairingNotFound = errors.New("pairing: not found")

	// ErrTokenInvalid indicates a controller token that is malformed,
	// expired or not signed by this accessory.
	ErrTokenInvalid = errors.New("pairing: invalid controller token")

	// ErrNotAdmin indicates an action reserved for admin controllers.
	ErrNotAdmin = errors.New("pairing: admin controller required")

	// ErrTokenRevoked indicates a valid token whose controller was unpaired.
	ErrTokenRevoked = errors.New("pairing: controller token revoked")
)
