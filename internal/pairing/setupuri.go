package pairing

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// Accessory categories used in the setup URI and the mDNS "ci" key.
const (
	CategoryBridge uint8 = 2
	CategoryOutlet uint8 = 7
)

const (
	setupURIScheme = "X-HM://"

	// flagIP marks an accessory reachable over IP.
	flagIP = 2

	payloadLength = 9
	setupIDLength = 4
	setupIDChars  = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// SetupURI builds the "X-HM://" payload a controller app turns into a QR code.
//
// The 45-bit payload packs, from the top: version (3 bits, 0), reserved
// (4 bits), category (8 bits), flags (4 bits) and the setup code as an
// integer (27 bits). It is written as 9 base-36 digits followed by the setup
// ID.
func SetupURI(code string, category uint8, setupID string) (string, error) {
	n, err := setupCodeNumber(code)
	if err != nil {
		return "", err
	}
	if err := ValidateSetupID(setupID); err != nil {
		return "", err
	}

	payload := uint64(category)<<31 | uint64(flagIP)<<27 | n&(1<<27-1)
	encoded := strings.ToUpper(strconv.FormatUint(payload, 36))
	if len(encoded) < payloadLength {
		encoded = strings.Repeat("0", payloadLength-len(encoded)) + encoded
	}
	return setupURIScheme + encoded + setupID, nil
}

// ValidateSetupID checks for four characters from [0-9A-Z].
func ValidateSetupID(id string) error {
	if len(id) != setupIDLength {
		return fmt.Errorf("%w: setup id %q must be %d characters", ErrInvalidIdentity, id, setupIDLength)
	}
	for _, r := range id {
		if !strings.ContainsRune(setupIDChars, r) {
			return fmt.Errorf("%w: setup id %q has invalid character %q", ErrInvalidIdentity, id, r)
		}
	}
	return nil
}

// GenerateSetupID returns a random four-character setup ID.
func GenerateSetupID() (string, error) {
	limit := big.NewInt(int64(len(setupIDChars)))
	var b strings.Builder
	for range setupIDLength {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("generating setup id: %w", err)
		}
		b.WriteByte(setupIDChars[n.Int64()])
	}
	return b.String(), nil
}

// GenerateDeviceID returns a random identifier in the colon-separated MAC
// form controllers expect, e.g. "3C:1F:0A:7E:22:B9".
func GenerateDeviceID() (string, error) {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating device id: %w", err)
	}
	parts := make([]string, len(buf))
	for i, b := range buf {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, ":"), nil
}
