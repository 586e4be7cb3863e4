package pairing

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strings"
)

var setupCodePattern = regexp.MustCompile(`^\d{3}-\d{2}-\d{3}$`)

// trivialCodes are refused by controllers and so never accepted or generated.
var trivialCodes = map[string]bool{
	"000-00-000": true,
	"111-11-111": true,
	"222-22-222": true,
	"333-33-333": true,
	"444-44-444": true,
	"555-55-555": true,
	"666-66-666": true,
	"777-77-777": true,
	"888-88-888": true,
	"999-99-999": true,
	"123-45-678": true,
	"876-54-321": true,
}

// ValidateSetupCode checks that code has the XXX-XX-XXX form and is not one
// of the trivial codes.
func ValidateSetupCode(code string) error {
	if !setupCodePattern.MatchString(code) {
		return fmt.Errorf("%w: %q is not in XXX-XX-XXX form", ErrInvalidSetupCode, code)
	}
	if trivialCodes[code] {
		return fmt.Errorf("%w: %q is too simple", ErrInvalidSetupCode, code)
	}
	return nil
}

// GenerateSetupCode returns a random, non-trivial setup code.
func GenerateSetupCode() (string, error) {
	limit := big.NewInt(100_000_000)
	for {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("generating setup code: %w", err)
		}
		digits := fmt.Sprintf("%08d", n.Int64())
		code := digits[:3] + "-" + digits[3:5] + "-" + digits[5:]
		if !trivialCodes[code] {
			return code, nil
		}
	}
}

// setupCodeNumber returns the code's eight digits as an integer.
func setupCodeNumber(code string) (uint64, error) {
	if err := ValidateSetupCode(code); err != nil {
		return 0, err
	}
	var n uint64
	for _, r := range strings.ReplaceAll(code, "-", "") {
		n = n*10 + uint64(r-'0')
	}
	return n, nil
}
