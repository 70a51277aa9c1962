package chain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrBadAddress is returned by NormalizeAddress for strings that are not
// valid account addresses
var ErrBadAddress = errors.New("malformed address")

const addressLength = 64 // hex digits

// NormalizeAddress converts an account address to canonical form: lowercase,
// 0x-prefixed, zero-padded to 64 hex digits. Addresses appear on the wire in
// both short (0x1) and long forms; every stored row uses the canonical form
// so that keys compare equal.
func NormalizeAddress(s string) (string, error) {
	hex := strings.TrimPrefix(strings.ToLower(s), "0x")
	if len(hex) == 0 || len(hex) > addressLength {
		return "", fmt.Errorf("%w: %q", ErrBadAddress, s)
	}
	for _, c := range hex {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return "", fmt.Errorf("%w: %q", ErrBadAddress, s)
		}
	}
	return "0x" + strings.Repeat("0", addressLength-len(hex)) + hex, nil
}
