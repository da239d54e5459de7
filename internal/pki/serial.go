package pki

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"
)

// serialNumberBytes is the amount of randomness in a generated serial number.
const serialNumberBytes = 16

// ToPositiveHex clears the sign bit of a hex encoded integer so that it
// encodes as a non-negative DER INTEGER, as RFC 5280 §4.1.2.2 requires of
// serial numbers. A most significant nibble of 8-f is reduced by 8, the rest
// of the string is kept as is. Any other input is returned unchanged.
func ToPositiveHex(hexString string) string {
	if hexString == "" {
		return hexString
	}

	msn, err := strconv.ParseUint(hexString[:1], 16, 8)
	if err != nil || msn < 8 {
		return hexString
	}

	return strconv.FormatUint(msn-8, 16) + hexString[1:]
}

// newSerialNumber returns a random positive serial number.
func newSerialNumber() (*big.Int, error) {
	buf := make([]byte, serialNumberBytes)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("failed to generate serial number: %w", err)
	}

	serial, ok := new(big.Int).SetString(ToPositiveHex(hex.EncodeToString(buf)), 16)
	if !ok {
		return nil, fmt.Errorf("failed to parse serial number")
	}

	return serial, nil
}
