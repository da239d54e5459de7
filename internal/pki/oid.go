package pki

import (
	"encoding/asn1"
	"errors"
)

var (
	// OIDKeyUsage identifies the X.509v3 Key Usage extension (RFC 5280 §4.2.1.3).
	OIDKeyUsage = asn1.ObjectIdentifier{2, 5, 29, 15}

	// OIDExtKeyUsage identifies the X.509v3 Extended Key Usage extension (RFC 5280 §4.2.1.12).
	OIDExtKeyUsage = asn1.ObjectIdentifier{2, 5, 29, 37}
)

// Extended key usage purposes, RFC 5280 §4.2.1.12.
var (
	oidExtKeyUsageServerAuth      = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 3, 1}
	oidExtKeyUsageClientAuth      = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 3, 2}
	oidExtKeyUsageCodeSigning     = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 3, 3}
	oidExtKeyUsageEmailProtection = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 3, 4}
	oidExtKeyUsageTimeStamping    = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 3, 8}
)

// ErrExtensionNotFound is returned when a certificate does not carry the requested extension
var ErrExtensionNotFound = errors.New("extension not found")

// extensionName maps the OIDs we understand to the short names used in
// messages and inspect output. Unknown OIDs fall back to dotted form.
func extensionName(oid asn1.ObjectIdentifier) string {
	switch {
	case oid.Equal(OIDKeyUsage):
		return "keyUsage"
	case oid.Equal(OIDExtKeyUsage):
		return "extKeyUsage"
	default:
		return oid.String()
	}
}
