package pki

import "errors"

// Decode errors
var (
	// ErrMalformedPEM is returned when PEM armor is missing, of the wrong block
	// type, or wraps a key that cannot be parsed as RSA.
	ErrMalformedPEM = errors.New("malformed PEM")

	// ErrMalformedCertificate is returned when a CERTIFICATE block does not hold a
	// well-formed X.509 certificate with an RSA public key.
	ErrMalformedCertificate = errors.New("malformed certificate")
)

// Validation errors, in the order ValidateSelfSignedCertificate checks them.
var (
	ErrKeyPairMismatch              = errors.New("keyPair key mismatch")
	ErrCertificateExpired           = errors.New("certificate validity expired")
	ErrMissingDigitalSignatureUsage = errors.New("X509v3 Key Usage: Digital Signature not present")
	ErrMissingCodeSigningUsage      = errors.New("X509v3 Extended Key Usage: Code Signing not present")
	ErrCertificatePublicKeyMismatch = errors.New("certificate public key does not match key pair public key")
)

// ErrEmptyCommonName is returned when asked to build a certificate without a subject.
var ErrEmptyCommonName = errors.New("common name is required")
