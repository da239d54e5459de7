package pki

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"fmt"

	"github.com/mr-tron/base58"
)

// KeyBits is the RSA modulus size used for every generated key pair.
const KeyBits = 2048

// KeyPair is an RSA private key and the public key it is expected to match.
// The two halves are held separately because they are loaded from separate
// files; ValidateSelfSignedCertificate checks that they correspond.
type KeyPair struct {
	PrivateKey *rsa.PrivateKey
	PublicKey  *rsa.PublicKey
}

// GenerateKeyPair creates a fresh RSA key pair for signing update manifests.
func GenerateKeyPair() (*KeyPair, error) {
	privateKey, err := rsa.GenerateKey(rand.Reader, KeyBits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}

	return &KeyPair{
		PrivateKey: privateKey,
		PublicKey:  &privateKey.PublicKey,
	}, nil
}

// Fingerprint returns the Base58-encoded SHA-256 of the PKIX DER encoding of pub.
func Fingerprint(pub *rsa.PublicKey) (string, error) {
	if pub == nil {
		return "", fmt.Errorf("public key is nil")
	}

	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("failed to marshal public key: %w", err)
	}

	hash := sha256.Sum256(der)
	return base58.Encode(hash[:]), nil
}
