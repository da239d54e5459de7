package pki

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
)

// PEM block types
const (
	pemTypePrivateKey    = "PRIVATE KEY"
	pemTypeRSAPrivateKey = "RSA PRIVATE KEY"
	pemTypePublicKey     = "PUBLIC KEY"
	pemTypeCertificate   = "CERTIFICATE"
)

// KeyPairPEM is the textual form of a KeyPair.
type KeyPairPEM struct {
	PrivateKeyPEM string
	PublicKeyPEM  string
}

// KeyPairToPEM encodes the private key as PKCS#8 and the public key as PKIX.
func KeyPairToPEM(kp *KeyPair) (*KeyPairPEM, error) {
	if kp == nil || kp.PrivateKey == nil || kp.PublicKey == nil {
		return nil, fmt.Errorf("key pair is incomplete")
	}

	privateKeyDER, err := x509.MarshalPKCS8PrivateKey(kp.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal private key: %w", err)
	}

	publicKeyDER, err := x509.MarshalPKIXPublicKey(kp.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal public key: %w", err)
	}

	return &KeyPairPEM{
		PrivateKeyPEM: string(pem.EncodeToMemory(&pem.Block{Type: pemTypePrivateKey, Bytes: privateKeyDER})),
		PublicKeyPEM:  string(pem.EncodeToMemory(&pem.Block{Type: pemTypePublicKey, Bytes: publicKeyDER})),
	}, nil
}

// PEMToKeyPair decodes both halves of a key pair. It does not check that they
// belong together; ValidateSelfSignedCertificate does that.
func PEMToKeyPair(kpPEM KeyPairPEM) (*KeyPair, error) {
	privateKey, err := parsePrivateKeyPEM(kpPEM.PrivateKeyPEM)
	if err != nil {
		return nil, err
	}

	publicKey, err := parsePublicKeyPEM(kpPEM.PublicKeyPEM)
	if err != nil {
		return nil, err
	}

	return &KeyPair{PrivateKey: privateKey, PublicKey: publicKey}, nil
}

// CertificateToPEM armors the DER encoding of cert.
func CertificateToPEM(cert *Certificate) string {
	return string(pem.EncodeToMemory(&pem.Block{
		Type:  pemTypeCertificate,
		Bytes: cert.Raw,
	}))
}

// PEMToCertificate decodes a CERTIFICATE block and parses the X.509 body.
func PEMToCertificate(certPEM string) (*Certificate, error) {
	block, _ := pem.Decode([]byte(certPEM))
	if block == nil {
		return nil, fmt.Errorf("%w: no certificate block found", ErrMalformedPEM)
	}
	if block.Type != pemTypeCertificate {
		return nil, fmt.Errorf("%w: unexpected block type %q", ErrMalformedPEM, block.Type)
	}

	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCertificate, err)
	}

	return newCertificate(cert)
}

func parsePrivateKeyPEM(data string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(data))
	if block == nil {
		return nil, fmt.Errorf("%w: no private key block found", ErrMalformedPEM)
	}

	switch block.Type {
	case pemTypePrivateKey:
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPEM, err)
		}
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("%w: private key is %T, not RSA", ErrMalformedPEM, key)
		}
		return rsaKey, nil
	case pemTypeRSAPrivateKey:
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPEM, err)
		}
		return key, nil
	default:
		return nil, fmt.Errorf("%w: unexpected block type %q", ErrMalformedPEM, block.Type)
	}
}

func parsePublicKeyPEM(data string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(data))
	if block == nil {
		return nil, fmt.Errorf("%w: no public key block found", ErrMalformedPEM)
	}
	if block.Type != pemTypePublicKey {
		return nil, fmt.Errorf("%w: unexpected block type %q", ErrMalformedPEM, block.Type)
	}

	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPEM, err)
	}

	rsaKey, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: public key is %T, not RSA", ErrMalformedPEM, key)
	}

	return rsaKey, nil
}
