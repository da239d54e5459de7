package pki

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"fmt"
	"time"
)

// ValidateSelfSignedCertificate checks cert against the code signing policy
// and against kp, using the current time. See ValidateSelfSignedCertificateAt.
func ValidateSelfSignedCertificate(cert *Certificate, kp *KeyPair) error {
	return ValidateSelfSignedCertificateAt(cert, kp, time.Now())
}

// ValidateSelfSignedCertificateAt returns the first failed check, in order:
//
//  1. kp.PublicKey verifies a signature made by kp.PrivateKey (ErrKeyPairMismatch)
//  2. now lies within [NotBefore, NotAfter] (ErrCertificateExpired)
//  3. Key Usage is present with digitalSignature (ErrMissingDigitalSignatureUsage)
//  4. Extended Key Usage is present with codeSigning (ErrMissingCodeSigningUsage)
//  5. the certificate public key equals kp.PublicKey (ErrCertificatePublicKeyMismatch)
//
// It does not verify the certificate signature or any chain.
func ValidateSelfSignedCertificateAt(cert *Certificate, kp *KeyPair, now time.Time) error {
	if err := verifyKeyPair(kp); err != nil {
		return err
	}

	if err := ValidateCertificatePolicyAt(cert, now); err != nil {
		return err
	}

	if cert.PublicKey == nil || !cert.PublicKey.Equal(kp.PublicKey) {
		return ErrCertificatePublicKeyMismatch
	}

	return nil
}

// ValidateCertificatePolicyAt checks the parts of the code signing policy that
// need no private key: the validity window at now, Key Usage digitalSignature
// and Extended Key Usage codeSigning. Verifiers holding only the certificate
// use it before trusting a signature.
func ValidateCertificatePolicyAt(cert *Certificate, now time.Time) error {
	if cert == nil {
		return fmt.Errorf("%w: certificate is nil", ErrMalformedCertificate)
	}

	if now.Before(cert.NotBefore) {
		return fmt.Errorf("%w: not valid before %s", ErrCertificateExpired, cert.NotBefore.Format(time.RFC3339))
	}
	if now.After(cert.NotAfter) {
		return fmt.Errorf("%w: not valid after %s", ErrCertificateExpired, cert.NotAfter.Format(time.RFC3339))
	}

	if !hasDigitalSignatureUsage(cert.Extensions) {
		return ErrMissingDigitalSignatureUsage
	}

	if !hasCodeSigningUsage(cert.Extensions) {
		return ErrMissingCodeSigningUsage
	}

	return nil
}

// verifyKeyPair signs a random nonce with the private key and verifies it with
// the public key.
func verifyKeyPair(kp *KeyPair) error {
	if kp == nil || kp.PrivateKey == nil || kp.PublicKey == nil {
		return fmt.Errorf("%w: key pair is incomplete", ErrKeyPairMismatch)
	}

	nonce := make([]byte, 32)
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}
	digest := sha256.Sum256(nonce)

	signature, err := rsa.SignPKCS1v15(rand.Reader, kp.PrivateKey, crypto.SHA256, digest[:])
	if err != nil {
		return fmt.Errorf("%w: %v", ErrKeyPairMismatch, err)
	}

	if err := rsa.VerifyPKCS1v15(kp.PublicKey, crypto.SHA256, digest[:], signature); err != nil {
		return ErrKeyPairMismatch
	}

	return nil
}

// The first extension of each kind decides. Pointer variants count the same
// as values; a nil pointer carries no usages.
func hasDigitalSignatureUsage(exts []Extension) bool {
	for _, ext := range exts {
		switch ku := ext.(type) {
		case KeyUsage:
			return ku.DigitalSignature
		case *KeyUsage:
			return ku != nil && ku.DigitalSignature
		}
	}
	return false
}

func hasCodeSigningUsage(exts []Extension) bool {
	for _, ext := range exts {
		switch eku := ext.(type) {
		case ExtKeyUsage:
			return eku.CodeSigning
		case *ExtKeyUsage:
			return eku != nil && eku.CodeSigning
		}
	}
	return false
}
