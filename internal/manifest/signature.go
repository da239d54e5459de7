// Package manifest signs update manifests with a code signing key pair and
// verifies them against a code signing certificate.
//
// Signatures travel as a structured field dictionary, for example
//
//	sig="3q2+7w==", keyid="main", alg="rsa-v1_5-sha256"
package manifest

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/dunglas/httpsfv"
	"github.com/wolfeidau/updatesign/internal/pki"
)

const (
	// AlgorithmRSAv15SHA256 is the only supported signing algorithm.
	AlgorithmRSAv15SHA256 = "rsa-v1_5-sha256"

	// DefaultKeyID is used when the header carries no keyid.
	DefaultKeyID = "main"
)

// Sentinel errors
var (
	ErrInvalidSignatureHeader = errors.New("invalid signature header")
	ErrUnsupportedAlgorithm   = errors.New("unsupported signature algorithm")
	ErrKeyIDMismatch          = errors.New("signature keyid does not match")
	ErrSignatureMismatch      = errors.New("manifest signature does not verify")
)

// Signature is a decoded signature header.
type Signature struct {
	Sig       []byte
	KeyID     string
	Algorithm string
}

// Header serializes the signature as a structured field dictionary.
func (s *Signature) Header() (string, error) {
	dict := httpsfv.NewDictionary()
	dict.Add("sig", httpsfv.NewItem(base64.StdEncoding.EncodeToString(s.Sig)))
	dict.Add("keyid", httpsfv.NewItem(s.KeyID))
	dict.Add("alg", httpsfv.NewItem(s.Algorithm))

	header, err := httpsfv.Marshal(dict)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSignatureHeader, err)
	}

	return header, nil
}

// Sign signs body with the private key of kp and returns the header value.
func Sign(body []byte, kp *pki.KeyPair, keyID string) (string, error) {
	if kp == nil || kp.PrivateKey == nil {
		return "", fmt.Errorf("private key is required")
	}
	if keyID == "" {
		keyID = DefaultKeyID
	}

	digest := sha256.Sum256(body)
	sig, err := rsa.SignPKCS1v15(rand.Reader, kp.PrivateKey, crypto.SHA256, digest[:])
	if err != nil {
		return "", fmt.Errorf("failed to sign manifest: %w", err)
	}

	s := &Signature{Sig: sig, KeyID: keyID, Algorithm: AlgorithmRSAv15SHA256}
	return s.Header()
}

// ParseSignature decodes a header value. A missing keyid or alg takes its
// default; sig is required. sig may be a base64 string or a byte sequence,
// keyid and alg strings or tokens. Member parameters and unknown members are
// ignored.
func ParseSignature(header string) (*Signature, error) {
	dict, err := httpsfv.UnmarshalDictionary([]string{header})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignatureHeader, err)
	}

	member, ok := dict.Get("sig")
	if !ok {
		return nil, fmt.Errorf("%w: missing sig", ErrInvalidSignatureHeader)
	}

	sig, err := sigValue(member)
	if err != nil {
		return nil, err
	}

	s := &Signature{
		Sig:       sig,
		KeyID:     DefaultKeyID,
		Algorithm: AlgorithmRSAv15SHA256,
	}

	if member, ok := dict.Get("keyid"); ok {
		if s.KeyID, err = stringValue("keyid", member); err != nil {
			return nil, err
		}
	}
	if member, ok := dict.Get("alg"); ok {
		if s.Algorithm, err = stringValue("alg", member); err != nil {
			return nil, err
		}
	}

	if s.Algorithm != AlgorithmRSAv15SHA256 {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, s.Algorithm)
	}

	return s, nil
}

// Verify checks that header is a valid signature of body by the key in cert,
// using the current time for the certificate policy. See VerifyAt.
func Verify(body []byte, header string, cert *pki.Certificate, expectedKeyID string) error {
	return VerifyAt(body, header, cert, expectedKeyID, time.Now())
}

// VerifyAt checks that header is a valid signature of body by the key in cert.
// When expectedKeyID is not empty the header keyid must match it. cert must be
// within its validity window at now and carry the code signing usages.
func VerifyAt(body []byte, header string, cert *pki.Certificate, expectedKeyID string, now time.Time) error {
	s, err := ParseSignature(header)
	if err != nil {
		return err
	}

	if expectedKeyID != "" && s.KeyID != expectedKeyID {
		return fmt.Errorf("%w: got %q, want %q", ErrKeyIDMismatch, s.KeyID, expectedKeyID)
	}

	if cert == nil || cert.PublicKey == nil {
		return fmt.Errorf("%w: certificate has no public key", pki.ErrMalformedCertificate)
	}

	if err := pki.ValidateCertificatePolicyAt(cert, now); err != nil {
		return err
	}

	digest := sha256.Sum256(body)
	if err := rsa.VerifyPKCS1v15(cert.PublicKey, crypto.SHA256, digest[:], s.Sig); err != nil {
		return ErrSignatureMismatch
	}

	return nil
}

func sigValue(member httpsfv.Member) ([]byte, error) {
	item, ok := member.(httpsfv.Item)
	if !ok {
		return nil, fmt.Errorf("%w: sig is an inner list", ErrInvalidSignatureHeader)
	}

	switch v := item.Value.(type) {
	case []byte:
		if len(v) == 0 {
			return nil, fmt.Errorf("%w: sig is empty", ErrInvalidSignatureHeader)
		}
		return v, nil
	case string:
		if v == "" {
			return nil, fmt.Errorf("%w: sig is empty", ErrInvalidSignatureHeader)
		}
		sig, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("%w: sig is not base64: %v", ErrInvalidSignatureHeader, err)
		}
		return sig, nil
	default:
		return nil, fmt.Errorf("%w: sig is %T", ErrInvalidSignatureHeader, item.Value)
	}
}

func stringValue(name string, member httpsfv.Member) (string, error) {
	item, ok := member.(httpsfv.Item)
	if !ok {
		return "", fmt.Errorf("%w: %s is an inner list", ErrInvalidSignatureHeader, name)
	}

	switch v := item.Value.(type) {
	case string:
		return v, nil
	case httpsfv.Token:
		return string(v), nil
	default:
		return "", fmt.Errorf("%w: %s is %T", ErrInvalidSignatureHeader, name, item.Value)
	}
}
