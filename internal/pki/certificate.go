package pki

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// Name is a distinguished name together with a hash of its DER encoding, so
// that subject and issuer can be compared without walking attributes.
type Name struct {
	pkix.Name
	Hash string
}

func newName(raw []byte, name pkix.Name) Name {
	sum := sha256.Sum256(raw)
	return Name{Name: name, Hash: hex.EncodeToString(sum[:])}
}

// Certificate is a parsed self-signed code signing certificate.
//
// Extensions is the decoded view the validator inspects; Raw is the DER the
// certificate was parsed from and is what gets PEM encoded.
type Certificate struct {
	Subject            Name
	Issuer             Name
	SerialNumber       *big.Int
	NotBefore          time.Time
	NotAfter           time.Time
	PublicKey          *rsa.PublicKey
	Extensions         []Extension
	SignatureAlgorithm x509.SignatureAlgorithm
	Signature          []byte
	Raw                []byte
}

// newCertificate converts a parsed X.509 certificate. Only RSA keys are accepted.
func newCertificate(cert *x509.Certificate) (*Certificate, error) {
	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: public key is %T, not RSA", ErrMalformedCertificate, cert.PublicKey)
	}

	return &Certificate{
		Subject:            newName(cert.RawSubject, cert.Subject),
		Issuer:             newName(cert.RawIssuer, cert.Issuer),
		SerialNumber:       cert.SerialNumber,
		NotBefore:          cert.NotBefore,
		NotAfter:           cert.NotAfter,
		PublicKey:          pub,
		Extensions:         extensionsFromX509(cert),
		SignatureAlgorithm: cert.SignatureAlgorithm,
		Signature:          cert.Signature,
		Raw:                cert.Raw,
	}, nil
}

// GetExtension returns the first extension with the given OID.
func (c *Certificate) GetExtension(oid asn1.ObjectIdentifier) (Extension, error) {
	for _, ext := range c.Extensions {
		if ext.OID().Equal(oid) {
			return ext, nil
		}
	}
	return nil, ErrExtensionNotFound
}

// IsSelfSigned reports whether issuer and subject are the same name.
func (c *Certificate) IsSelfSigned() bool {
	return c.Issuer.Hash == c.Subject.Hash
}

// SerialHex returns the serial number as lower-case hex.
func (c *Certificate) SerialHex() string {
	return c.SerialNumber.Text(16)
}

// codeSigningExtensions is the fixed extension policy of every certificate
// this package issues.
func codeSigningExtensions() []Extension {
	return []Extension{
		KeyUsage{Critical: true, DigitalSignature: true},
		ExtKeyUsage{Critical: true, CodeSigning: true},
	}
}

// BuildCodeSigningCertificate creates a self-signed certificate for commonName,
// valid from notBefore to notAfter, carrying exactly two critical extensions:
// Key Usage with only digitalSignature and Extended Key Usage with only
// codeSigning. The certificate is signed with SHA256WithRSA by kp.PrivateKey
// and embeds kp.PublicKey.
func BuildCodeSigningCertificate(kp *KeyPair, commonName string, notBefore, notAfter time.Time) (*Certificate, error) {
	return issue(kp, commonName, notBefore, notAfter, codeSigningExtensions())
}

// issue signs a self-signed certificate with the given extensions.
func issue(kp *KeyPair, commonName string, notBefore, notAfter time.Time, exts []Extension) (*Certificate, error) {
	if strings.TrimSpace(commonName) == "" {
		return nil, ErrEmptyCommonName
	}

	if kp == nil || kp.PrivateKey == nil || kp.PublicKey == nil {
		return nil, fmt.Errorf("%w: key pair is incomplete", ErrKeyPairMismatch)
	}

	serialNumber, err := newSerialNumber()
	if err != nil {
		return nil, err
	}

	// Go's x509 package would emit its own Extended Key Usage as non-critical,
	// so both policy extensions are supplied pre-encoded. CreateCertificate
	// skips any built-in extension whose OID appears in ExtraExtensions.
	extraExtensions, err := marshalExtensions(exts)
	if err != nil {
		return nil, err
	}

	template := &x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			CommonName: commonName,
		},
		NotBefore:          notBefore,
		NotAfter:           notAfter,
		SignatureAlgorithm: x509.SHA256WithRSA,
		ExtraExtensions:    extraExtensions,
	}

	// Self-sign: the template is its own parent
	der, err := x509.CreateCertificate(rand.Reader, template, template, kp.PublicKey, kp.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create certificate: %w", err)
	}

	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}

	return newCertificate(cert)
}
