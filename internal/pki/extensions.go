package pki

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
	"slices"
)

// Extension is one X.509v3 extension of a certificate. The set of
// implementations is closed: KeyUsage, ExtKeyUsage and OtherExtension, as
// values or pointers. Parsed certificates always hold values.
type Extension interface {
	// OID returns the extension identifier.
	OID() asn1.ObjectIdentifier
	// Name returns "keyUsage", "extKeyUsage" or the dotted OID.
	Name() string
	// IsCritical reports whether the extension is marked critical.
	IsCritical() bool

	marshal() (pkix.Extension, error)
}

// KeyUsage is the X.509v3 Key Usage extension (2.5.29.15).
type KeyUsage struct {
	Critical         bool
	DigitalSignature bool
	NonRepudiation   bool
	KeyEncipherment  bool
	DataEncipherment bool
	KeyCertSign      bool
}

// ExtKeyUsage is the X.509v3 Extended Key Usage extension (2.5.29.37).
type ExtKeyUsage struct {
	Critical        bool
	CodeSigning     bool
	ServerAuth      bool
	ClientAuth      bool
	EmailProtection bool
	TimeStamping    bool
}

// OtherExtension carries any extension the policy does not inspect.
type OtherExtension struct {
	ID       asn1.ObjectIdentifier
	Critical bool
	Value    []byte
}

func (KeyUsage) OID() asn1.ObjectIdentifier { return OIDKeyUsage }
func (KeyUsage) Name() string               { return extensionName(OIDKeyUsage) }
func (k KeyUsage) IsCritical() bool         { return k.Critical }

func (ExtKeyUsage) OID() asn1.ObjectIdentifier { return OIDExtKeyUsage }
func (ExtKeyUsage) Name() string               { return extensionName(OIDExtKeyUsage) }
func (e ExtKeyUsage) IsCritical() bool         { return e.Critical }

func (o OtherExtension) OID() asn1.ObjectIdentifier { return o.ID }
func (o OtherExtension) Name() string               { return extensionName(o.ID) }
func (o OtherExtension) IsCritical() bool           { return o.Critical }

// bits returns the usage flags in x509 bit order (digitalSignature is bit 0).
func (k KeyUsage) bits() x509.KeyUsage {
	var ku x509.KeyUsage
	if k.DigitalSignature {
		ku |= x509.KeyUsageDigitalSignature
	}
	if k.NonRepudiation {
		ku |= x509.KeyUsageContentCommitment
	}
	if k.KeyEncipherment {
		ku |= x509.KeyUsageKeyEncipherment
	}
	if k.DataEncipherment {
		ku |= x509.KeyUsageDataEncipherment
	}
	if k.KeyCertSign {
		ku |= x509.KeyUsageCertSign
	}
	return ku
}

func (k KeyUsage) marshal() (pkix.Extension, error) {
	ku := k.bits()

	// DER BIT STRING: bit 0 is the most significant bit of the first octet and
	// trailing zero bits are dropped.
	var octet byte
	bitLength := 0
	for i := 0; i < 8; i++ {
		if ku&(1<<uint(i)) != 0 {
			octet |= 0x80 >> uint(i)
			bitLength = i + 1
		}
	}

	bs := asn1.BitString{BitLength: bitLength}
	if bitLength > 0 {
		bs.Bytes = []byte{octet}
	}

	value, err := asn1.Marshal(bs)
	if err != nil {
		return pkix.Extension{}, fmt.Errorf("failed to marshal key usage: %w", err)
	}

	return pkix.Extension{Id: OIDKeyUsage, Critical: k.Critical, Value: value}, nil
}

func (e ExtKeyUsage) marshal() (pkix.Extension, error) {
	purposes := []asn1.ObjectIdentifier{}
	if e.ServerAuth {
		purposes = append(purposes, oidExtKeyUsageServerAuth)
	}
	if e.ClientAuth {
		purposes = append(purposes, oidExtKeyUsageClientAuth)
	}
	if e.CodeSigning {
		purposes = append(purposes, oidExtKeyUsageCodeSigning)
	}
	if e.EmailProtection {
		purposes = append(purposes, oidExtKeyUsageEmailProtection)
	}
	if e.TimeStamping {
		purposes = append(purposes, oidExtKeyUsageTimeStamping)
	}

	value, err := asn1.Marshal(purposes)
	if err != nil {
		return pkix.Extension{}, fmt.Errorf("failed to marshal extended key usage: %w", err)
	}

	return pkix.Extension{Id: OIDExtKeyUsage, Critical: e.Critical, Value: value}, nil
}

func (o OtherExtension) marshal() (pkix.Extension, error) {
	return pkix.Extension{Id: o.ID, Critical: o.Critical, Value: o.Value}, nil
}

// extensionsFromX509 lifts the parsed extensions of cert into the union, in
// certificate order.
func extensionsFromX509(cert *x509.Certificate) []Extension {
	exts := make([]Extension, 0, len(cert.Extensions))

	for _, ext := range cert.Extensions {
		switch {
		case ext.Id.Equal(OIDKeyUsage):
			exts = append(exts, KeyUsage{
				Critical:         ext.Critical,
				DigitalSignature: cert.KeyUsage&x509.KeyUsageDigitalSignature != 0,
				NonRepudiation:   cert.KeyUsage&x509.KeyUsageContentCommitment != 0,
				KeyEncipherment:  cert.KeyUsage&x509.KeyUsageKeyEncipherment != 0,
				DataEncipherment: cert.KeyUsage&x509.KeyUsageDataEncipherment != 0,
				KeyCertSign:      cert.KeyUsage&x509.KeyUsageCertSign != 0,
			})
		case ext.Id.Equal(OIDExtKeyUsage):
			exts = append(exts, ExtKeyUsage{
				Critical:        ext.Critical,
				CodeSigning:     slices.Contains(cert.ExtKeyUsage, x509.ExtKeyUsageCodeSigning),
				ServerAuth:      slices.Contains(cert.ExtKeyUsage, x509.ExtKeyUsageServerAuth),
				ClientAuth:      slices.Contains(cert.ExtKeyUsage, x509.ExtKeyUsageClientAuth),
				EmailProtection: slices.Contains(cert.ExtKeyUsage, x509.ExtKeyUsageEmailProtection),
				TimeStamping:    slices.Contains(cert.ExtKeyUsage, x509.ExtKeyUsageTimeStamping),
			})
		default:
			exts = append(exts, OtherExtension{
				ID:       ext.Id,
				Critical: ext.Critical,
				Value:    ext.Value,
			})
		}
	}

	return exts
}

// marshalExtensions encodes the union back into pkix form for signing.
func marshalExtensions(exts []Extension) ([]pkix.Extension, error) {
	out := make([]pkix.Extension, 0, len(exts))
	for _, ext := range exts {
		raw, err := ext.marshal()
		if err != nil {
			return nil, err
		}
		out = append(out, raw)
	}
	return out, nil
}
