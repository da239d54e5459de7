package pki

import (
	"crypto/x509"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTestCertificate(t *testing.T, kp *KeyPair, notBefore, notAfter time.Time) *Certificate {
	t.Helper()

	cert, err := BuildCodeSigningCertificate(kp, "Test", notBefore, notAfter)
	require.NoError(t, err)
	return cert
}

func TestBuildCodeSigningCertificate(t *testing.T) {
	kp := newTestKeyPair(t)
	notBefore := time.Now().UTC().Truncate(time.Second)
	notAfter := notBefore.AddDate(1, 0, 0)

	cert := buildTestCertificate(t, kp, notBefore, notAfter)

	t.Run("is self-signed", func(t *testing.T) {
		assert.Equal(t, cert.Subject.Hash, cert.Issuer.Hash)
		assert.True(t, cert.IsSelfSigned())
		assert.Equal(t, "Test", cert.Subject.CommonName)
		assert.Equal(t, "Test", cert.Issuer.CommonName)
	})

	t.Run("keeps validity verbatim", func(t *testing.T) {
		assert.True(t, notBefore.Equal(cert.NotBefore), "notBefore %s != %s", notBefore, cert.NotBefore)
		assert.True(t, notAfter.Equal(cert.NotAfter), "notAfter %s != %s", notAfter, cert.NotAfter)
	})

	t.Run("has a positive serial number", func(t *testing.T) {
		require.NotNil(t, cert.SerialNumber)
		assert.Equal(t, 1, cert.SerialNumber.Sign())
		assert.NotEmpty(t, cert.SerialHex())
	})

	t.Run("embeds the key pair public key", func(t *testing.T) {
		assert.True(t, cert.PublicKey.Equal(kp.PublicKey))
	})

	t.Run("is signed with SHA256WithRSA", func(t *testing.T) {
		assert.Equal(t, x509.SHA256WithRSA, cert.SignatureAlgorithm)

		parsed, err := x509.ParseCertificate(cert.Raw)
		require.NoError(t, err)
		require.NoError(t, parsed.CheckSignature(parsed.SignatureAlgorithm, parsed.RawTBSCertificate, parsed.Signature))
	})

	t.Run("carries exactly the code signing extensions", func(t *testing.T) {
		require.Len(t, cert.Extensions, 2)

		ext, err := cert.GetExtension(OIDKeyUsage)
		require.NoError(t, err)
		assert.Equal(t, "keyUsage", ext.Name())
		assert.Equal(t, "2.5.29.15", ext.OID().String())
		assert.Equal(t, KeyUsage{
			Critical:         true,
			DigitalSignature: true,
			NonRepudiation:   false,
			KeyEncipherment:  false,
			DataEncipherment: false,
			KeyCertSign:      false,
		}, ext)

		ext, err = cert.GetExtension(OIDExtKeyUsage)
		require.NoError(t, err)
		assert.Equal(t, "extKeyUsage", ext.Name())
		assert.Equal(t, "2.5.29.37", ext.OID().String())
		assert.Equal(t, ExtKeyUsage{
			Critical:        true,
			CodeSigning:     true,
			ServerAuth:      false,
			ClientAuth:      false,
			EmailProtection: false,
			TimeStamping:    false,
		}, ext)
	})

	t.Run("x509 sees the same policy", func(t *testing.T) {
		parsed, err := x509.ParseCertificate(cert.Raw)
		require.NoError(t, err)

		assert.Equal(t, x509.KeyUsageDigitalSignature, parsed.KeyUsage)
		assert.Equal(t, []x509.ExtKeyUsage{x509.ExtKeyUsageCodeSigning}, parsed.ExtKeyUsage)
		assert.False(t, parsed.IsCA)
		assert.Empty(t, parsed.UnhandledCriticalExtensions)

		for _, ext := range parsed.Extensions {
			assert.True(t, ext.Critical, "extension %s should be critical", ext.Id)
		}
	})
}

func TestBuildCodeSigningCertificate_UniqueSerials(t *testing.T) {
	kp := newTestKeyPair(t)
	now := time.Now()

	a := buildTestCertificate(t, kp, now, now.Add(time.Hour))
	b := buildTestCertificate(t, kp, now, now.Add(time.Hour))

	require.NotEqual(t, a.SerialHex(), b.SerialHex())
}

func TestBuildCodeSigningCertificate_Errors(t *testing.T) {
	kp := newTestKeyPair(t)
	now := time.Now()

	t.Run("empty common name", func(t *testing.T) {
		_, err := BuildCodeSigningCertificate(kp, "", now, now.Add(time.Hour))
		require.ErrorIs(t, err, ErrEmptyCommonName)
	})

	t.Run("blank common name", func(t *testing.T) {
		_, err := BuildCodeSigningCertificate(kp, "   ", now, now.Add(time.Hour))
		require.ErrorIs(t, err, ErrEmptyCommonName)
	})

	t.Run("nil key pair", func(t *testing.T) {
		_, err := BuildCodeSigningCertificate(nil, "Test", now, now.Add(time.Hour))
		require.ErrorIs(t, err, ErrKeyPairMismatch)
	})

	t.Run("missing private key", func(t *testing.T) {
		_, err := BuildCodeSigningCertificate(&KeyPair{PublicKey: kp.PublicKey}, "Test", now, now.Add(time.Hour))
		require.ErrorIs(t, err, ErrKeyPairMismatch)
	})
}

func TestCertificate_GetExtension(t *testing.T) {
	t.Run("missing extension returns error", func(t *testing.T) {
		cert := &Certificate{}

		_, err := cert.GetExtension(OIDKeyUsage)
		require.Equal(t, ErrExtensionNotFound, err)
	})

	t.Run("finds other extensions by OID", func(t *testing.T) {
		other := OtherExtension{ID: []int{1, 3, 6, 1, 4, 1, 99999, 1, 1}, Value: []byte{0x05, 0x00}}
		cert := &Certificate{Extensions: []Extension{KeyUsage{}, other}}

		ext, err := cert.GetExtension(other.ID)
		require.NoError(t, err)
		require.Equal(t, other, ext)
		require.Equal(t, "1.3.6.1.4.1.99999.1.1", ext.Name())
	})
}
