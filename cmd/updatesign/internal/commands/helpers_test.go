package commands

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/updatesign/internal/keyfiles"
	"github.com/wolfeidau/updatesign/internal/pki"
)

// writeIdentity stores a freshly issued certificate and key pair in dir.
func writeIdentity(t *testing.T, dir string, notBefore, notAfter time.Time) *pki.Certificate {
	t.Helper()

	kp, err := pki.GenerateKeyPair()
	require.NoError(t, err)

	cert, err := pki.BuildCodeSigningCertificate(kp, "hello", notBefore, notAfter)
	require.NoError(t, err)

	kpPEM, err := pki.KeyPairToPEM(kp)
	require.NoError(t, err)

	err = keyfiles.Save(dir, &keyfiles.Bundle{
		CertificatePEM: pki.CertificateToPEM(cert),
		PrivateKeyPEM:  kpPEM.PrivateKeyPEM,
		PublicKeyPEM:   kpPEM.PublicKeyPEM,
	}, false)
	require.NoError(t, err)

	return cert
}

func writeValidIdentity(t *testing.T, projectRoot string) *pki.Certificate {
	t.Helper()
	now := time.Now()
	return writeIdentity(t, filepath.Join(projectRoot, "keys"), now.Add(-time.Hour), now.AddDate(1, 0, 0))
}
