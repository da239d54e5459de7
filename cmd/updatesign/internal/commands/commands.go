package commands

import (
	"fmt"
	"path/filepath"

	"github.com/wolfeidau/updatesign/internal/keyfiles"
	"github.com/wolfeidau/updatesign/internal/pki"
)

type Globals struct {
	Debug       bool
	Version     string
	ProjectRoot string
}

// resolve interprets path relative to the project root.
func (g *Globals) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	root := g.ProjectRoot
	if root == "" {
		root = "."
	}
	return filepath.Join(root, path)
}

// loadIdentity reads and decodes the certificate and key pair stored in dir.
func loadIdentity(dir string) (*pki.Certificate, *pki.KeyPair, error) {
	bundle, err := keyfiles.Load(dir)
	if err != nil {
		return nil, nil, err
	}

	cert, err := pki.PEMToCertificate(bundle.CertificatePEM)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode certificate: %w", err)
	}

	kp, err := pki.PEMToKeyPair(pki.KeyPairPEM{
		PrivateKeyPEM: bundle.PrivateKeyPEM,
		PublicKeyPEM:  bundle.PublicKeyPEM,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode key pair: %w", err)
	}

	return cert, kp, nil
}
