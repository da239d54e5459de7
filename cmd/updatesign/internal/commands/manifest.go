package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/updatesign/internal/keyfiles"
	"github.com/wolfeidau/updatesign/internal/manifest"
	"github.com/wolfeidau/updatesign/internal/pki"
)

// SignManifestCmd signs a manifest body with the stored private key.
type SignManifestCmd struct {
	Input    string `help:"Directory containing the key pair and certificate" default:"keys"`
	KeyID    string `help:"Key id placed in the signature" default:"main"`
	Output   string `help:"Write the signature header to this file instead of stdout"`
	Manifest string `arg:"" help:"Manifest file to sign"`
}

func (c *SignManifestCmd) Run(ctx context.Context, globals *Globals) error {
	cert, kp, err := loadIdentity(globals.resolve(c.Input))
	if err != nil {
		return fmt.Errorf("failed to load key files: %w", err)
	}

	// Refuse to sign with a certificate clients would reject
	if err := pki.ValidateSelfSignedCertificate(cert, kp); err != nil {
		return fmt.Errorf("certificate is not valid for code signing: %w", err)
	}

	manifestPath := globals.resolve(c.Manifest)

	body, err := os.ReadFile(manifestPath)
	if err != nil {
		return fmt.Errorf("failed to read manifest: %w", err)
	}

	header, err := manifest.Sign(body, kp, c.KeyID)
	if err != nil {
		return fmt.Errorf("failed to sign manifest: %w", err)
	}

	log.Info().
		Str("manifest", manifestPath).
		Str("keyid", c.KeyID).
		Str("serial_number", cert.SerialHex()).
		Msg("manifest signed")

	if c.Output != "" {
		// #nosec G306 - signatures are public
		if err := os.WriteFile(globals.resolve(c.Output), []byte(header+"\n"), 0644); err != nil {
			return fmt.Errorf("failed to write signature: %w", err)
		}
		return nil
	}

	fmt.Println(header)

	return nil
}

// VerifyManifestCmd checks a manifest signature against the stored certificate.
type VerifyManifestCmd struct {
	Input         string `help:"Directory containing the certificate" default:"keys"`
	KeyID         string `help:"Expected key id" default:"main"`
	Signature     string `help:"Signature header value" xor:"signature" required:""`
	SignatureFile string `help:"File containing the signature header value" xor:"signature" required:""`
	Manifest      string `arg:"" help:"Manifest file to verify"`
}

func (c *VerifyManifestCmd) Run(ctx context.Context, globals *Globals) error {
	certificatePEM, err := keyfiles.LoadCertificate(globals.resolve(c.Input))
	if err != nil {
		return fmt.Errorf("failed to load certificate: %w", err)
	}

	cert, err := pki.PEMToCertificate(certificatePEM)
	if err != nil {
		return fmt.Errorf("failed to decode certificate: %w", err)
	}

	header := c.Signature
	if c.SignatureFile != "" {
		data, err := os.ReadFile(globals.resolve(c.SignatureFile))
		if err != nil {
			return fmt.Errorf("failed to read signature: %w", err)
		}
		header = strings.TrimSpace(string(data))
	}

	manifestPath := globals.resolve(c.Manifest)

	body, err := os.ReadFile(manifestPath)
	if err != nil {
		return fmt.Errorf("failed to read manifest: %w", err)
	}

	if err := manifest.Verify(body, header, cert, c.KeyID); err != nil {
		return fmt.Errorf("manifest verification failed: %w", err)
	}

	log.Info().
		Str("manifest", manifestPath).
		Str("keyid", c.KeyID).
		Msg("manifest signature verified")

	fmt.Println("Signature OK")

	return nil
}
