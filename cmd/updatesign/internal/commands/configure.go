package commands

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/updatesign/internal/appconfig"
	"github.com/wolfeidau/updatesign/internal/keyfiles"
	"github.com/wolfeidau/updatesign/internal/manifest"
	"github.com/wolfeidau/updatesign/internal/pki"
)

// ConfigureCmd validates a stored certificate and points app.json at it.
type ConfigureCmd struct {
	Input string `help:"Directory containing the key pair and certificate" default:"keys"`
	KeyID string `help:"Key id written to updates.codeSigningMetadata" default:"main"`
}

func (c *ConfigureCmd) Run(ctx context.Context, globals *Globals) error {
	inputDir := globals.resolve(c.Input)

	cert, kp, err := loadIdentity(inputDir)
	if err != nil {
		return fmt.Errorf("failed to load key files: %w", err)
	}

	if err := pki.ValidateSelfSignedCertificate(cert, kp); err != nil {
		return fmt.Errorf("certificate is not valid for code signing: %w", err)
	}

	cfg, err := appconfig.Load(globals.resolve("."))
	if err != nil {
		return fmt.Errorf("failed to load app config: %w", err)
	}

	certPath := certificateReference(c.Input)

	err = cfg.SetCodeSigning(certPath, &appconfig.CodeSigningMetadata{
		KeyID:     c.KeyID,
		Algorithm: manifest.AlgorithmRSAv15SHA256,
	})
	if err != nil {
		return fmt.Errorf("failed to update app config: %w", err)
	}

	if err := cfg.Save(); err != nil {
		return err
	}

	log.Info().
		Str("path", cfg.Path()).
		Str("certificate", certPath).
		Str("keyid", c.KeyID).
		Msg("code signing configured")

	fmt.Printf("Code signing configured for updates (configuration written to %s)\n", appconfig.FileName)

	return nil
}

// certificateReference is the project relative certificate path stored in
// app.json, e.g. "./keys/certificate.pem".
func certificateReference(input string) string {
	if filepath.IsAbs(input) {
		return filepath.Join(input, keyfiles.CertificateFile)
	}
	input = strings.TrimSuffix(filepath.ToSlash(input), "/")
	return "./" + path.Join(input, keyfiles.CertificateFile)
}
