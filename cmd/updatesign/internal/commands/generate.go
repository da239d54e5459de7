package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/updatesign/internal/keyfiles"
	"github.com/wolfeidau/updatesign/internal/pki"
	"gopkg.in/yaml.v3"
)

// CertificateProfile is the optional config file accepted by generate.
type CertificateProfile struct {
	CommonName    string `yaml:"commonName" json:"commonName"`
	ValidityYears int    `yaml:"validityYears" json:"validityYears"`
	Output        string `yaml:"output" json:"output"`
}

// GenerateCmd creates a key pair and a self-signed code signing certificate.
type GenerateCmd struct {
	Output        string `help:"Directory to write the key pair and certificate to" default:"keys"`
	CommonName    string `help:"Common name for the certificate subject"`
	ValidityYears int    `help:"Certificate validity in years" default:"10"`
	Force         bool   `help:"Overwrite existing key files" default:"false"`
	Config        string `help:"YAML/JSON certificate profile path"`
}

func (c *GenerateCmd) Run(ctx context.Context, globals *Globals) error {
	if c.Config != "" {
		if err := c.loadConfigFile(); err != nil {
			return fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if strings.TrimSpace(c.CommonName) == "" {
		return fmt.Errorf("common name is required (use --common-name flag or --config file)")
	}

	if c.ValidityYears < 1 {
		return fmt.Errorf("validity years must be at least 1, got %d", c.ValidityYears)
	}

	outputDir := globals.resolve(c.Output)

	log.Info().
		Str("commonName", c.CommonName).
		Int("validityYears", c.ValidityYears).
		Msg("generating code signing certificate")

	kp, err := pki.GenerateKeyPair()
	if err != nil {
		return fmt.Errorf("failed to generate key pair: %w", err)
	}

	notBefore := time.Now()
	notAfter := notBefore.AddDate(c.ValidityYears, 0, 0)

	cert, err := pki.BuildCodeSigningCertificate(kp, c.CommonName, notBefore, notAfter)
	if err != nil {
		return fmt.Errorf("failed to build certificate: %w", err)
	}

	if err := pki.ValidateSelfSignedCertificate(cert, kp); err != nil {
		return fmt.Errorf("generated certificate is invalid: %w", err)
	}

	kpPEM, err := pki.KeyPairToPEM(kp)
	if err != nil {
		return fmt.Errorf("failed to encode key pair: %w", err)
	}

	bundle := &keyfiles.Bundle{
		CertificatePEM: pki.CertificateToPEM(cert),
		PrivateKeyPEM:  kpPEM.PrivateKeyPEM,
		PublicKeyPEM:   kpPEM.PublicKeyPEM,
	}

	if err := keyfiles.Save(outputDir, bundle, c.Force); err != nil {
		if errors.Is(err, keyfiles.ErrKeyFilesExist) {
			return fmt.Errorf("key files already exist in %s\n\nTo replace them:\n  updatesign generate --output %s --force", outputDir, c.Output)
		}
		return fmt.Errorf("failed to save key files: %w", err)
	}

	fingerprint, err := pki.Fingerprint(kp.PublicKey)
	if err != nil {
		return fmt.Errorf("failed to fingerprint public key: %w", err)
	}

	paths := keyfiles.Paths(outputDir)

	fmt.Printf("Generated code signing certificate for %q\n", c.CommonName)
	fmt.Printf("Serial number: %s\n", cert.SerialHex())
	fmt.Printf("Valid until:   %s\n", cert.NotAfter.UTC().Format(time.RFC3339))
	fmt.Printf("Fingerprint:   %s\n", fingerprint)
	fmt.Println()
	fmt.Printf("  Certificate: %s\n", paths.Certificate)
	fmt.Printf("  Private key: %s\n", paths.PrivateKey)
	fmt.Printf("  Public key:  %s\n", paths.PublicKey)
	fmt.Println()
	fmt.Println("Keep the private key secret. To configure the project:")
	fmt.Printf("  updatesign configure --input %s\n", c.Output)

	return nil
}

func (c *GenerateCmd) loadConfigFile() error {
	data, err := os.ReadFile(c.Config)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var profile CertificateProfile

	// Determine file format by extension
	if strings.HasSuffix(strings.ToLower(c.Config), ".json") {
		if err := json.Unmarshal(data, &profile); err != nil {
			return fmt.Errorf("failed to parse JSON config: %w", err)
		}
	} else {
		// Default to YAML
		if err := yaml.Unmarshal(data, &profile); err != nil {
			return fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}

	// Config file takes precedence over flags
	if profile.CommonName != "" {
		c.CommonName = profile.CommonName
	}
	if profile.ValidityYears != 0 {
		c.ValidityYears = profile.ValidityYears
	}
	if profile.Output != "" {
		c.Output = profile.Output
	}

	return nil
}
