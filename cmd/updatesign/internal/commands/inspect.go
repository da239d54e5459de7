package commands

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/updatesign/internal/pki"
)

// InspectCmd prints certificate details and the validation verdict.
type InspectCmd struct {
	Input string `help:"Directory containing the key pair and certificate" default:"keys"`
}

func (c *InspectCmd) Run(ctx context.Context, globals *Globals) error {
	cert, kp, err := loadIdentity(globals.resolve(c.Input))
	if err != nil {
		return fmt.Errorf("failed to load key files: %w", err)
	}

	fingerprint, err := pki.Fingerprint(cert.PublicKey)
	if err != nil {
		return fmt.Errorf("failed to fingerprint public key: %w", err)
	}

	now := time.Now()
	daysRemaining := int(cert.NotAfter.Sub(now).Hours() / 24)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Subject:\t%s\n", cert.Subject.String())
	fmt.Fprintf(w, "Issuer:\t%s\n", cert.Issuer.String())
	fmt.Fprintf(w, "Self-signed:\t%t\n", cert.IsSelfSigned())
	fmt.Fprintf(w, "Serial number:\t%s\n", cert.SerialHex())
	fmt.Fprintf(w, "Not before:\t%s\n", cert.NotBefore.UTC().Format(time.RFC3339))
	fmt.Fprintf(w, "Not after:\t%s\n", cert.NotAfter.UTC().Format(time.RFC3339))
	fmt.Fprintf(w, "Days remaining:\t%d\n", daysRemaining)
	fmt.Fprintf(w, "Signature algorithm:\t%s\n", cert.SignatureAlgorithm)
	fmt.Fprintf(w, "Fingerprint:\t%s\n", fingerprint)
	for _, ext := range cert.Extensions {
		fmt.Fprintf(w, "Extension:\t%s\n", describeExtension(ext))
	}
	w.Flush()

	log.Debug().
		Str("serial_number", cert.SerialHex()).
		Int("days_remaining", daysRemaining).
		Str("fingerprint", fingerprint).
		Msg("certificate inspected")

	if err := pki.ValidateSelfSignedCertificateAt(cert, kp, now); err != nil {
		fmt.Printf("\nINVALID: %v\n", err)
		return fmt.Errorf("certificate is not valid for code signing: %w", err)
	}

	fmt.Println("\nValid for code signing")

	return nil
}

func describeExtension(ext pki.Extension) string {
	switch e := ext.(type) {
	case *pki.KeyUsage:
		if e == nil {
			return "keyUsage"
		}
		ext = *e
	case *pki.ExtKeyUsage:
		if e == nil {
			return "extKeyUsage"
		}
		ext = *e
	}

	var usages []string

	switch e := ext.(type) {
	case pki.KeyUsage:
		for _, u := range []struct {
			set  bool
			name string
		}{
			{e.DigitalSignature, "digitalSignature"},
			{e.NonRepudiation, "nonRepudiation"},
			{e.KeyEncipherment, "keyEncipherment"},
			{e.DataEncipherment, "dataEncipherment"},
			{e.KeyCertSign, "keyCertSign"},
		} {
			if u.set {
				usages = append(usages, u.name)
			}
		}
	case pki.ExtKeyUsage:
		for _, u := range []struct {
			set  bool
			name string
		}{
			{e.ServerAuth, "serverAuth"},
			{e.ClientAuth, "clientAuth"},
			{e.CodeSigning, "codeSigning"},
			{e.EmailProtection, "emailProtection"},
			{e.TimeStamping, "timeStamping"},
		} {
			if u.set {
				usages = append(usages, u.name)
			}
		}
	}

	desc := ext.Name()
	if ext.IsCritical() {
		desc += " (critical)"
	}
	if len(usages) > 0 {
		desc += ": " + strings.Join(usages, ", ")
	}
	return desc
}
