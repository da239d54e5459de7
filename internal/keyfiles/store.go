package keyfiles

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// File names inside a key directory.
const (
	CertificateFile = "certificate.pem"
	PrivateKeyFile  = "private-key.pem"
	PublicKeyFile   = "public-key.pem"
)

// Sentinel errors
var (
	// ErrKeyFileNotFound is returned when one of the three PEM files is missing.
	ErrKeyFileNotFound = errors.New("key file not found")

	// ErrKeyFilesExist is returned when saving would overwrite existing files.
	ErrKeyFilesExist = errors.New("key files already exist")
)

// Bundle holds the PEM text of a code signing identity.
type Bundle struct {
	CertificatePEM string
	PrivateKeyPEM  string
	PublicKeyPEM   string
}

// FilePaths are the resolved locations of a bundle on disk.
type FilePaths struct {
	Certificate string
	PrivateKey  string
	PublicKey   string
}

// Paths resolves the bundle file names under dir.
func Paths(dir string) FilePaths {
	return FilePaths{
		Certificate: filepath.Join(dir, CertificateFile),
		PrivateKey:  filepath.Join(dir, PrivateKeyFile),
		PublicKey:   filepath.Join(dir, PublicKeyFile),
	}
}

// Load reads the certificate, private key and public key PEM files from dir.
func Load(dir string) (*Bundle, error) {
	paths := Paths(dir)

	certificatePEM, err := readFile(paths.Certificate)
	if err != nil {
		return nil, err
	}

	privateKeyPEM, err := readFile(paths.PrivateKey)
	if err != nil {
		return nil, err
	}

	publicKeyPEM, err := readFile(paths.PublicKey)
	if err != nil {
		return nil, err
	}

	log.Debug().Str("dir", dir).Msg("key files loaded")

	return &Bundle{
		CertificatePEM: certificatePEM,
		PrivateKeyPEM:  privateKeyPEM,
		PublicKeyPEM:   publicKeyPEM,
	}, nil
}

// LoadCertificate reads only the certificate PEM from dir.
func LoadCertificate(dir string) (string, error) {
	return readFile(Paths(dir).Certificate)
}

// Save writes bundle into dir, creating it with 0700 permissions. The private
// key is written 0600, the certificate and public key 0644. Existing files are
// only replaced when overwrite is set.
//
// All three files are staged as <name>.tmp before any of them is moved into
// place, so a failed write leaves the previous bundle untouched. If a rename
// fails, files already replaced are restored to their previous content.
func Save(dir string, bundle *Bundle, overwrite bool) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create key directory: %w", err)
	}

	paths := Paths(dir)

	// #nosec G306 - public key and certificate are intentionally world-readable
	files := []keyFile{
		{paths.PrivateKey, []byte(bundle.PrivateKeyPEM), 0600},
		{paths.PublicKey, []byte(bundle.PublicKeyPEM), 0644},
		{paths.Certificate, []byte(bundle.CertificatePEM), 0644},
	}

	previous, err := snapshot(files, overwrite)
	if err != nil {
		return err
	}

	for i, f := range files {
		if err := writeTemp(f); err != nil {
			removeTemps(files[:i])
			return err
		}
	}

	for i, f := range files {
		if err := os.Rename(tempPath(f.path), f.path); err != nil {
			removeTemps(files[i:])
			restore(files[:i], previous)
			return fmt.Errorf("failed to save %s: %w", f.path, err)
		}
	}

	log.Info().
		Str("certificate", paths.Certificate).
		Str("privateKey", paths.PrivateKey).
		Str("publicKey", paths.PublicKey).
		Bool("replaced", len(previous) > 0).
		Msg("key files saved")

	return nil
}

type keyFile struct {
	path string
	data []byte
	perm os.FileMode
}

func tempPath(path string) string {
	return path + ".tmp"
}

// snapshot returns the current content of the files that already exist, or
// ErrKeyFilesExist when overwrite is not set.
func snapshot(files []keyFile, overwrite bool) (map[string][]byte, error) {
	previous := make(map[string][]byte)

	for _, f := range files {
		info, err := os.Lstat(f.path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", f.path, err)
		}

		if !overwrite {
			return nil, fmt.Errorf("%w: %s", ErrKeyFilesExist, f.path)
		}
		if !info.Mode().IsRegular() {
			return nil, fmt.Errorf("failed to replace %s: not a regular file", f.path)
		}

		data, err := os.ReadFile(f.path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", f.path, err)
		}
		previous[f.path] = data
	}

	return previous, nil
}

// writeTemp writes f to its temp path. A stale temp file is replaced so perm
// applies.
func writeTemp(f keyFile) error {
	tmp := tempPath(f.path)

	if err := os.Remove(tmp); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to stage %s: %w", f.path, err)
	}

	if err := os.WriteFile(tmp, f.data, f.perm); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}

	return nil
}

func removeTemps(files []keyFile) {
	for _, f := range files {
		os.Remove(tempPath(f.path))
	}
}

// restore puts back the previous content of files that were already moved
// into place, and removes the ones that did not exist before.
func restore(files []keyFile, previous map[string][]byte) {
	for _, f := range files {
		data, ok := previous[f.path]
		if !ok {
			os.Remove(f.path)
			continue
		}

		if err := writeTemp(keyFile{path: f.path, data: data, perm: f.perm}); err != nil {
			log.Error().Err(err).Str("path", f.path).Msg("failed to restore key file")
			continue
		}
		if err := os.Rename(tempPath(f.path), f.path); err != nil {
			log.Error().Err(err).Str("path", f.path).Msg("failed to restore key file")
		}
	}
}

func readFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrKeyFileNotFound, path)
		}
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}
