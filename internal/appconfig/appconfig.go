// Package appconfig reads and updates the code signing settings held in a
// project's app.json. Keys it does not manage are carried through unchanged.
package appconfig

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// FileName is the project config file name.
const FileName = "app.json"

// Sentinel errors
var (
	// ErrAppConfigNotFound is returned when the project has no app.json.
	ErrAppConfigNotFound = errors.New("app config not found")

	// ErrInvalidAppConfig is returned when app.json is not a JSON object or
	// the expo or updates entries are not objects.
	ErrInvalidAppConfig = errors.New("invalid app config")
)

// CodeSigningMetadata is written to updates.codeSigningMetadata.
type CodeSigningMetadata struct {
	KeyID     string `json:"keyid"`
	Algorithm string `json:"alg"`
}

// Config is a loaded app.json.
type Config struct {
	path string
	root *object

	// exp is the object holding app settings: root["expo"] when present,
	// otherwise the root itself.
	exp    *object
	nested bool
}

// Load reads app.json from projectRoot.
func Load(projectRoot string) (*Config, error) {
	path := filepath.Join(projectRoot, FileName)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrAppConfigNotFound, path)
		}
		return nil, fmt.Errorf("failed to read app config: %w", err)
	}

	root, err := parseObject(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAppConfig, err)
	}

	cfg := &Config{path: path, root: root, exp: root}

	if raw, ok := root.get("expo"); ok {
		exp, err := parseObject(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: expo: %v", ErrInvalidAppConfig, err)
		}
		cfg.exp = exp
		cfg.nested = true
	}

	log.Debug().Str("path", path).Bool("nested", cfg.nested).Msg("app config loaded")

	return cfg, nil
}

// Path returns the location of the loaded app.json.
func (c *Config) Path() string {
	return c.path
}

// Updates returns a copy of the updates object, empty when unset.
func (c *Config) Updates() (map[string]any, error) {
	updates := map[string]any{}

	raw, ok := c.exp.get("updates")
	if !ok || isNull(raw) {
		return updates, nil
	}

	if err := json.Unmarshal(raw, &updates); err != nil {
		return nil, fmt.Errorf("%w: updates: %v", ErrInvalidAppConfig, err)
	}

	return updates, nil
}

// CodeSigningCertificate returns updates.codeSigningCertificate, or "" when unset.
func (c *Config) CodeSigningCertificate() (string, error) {
	updates, err := c.Updates()
	if err != nil {
		return "", err
	}

	path, _ := updates["codeSigningCertificate"].(string)
	return path, nil
}

// SetCodeSigning sets updates.codeSigningCertificate to certPath and, when
// metadata is not nil, updates.codeSigningMetadata. Other updates keys are
// kept.
func (c *Config) SetCodeSigning(certPath string, metadata *CodeSigningMetadata) error {
	updates := newObject()

	if raw, ok := c.exp.get("updates"); ok && !isNull(raw) {
		existing, err := parseObject(raw)
		if err != nil {
			return fmt.Errorf("%w: updates: %v", ErrInvalidAppConfig, err)
		}
		updates = existing
	}

	if err := updates.set("codeSigningCertificate", certPath); err != nil {
		return err
	}

	if metadata != nil {
		if err := updates.set("codeSigningMetadata", metadata); err != nil {
			return err
		}
	}

	if err := c.exp.set("updates", updates); err != nil {
		return err
	}

	if c.nested {
		return c.root.set("expo", c.exp)
	}

	return nil
}

// Save writes the config back to disk via a temporary file and rename.
func (c *Config) Save() error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(c.root); err != nil {
		return fmt.Errorf("failed to marshal app config: %w", err)
	}

	perm := os.FileMode(0644)
	if info, err := os.Stat(c.path); err == nil {
		perm = info.Mode().Perm()
	}

	// Write to temp file first
	tempPath := c.path + ".tmp"
	if err := os.WriteFile(tempPath, buf.Bytes(), perm); err != nil {
		return fmt.Errorf("failed to write app config: %w", err)
	}

	// Atomic rename
	if err := os.Rename(tempPath, c.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to save app config: %w", err)
	}

	log.Debug().Str("path", c.path).Msg("app config saved")

	return nil
}
