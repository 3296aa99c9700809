// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package datasets

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Mode selects how a dataset is maintained locally.
type Mode string

const (
	ModeDisabled Mode = "disabled"
	ModeRemote   Mode = "remote"
	ModeLocal    Mode = "local"
	ModeRaw      Mode = "raw"
)

// InstallableMode is Mode narrowed to the three values a driver can act
// on; ModeDisabled datasets never reach a driver.
type InstallableMode string

const (
	InstallableRemote InstallableMode = "remote"
	InstallableLocal  InstallableMode = "local"
	InstallableRaw    InstallableMode = "raw"
)

// ToInstallable narrows a Mode, reporting ok=false for ModeDisabled.
func (m Mode) ToInstallable() (InstallableMode, bool) {
	switch m {
	case ModeRemote:
		return InstallableRemote, true
	case ModeLocal:
		return InstallableLocal, true
	case ModeRaw:
		return InstallableRaw, true
	default:
		return "", false
	}
}

// DatasetSettings is one [[datasets]] entry in the TOML configuration.
type DatasetSettings struct {
	Name    Name     `toml:"name"`
	URL     *url.URL `toml:"-"`
	RawURL  string   `toml:"url"`
	Mode    Mode     `toml:"mode"`
	Timeout *float64 `toml:"timeout"`
}

// Configuration is a parsed and validated datasetinstaller.toml.
type Configuration struct {
	Directory string            `toml:"directory"`
	Datasets  []DatasetSettings `toml:"datasets"`
}

// ConfigurationError reports why LoadConfiguration failed, with enough
// structure for errors.As to recover the offending path or value.
type ConfigurationError struct {
	Kind      string // "resolve", "read", "parse", "duplicate", "no_parent", "negative_timeout"
	Path      string
	Name      Name
	Timeout   float64
	Err       error
}

func (e *ConfigurationError) Error() string {
	switch e.Kind {
	case "resolve":
		return fmt.Sprintf("datasets: resolving path %q failed: %v", e.Path, e.Err)
	case "read":
		return fmt.Sprintf("datasets: reading configuration file %q failed: %v", e.Path, e.Err)
	case "parse":
		return fmt.Sprintf("datasets: parsing configuration file %q failed: %v", e.Path, e.Err)
	case "duplicate":
		return fmt.Sprintf("datasets: two datasets share the name %q", e.Name)
	case "no_parent":
		return fmt.Sprintf("datasets: %q has no parent and the directory is relative", e.Path)
	case "negative_timeout":
		return fmt.Sprintf("datasets: timeout %v is negative", e.Timeout)
	default:
		return fmt.Sprintf("datasets: configuration error: %v", e.Err)
	}
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// LoadConfiguration parses and validates the TOML configuration file at
// path. It returns the configuration with Directory resolved to an
// absolute, normalized path, and separately the directory string as it
// was written in the file (for round-trip serialization by callers such
// as "config show").
func LoadConfiguration(path string) (*Configuration, string, error) {
	resolved, err := filepath.Abs(path)
	if err != nil {
		return nil, "", &ConfigurationError{Kind: "resolve", Path: path, Err: err}
	}
	resolved, err = filepath.EvalSymlinks(resolved)
	if err != nil {
		return nil, "", &ConfigurationError{Kind: "read", Path: path, Err: err}
	}

	raw, err := os.ReadFile(resolved)
	if err != nil {
		return nil, "", &ConfigurationError{Kind: "read", Path: resolved, Err: err}
	}

	var cfg Configuration
	if err := toml.Unmarshal(raw, &cfg); err != nil {
		return nil, "", &ConfigurationError{Kind: "parse", Path: resolved, Err: err}
	}

	names := make(map[Name]struct{}, len(cfg.Datasets))
	for i := range cfg.Datasets {
		ds := &cfg.Datasets[i]
		if _, dup := names[ds.Name]; dup {
			return nil, "", &ConfigurationError{Kind: "duplicate", Name: ds.Name}
		}
		names[ds.Name] = struct{}{}
		if ds.Timeout != nil && *ds.Timeout < 0 {
			return nil, "", &ConfigurationError{Kind: "negative_timeout", Timeout: *ds.Timeout}
		}
		parsedURL, err := url.Parse(ds.RawURL)
		if err != nil {
			return nil, "", &ConfigurationError{Kind: "parse", Path: resolved, Err: err}
		}
		ds.URL = parsedURL
	}

	originalDirectory := cfg.Directory
	directory := cfg.Directory
	if !filepath.IsAbs(directory) {
		parent := filepath.Dir(resolved)
		if parent == "" || parent == "." {
			return nil, "", &ConfigurationError{Kind: "no_parent", Path: resolved}
		}
		directory = filepath.Join(parent, directory)
	}
	cfg.Directory = filepath.Clean(directory)

	return &cfg, originalDirectory, nil
}
