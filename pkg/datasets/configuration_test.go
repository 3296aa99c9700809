// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package datasets

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, dir, contents string) string {
	t.Helper()
	path := filepath.Join(dir, "datasetinstaller.toml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigurationResolvesRelativeDirectory(t *testing.T) {
	dir := t.TempDir()
	path := writeTempConfig(t, dir, `directory = "./data"

[[datasets]]
name = "example"
url = "https://example.org/example/"
mode = "remote"
`)

	cfg, original, err := LoadConfiguration(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if original != "./data" {
		t.Fatalf("expected original directory preserved, got %q", original)
	}
	want := filepath.Join(dir, "data")
	if cfg.Directory != want {
		t.Fatalf("expected resolved directory %q, got %q", want, cfg.Directory)
	}
	if len(cfg.Datasets) != 1 || cfg.Datasets[0].Name != Name("example") {
		t.Fatalf("unexpected datasets: %+v", cfg.Datasets)
	}
	if cfg.Datasets[0].URL == nil || cfg.Datasets[0].URL.Host != "example.org" {
		t.Fatalf("expected parsed URL, got %+v", cfg.Datasets[0].URL)
	}
}

func TestLoadConfigurationAbsoluteDirectoryUnchanged(t *testing.T) {
	dir := t.TempDir()
	abs := filepath.Join(dir, "somewhere")
	path := writeTempConfig(t, dir, `directory = "`+filepath.ToSlash(abs)+`"
`)

	cfg, _, err := LoadConfiguration(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Directory != filepath.Clean(abs) {
		t.Fatalf("expected %q, got %q", abs, cfg.Directory)
	}
}

func TestLoadConfigurationRejectsDuplicateNames(t *testing.T) {
	dir := t.TempDir()
	path := writeTempConfig(t, dir, `directory = "./data"

[[datasets]]
name = "dup"
url = "https://example.org/a/"
mode = "remote"

[[datasets]]
name = "dup"
url = "https://example.org/b/"
mode = "remote"
`)

	_, _, err := LoadConfiguration(path)
	if err == nil {
		t.Fatal("expected error for duplicate dataset names")
	}
	var cfgErr *ConfigurationError
	if !asConfigurationError(err, &cfgErr) {
		t.Fatalf("expected *ConfigurationError, got %T", err)
	}
	if cfgErr.Kind != "duplicate" {
		t.Fatalf("expected duplicate kind, got %q", cfgErr.Kind)
	}
}

func TestLoadConfigurationRejectsNegativeTimeout(t *testing.T) {
	dir := t.TempDir()
	path := writeTempConfig(t, dir, `directory = "./data"

[[datasets]]
name = "example"
url = "https://example.org/example/"
mode = "remote"
timeout = -1.0
`)

	_, _, err := LoadConfiguration(path)
	if err == nil {
		t.Fatal("expected error for negative timeout")
	}
}

func TestModeToInstallable(t *testing.T) {
	cases := []struct {
		mode Mode
		ok   bool
	}{
		{ModeDisabled, false},
		{ModeRemote, true},
		{ModeLocal, true},
		{ModeRaw, true},
	}
	for _, c := range cases {
		_, ok := c.mode.ToInstallable()
		if ok != c.ok {
			t.Errorf("Mode(%q).ToInstallable() ok = %v, want %v", c.mode, ok, c.ok)
		}
	}
}

func asConfigurationError(err error, target **ConfigurationError) bool {
	ce, ok := err.(*ConfigurationError)
	if ok {
		*target = ce
	}
	return ok
}
