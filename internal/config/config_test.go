package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kingrea/imark/internal/tmux"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"IMARK_ENDPOINT_TEMPLATE", "IMARK_PANES", "IMARK_PANE_SPLIT", "IMARK_PANE_SIZE",
		"IMARK_PAGER", "IMARK_LOG_LEVEL", "IMARK_LOG_PATH",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadDefaultsWhenMissing(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Path != "" {
		t.Fatalf("expected empty path for missing file, got %q", cfg.Path)
	}
	if !cfg.PanesEnabled() {
		t.Fatalf("panes should be enabled by default")
	}
	if cfg.PaneSplit() != tmux.SplitHorizontal {
		t.Fatalf("split = %q, want horizontal", cfg.PaneSplit())
	}
	if cfg.PaneSize() != defaultPaneSize || cfg.Pager() != defaultPager || cfg.LogLevel() != "info" {
		t.Fatalf("unexpected defaults: %+v", cfg.File)
	}
	if cfg.File.EndpointTemplate != DefaultEndpointTemplate {
		t.Fatalf("endpoint template = %q", cfg.File.EndpointTemplate)
	}
}

func TestEnsureDefaultWritesLoadableConfig(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "imark", "config.yaml")
	if err := EnsureDefault(path); err != nil {
		t.Fatalf("EnsureDefault returned error: %v", err)
	}
	if err := os.WriteFile(path, []byte("version: 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := EnsureDefault(path); err != nil {
		t.Fatalf("second EnsureDefault returned error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "version: 1\n" {
		t.Fatalf("EnsureDefault must not overwrite an existing config")
	}

	fresh := filepath.Join(t.TempDir(), "config.yaml")
	if err := EnsureDefault(fresh); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(fresh)
	if err != nil {
		t.Fatalf("default config should load: %v", err)
	}
	if cfg.Path != fresh || !cfg.PanesEnabled() {
		t.Fatalf("unexpected config from default file: %+v", cfg)
	}
}

func TestLoadParsesYaml(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	configYAML := strings.TrimSpace(`
version: 1
endpoint_template: https://marks.example.edu/{course}/{session}/
panes:
  enabled: false
  split: Vertical
  size: 30
  pager: bat --paging=always
log:
  level: DEBUG
  path: /var/tmp/imark.log
`)
	if err := os.WriteFile(path, []byte(configYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.PanesEnabled() {
		t.Fatalf("panes should be disabled")
	}
	if cfg.PaneSplit() != tmux.SplitVertical || cfg.PaneSize() != 30 {
		t.Fatalf("unexpected pane config %+v", cfg.File.Panes)
	}
	if cfg.Pager() != "bat --paging=always" || cfg.LogLevel() != "debug" {
		t.Fatalf("unexpected config %+v", cfg.File)
	}
	logPath, err := cfg.LogPath()
	if err != nil || logPath != "/var/tmp/imark.log" {
		t.Fatalf("LogPath = %q, %v", logPath, err)
	}
	endpoint, err := cfg.Endpoint("cs1511", "23T3", "")
	if err != nil {
		t.Fatalf("Endpoint returned error: %v", err)
	}
	if endpoint != "https://marks.example.edu/cs1511/23T3/" {
		t.Fatalf("endpoint = %q", endpoint)
	}
}

func TestEnvironmentOverridesFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("panes:\n  size: 30\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("IMARK_PANES", "false")
	t.Setenv("IMARK_PANE_SIZE", "55")
	t.Setenv("IMARK_LOG_LEVEL", "warn")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.PanesEnabled() || cfg.PaneSize() != 55 || cfg.LogLevel() != "warn" {
		t.Fatalf("env overrides not applied: %+v", cfg.File)
	}
}

func TestLoadValidation(t *testing.T) {
	cases := map[string]string{
		"split":   "panes:\n  split: diagonal\n",
		"size":    "panes:\n  size: 95\n",
		"level":   "log:\n  level: chatty\n",
		"version": "version: -1\n",
		"yaml":    "panes: [\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Fatalf("expected validation error but got none")
			}
		})
	}

	clearEnv(t)
	t.Setenv("IMARK_PANE_SIZE", "lots")
	if _, err := Load(""); err == nil {
		t.Fatalf("expected env parse error")
	}
}

func TestEndpoint(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	got, err := cfg.Endpoint("cs1511", "23T3", "")
	if err != nil {
		t.Fatalf("Endpoint returned error: %v", err)
	}
	if got != "https://cgi.cse.unsw.edu.au/~cs1511/23T3/imark/server.cgi/" {
		t.Fatalf("endpoint = %q", got)
	}

	got, err = cfg.Endpoint("", "", " http://localhost:8080/imark/ ")
	if err != nil || got != "http://localhost:8080/imark/" {
		t.Fatalf("override endpoint = %q, %v", got, err)
	}

	if _, err := cfg.Endpoint("", "23T3", ""); err == nil {
		t.Fatalf("expected error without course")
	}
	if _, err := cfg.Endpoint("", "", "ftp://example.com"); err == nil {
		t.Fatalf("expected error for non-http endpoint")
	}
	if _, err := cfg.Endpoint("", "", "/relative/path"); err == nil {
		t.Fatalf("expected error for relative endpoint")
	}
}
