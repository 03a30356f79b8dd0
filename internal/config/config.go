// internal/config/config.go
//
// This package handles user configuration for imark. Settings live in
// $XDG_CONFIG_HOME/imark/config.yaml and can be overridden per run with
// IMARK_* environment variables.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/kingrea/imark/internal/tmux"
)

const (
	// AppDir is the directory name used under the user config and cache dirs.
	AppDir = "imark"

	// DefaultEndpointTemplate is the marking server for a course offering.
	DefaultEndpointTemplate = "https://cgi.cse.unsw.edu.au/~{course}/{session}/imark/server.cgi/"

	defaultPaneSize = 40
	defaultPager    = "less -R"
	defaultLogLevel = "info"
	defaultLogFile  = "imark.log"
	minPaneSize     = 10
	maxPaneSize     = 90
	configFileName  = "config.yaml"
)

const defaultConfigYAML = `# imark configuration
version: 1

# Marking server. {course} and {session} are replaced from the command line.
# endpoint_template: https://cgi.cse.unsw.edu.au/~{course}/{session}/imark/server.cgi/

# Context panes show a criterion's context command or notes next to the marking UI.
panes:
  enabled: true
  split: horizontal   # horizontal (side by side) or vertical (below)
  size: 40            # percent of the marking pane
  pager: less -R

log:
  level: info
  # path: ~/.cache/imark/imark.log
`

// PaneConfig controls the tmux context panes.
type PaneConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"`
	Split   string `yaml:"split,omitempty"`
	Size    int    `yaml:"size,omitempty"`
	Pager   string `yaml:"pager,omitempty"`
}

// LogConfig controls the log file.
type LogConfig struct {
	Level string `yaml:"level,omitempty"`
	Path  string `yaml:"path,omitempty"`
}

// FileConfig models config.yaml.
type FileConfig struct {
	Version          int        `yaml:"version"`
	EndpointTemplate string     `yaml:"endpoint_template,omitempty"`
	Panes            PaneConfig `yaml:"panes"`
	Log              LogConfig  `yaml:"log"`
}

// envOverrides are per-run overrides. Unset variables leave the file values alone.
type envOverrides struct {
	EndpointTemplate *string `env:"IMARK_ENDPOINT_TEMPLATE"`
	Panes            *bool   `env:"IMARK_PANES"`
	PaneSplit        *string `env:"IMARK_PANE_SPLIT"`
	PaneSize         *int    `env:"IMARK_PANE_SIZE"`
	Pager            *string `env:"IMARK_PAGER"`
	LogLevel         *string `env:"IMARK_LOG_LEVEL"`
	LogPath          *string `env:"IMARK_LOG_PATH"`
}

// Config holds the resolved runtime configuration.
type Config struct {
	// Path is the config file that was read, or "" when none exists.
	Path string

	File FileConfig
}

// DefaultPath returns $XDG_CONFIG_HOME/imark/config.yaml.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config: user config dir: %w", err)
	}
	return filepath.Join(dir, AppDir, configFileName), nil
}

// EnsureDefault writes a commented default config when none exists.
func EnsureDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("config: stat %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: ensure config dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(defaultConfigYAML), 0o644); err != nil {
		return fmt.Errorf("config: write default config: %w", err)
	}
	return nil
}

// Load reads path (a missing file means defaults), applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := &Config{Path: path, File: defaultFileConfig()}
	if err := cfg.loadFile(); err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.File.applyDefaults()
	cfg.File.normalize()
	if err := cfg.File.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFile() error {
	if c.Path == "" {
		return nil
	}
	data, err := os.ReadFile(c.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			c.Path = ""
			return nil
		}
		return fmt.Errorf("config: read %s: %w", c.Path, err)
	}
	var parsed FileConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", c.Path, err)
	}
	c.File = parsed
	return nil
}

func (c *Config) applyEnv() error {
	var ovr envOverrides
	if err := env.Parse(&ovr); err != nil {
		return fmt.Errorf("config: parse env: %w", err)
	}
	f := &c.File
	if ovr.EndpointTemplate != nil {
		f.EndpointTemplate = *ovr.EndpointTemplate
	}
	if ovr.Panes != nil {
		enabled := *ovr.Panes
		f.Panes.Enabled = &enabled
	}
	if ovr.PaneSplit != nil {
		f.Panes.Split = *ovr.PaneSplit
	}
	if ovr.PaneSize != nil {
		f.Panes.Size = *ovr.PaneSize
	}
	if ovr.Pager != nil {
		f.Panes.Pager = *ovr.Pager
	}
	if ovr.LogLevel != nil {
		f.Log.Level = *ovr.LogLevel
	}
	if ovr.LogPath != nil {
		f.Log.Path = *ovr.LogPath
	}
	return nil
}

// PanesEnabled reports whether context panes should be opened.
func (c *Config) PanesEnabled() bool {
	return c.File.Panes.Enabled == nil || *c.File.Panes.Enabled
}

// PaneSplit returns the configured split direction.
func (c *Config) PaneSplit() tmux.Split {
	return tmux.Split(c.File.Panes.Split)
}

// PaneSize returns the pane size in percent.
func (c *Config) PaneSize() int {
	return c.File.Panes.Size
}

// Pager returns the command used to page context output.
func (c *Config) Pager() string {
	return c.File.Panes.Pager
}

// LogLevel returns the configured log level name.
func (c *Config) LogLevel() string {
	return c.File.Log.Level
}

// LogPath returns the log file path, defaulting to the user cache dir.
func (c *Config) LogPath() (string, error) {
	if c.File.Log.Path != "" {
		return c.File.Log.Path, nil
	}
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("config: user cache dir: %w", err)
	}
	return filepath.Join(dir, AppDir, defaultLogFile), nil
}

// Endpoint returns the marking server URL. A non-empty override wins;
// otherwise the template is filled with course and session.
func (c *Config) Endpoint(course, session, override string) (string, error) {
	raw := strings.TrimSpace(override)
	if raw == "" {
		course = strings.TrimSpace(course)
		session = strings.TrimSpace(session)
		if course == "" || session == "" {
			return "", fmt.Errorf("config: course and session are required to build the endpoint")
		}
		r := strings.NewReplacer("{course}", url.PathEscape(course), "{session}", url.PathEscape(session))
		raw = r.Replace(c.File.EndpointTemplate)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("config: endpoint %q: %w", raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("config: endpoint %q must be an absolute http(s) URL", raw)
	}
	return u.String(), nil
}

func defaultFileConfig() FileConfig {
	return FileConfig{Version: 1}
}

func (fc *FileConfig) applyDefaults() {
	if fc.Version == 0 {
		fc.Version = 1
	}
	if strings.TrimSpace(fc.EndpointTemplate) == "" {
		fc.EndpointTemplate = DefaultEndpointTemplate
	}
	if fc.Panes.Split == "" {
		fc.Panes.Split = string(tmux.SplitHorizontal)
	}
	if fc.Panes.Size == 0 {
		fc.Panes.Size = defaultPaneSize
	}
	if strings.TrimSpace(fc.Panes.Pager) == "" {
		fc.Panes.Pager = defaultPager
	}
	if strings.TrimSpace(fc.Log.Level) == "" {
		fc.Log.Level = defaultLogLevel
	}
}

func (fc *FileConfig) normalize() {
	fc.EndpointTemplate = strings.TrimSpace(fc.EndpointTemplate)
	fc.Panes.Split = strings.ToLower(strings.TrimSpace(fc.Panes.Split))
	fc.Panes.Pager = strings.TrimSpace(fc.Panes.Pager)
	fc.Log.Level = strings.ToLower(strings.TrimSpace(fc.Log.Level))
	fc.Log.Path = expandHome(strings.TrimSpace(fc.Log.Path))
}

func (fc *FileConfig) validate() error {
	if fc.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	switch tmux.Split(fc.Panes.Split) {
	case tmux.SplitHorizontal, tmux.SplitVertical:
	default:
		return fmt.Errorf("panes.split must be 'horizontal' or 'vertical'")
	}
	if fc.Panes.Size < minPaneSize || fc.Panes.Size > maxPaneSize {
		return fmt.Errorf("panes.size must be between %d and %d", minPaneSize, maxPaneSize)
	}
	if !strings.Contains(fc.EndpointTemplate, "{course}") && !strings.Contains(fc.EndpointTemplate, "{session}") {
		if _, err := url.ParseRequestURI(fc.EndpointTemplate); err != nil {
			return fmt.Errorf("endpoint_template: %w", err)
		}
	}
	switch fc.Log.Level {
	case "trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled":
	default:
		return fmt.Errorf("log.level %q is not a known level", fc.Log.Level)
	}
	return nil
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
