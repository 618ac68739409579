package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration.
type Config struct {
	// Bind is the interface the web UI listens on.
	Bind string `json:"bind,omitempty" yaml:"bind,omitempty"`

	// Port is the web UI port.
	Port int `json:"port,omitempty" yaml:"port,omitempty"`

	// TickIntervalRaw is how often the evaluator checks capsules, as a Go duration ("1s").
	TickIntervalRaw string `json:"tick_interval,omitempty" yaml:"tick_interval,omitempty"`

	// Timezone is the IANA zone used to combine scheduled date and time.
	// Empty means the host's local time zone.
	Timezone string `json:"timezone,omitempty" yaml:"timezone,omitempty"`

	// ExportsDir is the default directory for exported .txt files.
	// Empty means <baseDir>/exports.
	ExportsDir string `json:"exports_dir,omitempty" yaml:"exports_dir,omitempty"`

	// AllowedPaths is an allowlist of extra directories exports may be written to.
	// Paths should be absolute (relative paths are ignored).
	AllowedPaths []string `json:"allowed_paths,omitempty" yaml:"allowed_paths,omitempty"`

	// AllowUnsafePaths disables directory restrictions for export.
	// Symlink and extension checks still apply.
	AllowUnsafePaths bool `json:"allow_unsafe_paths,omitempty" yaml:"allow_unsafe_paths,omitempty"`

	// ExportEscapeNewlines writes embedded line breaks as a literal \n so the
	// exported document always has exactly five lines.
	ExportEscapeNewlines bool `json:"export_escape_newlines,omitempty" yaml:"export_escape_newlines,omitempty"`

	// MessageMaxChars is the maximum message length in runes.
	MessageMaxChars int `json:"message_max_chars,omitempty" yaml:"message_max_chars,omitempty"`

	// OpenLinks opens dispatch links in the default browser from the CLI.
	OpenLinks bool `json:"open_links,omitempty" yaml:"open_links,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `json:"disabled_tools,omitempty" yaml:"disabled_tools,omitempty"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level,omitempty" yaml:"log_level,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Bind:            "127.0.0.1",
		Port:            8420,
		TickIntervalRaw: "1s",
		MessageMaxChars: 4000,
		LogLevel:        "info",
	}
}

// Load loads configuration from baseDir/config.json (or config.yaml), then
// applies environment overrides. A .env file in the working directory is
// loaded first if present.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.timecapsule.
func Load(baseDir string) (*Config, error) {
	_ = godotenv.Load()

	fileCfg, err := loadFileRaw(baseDir)
	if err != nil {
		return nil, err
	}

	cfg := Merge(DefaultConfig(), fileCfg)
	if cfg.ExportsDir == "" {
		cfg.ExportsDir = filepath.Join(baseDir, "exports")
	}
	ApplyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFileRaw reads config.json, falling back to config.yaml.
// Returns zero-valued config if neither exists (not defaults).
func loadFileRaw(baseDir string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(filepath.Join(baseDir, "config.json"))
	if err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config.json: %w", err)
		}
		return cfg, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	data, err = os.ReadFile(filepath.Join(baseDir, "config.yaml"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config.yaml: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides cfg with TIMECAPSULE_* environment variables.
func ApplyEnv(cfg *Config) {
	if v, ok := os.LookupEnv("TIMECAPSULE_BIND"); ok {
		cfg.Bind = v
	}
	if v, ok := os.LookupEnv("TIMECAPSULE_PORT"); ok {
		p, err := strconv.Atoi(v)
		if err != nil {
			log.Printf("invalid int for TIMECAPSULE_PORT, keeping %d: %v", cfg.Port, err)
		} else {
			cfg.Port = p
		}
	}
	if v, ok := os.LookupEnv("TIMECAPSULE_TICK_INTERVAL"); ok {
		cfg.TickIntervalRaw = v
	}
	if v, ok := os.LookupEnv("TIMECAPSULE_TIMEZONE"); ok {
		cfg.Timezone = v
	}
	if v, ok := os.LookupEnv("TIMECAPSULE_EXPORTS_DIR"); ok && v != "" {
		cfg.ExportsDir = v
	}
	if v, ok := os.LookupEnv("TIMECAPSULE_LOG_LEVEL"); ok {
		cfg.LogLevel = v
	}
	if v, ok := os.LookupEnv("TIMECAPSULE_OPEN_LINKS"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			log.Printf("invalid bool for TIMECAPSULE_OPEN_LINKS, keeping %t: %v", cfg.OpenLinks, err)
		} else {
			cfg.OpenLinks = b
		}
	}
}

// Validate checks that typed values resolve.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port out of range: %d", c.Port)
	}
	if _, err := c.parseTickInterval(); err != nil {
		return err
	}
	if _, err := c.parseLocation(); err != nil {
		return err
	}
	if c.MessageMaxChars < 0 {
		return fmt.Errorf("message_max_chars must be non-negative")
	}
	return nil
}

// TickInterval returns the evaluator interval, defaulting to one second.
func (c *Config) TickInterval() time.Duration {
	d, err := c.parseTickInterval()
	if err != nil {
		return time.Second
	}
	return d
}

func (c *Config) parseTickInterval() (time.Duration, error) {
	if c.TickIntervalRaw == "" {
		return time.Second, nil
	}
	d, err := time.ParseDuration(c.TickIntervalRaw)
	if err != nil {
		return 0, fmt.Errorf("invalid tick_interval %q: %w", c.TickIntervalRaw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("tick_interval must be positive, got %s", d)
	}
	return d, nil
}

// Location returns the time zone scheduled instants are interpreted in.
// An empty or invalid Timezone yields time.Local.
func (c *Config) Location() *time.Location {
	loc, err := c.parseLocation()
	if err != nil {
		return time.Local
	}
	return loc
}

func (c *Config) parseLocation() (*time.Location, error) {
	tz := strings.TrimSpace(c.Timezone)
	if tz == "" || strings.EqualFold(tz, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", tz, err)
	}
	return loc, nil
}

// Addr returns bind:port for the web server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Bind, c.Port)
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	// Scalars: overlay wins if non-zero, else base
	result.Bind = firstNonEmpty(overlay.Bind, base.Bind)
	result.TickIntervalRaw = firstNonEmpty(overlay.TickIntervalRaw, base.TickIntervalRaw)
	result.Timezone = firstNonEmpty(overlay.Timezone, base.Timezone)
	result.ExportsDir = firstNonEmpty(overlay.ExportsDir, base.ExportsDir)
	result.LogLevel = firstNonEmpty(overlay.LogLevel, base.LogLevel)

	result.Port = overlay.Port
	if result.Port == 0 {
		result.Port = base.Port
	}

	result.MessageMaxChars = overlay.MessageMaxChars
	if result.MessageMaxChars == 0 {
		result.MessageMaxChars = base.MessageMaxChars
	}

	// Booleans: overlay wins if true, else base
	result.AllowUnsafePaths = base.AllowUnsafePaths || overlay.AllowUnsafePaths
	result.ExportEscapeNewlines = base.ExportEscapeNewlines || overlay.ExportEscapeNewlines
	result.OpenLinks = base.OpenLinks || overlay.OpenLinks

	// Arrays: merge and deduplicate
	result.AllowedPaths = mergeStringSlice(base.AllowedPaths, overlay.AllowedPaths)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
