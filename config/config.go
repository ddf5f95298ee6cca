// Package config resolves devdash settings from defaults, an optional YAML
// file and DEVDASH_* environment variables. Command line flags are applied
// on top by the caller.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Mode is the runtime mode chosen at process start. File logging and
// retention only run in production.
type Mode string

const (
	ModeProduction  Mode = "production"
	ModeDevelopment Mode = "development"
)

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "production", "prod":
		return ModeProduction, nil
	case "development", "dev":
		return ModeDevelopment, nil
	}
	return "", fmt.Errorf("unknown mode %q (want production or development)", s)
}

func (m Mode) IsProduction() bool { return m == ModeProduction }

// Duration accepts Go duration strings such as "30m" in YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

type Config struct {
	Mode Mode   `yaml:"mode"`
	Addr string `yaml:"addr"`
	// Root holds memory_notepad.md, .github/ and repo_analysis/.
	Root   string `yaml:"root"`
	LogDir string `yaml:"log_dir"`

	MaxFileSizeMB int      `yaml:"max_file_size_mb"`
	RetentionDays int      `yaml:"retention_days"`
	SweepInterval Duration `yaml:"sweep_interval"`
	RedactContext bool     `yaml:"redact_context"`

	CleanupPerMin int `yaml:"cleanup_per_min"`

	DiagLevel  string `yaml:"diag_level"`
	DiagFormat string `yaml:"diag_format"`
}

func Default() Config {
	return Config{
		Mode:          ModeProduction,
		Addr:          "127.0.0.1:3000",
		Root:          ".",
		LogDir:        "logs",
		MaxFileSizeMB: 10,
		RetentionDays: 7,
		SweepInterval: Duration(time.Hour),
		CleanupPerMin: 6,
		DiagLevel:     "info",
		DiagFormat:    "human",
	}
}

// Load reads path over the defaults. An empty path or a missing file yields
// the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from DEVDASH_* variables found through lookup
// (os.LookupEnv in production).
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
		return nil
	}

	if v, ok := lookup("DEVDASH_ENV"); ok && v != "" {
		mode, err := ParseMode(v)
		if err != nil {
			return fmt.Errorf("DEVDASH_ENV: %w", err)
		}
		c.Mode = mode
	}
	str("DEVDASH_ADDR", &c.Addr)
	str("DEVDASH_ROOT", &c.Root)
	str("DEVDASH_LOG_DIR", &c.LogDir)
	str("DEVDASH_DIAG_LEVEL", &c.DiagLevel)
	str("DEVDASH_DIAG_FORMAT", &c.DiagFormat)

	if err := num("DEVDASH_MAX_FILE_SIZE_MB", &c.MaxFileSizeMB); err != nil {
		return err
	}
	if err := num("DEVDASH_RETENTION_DAYS", &c.RetentionDays); err != nil {
		return err
	}
	if err := num("DEVDASH_CLEANUP_PER_MIN", &c.CleanupPerMin); err != nil {
		return err
	}
	if v, ok := lookup("DEVDASH_SWEEP_INTERVAL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("DEVDASH_SWEEP_INTERVAL: %w", err)
		}
		c.SweepInterval = Duration(d)
	}
	if v, ok := lookup("DEVDASH_REDACT_CONTEXT"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("DEVDASH_REDACT_CONTEXT: %w", err)
		}
		c.RedactContext = b
	}
	return nil
}

func (c Config) Validate() error {
	var errs []error
	if _, err := ParseMode(string(c.Mode)); err != nil {
		errs = append(errs, err)
	}
	if c.LogDir == "" {
		errs = append(errs, errors.New("log_dir must not be empty"))
	}
	if c.MaxFileSizeMB <= 0 {
		errs = append(errs, fmt.Errorf("max_file_size_mb must be positive, got %d", c.MaxFileSizeMB))
	}
	if c.RetentionDays <= 0 {
		errs = append(errs, fmt.Errorf("retention_days must be positive, got %d", c.RetentionDays))
	}
	if c.SweepInterval <= 0 {
		errs = append(errs, errors.New("sweep_interval must be positive"))
	}
	if c.CleanupPerMin < 0 {
		errs = append(errs, errors.New("cleanup_per_min must not be negative"))
	}
	return errors.Join(errs...)
}

func (c Config) MaxFileSizeBytes() int64 {
	return int64(c.MaxFileSizeMB) * 1024 * 1024
}

func (c Config) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}
