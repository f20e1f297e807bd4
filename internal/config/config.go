// Package config loads the service configuration from a YAML file with
// environment-variable overrides, mirroring the dotenv settings the
// ingestion side uses.
package config

import (
	"fmt"
	"os"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// Duration wraps time.Duration for YAML ("5m", "300s", ...).
type Duration time.Duration

// UnmarshalYAML parses a Go duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Tools names the external binaries the pipeline drives.
type Tools struct {
	Nfdump            string `yaml:"nfdump"`
	StructureFunction string `yaml:"structure_function"`
	Spectrum          string `yaml:"spectrum"`
	Singularities     string `yaml:"singularities"`
}

// Limits bounds every external-process invocation.
type Limits struct {
	ExtractTimeout Duration `yaml:"extract_timeout"`
	AnalyzeTimeout Duration `yaml:"analyze_timeout"`
	MaxOutputBytes int64    `yaml:"max_output_bytes"`
}

// Refresh configures the maintenance (database-refresh) job.
type Refresh struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
	Dir     string   `yaml:"dir"`
	Timeout Duration `yaml:"timeout"`
	LogDir  string   `yaml:"log_dir"`
}

// Log configures the slog bootstrap.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the full service configuration.
type Config struct {
	ListenAddr      string   `yaml:"listen_addr"`
	DatabasePath    string   `yaml:"database_path"`
	NetflowDataPath string   `yaml:"netflow_data_path"`
	Routers         []string `yaml:"routers"`
	TempDir         string   `yaml:"temp_dir"`
	Tools           Tools    `yaml:"tools"`
	Limits          Limits   `yaml:"limits"`
	Refresh         Refresh  `yaml:"refresh"`
	Log             Log      `yaml:"log"`
}

// Defaults applied for fields the file leaves unset.
const (
	defaultListenAddr     = ":8080"
	defaultExtractTimeout = 5 * time.Minute
	defaultAnalyzeTimeout = 2 * time.Minute
	defaultRefreshTimeout = 30 * time.Minute
	defaultMaxOutput      = int64(64 << 20)
)

// Load reads and validates the configuration at path. Environment
// variables NFSPECT_DATABASE_PATH, NFSPECT_DATA_PATH and
// NFSPECT_LISTEN_ADDR override the file when set.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if v := os.Getenv("NFSPECT_DATABASE_PATH"); v != "" {
		cfg.DatabasePath = v
	}
	if v := os.Getenv("NFSPECT_DATA_PATH"); v != "" {
		cfg.NetflowDataPath = v
	}
	if v := os.Getenv("NFSPECT_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = defaultListenAddr
	}
	if c.Tools.Nfdump == "" {
		c.Tools.Nfdump = "nfdump"
	}
	if c.Limits.ExtractTimeout == 0 {
		c.Limits.ExtractTimeout = Duration(defaultExtractTimeout)
	}
	if c.Limits.AnalyzeTimeout == 0 {
		c.Limits.AnalyzeTimeout = Duration(defaultAnalyzeTimeout)
	}
	if c.Limits.MaxOutputBytes == 0 {
		c.Limits.MaxOutputBytes = defaultMaxOutput
	}
	if c.Refresh.Timeout == 0 {
		c.Refresh.Timeout = Duration(defaultRefreshTimeout)
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

func (c *Config) validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("config: database_path is required")
	}
	if c.NetflowDataPath == "" {
		return fmt.Errorf("config: netflow_data_path is required")
	}
	if len(c.Routers) == 0 {
		return fmt.Errorf("config: at least one router is required")
	}
	if c.Tools.StructureFunction == "" {
		return fmt.Errorf("config: tools.structure_function is required")
	}
	if c.Tools.Spectrum == "" {
		return fmt.Errorf("config: tools.spectrum is required")
	}
	if c.Tools.Singularities == "" {
		return fmt.Errorf("config: tools.singularities is required")
	}
	return nil
}
