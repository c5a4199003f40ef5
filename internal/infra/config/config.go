package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level client configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Target     TargetConfig     `yaml:"target"`
	Page       PageConfig       `yaml:"page"`
	Connection ConnectionConfig `yaml:"connection"`
	UI         UIConfig         `yaml:"ui"`
	Logger     LoggerConfig     `yaml:"logger"`
	Tracer     TracerConfig     `yaml:"tracer"`
	Includes   []string         `yaml:"includes,omitempty"`
}

// ServerConfig locates the watch server.
type ServerConfig struct {
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	Version string `yaml:"version"` // protocol version sent in the query string
}

// TargetConfig names the build target the page runs.
type TargetConfig struct {
	Name string `yaml:"name"`
}

// PageConfig selects and configures the page backend.
type PageConfig struct {
	Backend        string `yaml:"backend"`  // "chromedp" or "memory"
	URL            string `yaml:"url"`      // page that loads the compiled program
	CDPURL         string `yaml:"cdp_url"`  // attach to a running Chrome instead of launching one
	Headless       bool   `yaml:"headless"` // only for a launched Chrome
	Timeout        string `yaml:"timeout"`  // per-action timeout, duration string
	RegistryGlobal string `yaml:"registry_global"`
	ArtifactGlobal string `yaml:"artifact_global"`
	// MaxReloadsPerMin stops the client when the page keeps reloading,
	// usually because the bundle never sets the artifact global.
	MaxReloadsPerMin int `yaml:"max_reloads_per_min"`
	ReloadBurst      int `yaml:"reload_burst"`
}

// ConnectionConfig tunes the watch-server socket.
type ConnectionConfig struct {
	DialTimeout  string `yaml:"dial_timeout"`
	WriteTimeout string `yaml:"write_timeout"`
	ReadLimitMB  int    `yaml:"read_limit_mb"`
	QueueSize    int    `yaml:"queue_size"`
}

// UIConfig holds status widget settings.
type UIConfig struct {
	Renderer string `yaml:"renderer"` // "tui" or "plain"
	Expanded bool   `yaml:"expanded"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
	Endpoint string `yaml:"endpoint"`
}

// Duration parses a duration string, falling back to def when s is empty
// or malformed. Validate reports malformed values before this is reached.
func Duration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// defaultStateDir returns $HOME/.hotpatch, or "." if $HOME is unknown.
func defaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".hotpatch")
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "localhost",
			Port:    8000,
			Version: "1",
		},
		Target: TargetConfig{Name: "main"},
		Page: PageConfig{
			Backend:          "chromedp",
			URL:              "http://localhost:8000/",
			Headless:         false,
			Timeout:          "30s",
			RegistryGlobal:   "Programs",
			ArtifactGlobal:   "__hotpatch",
			MaxReloadsPerMin: 20,
			ReloadBurst:      5,
		},
		Connection: ConnectionConfig{
			DialTimeout:  "10s",
			WriteTimeout: "5s",
			ReadLimitMB:  64,
			QueueSize:    16,
		},
		UI: UIConfig{
			Renderer: "tui",
			Expanded: false,
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: filepath.Join(defaultStateDir(), "hotpatch.log"),
		},
		Tracer: TracerConfig{
			Enabled:  false,
			Exporter: "noop",
		},
	}
}

// Load reads a YAML config file, applies env var overrides and validates.
// A missing file is not an error: defaults plus overrides are used.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			ApplyEnvOverrides(cfg)
			if err := Validate(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	if err := validatePermissions(absPath); err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if len(cfg.Includes) > 0 {
		visited := map[string]bool{absPath: true}
		if err := processIncludes(cfg, filepath.Dir(absPath), visited, 0); err != nil {
			return nil, err
		}
		// The main file wins over its includes.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config (second pass): %w", err)
		}
		cfg.Includes = nil
	}

	ApplyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides maps HOTPATCH_* env vars to config fields.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HOTPATCH_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("HOTPATCH_SERVER_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}
	if v := os.Getenv("HOTPATCH_TARGET"); v != "" {
		cfg.Target.Name = v
	}
	if v := os.Getenv("HOTPATCH_PAGE_BACKEND"); v != "" {
		cfg.Page.Backend = v
	}
	if v := os.Getenv("HOTPATCH_PAGE_URL"); v != "" {
		cfg.Page.URL = v
	}
	if v := os.Getenv("HOTPATCH_PAGE_CDP_URL"); v != "" {
		cfg.Page.CDPURL = v
	}
	if v := os.Getenv("HOTPATCH_PAGE_HEADLESS"); v != "" {
		cfg.Page.Headless = parseBool(v)
	}
	if v := os.Getenv("HOTPATCH_UI_RENDERER"); v != "" {
		cfg.UI.Renderer = v
	}
	if v := os.Getenv("HOTPATCH_UI_EXPANDED"); v != "" {
		cfg.UI.Expanded = parseBool(v)
	}
	if v := os.Getenv("HOTPATCH_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("HOTPATCH_LOGGER_OUTPUT"); v != "" {
		cfg.Logger.Output = v
	}
	if v := os.Getenv("HOTPATCH_TRACER_ENABLED"); v == "true" {
		cfg.Tracer.Enabled = true
	}
	if v := os.Getenv("HOTPATCH_TRACER_EXPORTER"); v != "" {
		cfg.Tracer.Exporter = v
	}
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// validatePermissions checks the config file is not writable by others.
func validatePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat config: %w", err)
	}
	mode := info.Mode().Perm()
	if mode&0o022 != 0 {
		return fmt.Errorf("config file %s has insecure permissions %o (want 0600 or 0644)", path, mode)
	}
	return nil
}
