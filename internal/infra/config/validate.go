package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a *ValidationError
// when one or more problems are found, allowing callers to inspect all issues.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateServer(cfg, ve)
	validateTarget(cfg, ve)
	validatePage(cfg, ve)
	validateConnection(cfg, ve)
	validateUI(cfg, ve)
	validateLogger(cfg, ve)
	validateTracer(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

func validateServer(cfg *Config, ve *ValidationError) {
	if strings.TrimSpace(cfg.Server.Host) == "" {
		ve.Add("server.host is required")
	}
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		ve.Add("server.port must be between 1 and 65535, got %d", cfg.Server.Port)
	}
	if cfg.Server.Version == "" {
		ve.Add("server.version is required")
	}
}

var targetName = regexp.MustCompile(`^[A-Za-z0-9._/-]+$`)

func validateTarget(cfg *Config, ve *ValidationError) {
	if !targetName.MatchString(cfg.Target.Name) {
		ve.Add("target.name %q must be non-empty and contain only letters, digits, '.', '_', '/' or '-'", cfg.Target.Name)
	}
}

func validatePage(cfg *Config, ve *ValidationError) {
	p := cfg.Page
	switch p.Backend {
	case "chromedp":
		if p.CDPURL == "" && p.URL == "" {
			ve.Add("page.url is required when launching a browser")
		}
		if p.URL != "" {
			if u, err := url.Parse(p.URL); err != nil || u.Scheme == "" {
				ve.Add("page.url %q is not an absolute URL", p.URL)
			}
		}
		if p.CDPURL != "" && !strings.HasPrefix(p.CDPURL, "ws://") && !strings.HasPrefix(p.CDPURL, "wss://") {
			ve.Add("page.cdp_url must start with ws:// or wss://")
		}
	case "memory":
	default:
		ve.Add("page.backend must be \"chromedp\" or \"memory\", got %q", p.Backend)
	}
	validateDuration(ve, "page.timeout", p.Timeout)
	if p.RegistryGlobal == "" {
		ve.Add("page.registry_global is required")
	}
	if p.ArtifactGlobal == "" {
		ve.Add("page.artifact_global is required")
	}
	if p.MaxReloadsPerMin < 1 {
		ve.Add("page.max_reloads_per_min must be at least 1")
	}
	if p.ReloadBurst < 1 {
		ve.Add("page.reload_burst must be at least 1")
	}
}

func validateConnection(cfg *Config, ve *ValidationError) {
	c := cfg.Connection
	validateDuration(ve, "connection.dial_timeout", c.DialTimeout)
	validateDuration(ve, "connection.write_timeout", c.WriteTimeout)
	if c.ReadLimitMB < 0 {
		ve.Add("connection.read_limit_mb must not be negative")
	}
	if c.QueueSize < 0 {
		ve.Add("connection.queue_size must not be negative")
	}
}

func validateUI(cfg *Config, ve *ValidationError) {
	switch cfg.UI.Renderer {
	case "tui", "plain":
	default:
		ve.Add("ui.renderer must be \"tui\" or \"plain\", got %q", cfg.UI.Renderer)
	}
}

func validateLogger(cfg *Config, ve *ValidationError) {
	switch strings.ToLower(cfg.Logger.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		ve.Add("logger.level %q is not one of debug, info, warn, error", cfg.Logger.Level)
	}
	switch strings.ToLower(cfg.Logger.Format) {
	case "", "text", "json":
	default:
		ve.Add("logger.format must be \"text\" or \"json\", got %q", cfg.Logger.Format)
	}
}

func validateTracer(cfg *Config, ve *ValidationError) {
	if !cfg.Tracer.Enabled {
		return
	}
	switch cfg.Tracer.Exporter {
	case "", "noop", "stdout":
	default:
		ve.Add("tracer.exporter must be \"noop\" or \"stdout\", got %q", cfg.Tracer.Exporter)
	}
}

func validateDuration(ve *ValidationError, field, s string) {
	if s == "" {
		return
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		ve.Add("%s: invalid duration %q", field, s)
		return
	}
	if d <= 0 {
		ve.Add("%s must be positive, got %s", field, s)
	}
}
