// Package config holds the server configuration. Values come from an
// optional JSON file, overlaid by FACET_* environment variables; the
// command line overlays both. Unset fields fall back to the defaults
// returned by the Get* methods, so partial files are safe.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Defaults.
const (
	DefaultListen         = ":3000"
	DefaultUploadDir      = "temp"
	DefaultSTLDir         = "stl_storage"
	DefaultExportsDir     = "exports"
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "json"
	DefaultMaxUploadBytes = 100 << 20
	DefaultScriptTimeout  = 5 * time.Second
	DefaultKernel         = KernelBRep
)

// Kernel names accepted by the kernel field.
const (
	KernelBRep = "brep"
	KernelSDFX = "sdfx"
)

const maxFileSize = 1 * 1024 * 1024 // 1MB

// Config is the server configuration.
type Config struct {
	Listen         *string `json:"listen,omitempty"`
	UploadDir      *string `json:"upload_dir,omitempty"`
	STLDir         *string `json:"stl_dir,omitempty"`
	ExportsDir     *string `json:"exports_dir,omitempty"`
	LogLevel       *string `json:"log_level,omitempty"`
	LogFormat      *string `json:"log_format,omitempty"` // "json" or "console"
	MaxUploadBytes *int64  `json:"max_upload_bytes,omitempty"`
	ScriptTimeout  *string `json:"script_timeout,omitempty"` // duration string like "5s"
	Kernel         *string `json:"kernel,omitempty"`         // "brep" or "sdfx"
	Development    *bool   `json:"development,omitempty"`
}

func ptrString(v string) *string { return &v }
func ptrInt64(v int64) *int64    { return &v }
func ptrBool(v bool) *bool       { return &v }

// Empty returns a Config with every field unset.
func Empty() *Config {
	return &Config{}
}

// Load reads a Config from a JSON file. The file must have a .json
// extension and be at most 1MB.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Empty()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overlays the FACET_* variables found by lookup. Pass
// os.LookupEnv outside tests.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]**string{
		"FACET_LISTEN":         &c.Listen,
		"FACET_UPLOAD_DIR":     &c.UploadDir,
		"FACET_STL_DIR":        &c.STLDir,
		"FACET_EXPORTS_DIR":    &c.ExportsDir,
		"FACET_LOG_LEVEL":      &c.LogLevel,
		"FACET_LOG_FORMAT":     &c.LogFormat,
		"FACET_SCRIPT_TIMEOUT": &c.ScriptTimeout,
		"FACET_KERNEL":         &c.Kernel,
	}
	for key, field := range strs {
		if v, ok := lookup(key); ok && v != "" {
			*field = ptrString(v)
		}
	}

	if v, ok := lookup("FACET_MAX_UPLOAD_BYTES"); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("FACET_MAX_UPLOAD_BYTES: %w", err)
		}
		c.MaxUploadBytes = ptrInt64(n)
	}
	if v, ok := lookup("FACET_DEV"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("FACET_DEV: %w", err)
		}
		c.Development = ptrBool(b)
	}
	return c.Validate()
}

// Validate checks the values that are set.
func (c *Config) Validate() error {
	if c.MaxUploadBytes != nil && *c.MaxUploadBytes <= 0 {
		return fmt.Errorf("max_upload_bytes must be positive, got %d", *c.MaxUploadBytes)
	}
	if c.ScriptTimeout != nil && *c.ScriptTimeout != "" {
		d, err := time.ParseDuration(*c.ScriptTimeout)
		if err != nil {
			return fmt.Errorf("invalid script_timeout '%s': %w", *c.ScriptTimeout, err)
		}
		if d <= 0 {
			return fmt.Errorf("script_timeout must be positive, got %s", d)
		}
	}
	if c.LogFormat != nil {
		switch *c.LogFormat {
		case "json", "console":
		default:
			return fmt.Errorf("log_format must be json or console, got %q", *c.LogFormat)
		}
	}
	if c.Kernel != nil {
		switch *c.Kernel {
		case KernelBRep, KernelSDFX:
		default:
			return fmt.Errorf("kernel must be %s or %s, got %q", KernelBRep, KernelSDFX, *c.Kernel)
		}
	}
	return nil
}

func stringOr(p *string, def string) string {
	if p == nil || *p == "" {
		return def
	}
	return *p
}

// GetListen returns the listen address or the default.
func (c *Config) GetListen() string { return stringOr(c.Listen, DefaultListen) }

// GetUploadDir returns the upload temp directory or the default.
func (c *Config) GetUploadDir() string { return stringOr(c.UploadDir, DefaultUploadDir) }

// GetSTLDir returns the STL storage root or the default.
func (c *Config) GetSTLDir() string { return stringOr(c.STLDir, DefaultSTLDir) }

// GetExportsDir returns the plain-export directory or the default.
func (c *Config) GetExportsDir() string { return stringOr(c.ExportsDir, DefaultExportsDir) }

// GetLogLevel returns the log level or the default.
func (c *Config) GetLogLevel() string { return stringOr(c.LogLevel, DefaultLogLevel) }

// GetLogFormat returns the log format or the default.
func (c *Config) GetLogFormat() string { return stringOr(c.LogFormat, DefaultLogFormat) }

// GetKernel returns the kernel name or the default.
func (c *Config) GetKernel() string { return stringOr(c.Kernel, DefaultKernel) }

// GetMaxUploadBytes returns the upload size limit or the default.
func (c *Config) GetMaxUploadBytes() int64 {
	if c.MaxUploadBytes == nil {
		return DefaultMaxUploadBytes
	}
	return *c.MaxUploadBytes
}

// GetScriptTimeout parses and returns the script timeout.
func (c *Config) GetScriptTimeout() time.Duration {
	if c.ScriptTimeout == nil || *c.ScriptTimeout == "" {
		return DefaultScriptTimeout
	}
	d, err := time.ParseDuration(*c.ScriptTimeout)
	if err != nil {
		return DefaultScriptTimeout
	}
	return d
}

// GetDevelopment reports whether development mode is on.
func (c *Config) GetDevelopment() bool {
	return c.Development != nil && *c.Development
}

// SetListen overrides the listen address.
func (c *Config) SetListen(addr string) { c.Listen = ptrString(addr) }

// SetDevelopment overrides development mode.
func (c *Config) SetDevelopment(dev bool) { c.Development = ptrBool(dev) }
