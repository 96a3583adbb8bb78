// Package config provides configuration structures and loading logic for
// the docscan command and MCP server.
//
// Pipeline thresholds are fixed in package scan and are intentionally not
// configurable here.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ironsheep/docscan-mcp/internal/imaging"
	"github.com/ironsheep/docscan-mcp/internal/logging"
)

// defaultLanguage matches ocr.DefaultLanguage without linking Tesseract.
const defaultLanguage = "eng"

// Config holds the global configuration.
type Config struct {
	Log     LogConfig     `yaml:"log"`
	Output  OutputConfig  `yaml:"output"`
	Workers int           `yaml:"workers"`
	OCR     OCRConfig     `yaml:"ocr"`
	Overlay OverlayConfig `yaml:"overlay"`
	Metrics MetricsConfig `yaml:"metrics"`
	Watch   WatchConfig   `yaml:"watch"`
}

// LogConfig holds configuration for logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// OutputConfig controls where scanned pages are written.
type OutputConfig struct {
	// Dir receives output files. Empty means next to each input.
	Dir string `yaml:"dir"`

	// Suffix is appended to the input stem: page.png -> page_scan.jpg.
	Suffix string `yaml:"suffix"`

	// Overwrite replaces existing outputs instead of choosing a unique
	// processed-<id>.jpg name.
	Overwrite bool `yaml:"overwrite"`
}

// OCRConfig holds text recognition settings.
type OCRConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Language string `yaml:"language"`
}

// OverlayConfig holds the color used to outline detected documents.
type OverlayConfig struct {
	Color string `yaml:"color"`
}

// MetricsConfig holds the Prometheus listener address. Empty disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// WatchConfig holds hot-folder settings.
type WatchConfig struct {
	Dir string `yaml:"dir"`

	// Settle is how long a file must go without writes before it is scanned.
	Settle time.Duration `yaml:"settle"`
}

// Default returns a configuration with defaults applied.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Output: OutputConfig{
			Suffix: "_scan",
		},
		Workers: 4,
		OCR: OCRConfig{
			Language: defaultLanguage,
		},
		Overlay: OverlayConfig{
			Color: imaging.DefaultOverlayColor,
		},
		Watch: WatchConfig{
			Settle: time.Second,
		},
	}
}

// Load reads configuration from a file and applies environment variable
// overrides. An empty path yields the defaults plus overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	if val := os.Getenv("DOCSCAN_LOG_LEVEL"); val != "" {
		cfg.Log.Level = val
	}
	if val := os.Getenv("DOCSCAN_LOG_FORMAT"); val != "" {
		cfg.Log.Format = val
	}

	if val := os.Getenv("DOCSCAN_OUTPUT_DIR"); val != "" {
		cfg.Output.Dir = val
	}
	if val := os.Getenv("DOCSCAN_OUTPUT_SUFFIX"); val != "" {
		cfg.Output.Suffix = val
	}
	if val := os.Getenv("DOCSCAN_OUTPUT_OVERWRITE"); val == "true" {
		cfg.Output.Overwrite = true
	}

	if val := os.Getenv("DOCSCAN_WORKERS"); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("DOCSCAN_WORKERS: %w", err)
		}
		cfg.Workers = n
	}

	if val := os.Getenv("DOCSCAN_OCR_ENABLED"); val == "true" {
		cfg.OCR.Enabled = true
	}
	if val := os.Getenv("DOCSCAN_OCR_LANGUAGE"); val != "" {
		cfg.OCR.Language = val
	}

	if val := os.Getenv("DOCSCAN_OVERLAY_COLOR"); val != "" {
		cfg.Overlay.Color = val
	}

	if val := os.Getenv("DOCSCAN_METRICS_ADDR"); val != "" {
		cfg.Metrics.Addr = val
	}

	if val := os.Getenv("DOCSCAN_WATCH_DIR"); val != "" {
		cfg.Watch.Dir = val
	}
	if val := os.Getenv("DOCSCAN_WATCH_SETTLE"); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("DOCSCAN_WATCH_SETTLE: %w", err)
		}
		cfg.Watch.Settle = d
	}

	return nil
}

// Validate performs validation of the configuration.
func (c *Config) Validate() error {
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("log configuration: %w", err)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if strings.ContainsAny(c.Output.Suffix, `/\`) {
		return fmt.Errorf("output suffix %q must not contain path separators", c.Output.Suffix)
	}
	if _, err := imaging.ParseColor(c.Overlay.Color); err != nil {
		return fmt.Errorf("overlay configuration: %w", err)
	}
	if c.Watch.Settle < 0 {
		return fmt.Errorf("watch settle must not be negative, got %s", c.Watch.Settle)
	}
	if strings.TrimSpace(c.OCR.Language) == "" {
		c.OCR.Language = defaultLanguage
	}
	return nil
}

// Validate checks the level and format names.
func (c *LogConfig) Validate() error {
	if _, err := logging.ParseLevel(c.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Format) {
	case "", "text", "json":
		return nil
	default:
		return fmt.Errorf("unknown log format %q", c.Format)
	}
}

// Logging returns the logger settings for this configuration.
func (c *Config) Logging() logging.Config {
	return logging.Config{Level: c.Log.Level, Format: c.Log.Format}
}
