package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Backend selects the decoder set registered for full-pixel decodes.
type Backend string

const (
	BackendStdlib Backend = "stdlib"
	BackendVips   Backend = "vips"
)

// Interpolation names the filter used when scaling a photo onto the canvas.
type Interpolation string

const (
	InterpNearest    Interpolation = "nearest"
	InterpBiLinear   Interpolation = "bilinear"
	InterpCatmullRom Interpolation = "catmullrom"
)

// Preferences are the user-facing layout settings.  They are passed by value
// to each engine at construction time.
type Preferences struct {
	StackHorizontally bool `yaml:"stack_horizontally"`
	// ScalePriority true scales every photo up to the largest one on the
	// cross axis; false scales down to the smallest.
	ScalePriority     bool  `yaml:"scale_priority"`
	SpacingVertical   int   `yaml:"spacing_vertical"`   // dp
	SpacingHorizontal int   `yaml:"spacing_horizontal"` // dp
	BgFillColor       Color `yaml:"bg_fill_color"`
}

// SpacingDp returns the spacing along the stacking axis.
func (p Preferences) SpacingDp() int {
	if p.StackHorizontally {
		return p.SpacingHorizontal
	}
	return p.SpacingVertical
}

// Config is the top-level configuration struct.  All fields have safe defaults
// so callers can start with Default() and override only what they need.
type Config struct {
	Preferences Preferences `yaml:"preferences"`

	// Density converts dp spacing to pixels.
	Density float64 `yaml:"density"`

	Output OutputConfig `yaml:"output"`

	// Default encode options offered in the sizing confirmation.
	DefaultFormat  string `yaml:"default_format"` // "png" or "jpeg"
	DefaultQuality int    `yaml:"default_quality"`

	// Job queue controls.
	QueueSize  int           `yaml:"queue_size"`
	JobTimeout time.Duration `yaml:"job_timeout"`

	// Memory limits.
	Limits LimitsConfig `yaml:"limits"`

	Interpolation Interpolation `yaml:"interpolation"`
	Backend       Backend       `yaml:"backend"`
	Vips          VipsConfig    `yaml:"vips"`

	// MediaIndex is the SQLite file recording written outputs.  Empty
	// disables the index.
	MediaIndex string `yaml:"media_index"`

	// Logging.
	LogLevel  string `yaml:"log_level"`  // "debug", "info", "warn", "error"
	LogFormat string `yaml:"log_format"` // "text" or "json"
}

// OutputConfig places stitched files under Dir/AppName.
type OutputConfig struct {
	Dir         string `yaml:"dir"`
	AppName     string `yaml:"app_name"`
	Permissions uint32 `yaml:"permissions"`
}

// LimitsConfig bounds per-image memory use.
type LimitsConfig struct {
	MaxSourceBytes  int64 `yaml:"max_source_bytes"`  // 0 = no limit
	MaxRasterPixels int64 `yaml:"max_raster_pixels"` // 0 = no limit
}

// VipsConfig tunes the libvips runtime when Backend is "vips".
type VipsConfig struct {
	ConcurrencyLevel int  `yaml:"concurrency_level"`
	MaxCacheSize     int  `yaml:"max_cache_size"`
	ReportLeaks      bool `yaml:"report_leaks"`
}

// Default returns a Config populated with sensible production defaults.
func Default() Config {
	return Config{
		Preferences: Preferences{
			StackHorizontally: false,
			ScalePriority:     true,
			SpacingVertical:   0,
			SpacingHorizontal: 0,
			BgFillColor:       0,
		},
		Density: 1,
		Output: OutputConfig{
			Dir:         os.TempDir(),
			AppName:     "PhotoAffix",
			Permissions: 0o755,
		},
		DefaultFormat:  "jpeg",
		DefaultQuality: 90,
		QueueSize:      8,
		JobTimeout:     2 * time.Minute,
		Limits: LimitsConfig{
			MaxSourceBytes:  64 << 20,
			MaxRasterPixels: 256 << 20,
		},
		Interpolation: InterpCatmullRom,
		Backend:       BackendStdlib,
		Vips: VipsConfig{
			ConcurrencyLevel: 1,
			MaxCacheSize:     0,
		},
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// Validate returns an error if the configuration is inconsistent.
func Validate(c Config) error {
	if c.DefaultQuality < 1 || c.DefaultQuality > 100 {
		return errors.New("config: DefaultQuality must be between 1 and 100")
	}
	switch c.DefaultFormat {
	case "png", "jpeg", "jpg":
	default:
		return fmt.Errorf("config: DefaultFormat %q must be png or jpeg", c.DefaultFormat)
	}
	if c.Density <= 0 {
		return errors.New("config: Density must be positive")
	}
	if c.Preferences.SpacingVertical < 0 || c.Preferences.SpacingHorizontal < 0 {
		return errors.New("config: spacing must not be negative")
	}
	if c.QueueSize <= 0 {
		return errors.New("config: QueueSize must be positive")
	}
	if c.Output.AppName == "" {
		return errors.New("config: Output.AppName must be set")
	}
	switch c.Interpolation {
	case InterpNearest, InterpBiLinear, InterpCatmullRom:
	default:
		return fmt.Errorf("config: unknown Interpolation %q", c.Interpolation)
	}
	switch c.Backend {
	case BackendStdlib, BackendVips:
	default:
		return fmt.Errorf("config: unknown Backend %q", c.Backend)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("config: unknown LogFormat %q", c.LogFormat)
	}
	return nil
}

// Load reads a YAML file over Default().  Keys missing from the file keep
// their default values.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
