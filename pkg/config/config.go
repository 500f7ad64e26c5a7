// Package config loads forceweave configuration.
//
// Configuration is read from TOML or YAML, chosen by file extension, on top
// of built-in defaults. Without an explicit path the file is looked up
// following the XDG Base Directory specification:
//
//	$XDG_CONFIG_HOME/forceweave/config.toml  (default ~/.config/forceweave/config.toml)
//
// A missing default file is not an error. Command-line flags are applied by
// the caller after Load.
package config

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/matzehuels/forceweave/pkg/cache"
	"github.com/matzehuels/forceweave/pkg/errors"
	"github.com/matzehuels/forceweave/pkg/filter"
	"github.com/matzehuels/forceweave/pkg/layout"
	"github.com/matzehuels/forceweave/pkg/worker"
)

// AppName names the XDG subdirectory.
const AppName = "forceweave"

// Duration is a time.Duration written as a string such as "300ms".
type Duration struct{ time.Duration }

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText formats the duration.
func (d Duration) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// =============================================================================
// Sections
// =============================================================================

// Layout configures layout controllers.
type Layout struct {
	OffloadThreshold int      `toml:"offload_threshold" yaml:"offload_threshold" validate:"gte=0"`
	BatchSize        int      `toml:"batch_size" yaml:"batch_size" validate:"gte=1"`
	TicksPerRender   int      `toml:"ticks_per_render" yaml:"ticks_per_render" validate:"gte=1"`
	PollInterval     Duration `toml:"poll_interval" yaml:"poll_interval" validate:"gt=0"`
	Width            float64  `toml:"width" yaml:"width" validate:"gt=0"`
	Height           float64  `toml:"height" yaml:"height" validate:"gt=0"`
	Seed             uint64   `toml:"seed" yaml:"seed"`
}

// Worker selects the offload transport.
type Worker struct {
	Transport   string `toml:"transport" yaml:"transport" validate:"oneof=none local redis"`
	RedisAddr   string `toml:"redis_addr" yaml:"redis_addr" validate:"required_if=Transport redis"`
	QueuePrefix string `toml:"queue_prefix" yaml:"queue_prefix" validate:"required"`
	Concurrency int    `toml:"concurrency" yaml:"concurrency" validate:"gte=0"`
}

// Source selects where graph data comes from.
type Source struct {
	Kind     string `toml:"kind" yaml:"kind" validate:"omitempty,oneof=file mongo"`
	Path     string `toml:"path" yaml:"path" validate:"required_if=Kind file"`
	MongoURI string `toml:"mongo_uri" yaml:"mongo_uri" validate:"required_if=Kind mongo"`
	Database string `toml:"database" yaml:"database" validate:"required_if=Kind mongo"`
	Project  string `toml:"project" yaml:"project" validate:"required_if=Kind mongo"`
}

// Refresh configures periodic refresh.
type Refresh struct {
	Interval Duration `toml:"interval" yaml:"interval" validate:"gt=0"`
}

// Server configures the HTTP API.
type Server struct {
	Addr        string   `toml:"addr" yaml:"addr" validate:"required"`
	Timeout     Duration `toml:"timeout" yaml:"timeout" validate:"gt=0"`
	CORSOrigins []string `toml:"cors_origins" yaml:"cors_origins"`
	Metrics     bool     `toml:"metrics" yaml:"metrics"`
}

// Filter sets the initial mode and category selection.
type Filter struct {
	Mode       string   `toml:"mode" yaml:"mode"`
	Categories []string `toml:"categories" yaml:"categories"`
}

// Cache configures the rendered-artifact cache.
type Cache struct {
	Enabled bool     `toml:"enabled" yaml:"enabled"`
	Dir     string   `toml:"dir" yaml:"dir"`
	TTL     Duration `toml:"ttl" yaml:"ttl" validate:"gte=0"`
}

// Config is the complete configuration.
type Config struct {
	Layout  Layout  `toml:"layout" yaml:"layout"`
	Worker  Worker  `toml:"worker" yaml:"worker"`
	Source  Source  `toml:"source" yaml:"source"`
	Refresh Refresh `toml:"refresh" yaml:"refresh"`
	Server  Server  `toml:"server" yaml:"server"`
	Filter  Filter  `toml:"filter" yaml:"filter"`
	Cache   Cache   `toml:"cache" yaml:"cache"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Layout: Layout{
			OffloadThreshold: layout.DefaultOffloadThreshold,
			BatchSize:        layout.DefaultBatchSize,
			TicksPerRender:   layout.DefaultTicksPerRender,
			PollInterval:     Duration{layout.DefaultPollInterval},
			Width:            layout.DefaultWidth,
			Height:           layout.DefaultHeight,
		},
		Worker: Worker{
			Transport:   "local",
			QueuePrefix: worker.DefaultPrefix,
		},
		Refresh: Refresh{Interval: Duration{30 * time.Second}},
		Server: Server{
			Addr:    ":8080",
			Timeout: Duration{30 * time.Second},
			Metrics: true,
		},
		Filter: Filter{Mode: string(filter.DefaultMode)},
		Cache:  Cache{Enabled: true, TTL: Duration{cache.DefaultTTL}},
	}
}

// =============================================================================
// Paths
// =============================================================================

// Dir returns the XDG config directory for forceweave.
func Dir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", AppName)
}

// Path returns the default config file path.
func Path() string {
	dir := Dir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.toml")
}

// CacheDir returns the cache directory: Cache.Dir if set, else the XDG
// cache directory for forceweave.
func (c Config) CacheDir() string {
	if c.Cache.Dir != "" {
		return c.Cache.Dir
	}
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".cache", AppName)
}

// =============================================================================
// Loading
// =============================================================================

// Load reads the configuration at path over the defaults and validates
// it. An empty path uses [Path], which may be absent.
func Load(path string) (Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = Path()
		if path == "" {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && stderrors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := Decode(data, filepath.Ext(path), &cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Decode parses data in the format named by ext (".toml", ".yaml" or
// ".yml") into cfg.
func Decode(data []byte, ext string, cfg *Config) error {
	var err error
	switch strings.ToLower(ext) {
	case ".toml":
		_, err = toml.Decode(string(data), cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		return errors.New(errors.ErrCodeInvalidConfig, "unsupported config format %q", ext)
	}
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, err, "parsing config")
	}
	return nil
}

// =============================================================================
// Validation
// =============================================================================

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterCustomTypeFunc(func(f reflect.Value) any {
		return int64(f.Interface().(Duration).Duration)
	}, Duration{})
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("toml"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// Validate checks field constraints, the filter mode and categories.
func (c Config) Validate() error {
	var msgs []string
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !stderrors.As(err, &verrs) {
			return errors.Wrap(errors.ErrCodeInvalidConfig, err, "validating config")
		}
		for _, e := range verrs {
			msgs = append(msgs, formatFieldError(e))
		}
	}
	if _, err := c.Mode(); err != nil {
		msgs = append(msgs, err.Error())
	}
	if _, err := c.Selection(); err != nil {
		msgs = append(msgs, err.Error())
	}
	if len(msgs) > 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "%s", strings.Join(msgs, "; "))
	}
	return nil
}

func formatFieldError(e validator.FieldError) string {
	field := strings.TrimPrefix(e.Namespace(), "Config.")
	switch e.Tag() {
	case "required", "required_if":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, e.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// =============================================================================
// Conversions
// =============================================================================

// Mode parses the configured filter mode.
func (c Config) Mode() (filter.Mode, error) {
	if c.Filter.Mode == "" {
		return filter.DefaultMode, nil
	}
	return filter.ParseMode(c.Filter.Mode)
}

// Selection parses the configured categories. An empty list selects all.
func (c Config) Selection() (filter.Selection, error) {
	return filter.ParseSelection(c.Filter.Categories)
}

// LayoutConfig returns the controller settings. Callbacks, spawner and
// logger are left for the caller.
func (c Config) LayoutConfig() layout.Config {
	return layout.Config{
		Width:            c.Layout.Width,
		Height:           c.Layout.Height,
		OffloadThreshold: c.Layout.OffloadThreshold,
		BatchSize:        c.Layout.BatchSize,
		TicksPerRender:   c.Layout.TicksPerRender,
		PollInterval:     c.Layout.PollInterval.Duration,
		Seed:             c.Layout.Seed,
	}
}
