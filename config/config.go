// Package config loads the modhost YAML configuration, applies environment
// overrides and validates the result.
package config

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/caffeineduck/modhost/errors"
)

// CacheDirDefault selects the per-user cache directory.
const CacheDirDefault = "default"

var validate = validator.New()

// Extension declares one mod to load at startup.
type Extension struct {
	Name     string            `yaml:"name" validate:"required"`
	Path     string            `yaml:"path" validate:"required"`
	Schedule string            `yaml:"schedule" validate:"omitempty,oneof=startup update"`
	Env      map[string]string `yaml:"env,omitempty"`
}

type Config struct {
	LogLevel          string        `yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
	LogFormat         string        `yaml:"log_format" validate:"omitempty,oneof=console json"`
	LogFile           string        `yaml:"log_file"`
	Headless          bool          `yaml:"headless"`
	TickRate          time.Duration `yaml:"tick_rate" validate:"gte=0"`
	MaxTicks          uint64        `yaml:"max_ticks"`
	CallTimeout       time.Duration `yaml:"call_timeout" validate:"gte=0"`
	MemoryLimitPages  uint32        `yaml:"memory_limit_pages" validate:"lte=65536"`
	CacheDir          string        `yaml:"cache_dir"`
	DefaultComponents []string      `yaml:"default_components" validate:"dive,required"`
	Extensions        []Extension   `yaml:"extensions" validate:"unique=Name,dive"`
}

// overrides are read from the environment after the file.
type overrides struct {
	Headless string `env:"MVP_HEADLESS"`
	LogLevel string `env:"MODHOST_LOG_LEVEL"`
	LogFile  string `env:"MODHOST_LOG_FILE"`
	CacheDir string `env:"MODHOST_CACHE_DIR"`
}

// Default returns the configuration used without a file.
func Default() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "console",
		TickRate:  100 * time.Millisecond,
	}
}

// Load reads path, applies environment overrides and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Config(fmt.Sprintf("reading config %s", path), err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Config(fmt.Sprintf("parsing config %s", path), err)
	}

	base := filepath.Dir(path)
	for i := range cfg.Extensions {
		if p := cfg.Extensions[i].Path; p != "" && !filepath.IsAbs(p) {
			cfg.Extensions[i].Path = filepath.Join(base, p)
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Config(fmt.Sprintf("validating config %s", path), err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from MVP_HEADLESS and the MODHOST_* variables.
func (c *Config) ApplyEnv() error {
	var o overrides
	if err := env.Parse(&o); err != nil {
		return errors.Config("parse env", err)
	}
	if o.Headless != "" {
		c.Headless = truthy(o.Headless)
	}
	if o.LogLevel != "" {
		c.LogLevel = strings.ToLower(o.LogLevel)
	}
	if o.LogFile != "" {
		c.LogFile = o.LogFile
	}
	if o.CacheDir != "" {
		c.CacheDir = o.CacheDir
	}
	return nil
}

// Validate checks field constraints and extension name uniqueness.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("%s", strings.Join(msgs, "; "))
}

// Extension returns the declaration named name.
func (c *Config) Extension(name string) (Extension, bool) {
	for _, e := range c.Extensions {
		if e.Name == name {
			return e, true
		}
	}
	return Extension{}, false
}

func describe(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", field, fe.Param(), fe.Value())
	case "unique":
		return field + " must have unique names"
	default:
		return fmt.Sprintf("%s failed %s=%s", field, fe.Tag(), fe.Param())
	}
}

// truthy treats any value other than 0 and false as set.
func truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "0", "false", "no", "off":
		return false
	}
	return true
}
