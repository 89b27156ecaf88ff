package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/melaconv/internal/paprika"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Convert ConvertConfig     `yaml:"convert"`
	Ledger  LedgerConfig      `yaml:"ledger"`
	Watch   WatchConfig       `yaml:"watch"`
	Auth    AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Convert.Validate(); err != nil {
		return err
	}
	if err := c.Watch.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// ConvertConfig controls how target archives are written.
type ConvertConfig struct {
	Overwrite      bool   `yaml:"overwrite"`
	DuplicateNames string `yaml:"duplicate_names"`
	Timezone       string `yaml:"timezone"`
}

// Validate validates the conversion configuration.
func (c *ConvertConfig) Validate() error {
	if c.DuplicateNames == "" {
		c.DuplicateNames = string(paprika.DuplicateSuffix)
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.DuplicateNames, validation.In(string(paprika.DuplicateSuffix), string(paprika.DuplicateReject))),
	); err != nil {
		return err
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves Timezone; empty means the process's local zone.
func (c *ConvertConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("convert: timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// OutputOptions returns the writer options for this configuration.
func (c *ConvertConfig) OutputOptions() paprika.Options {
	return paprika.Options{
		Overwrite:  c.Overwrite,
		Duplicates: paprika.DuplicatePolicy(c.DuplicateNames),
	}
}

// LedgerConfig holds the conversion ledger database path. Empty disables it.
type LedgerConfig struct {
	Path string `yaml:"path"`
}

// Enabled reports whether runs should be recorded.
func (c *LedgerConfig) Enabled() bool {
	return c.Path != ""
}

// WatchConfig configures re-conversion when the source archive changes.
type WatchConfig struct {
	Source   string        `yaml:"source"`
	Output   string        `yaml:"output"`
	Debounce time.Duration `yaml:"debounce"`
}

// Enabled reports whether a source archive is being watched.
func (c *WatchConfig) Enabled() bool {
	return c.Source != ""
}

// Validate validates the watch configuration.
func (c *WatchConfig) Validate() error {
	if !c.Enabled() {
		return nil
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Output, validation.Required),
		validation.Field(&c.Debounce, validation.Min(time.Duration(0))),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local use.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Convert: ConvertConfig{
			DuplicateNames: string(paprika.DuplicateSuffix),
		},
		Watch: WatchConfig{
			Debounce: 500 * time.Millisecond,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
