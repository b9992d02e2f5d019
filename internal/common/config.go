package common

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"

	"github.com/ternarybob/vizcheck/internal/retry"
)

// EnvPrefix prefixes every environment override, e.g. VIZCHECK_BROWSER_DRIVER
const EnvPrefix = "VIZCHECK"

// Config represents the application configuration
type Config struct {
	Environment string         `toml:"environment" split_words:"true"` // "development" or "ci"
	Target      TargetConfig   `toml:"target"`
	Browser     BrowserConfig  `toml:"browser"`
	Retry       RetryConfig    `toml:"retry"`
	Fixture     FixtureConfig  `toml:"fixture"`
	Storage     StorageConfig  `toml:"storage"`
	Logging     LoggingConfig  `toml:"logging"`
	Results     ResultsConfig  `toml:"results"`
	Schedule    ScheduleConfig `toml:"schedule"`
}

// TargetConfig points the suite at an application under test
type TargetConfig struct {
	BaseURL string `toml:"base_url" split_words:"true" validate:"omitempty,url"` // Empty starts the embedded fixture app
}

// BrowserConfig selects and configures the browser driver
type BrowserConfig struct {
	Driver       string `toml:"driver" split_words:"true" validate:"oneof=chromedp rod http"`
	Headless     bool   `toml:"headless" split_words:"true"`
	WindowWidth  int    `toml:"window_width" split_words:"true" validate:"min=320"`
	WindowHeight int    `toml:"window_height" split_words:"true" validate:"min=240"`
	Timeout      string `toml:"timeout" split_words:"true"` // Per-operation timeout, e.g. "30s"
}

// RetryConfig is the read-after-render polling budget
type RetryConfig struct {
	MaxAttempts int    `toml:"max_attempts" split_words:"true" validate:"min=1"`
	Interval    string `toml:"interval" split_words:"true"` // e.g. "250ms"
	Timeout     string `toml:"timeout" split_words:"true"`  // e.g. "20s", empty for no overall bound
}

// FixtureConfig configures the embedded fixture visualization app
type FixtureConfig struct {
	Host        string `toml:"host" split_words:"true" validate:"required"`
	Port        int    `toml:"port" split_words:"true" validate:"gte=0,lte=65535"` // 0 picks a free port
	RenderDelay string `toml:"render_delay" split_words:"true"`                    // Delay before bars reach their final height
	Dataset     string `toml:"dataset" split_words:"true"`                         // Optional YAML dataset replacing the embedded one
}

// StorageConfig holds storage backends
type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path" split_words:"true" validate:"required"`
	ResetOnStartup bool   `toml:"reset_on_startup" split_words:"true"` // Delete database on startup for clean runs
}

// LoggingConfig configures the arbor logger
type LoggingConfig struct {
	Level      string   `toml:"level" split_words:"true" validate:"oneof=debug info warn error"`
	Output     []string `toml:"output" split_words:"true" validate:"dive,oneof=stdout console file"`
	TimeFormat string   `toml:"time_format" split_words:"true"`
}

// ResultsConfig controls where reports and screenshots go
type ResultsConfig struct {
	Dir         string `toml:"dir" split_words:"true" validate:"required"`
	Screenshots bool   `toml:"screenshots" split_words:"true"` // Add a PNG to the page snapshot written on every failure
}

// ScheduleConfig enables watch mode
type ScheduleConfig struct {
	Cron string `toml:"cron" split_words:"true"` // Empty runs the suite once
}

// NewDefaultConfig returns the configuration used when no file overrides it
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Browser: BrowserConfig{
			Driver:       "chromedp",
			Headless:     true,
			WindowWidth:  1920,
			WindowHeight: 1080,
			Timeout:      "30s",
		},
		Retry: RetryConfig{
			MaxAttempts: 20,
			Interval:    "250ms",
			Timeout:     "20s",
		},
		Fixture: FixtureConfig{
			Host:        "127.0.0.1",
			Port:        0,
			RenderDelay: "300ms",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path:           "./data/vizcheck",
				ResetOnStartup: true,
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout"},
			TimeFormat: "15:04:05.000",
		},
		Results: ResultsConfig{
			Dir:         "./results",
			Screenshots: true,
		},
	}
}

// LoadFromFiles loads configuration with priority: defaults -> file1 -> file2 -> ... -> env.
// CLI flags are applied afterwards with ApplyFlagOverrides.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	if err := envconfig.Process(EnvPrefix, config); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// ApplyFlagOverrides applies command-line overrides (highest priority)
func ApplyFlagOverrides(config *Config, baseURL, driver string) {
	if baseURL != "" {
		config.Target.BaseURL = baseURL
	}
	if driver != "" {
		config.Browser.Driver = driver
	}
}

// Validate checks struct tags, durations and the cron schedule
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if _, err := c.RetryPolicy(); err != nil {
		return err
	}
	if _, err := c.BrowserTimeout(); err != nil {
		return err
	}
	if _, err := c.RenderDelay(); err != nil {
		return err
	}
	if c.Schedule.Cron != "" {
		if err := ValidateSchedule(c.Schedule.Cron); err != nil {
			return err
		}
	}
	return nil
}

// RetryPolicy converts the retry section into a retry.Policy
func (c *Config) RetryPolicy() (retry.Policy, error) {
	interval, err := parseDuration("retry.interval", c.Retry.Interval)
	if err != nil {
		return retry.Policy{}, err
	}
	timeout, err := parseDuration("retry.timeout", c.Retry.Timeout)
	if err != nil {
		return retry.Policy{}, err
	}
	p := retry.Policy{
		MaxAttempts: c.Retry.MaxAttempts,
		Interval:    interval,
		Timeout:     timeout,
	}
	return p, p.Validate()
}

// BrowserTimeout returns the per-operation browser timeout
func (c *Config) BrowserTimeout() (time.Duration, error) {
	return parseDuration("browser.timeout", c.Browser.Timeout)
}

// RenderDelay returns the fixture app's render delay
func (c *Config) RenderDelay() (time.Duration, error) {
	return parseDuration("fixture.render_delay", c.Fixture.RenderDelay)
}

// IsCI reports whether the run is non-interactive
func (c *Config) IsCI() bool {
	return c.Environment == "ci"
}

// ValidateSchedule checks a six-field (seconds first) cron expression
func ValidateSchedule(schedule string) error {
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}
	return nil
}

func parseDuration(name, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %w", name, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative, got %s", name, value)
	}
	return d, nil
}
