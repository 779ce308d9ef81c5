// Package config builds the immutable runtime configuration from defaults,
// an optional YAML file, .env files and the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "PILOT"

type Config struct {
	LLM      LLMConfig      `mapstructure:"llm"`
	Browser  BrowserConfig  `mapstructure:"browser"`
	Task     TaskConfig     `mapstructure:"task"`
	Resolver ResolverConfig `mapstructure:"resolver"`
	Logger   LoggerConfig   `mapstructure:"logger"`
	Server   ServerConfig   `mapstructure:"server"`

	// EnvFiles lists the .env files that were loaded.
	EnvFiles []string `mapstructure:"-"`
}

type LLMConfig struct {
	APIKey            string        `mapstructure:"api_key"`
	Model             string        `mapstructure:"model"`
	BaseURL           string        `mapstructure:"base_url"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	Timeout           time.Duration `mapstructure:"timeout"`
	ObserveRetries    int           `mapstructure:"observe_retries"`
}

type BrowserConfig struct {
	Headless           bool          `mapstructure:"headless"`
	NoSandbox          bool          `mapstructure:"no_sandbox"`
	SlowMotion         time.Duration `mapstructure:"slow_motion"`
	Timeout            time.Duration `mapstructure:"timeout"`
	ControlURL         string        `mapstructure:"control_url"`
	Bin                string        `mapstructure:"bin"`
	ViewportWidth      int           `mapstructure:"viewport_width"`
	ViewportHeight     int           `mapstructure:"viewport_height"`
	MaxScreenshotWidth int           `mapstructure:"max_screenshot_width"`
	StartURL           string        `mapstructure:"start_url"`
}

type TaskConfig struct {
	MaxTurns       int           `mapstructure:"max_turns"`
	MaxRetries     int           `mapstructure:"max_retries"`
	Timeout        time.Duration `mapstructure:"timeout"`
	SettleDelay    time.Duration `mapstructure:"settle_delay"`
	NavigationIdle time.Duration `mapstructure:"navigation_idle"`
	MaxLLMErrors   int           `mapstructure:"max_llm_errors"`
}

type ResolverConfig struct {
	Attempts         int           `mapstructure:"attempts"`
	Delay            time.Duration `mapstructure:"delay"`
	InternalSegments []string      `mapstructure:"internal_segments"`
}

type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Dir        string `mapstructure:"dir"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// SetDefaults registers every key so environment overrides resolve even
// without a config file.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "google/gemini-2.5-flash")
	v.SetDefault("llm.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("llm.requests_per_minute", 20)
	v.SetDefault("llm.timeout", 2*time.Minute)
	v.SetDefault("llm.observe_retries", 2)

	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.no_sandbox", false)
	v.SetDefault("browser.slow_motion", time.Duration(0))
	v.SetDefault("browser.timeout", 10*time.Second)
	v.SetDefault("browser.control_url", "")
	v.SetDefault("browser.bin", "")
	v.SetDefault("browser.viewport_width", 1440)
	v.SetDefault("browser.viewport_height", 900)
	v.SetDefault("browser.max_screenshot_width", 1440)
	v.SetDefault("browser.start_url", "")

	v.SetDefault("task.max_turns", 30)
	v.SetDefault("task.max_retries", 3)
	v.SetDefault("task.timeout", 5*time.Minute)
	v.SetDefault("task.settle_delay", 500*time.Millisecond)
	v.SetDefault("task.navigation_idle", 5*time.Second)
	v.SetDefault("task.max_llm_errors", 3)

	v.SetDefault("resolver.attempts", 10)
	v.SetDefault("resolver.delay", 500*time.Millisecond)
	v.SetDefault("resolver.internal_segments", []string{"/app-shell/", "/sidebar", "/topbar"})

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.dir", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)

	v.SetDefault("server.addr", ":8080")
}

type LoadOptions struct {
	// ConfigFile is an explicit YAML file; empty searches ./browser-pilot.yaml.
	ConfigFile string
	// EnvDir holds the .env files; empty means the working directory.
	EnvDir string
	// Overrides are applied last, keyed like "browser.headless".
	Overrides map[string]any
}

// Load resolves the configuration in order: defaults, config file, .env
// files and environment, overrides. The result is validated.
func Load(opts LoadOptions) (*Config, error) {
	envDir := opts.EnvDir
	if envDir == "" {
		envDir = "."
	}
	envFiles, err := loadEnvFiles(envDir)
	if err != nil {
		return nil, err
	}

	v := viper.New()
	SetDefaults(v)

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("browser-pilot")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.ConfigFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindings := map[string][]string{
		"llm.api_key":      {EnvPrefix + "_LLM_API_KEY", "OPENROUTER_API_KEY"},
		"llm.model":        {EnvPrefix + "_LLM_MODEL", "OPENROUTER_MODEL_NAME"},
		"llm.base_url":     {EnvPrefix + "_LLM_BASE_URL", "OPENROUTER_BASE_URL"},
		"browser.headless": {EnvPrefix + "_BROWSER_HEADLESS", "BROWSER_HEADLESS"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	for key, val := range opts.Overrides {
		v.Set(key, val)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	cfg.EnvFiles = envFiles

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	var errs []error
	if c.LLM.APIKey == "" {
		errs = append(errs, errors.New("llm.api_key is required (OPENROUTER_API_KEY)"))
	}
	if c.LLM.Model == "" {
		errs = append(errs, errors.New("llm.model is required (OPENROUTER_MODEL_NAME)"))
	}
	if c.Task.MaxTurns <= 0 {
		errs = append(errs, errors.New("task.max_turns must be a positive integer"))
	}
	if c.Task.Timeout <= 0 {
		errs = append(errs, errors.New("task.timeout must be positive"))
	}
	if c.Browser.ViewportWidth <= 0 || c.Browser.ViewportHeight <= 0 {
		errs = append(errs, errors.New("browser viewport must be positive"))
	}
	switch c.Logger.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("logger.format must be console or json, got %q", c.Logger.Format))
	}
	return errors.Join(errs...)
}
