package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/axonops/dfa-automation/internal/environment"
	"github.com/axonops/dfa-automation/pkg/errors"
)

// Config represents the complete configuration structure
type Config struct {
	Environment  string                 `mapstructure:"environment"`
	Environments map[string]RouteConfig `mapstructure:"environments"`
	Browser      BrowserConfig          `mapstructure:"browser"`
	Vault        VaultConfig            `mapstructure:"vault"`
	Logging      LoggingConfig          `mapstructure:"logging"`
}

// RouteConfig holds the login URLs for one environment
type RouteConfig struct {
	InitialURL string `mapstructure:"initial_url"`
	TargetURL  string `mapstructure:"target_url"`
}

// BrowserConfig contains Playwright browser settings
type BrowserConfig struct {
	Engine          string `mapstructure:"engine"`
	Headless        bool   `mapstructure:"headless"`
	TimeoutSecs     int    `mapstructure:"timeout"`
	WaitUntil       string `mapstructure:"wait_until"`
	ViewportWidth   int    `mapstructure:"viewport_width"`
	ViewportHeight  int    `mapstructure:"viewport_height"`
	InstallBrowsers bool   `mapstructure:"install_browsers"`
	DriverDirectory string `mapstructure:"driver_directory"`
}

func (b BrowserConfig) Timeout() time.Duration {
	return time.Duration(b.TimeoutSecs) * time.Second
}

// VaultConfig contains Vault-specific configuration
type VaultConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	URL            string `mapstructure:"url"`
	Backend        string `mapstructure:"backend"`
	AppRole        string `mapstructure:"approle"`
	SecretID       string `mapstructure:"secret_id"`
	CABundle       string `mapstructure:"ca_bundle"`
	RoutesPath     string `mapstructure:"routes_path"`
	TimeoutSecs    int    `mapstructure:"timeout"`
	RetryMax       int    `mapstructure:"retry_max"`
	RetryDelaySecs int    `mapstructure:"retry_delay"`
}

func (v VaultConfig) Timeout() time.Duration {
	return time.Duration(v.TimeoutSecs) * time.Second
}

func (v VaultConfig) RetryDelay() time.Duration {
	return time.Duration(v.RetryDelaySecs) * time.Second
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

var (
	validEngines    = map[string]bool{"chromium": true, "firefox": true, "webkit": true}
	validWaitStates = map[string]bool{"load": true, "domcontentloaded": true, "networkidle": true, "commit": true}
)

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Environments: map[string]RouteConfig{},
		Browser: BrowserConfig{
			Engine:         "chromium",
			Headless:       true,
			TimeoutSecs:    30,
			WaitUntil:      "load",
			ViewportWidth:  1280,
			ViewportHeight: 720,
		},
		Vault: VaultConfig{
			URL:            "http://127.0.0.1:8200",
			Backend:        "secret",
			RoutesPath:     "dfa-automation/environments",
			TimeoutSecs:    30,
			RetryMax:       3,
			RetryDelaySecs: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

// Load reads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	config := DefaultConfig()

	v := viper.New()
	v.SetConfigType("toml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("/etc/dfa-automation")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("DFA_AUTOMATION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvironmentVariables(v)
	setDefaults(v, config)

	if err := v.ReadInConfig(); err != nil {
		// An explicit path must exist; a searched one is optional
		if configPath != "" {
			return nil, errors.NewConfigError("", fmt.Sprintf("failed to read config file %s: %v", configPath, err), err)
		}
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, errors.NewConfigError("", "failed to unmarshal config", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// bindEnvironmentVariables binds specific environment variables for compatibility
func bindEnvironmentVariables(v *viper.Viper) {
	v.BindEnv("environment", "DFA_AUTOMATION_ENVIRONMENT", "ENVIRONMENT")

	for _, env := range environment.Known {
		slug := env.Slug()
		upper := strings.ToUpper(slug)
		v.BindEnv("environments."+slug+".initial_url", "DFA_AUTOMATION_"+upper+"_INITIAL_URL")
		v.BindEnv("environments."+slug+".target_url", "DFA_AUTOMATION_"+upper+"_TARGET_URL")
	}

	// Vault environment variables (compatible with Vault CLI)
	v.BindEnv("vault.url", "VAULT_ADDR")
	v.BindEnv("vault.ca_bundle", "VAULT_CACERT")
	v.BindEnv("vault.approle", "VAULT_APPROLE", "DFA_AUTOMATION_VAULT_APPROLE")
	v.BindEnv("vault.secret_id", "VAULT_SECRET_ID", "DFA_AUTOMATION_VAULT_SECRET_ID")

	v.BindEnv("logging.level", "DFA_AUTOMATION_LOG_LEVEL")
	v.BindEnv("logging.format", "DFA_AUTOMATION_LOG_FORMAT")
	v.BindEnv("logging.output", "DFA_AUTOMATION_LOG_OUTPUT")
}

// setDefaults sets default values in viper
func setDefaults(v *viper.Viper, config *Config) {
	v.SetDefault("environment", config.Environment)
	v.SetDefault("browser.engine", config.Browser.Engine)
	v.SetDefault("browser.headless", config.Browser.Headless)
	v.SetDefault("browser.timeout", config.Browser.TimeoutSecs)
	v.SetDefault("browser.wait_until", config.Browser.WaitUntil)
	v.SetDefault("browser.viewport_width", config.Browser.ViewportWidth)
	v.SetDefault("browser.viewport_height", config.Browser.ViewportHeight)
	v.SetDefault("browser.install_browsers", config.Browser.InstallBrowsers)
	v.SetDefault("vault.enabled", config.Vault.Enabled)
	v.SetDefault("vault.url", config.Vault.URL)
	v.SetDefault("vault.backend", config.Vault.Backend)
	v.SetDefault("vault.routes_path", config.Vault.RoutesPath)
	v.SetDefault("vault.timeout", config.Vault.TimeoutSecs)
	v.SetDefault("vault.retry_max", config.Vault.RetryMax)
	v.SetDefault("vault.retry_delay", config.Vault.RetryDelaySecs)
	v.SetDefault("logging.level", config.Logging.Level)
	v.SetDefault("logging.format", config.Logging.Format)
	v.SetDefault("logging.output", config.Logging.Output)
}

// ActiveEnvironment returns the tier selected by the environment setting
func (c *Config) ActiveEnvironment() environment.Environment {
	return environment.Parse(c.Environment)
}

// Routes builds the route table from the environments section
func (c *Config) Routes() environment.Table {
	table := make(environment.Table, len(c.Environments))
	for slug, route := range c.Environments {
		env := environment.FromSlug(slug)
		if !env.IsKnown() {
			continue
		}
		table[env] = environment.Route{InitialURL: route.InitialURL, TargetURL: route.TargetURL}
	}
	return table
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	for slug, route := range c.Environments {
		if !environment.FromSlug(slug).IsKnown() {
			return errors.NewConfigError("environments."+slug, fmt.Sprintf("unknown environment %q", slug), nil)
		}
		if err := validateURL("environments."+slug+".initial_url", route.InitialURL); err != nil {
			return err
		}
		if err := validateURL("environments."+slug+".target_url", route.TargetURL); err != nil {
			return err
		}
	}

	if err := c.Browser.validate(); err != nil {
		return err
	}

	if c.Vault.Enabled {
		if err := c.Vault.validate(); err != nil {
			return err
		}
	}

	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return errors.NewConfigError("logging.level", fmt.Sprintf("invalid log level: %s", c.Logging.Level), nil)
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return errors.NewConfigError("logging.format", fmt.Sprintf("invalid log format: %s", c.Logging.Format), nil)
	}

	if c.Logging.Output != "stdout" && c.Logging.Output != "stderr" {
		dir := filepath.Dir(c.Logging.Output)
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			return errors.NewConfigError("logging.output", fmt.Sprintf("log output directory does not exist: %s", dir), err)
		}
	}

	return nil
}

// ValidateActiveRoute checks that the active tier has both login URLs.
// Unknown tiers and Vault-backed routes always pass.
func (c *Config) ValidateActiveRoute() error {
	active := c.ActiveEnvironment()
	if !active.IsKnown() || c.Vault.Enabled {
		return nil
	}

	route := c.Environments[active.Slug()]
	if route.InitialURL == "" || route.TargetURL == "" {
		return errors.NewConfigError("environments."+active.Slug(),
			fmt.Sprintf("initial_url and target_url are required for environment %s", active.Identifier()), nil)
	}
	return nil
}

func (b BrowserConfig) validate() error {
	if !validEngines[strings.ToLower(b.Engine)] {
		return errors.NewConfigError("browser.engine", fmt.Sprintf("unsupported browser engine: %s", b.Engine), nil)
	}

	if !validWaitStates[strings.ToLower(b.WaitUntil)] {
		return errors.NewConfigError("browser.wait_until", fmt.Sprintf("invalid wait state: %s", b.WaitUntil), nil)
	}

	if b.TimeoutSecs <= 0 {
		return errors.NewConfigError("browser.timeout", "timeout must be positive", nil)
	}

	if b.ViewportWidth <= 0 || b.ViewportHeight <= 0 {
		return errors.NewConfigError("browser.viewport", "viewport dimensions must be positive", nil)
	}

	return nil
}

func (v VaultConfig) validate() error {
	if v.URL == "" {
		return errors.NewConfigError("vault.url", "URL cannot be empty", nil)
	}

	if v.Backend == "" {
		return errors.NewConfigError("vault.backend", "backend cannot be empty", nil)
	}

	if v.AppRole == "" {
		return errors.NewConfigError("vault.approle", "AppRole ID is required for authentication", nil)
	}

	if v.SecretID == "" {
		return errors.NewConfigError("vault.secret_id", "Secret ID is required for authentication", nil)
	}

	if v.RoutesPath == "" {
		return errors.NewConfigError("vault.routes_path", "routes path cannot be empty", nil)
	}

	if v.CABundle != "" {
		if _, err := os.Stat(v.CABundle); err != nil {
			return errors.NewConfigError("vault.ca_bundle", fmt.Sprintf("CA bundle file not found: %s", v.CABundle), err)
		}
	}

	if v.TimeoutSecs <= 0 {
		return errors.NewConfigError("vault.timeout", "timeout must be positive", nil)
	}

	if v.RetryMax < 0 {
		return errors.NewConfigError("vault.retry_max", "retry_max cannot be negative", nil)
	}

	if v.RetryDelaySecs < 0 {
		return errors.NewConfigError("vault.retry_delay", "retry_delay cannot be negative", nil)
	}

	return nil
}

// validateURL accepts an empty value or an absolute http(s) URL
func validateURL(field, raw string) error {
	if raw == "" {
		return nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return errors.NewConfigError(field, fmt.Sprintf("invalid URL: %s", raw), err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.NewConfigError(field, fmt.Sprintf("URL must use http or https: %s", raw), nil)
	}

	if u.Host == "" {
		return errors.NewConfigError(field, fmt.Sprintf("URL must include a host: %s", raw), nil)
	}

	return nil
}
