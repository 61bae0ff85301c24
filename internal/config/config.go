// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// Components receive only the section they need; the full interface is used
// by the composition root in cmd.
type Interface interface {
	Logger() LoggerConfig
	Browser() BrowserConfig
	Site() SiteConfig
	Engine() EngineConfig
	Server() ServerConfig

	SetBrowserHeadless(bool)
	SetBrowserProfileDir(string)
	SetServerPort(string)
	SetServerAuthToken(string)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	BrowserCfg BrowserConfig `mapstructure:"browser" yaml:"browser"`
	SiteCfg    SiteConfig    `mapstructure:"site" yaml:"site"`
	EngineCfg  EngineConfig  `mapstructure:"engine" yaml:"engine"`
	ServerCfg  ServerConfig  `mapstructure:"server" yaml:"server"`
}

var _ Interface = (*Config)(nil)

// --- Getters ---

func (c *Config) Logger() LoggerConfig   { return c.LoggerCfg }
func (c *Config) Browser() BrowserConfig { return c.BrowserCfg }
func (c *Config) Site() SiteConfig       { return c.SiteCfg }
func (c *Config) Engine() EngineConfig   { return c.EngineCfg }
func (c *Config) Server() ServerConfig   { return c.ServerCfg }

// --- Setters ---

func (c *Config) SetBrowserHeadless(b bool)       { c.BrowserCfg.Headless = b }
func (c *Config) SetBrowserProfileDir(dir string) { c.BrowserCfg.ProfileDir = dir }
func (c *Config) SetServerPort(port string)       { c.ServerCfg.Port = port }
func (c *Config) SetServerAuthToken(token string) { c.ServerCfg.AuthToken = token }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color names used for each log level on the console.
type ColorConfig struct {
	Debug string `mapstructure:"debug" yaml:"debug"`
	Info  string `mapstructure:"info" yaml:"info"`
	Warn  string `mapstructure:"warn" yaml:"warn"`
	Error string `mapstructure:"error" yaml:"error"`
}

// BrowserConfig controls the single persistent Chromium session.
type BrowserConfig struct {
	// ProfileDir is the on-disk user data directory. Cookies and local storage
	// written here survive restarts. A leading "~" is expanded.
	ProfileDir     string        `mapstructure:"profile_dir" yaml:"profile_dir"`
	ExecPath       string        `mapstructure:"exec_path" yaml:"exec_path"`
	Headless       bool          `mapstructure:"headless" yaml:"headless"`
	UserAgent      string        `mapstructure:"user_agent" yaml:"user_agent"`
	Locale         string        `mapstructure:"locale" yaml:"locale"`
	AcceptLanguage string        `mapstructure:"accept_language" yaml:"accept_language"`
	ViewportWidth  int           `mapstructure:"viewport_width" yaml:"viewport_width"`
	ViewportHeight int           `mapstructure:"viewport_height" yaml:"viewport_height"`
	Args           []string      `mapstructure:"args" yaml:"args"`
	LaunchTimeout  time.Duration `mapstructure:"launch_timeout" yaml:"launch_timeout"`
	PageTimeout    time.Duration `mapstructure:"page_timeout" yaml:"page_timeout"`
	NavTimeout     time.Duration `mapstructure:"nav_timeout" yaml:"nav_timeout"`
	Debug          bool          `mapstructure:"debug" yaml:"debug"`
}

// SiteConfig pins the single site the engine knows how to drive.
type SiteConfig struct {
	BaseURL      string `mapstructure:"base_url" yaml:"base_url"`
	CookieDomain string `mapstructure:"cookie_domain" yaml:"cookie_domain"`
}

// EngineConfig tunes the action engine: queue, collector and composer budgets.
type EngineConfig struct {
	QueueSize int `mapstructure:"queue_size" yaml:"queue_size"`

	SettingsWait time.Duration `mapstructure:"settings_wait" yaml:"settings_wait"`
	DialogWait   time.Duration `mapstructure:"dialog_wait" yaml:"dialog_wait"`

	CollectMax         int           `mapstructure:"collect_max" yaml:"collect_max"`
	CollectMaxCap      int           `mapstructure:"collect_max_cap" yaml:"collect_max_cap"`
	CollectTimeout     time.Duration `mapstructure:"collect_timeout" yaml:"collect_timeout"`
	CollectTimeoutCap  time.Duration `mapstructure:"collect_timeout_cap" yaml:"collect_timeout_cap"`
	NotificationMaxAge time.Duration `mapstructure:"notification_max_age" yaml:"notification_max_age"`

	ComposerWait    time.Duration `mapstructure:"composer_wait" yaml:"composer_wait"`
	MenuWait        time.Duration `mapstructure:"menu_wait" yaml:"menu_wait"`
	ConfirmTimeout  time.Duration `mapstructure:"confirm_timeout" yaml:"confirm_timeout"`
	ConfirmInterval time.Duration `mapstructure:"confirm_interval" yaml:"confirm_interval"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            string        `mapstructure:"port" yaml:"port"`
	AuthToken       string        `mapstructure:"auth_token" yaml:"auth_token"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes" yaml:"max_body_bytes"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// Addr returns the listen address for net/http.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + strings.TrimPrefix(s.Port, ":")
}

// DefaultUserAgent mirrors a current desktop Chrome on Windows.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for every configuration key.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "igpilot")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")

	// -- Browser --
	v.SetDefault("browser.profile_dir", "/data/ig-profile")
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.user_agent", DefaultUserAgent)
	v.SetDefault("browser.locale", "ru-RU")
	v.SetDefault("browser.accept_language", "ru-RU,ru;q=0.9,en;q=0.8")
	v.SetDefault("browser.viewport_width", 1366)
	v.SetDefault("browser.viewport_height", 800)
	v.SetDefault("browser.launch_timeout", "60s")
	v.SetDefault("browser.page_timeout", "15s")
	v.SetDefault("browser.nav_timeout", "15s")
	v.SetDefault("browser.debug", false)

	// -- Site --
	v.SetDefault("site.base_url", "https://www.instagram.com")
	v.SetDefault("site.cookie_domain", ".instagram.com")

	// -- Engine --
	v.SetDefault("engine.queue_size", 64)
	v.SetDefault("engine.settings_wait", "5s")
	v.SetDefault("engine.dialog_wait", "7s")
	v.SetDefault("engine.collect_max", 300)
	v.SetDefault("engine.collect_max_cap", 2000)
	v.SetDefault("engine.collect_timeout", "30s")
	v.SetDefault("engine.collect_timeout_cap", "120s")
	v.SetDefault("engine.notification_max_age", "24h")
	v.SetDefault("engine.composer_wait", "12s")
	v.SetDefault("engine.menu_wait", "3s")
	v.SetDefault("engine.confirm_timeout", "6s")
	v.SetDefault("engine.confirm_interval", "250ms")

	// -- Server --
	v.SetDefault("server.host", "")
	v.SetDefault("server.port", "3000")
	v.SetDefault("server.auth_token", "")
	v.SetDefault("server.max_body_bytes", 2<<20)
	v.SetDefault("server.shutdown_timeout", "10s")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
// The environment names used by earlier deployments (AUTH_TOKEN, PORT,
// USER_DATA_DIR, DEFAULT_UA) are honored next to the IGPILOT_ prefixed ones.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	_ = v.BindEnv("server.auth_token", "IGPILOT_SERVER_AUTH_TOKEN", "AUTH_TOKEN")
	_ = v.BindEnv("server.port", "IGPILOT_SERVER_PORT", "PORT")
	_ = v.BindEnv("browser.profile_dir", "IGPILOT_BROWSER_PROFILE_DIR", "USER_DATA_DIR")
	_ = v.BindEnv("browser.user_agent", "IGPILOT_BROWSER_USER_AGENT", "DEFAULT_UA")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.BrowserCfg.ProfileDir == "" {
		return fmt.Errorf("browser.profile_dir is required")
	}
	if c.BrowserCfg.ViewportWidth <= 0 || c.BrowserCfg.ViewportHeight <= 0 {
		return fmt.Errorf("browser viewport must be positive, got %dx%d", c.BrowserCfg.ViewportWidth, c.BrowserCfg.ViewportHeight)
	}
	if c.BrowserCfg.PageTimeout <= 0 || c.BrowserCfg.NavTimeout <= 0 || c.BrowserCfg.LaunchTimeout <= 0 {
		return fmt.Errorf("browser.page_timeout, nav_timeout and launch_timeout must be positive durations")
	}
	if c.SiteCfg.BaseURL == "" {
		return fmt.Errorf("site.base_url is required")
	}
	if err := c.EngineCfg.Validate(); err != nil {
		return fmt.Errorf("engine configuration invalid: %w", err)
	}
	if c.ServerCfg.Port == "" {
		return fmt.Errorf("server.port is required")
	}
	return nil
}

// Validate checks the engine budgets.
func (e *EngineConfig) Validate() error {
	if e.QueueSize < 0 {
		return fmt.Errorf("queue_size must not be negative")
	}
	if e.CollectMax <= 0 || e.CollectMaxCap <= 0 {
		return fmt.Errorf("collect_max and collect_max_cap must be positive")
	}
	if e.CollectMax > e.CollectMaxCap {
		return fmt.Errorf("collect_max (%d) exceeds collect_max_cap (%d)", e.CollectMax, e.CollectMaxCap)
	}
	if e.CollectTimeout <= 0 || e.CollectTimeoutCap < e.CollectTimeout {
		return fmt.Errorf("collect_timeout must be positive and not exceed collect_timeout_cap")
	}
	if e.ConfirmInterval <= 0 || e.ConfirmTimeout <= 0 {
		return fmt.Errorf("confirm_interval and confirm_timeout must be positive")
	}
	return nil
}
