package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration
type Config struct {
	API       APIConfig       `mapstructure:"api"`
	Gateway   GatewayConfig   `mapstructure:"gateway"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Player    PlayerConfig    `mapstructure:"player"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Reporting ReportingConfig `mapstructure:"reporting"`
}

// APIConfig holds the base URLs of the external services
type APIConfig struct {
	CatalogURL string        `mapstructure:"catalog_url"`
	RatingURL  string        `mapstructure:"rating_url"`
	TitleURL   string        `mapstructure:"title_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// GatewayConfig configures the proxied fetch gateway
type GatewayConfig struct {
	// Origins are patterns like "https://shikimori.one/*"
	Origins      []string      `mapstructure:"origins"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryWait    time.Duration `mapstructure:"retry_wait"`
	RetryMaxWait time.Duration `mapstructure:"retry_max_wait"`
	UserAgent    string        `mapstructure:"user_agent"`
	Debug        bool          `mapstructure:"debug"`
}

// AuthConfig holds the OAuth application credentials
type AuthConfig struct {
	ClientID     string   `mapstructure:"client_id"`
	ClientSecret string   `mapstructure:"client_secret"`
	RedirectURI  string   `mapstructure:"redirect_uri"`
	CallbackPort int      `mapstructure:"callback_port"`
	Scopes       []string `mapstructure:"scopes"`
}

// PlayerConfig holds playback preferences
type PlayerConfig struct {
	// PreferredType is an anime365 translation type such as "voiceRu" or "subRu"
	PreferredType string `mapstructure:"preferred_type"`
	Locale        string `mapstructure:"locale"`
	// ClipboardCommand receives copied links on stdin, e.g. "wl-copy"
	ClipboardCommand string `mapstructure:"clipboard_command"`
}

// DatabaseConfig configures the local store
type DatabaseConfig struct {
	Path           string `mapstructure:"path"`
	MaxConnections int    `mapstructure:"max_connections"`
	WALMode        bool   `mapstructure:"wal_mode"`
	AutoVacuum     bool   `mapstructure:"auto_vacuum"`
}

// LoggingConfig configures the slog logger
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
	Color      bool   `mapstructure:"color"`
}

// ReportingConfig configures error tracking
type ReportingConfig struct {
	SentryDSN   string `mapstructure:"sentry_dsn"`
	Environment string `mapstructure:"environment"`
}

// DefaultOrigins are the origins granted on a fresh install
var DefaultOrigins = []string{
	"https://shikimori.one/*",
	"https://shikimori.me/*",
	"https://smotret-anime-365.ru/*",
	"https://smotret-anime.online/*",
	"https://api.jikan.moe/*",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.catalog_url", "https://smotret-anime.online/api")
	v.SetDefault("api.rating_url", "https://shikimori.one")
	v.SetDefault("api.title_url", "https://api.jikan.moe/v3")
	v.SetDefault("api.timeout", 30*time.Second)

	v.SetDefault("gateway.origins", DefaultOrigins)
	v.SetDefault("gateway.max_retries", 3)
	v.SetDefault("gateway.retry_wait", time.Second)
	v.SetDefault("gateway.retry_max_wait", 5*time.Second)
	v.SetDefault("gateway.user_agent", "shikiplay; Browser extension; https://github.com/justchokingaround/shikiplay")

	v.SetDefault("auth.redirect_uri", "http://localhost:8000/oauth/callback")
	v.SetDefault("auth.callback_port", 8000)
	v.SetDefault("auth.scopes", []string{"user_rates"})

	v.SetDefault("player.preferred_type", "voiceRu")
	v.SetDefault("player.locale", "ru")

	v.SetDefault("database.path", filepath.Join(getDataDir(), "shikiplay", "shikiplay.db"))
	v.SetDefault("database.max_connections", 4)
	v.SetDefault("database.wal_mode", true)
	v.SetDefault("database.auto_vacuum", true)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.max_size", 10)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.color", true)

	v.SetDefault("reporting.environment", "production")
}

// Load reads the config file (or the default location) and environment
// overrides. A missing file is not an error.
func Load(cfgFile string) (*Config, *viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("SHIKIPLAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(filepath.Join(getConfigDir(), "shikiplay"))
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to decode config: %w", err)
	}

	return &cfg, v, nil
}

// InitializeDirs creates the config, data and state directories
func InitializeDirs() error {
	for _, dir := range []string{getConfigDir(), getDataDir(), getStateDir()} {
		if err := os.MkdirAll(filepath.Join(dir, "shikiplay"), 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// WriteDefault writes a config file with every default to path
func WriteDefault(path string) error {
	v := viper.New()
	setDefaults(v)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return v.WriteConfigAs(path)
}

// DefaultConfigPath is where Load looks when no file is given
func DefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "shikiplay", "config.yaml")
}

func getConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config")
}

func getDataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share")
}

func getStateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "state")
}
