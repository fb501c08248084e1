// Package config loads application configuration from files and the
// environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix = "SLIDES_TEAM_HUB"

	// legacySecretsPath is the secrets file location used by earlier
	// deployments of the hub. It is still honored when present.
	legacySecretsPath = ".streamlit/secrets.toml"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Google   GoogleConfig   `mapstructure:"google"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Report   ReportConfig   `mapstructure:"report"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	PublicURL       string        `mapstructure:"public_url"`
}

// GoogleConfig holds Google API credentials and related settings.
type GoogleConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURL  string `mapstructure:"redirect_url"`
	ProjectID    string `mapstructure:"project_id"`
	// SecretName, when set, loads the OAuth client from Secret Manager
	// instead of the values above.
	SecretName string `mapstructure:"secret_name"`
	// TokenCollection is the Firestore collection for stored refresh
	// tokens. Empty means tokens are kept in memory only.
	TokenCollection string `mapstructure:"token_collection"`
}

// DatabaseConfig holds the SQLite database settings.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// AuthConfig holds local account and session settings.
type AuthConfig struct {
	SessionTTL time.Duration `mapstructure:"session_ttl"`
}

// CacheConfig holds in-memory cache settings.
type CacheConfig struct {
	MaxEntries int           `mapstructure:"max_entries"`
	TTL        time.Duration `mapstructure:"ttl"`
}

// ReportConfig holds report generation settings.
type ReportConfig struct {
	// Language is the default BCP 47 tag for report headings. Empty
	// disables translation.
	Language string `mapstructure:"language"`
	TempDir  string `mapstructure:"temp_dir"`
}

// Default returns configuration with default values.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
		Database: DatabaseConfig{
			Path: "team_slides.db",
		},
		Auth: AuthConfig{
			SessionTTL: 12 * time.Hour,
		},
		Cache: CacheConfig{
			MaxEntries: 100,
			TTL:        5 * time.Minute,
		},
	}
}

// Load reads configuration from the given file (optional), the legacy
// secrets file when present, and environment variables. Environment
// variables always win over file values.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	defaults := Default()
	v.SetDefault("server.port", defaults.Server.Port)
	v.SetDefault("server.read_timeout", defaults.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", defaults.Server.WriteTimeout)
	v.SetDefault("server.idle_timeout", defaults.Server.IdleTimeout)
	v.SetDefault("server.shutdown_timeout", defaults.Server.ShutdownTimeout)
	v.SetDefault("server.allowed_origins", defaults.Server.AllowedOrigins)
	v.SetDefault("database.path", defaults.Database.Path)
	v.SetDefault("auth.session_ttl", defaults.Auth.SessionTTL)
	v.SetDefault("cache.max_entries", defaults.Cache.MaxEntries)
	v.SetDefault("cache.ttl", defaults.Cache.TTL)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.slides-team-hub")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := mergeLegacySecrets(&cfg); err != nil {
		return Config{}, err
	}
	mergeEnv(&cfg)

	if cfg.Google.RedirectURL == "" && cfg.Server.PublicURL != "" {
		cfg.Google.RedirectURL = strings.TrimRight(cfg.Server.PublicURL, "/") + "/auth/google/callback"
	}

	return cfg, nil
}

// mergeLegacySecrets fills Google credentials from the legacy secrets
// file when they are not already set.
func mergeLegacySecrets(cfg *Config) error {
	if cfg.Google.ClientID != "" && cfg.Google.ClientSecret != "" {
		return nil
	}
	if _, err := os.Stat(legacySecretsPath); err != nil {
		return nil
	}

	v := viper.New()
	v.SetConfigFile(legacySecretsPath)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read %s: %w", filepath.ToSlash(legacySecretsPath), err)
	}

	if cfg.Google.ClientID == "" {
		cfg.Google.ClientID = v.GetString("auth.google.client_id")
	}
	if cfg.Google.ClientSecret == "" {
		cfg.Google.ClientSecret = v.GetString("auth.google.client_secret")
	}
	if cfg.Google.RedirectURL == "" {
		cfg.Google.RedirectURL = v.GetString("auth.redirect_uri")
	}
	return nil
}

// mergeEnv applies the well-known Google environment variables. These
// take precedence over every file source.
func mergeEnv(cfg *Config) {
	if id := os.Getenv("GOOGLE_CLIENT_ID"); id != "" {
		cfg.Google.ClientID = id
	}
	if secret := os.Getenv("GOOGLE_CLIENT_SECRET"); secret != "" {
		cfg.Google.ClientSecret = secret
	}
	if project := os.Getenv("GOOGLE_CLOUD_PROJECT"); project != "" && cfg.Google.ProjectID == "" {
		cfg.Google.ProjectID = project
	}
}

// Validate checks that required settings are present.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if c.Google.SecretName == "" && (c.Google.ClientID == "" || c.Google.ClientSecret == "") {
		return fmt.Errorf("google client credentials are required (set GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET)")
	}
	return nil
}
