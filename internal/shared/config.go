package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Database DatabaseConfig `toml:"database"`
	Server   ServerConfig   `toml:"server"`
	Auth     AuthConfig     `toml:"auth"`
	Sync     SyncConfig     `toml:"sync"`
	Index    IndexConfig    `toml:"index"`
	Search   SearchConfig   `toml:"search"`
	Listing  ListingConfig  `toml:"listing"`
	Export   ExportConfig   `toml:"export"`
	Logging  LoggingConfig  `toml:"logging"`
}

// DatabaseConfig contains database connection settings.
//
// Driver is either "sqlite" (Path) or "surrealdb" (URL, Namespace, Name, Username, Password).
type DatabaseConfig struct {
	Driver       string `toml:"driver"`
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
	URL          string `toml:"url"`
	Namespace    string `toml:"namespace"`
	Name         string `toml:"name"`
	Username     string `toml:"username"`
	Password     string `toml:"password"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host      string  `toml:"host"`
	Port      int     `toml:"port"`
	RateLimit float64 `toml:"rate_limit"`
	Burst     int     `toml:"burst"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// AuthConfig contains token verification and session settings.
type AuthConfig struct {
	IDTokenSecret string      `toml:"id_token_secret"`
	SessionSecret string      `toml:"session_secret"`
	Issuer        string      `toml:"issuer"`
	Audience      string      `toml:"audience"`
	SecureCookie  bool        `toml:"secure_cookie"`
	OAuth         OAuthConfig `toml:"oauth"`
}

// OAuthConfig configures the optional authorization code login flow.
type OAuthConfig struct {
	ClientID     string   `toml:"client_id"`
	ClientSecret string   `toml:"client_secret"`
	AuthURL      string   `toml:"auth_url"`
	TokenURL     string   `toml:"token_url"`
	RedirectURL  string   `toml:"redirect_url"`
	Scopes       []string `toml:"scopes"`
}

// Enabled reports whether enough of the OAuth settings are present to run the login flow.
func (o OAuthConfig) Enabled() bool {
	return o.ClientID != "" && o.AuthURL != "" && o.TokenURL != ""
}

// SyncConfig controls the category index synchronizer and the change feed worker.
type SyncConfig struct {
	Concurrency       int      `toml:"concurrency"`
	PollInterval      Duration `toml:"poll_interval"`
	BatchSize         int      `toml:"batch_size"`
	MaxAttempts       int      `toml:"max_attempts"`
	ReconcileInterval Duration `toml:"reconcile_interval"`
}

// IndexConfig selects where categories_metadata lives: "store" or "dynamodb".
type IndexConfig struct {
	Backend  string `toml:"backend"`
	Table    string `toml:"table"`
	Region   string `toml:"region"`
	Endpoint string `toml:"endpoint"`
}

// SearchConfig configures the full-text index. An empty Path keeps it in memory.
type SearchConfig struct {
	Path string `toml:"path"`
}

// ListingConfig holds listing defaults.
type ListingConfig struct {
	TitleLocale string `toml:"title_locale"`
}

// ExportConfig configures the S3 export sink.
type ExportConfig struct {
	Bucket   string `toml:"bucket"`
	Prefix   string `toml:"prefix"`
	Region   string `toml:"region"`
	Endpoint string `toml:"endpoint"`
}

// LoggingConfig holds the log level name.
type LoggingConfig struct {
	Level string `toml:"level"`
}

// Duration is a [time.Duration] that decodes from TOML strings like "30s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("%w: duration %q: %v", ErrInvalidConfig, text, err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements [encoding.TextMarshaler].
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrMissingConfig, path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "surrealdb":
	default:
		return fmt.Errorf("%w: database.driver %q", ErrInvalidConfig, c.Database.Driver)
	}

	switch c.Index.Backend {
	case "store", "dynamodb":
	default:
		return fmt.Errorf("%w: index.backend %q", ErrInvalidConfig, c.Index.Backend)
	}

	if c.Index.Backend == "dynamodb" && c.Index.Table == "" {
		return fmt.Errorf("%w: index.table is required for dynamodb", ErrInvalidConfig)
	}
	return nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: config file already exists at %s", ErrConflict, path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
