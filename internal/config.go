package internal

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/rusel95/AstroSvitla-sub001/internal/astro"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Provider ProviderConfig    `yaml:"provider"`
	Quota    QuotaConfig       `yaml:"quota"`
	Cache    CacheConfig       `yaml:"cache"`
	Auth     AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Provider.Validate(); err != nil {
		return err
	}
	if err := c.Quota.Validate(); err != nil {
		return err
	}
	if err := c.Cache.Validate(); err != nil {
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

// ProviderConfig holds the remote astrology provider settings.
//
// UserID and APIKey are deliberately not required here: the service can
// browse and serve cached charts without credentials. Generation against
// the provider will fail without them, which Run warns about at startup.
type ProviderConfig struct {
	BaseURL     string `yaml:"base_url"`
	UserID      string `yaml:"user_id"`
	APIKey      string `yaml:"api_key"`
	HouseSystem string `yaml:"house_system"`
}

// Validate validates the provider configuration.
func (c *ProviderConfig) Validate() error {
	systems := make([]interface{}, 0, len(astro.HouseSystems()))
	for _, hs := range astro.HouseSystems() {
		systems = append(systems, string(hs))
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, validation.Required),
		validation.Field(&c.HouseSystem, validation.Required, validation.In(systems...)),
	)
}

// HasCredentials reports whether both provider credentials are set.
func (c *ProviderConfig) HasCredentials() bool {
	return c.UserID != "" && c.APIKey != ""
}

// QuotaConfig holds the provider rate and budget settings.
type QuotaConfig struct {
	WindowSeconds    int `yaml:"window_seconds"`
	WindowLimit      int `yaml:"window_limit"`
	MonthlyCredits   int `yaml:"monthly_credits"`
	RequestsPerChart int `yaml:"requests_per_chart"`
}

// Window returns the sliding rate window as a duration.
func (c *QuotaConfig) Window() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}

// Validate validates the quota configuration.
func (c *QuotaConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.WindowSeconds, validation.Required, validation.Min(1)),
		validation.Field(&c.WindowLimit, validation.Required, validation.Min(1)),
		validation.Field(&c.MonthlyCredits, validation.Required, validation.Min(1)),
		validation.Field(&c.RequestsPerChart, validation.Required, validation.Min(1)),
	)
}

// CacheConfig holds local chart and asset cache settings.
type CacheConfig struct {
	ChartDBPath    string `yaml:"chart_db_path"`
	AssetDir       string `yaml:"asset_dir"`
	MaxEntries     int    `yaml:"max_entries"`
	StaleAfterDays int    `yaml:"stale_after_days"`
}

// StaleAfter returns the staleness threshold as a duration.
func (c *CacheConfig) StaleAfter() time.Duration {
	return time.Duration(c.StaleAfterDays) * 24 * time.Hour
}

// Validate validates the cache configuration.
func (c *CacheConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.ChartDBPath, validation.Required),
		validation.Field(&c.AssetDir, validation.Required),
		validation.Field(&c.MaxEntries, validation.Required, validation.Min(1)),
		validation.Field(&c.StaleAfterDays, validation.Required, validation.Min(1)),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
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

// DefaultConfigPath returns the default config file location.
func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, "astrosvitla", "config.yaml")
}

// NewDefaultConfig returns a new Config with sensible default values.
// The cache lives under the XDG cache home so the tool works with no
// config file at all.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Provider: ProviderConfig{
			BaseURL:     "https://json.astrologyapi.com",
			HouseSystem: string(astro.Placidus),
		},
		Quota: QuotaConfig{
			WindowSeconds:    60,
			WindowLimit:      5,
			MonthlyCredits:   5000,
			RequestsPerChart: 2,
		},
		Cache: CacheConfig{
			ChartDBPath:    filepath.Join(xdg.CacheHome, "astrosvitla", "charts.db"),
			AssetDir:       filepath.Join(xdg.CacheHome, "astrosvitla", "assets"),
			MaxEntries:     200,
			StaleAfterDays: 30,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
