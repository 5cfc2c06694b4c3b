package internal

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the resolved voucher tool configuration.
type Config struct {
	Key      KeyConfig    `mapstructure:"key"`
	Client   ClientConfig `mapstructure:"client"`
	Token    TokenConfig  `mapstructure:"token"`
	Cache    CacheConfig  `mapstructure:"cache"`
	LogLevel string       `mapstructure:"logLevel"`
}

// KeyConfig locates and describes the client's RSA signing key.
type KeyConfig struct {
	// Path is the PEM key file location.
	Path string `mapstructure:"path"`
	// Password decrypts an encrypted PKCS#8 key. Usually supplied via the
	// VOUCHER_KEY_PASSWORD environment variable rather than the file.
	Password string `mapstructure:"password"`
	// Algorithm is the assertion signing algorithm (RS256/RS384/RS512).
	Algorithm string `mapstructure:"algorithm"`
	// KeyID is sent as the assertion's kid header when set.
	KeyID string `mapstructure:"keyId"`
}

// ClientConfig identifies the registered client.
type ClientConfig struct {
	ID string `mapstructure:"id"`
}

// TokenConfig describes the token exchange.
type TokenConfig struct {
	Endpoint          string        `mapstructure:"endpoint"`
	Audience          string        `mapstructure:"audience"`
	Scopes            []string      `mapstructure:"scopes"`
	AssertionLifetime time.Duration `mapstructure:"assertionLifetime"`
	UseEmbeddedRoots  bool          `mapstructure:"useEmbeddedRoots"`
}

// CacheConfig controls the on-disk voucher cache.
type CacheConfig struct {
	// Path is the cache database location. Empty means the default under
	// the user cache directory.
	Path string `mapstructure:"path"`
	// Disabled turns caching off entirely.
	Disabled bool `mapstructure:"disabled"`
}

// LoadConfig reads configuration with the usual precedence: environment
// variables (VOUCHER_ prefix, underscores for nesting) override the config
// file, which overrides defaults. path selects an explicit config file;
// when empty, voucher.yaml is searched in the working directory and
// $HOME/.config/voucher, and its absence is not an error.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// Every key needs a registered default for AutomaticEnv to bind it.
	v.SetDefault("key.path", "")
	v.SetDefault("key.password", "")
	v.SetDefault("key.algorithm", "RS256")
	v.SetDefault("key.keyId", "")
	v.SetDefault("client.id", "")
	v.SetDefault("token.endpoint", "")
	v.SetDefault("token.audience", "")
	v.SetDefault("token.scopes", []string{})
	v.SetDefault("token.assertionLifetime", 5*time.Minute)
	v.SetDefault("token.useEmbeddedRoots", false)
	v.SetDefault("cache.path", "")
	v.SetDefault("cache.disabled", false)
	v.SetDefault("logLevel", "info")

	v.SetEnvPrefix("VOUCHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("voucher")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "voucher"))
		}
		var notFound viper.ConfigFileNotFoundError
		if err := v.ReadInConfig(); err != nil && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("binding config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the fields required for a token exchange.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Key.Path) == "" {
		return errors.New("key.path is required")
	}
	switch c.Key.Algorithm {
	case "", "RS256", "RS384", "RS512":
	default:
		return fmt.Errorf("key.algorithm %q is not supported (want RS256, RS384, or RS512)", c.Key.Algorithm)
	}
	if strings.TrimSpace(c.Client.ID) == "" {
		return errors.New("client.id is required")
	}
	if c.Token.Endpoint == "" {
		return errors.New("token.endpoint is required")
	}
	u, err := url.Parse(c.Token.Endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("token.endpoint %q is not an absolute URL", c.Token.Endpoint)
	}
	if c.Token.AssertionLifetime < 0 {
		return errors.New("token.assertionLifetime cannot be negative")
	}
	return nil
}

// Audience returns the configured audience, defaulting to the token
// endpoint itself, the convention most authorization servers use.
func (c *Config) Audience() string {
	if c.Token.Audience != "" {
		return c.Token.Audience
	}
	return c.Token.Endpoint
}

// CachePath resolves the voucher cache location, defaulting to
// voucher/tokens.db under the user cache directory.
func (c *Config) CachePath() (string, error) {
	if c.Cache.Path != "" {
		return c.Cache.Path, nil
	}
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("resolving user cache directory: %w", err)
	}
	return filepath.Join(base, "voucher", "tokens.db"), nil
}
