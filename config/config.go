// Package config provides configuration management for the daemon and CLI.
package config

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/lifebow/assistantd/internal/dispatch"
)

// Config holds the application configuration.
type Config struct {
	Server    ServerConfig
	LogLevel  string
	RelayURL  string
	Provider  string
	Providers map[string]ProviderConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr string
}

// ProviderConfig holds one provider family's credential pool and overrides.
type ProviderConfig struct {
	APIKeys []string
	BaseURL string
	Model   string
}

// defaultModels are used when a provider has keys configured but no model
// named.
var defaultModels = map[string]string{
	"openai":    "gpt-4o-mini",
	"anthropic": "claude-sonnet-4-20250514",
	"google":    "gemini-2.0-flash",
}

// knownProviders lists the families with dedicated environment variables.
// Each provider reads <NAME>_API_KEY or comma-separated <NAME>_API_KEYS,
// plus optional <NAME>_BASE_URL and <NAME>_MODEL.
var knownProviders = []string{"openai", "anthropic", "google"}

// Load reads configuration from the environment. A .env file in the working
// directory is honored when present.
func Load() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	_ = viper.ReadInConfig() //nolint:errcheck

	viper.SetDefault("ADDR", ":8080")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("PROVIDER", "openai")

	viper.AutomaticEnv()

	cfg := &Config{
		Server:    ServerConfig{Addr: viper.GetString("ADDR")},
		LogLevel:  viper.GetString("LOG_LEVEL"),
		RelayURL:  viper.GetString("RELAY_URL"),
		Provider:  viper.GetString("PROVIDER"),
		Providers: make(map[string]ProviderConfig),
	}

	for _, name := range knownProviders {
		prefix := strings.ToUpper(name)
		pc := ProviderConfig{
			APIKeys: splitKeys(viper.GetString(prefix + "_API_KEYS")),
			BaseURL: viper.GetString(prefix + "_BASE_URL"),
			Model:   viper.GetString(prefix + "_MODEL"),
		}
		if len(pc.APIKeys) == 0 {
			if key := viper.GetString(prefix + "_API_KEY"); key != "" {
				pc.APIKeys = []string{key}
			}
		}
		if pc.Model == "" {
			pc.Model = defaultModels[name]
		}
		cfg.Providers[name] = pc
	}

	return cfg, nil
}

// Dispatch builds the request configuration for the named provider, or for
// the configured default when provider is empty.
func (c *Config) Dispatch(provider string) dispatch.Config {
	if provider == "" {
		provider = c.Provider
	}
	pc := c.Providers[provider]
	return dispatch.Config{
		Provider: provider,
		APIKeys:  pc.APIKeys,
		BaseURL:  pc.BaseURL,
		Model:    pc.Model,
	}
}

// splitKeys parses a comma-separated key list, trimming whitespace and
// dropping empty entries.
func splitKeys(s string) []string {
	if s == "" {
		return nil
	}
	var keys []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			keys = append(keys, part)
		}
	}
	return keys
}
