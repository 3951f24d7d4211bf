// Package config handles configuration for the CLI client.
package config

// Config holds runtime settings for the Sealbox CLI.
//
// Fields:
//   - ServerURL: base URL of the Sealbox server, used for API calls and
//     as the prefix of generated share links.
type Config struct {
	ServerURL string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://localhost:8080"
}

// LoadConfig constructs a Config, applies defaults, then overlays values
// from JSON (if present) and command-line flags (if present). Later sources
// take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
