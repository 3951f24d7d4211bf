package config

import (
	"encoding/json"
	"os"

	"github.com/sealbox/sealbox/internal/flagx"
)

// JsonConfig is the JSON-file DTO for Config.
type JsonConfig struct {
	ServerURL string `json:"server_url"`
}

// parseJson loads configuration from the JSON file named by the -c/-config
// flags, if any, into config.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	config.ServerURL = c.ServerURL
}
