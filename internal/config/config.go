// Package config loads the server's JSON-with-comments configuration file
// into one centralized document, which subsystems receive at startup as
// typed fields rather than individual jsonconf strings.
package config

import (
	"encoding/json"
	"io"
	"os"

	"github.com/tinode/jsonco"
)

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	Adapter string `json:"adapter"` // "mem" | "mysql"
	DSN     string `json:"dsn"`
}

// NotifyConfig selects and configures the notification backend.
type NotifyConfig struct {
	Adapter string `json:"adapter"` // "noop" | "ses"
	Region  string `json:"region"`
	From    string `json:"from"`
}

// Config is the full server configuration.
type Config struct {
	Listen          string       `json:"listen"`
	IdleTimeoutSec  int          `json:"idle_timeout_sec"`
	TokenKey        string       `json:"token_key"`
	Store           StoreConfig  `json:"store"`
	MetricsListen   string       `json:"metrics_listen"`
	Notify          NotifyConfig `json:"notify"`
}

// Default returns the configuration used when no config file is given.
func Default() *Config {
	return &Config{
		Listen:         ":6060",
		IdleTimeoutSec: 600,
		Store:          StoreConfig{Adapter: "mem"},
		Notify:         NotifyConfig{Adapter: "noop"},
	}
}

// Load reads and parses a JSON-with-comments config file at path. Comments
// and trailing commas are stripped by jsonco before the standard decoder
// sees the document.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg := Default()
	var raw io.Reader = jsonco.New(f)
	if err := json.NewDecoder(raw).Decode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
