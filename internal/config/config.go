// Package config loads server settings from an optional TOML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

type Config struct {
	HTTPAddr       string   `toml:"http_addr"`       // CHART_HTTP_ADDR (default ":8001")
	AllowedOrigins []string `toml:"allowed_origins"` // CORS origins for the dashboard frontend
	SampleSize     int      `toml:"sample_size"`     // array elements sampled during inference
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		HTTPAddr:       ":8001",
		AllowedOrigins: []string{"http://localhost:3000"},
		SampleSize:     1,
	}
}

// Load reads the TOML file at path when it exists, then applies environment
// overrides. An empty path skips the file entirely.
func Load(path string) (Config, error) {
	c := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, &c); err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("config %s: %w", path, err)
			}
		}
	}

	if port := os.Getenv("PORT"); port != "" {
		c.HTTPAddr = ":" + port
	}
	if addr := os.Getenv("CHART_HTTP_ADDR"); addr != "" {
		c.HTTPAddr = addr
	}
	if c.SampleSize < 1 {
		c.SampleSize = 1
	}

	return c, nil
}
