package config

import (
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Load builds the Config from the process environment, layering a .env
// file underneath when one exists. A missing .env is not an error so
// containerized deployments can rely on injected variables alone.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
