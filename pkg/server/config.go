package server

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config is read from the environment at startup. WG_KEY_SECRET is the
// 64 character hex key the vault seals key material with; rotating it
// invalidates every stored key, so treat it like the database itself.
type Config struct {
	BindAddr    string `envconfig:"BIND_ADDR" default:"127.0.0.1:8080"`
	DBDriver    string `envconfig:"DB_DRIVER" default:"sqlite"`
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	KeySecret   string `envconfig:"WG_KEY_SECRET" required:"true"`
	AdminToken  string `envconfig:"ADMIN_TOKEN" required:"true"`
}

func ConfigFromEnv() (Config, error) {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return Config{}, fmt.Errorf("reading environment: %w", err)
	}

	return config, nil
}
