// Package config loads server configuration from environment variables.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds everything the server needs at startup. Secrets are passed
// in explicitly from here — nothing reads the environment after Load.
type Config struct {
	Port   int    `env:"PORT" envDefault:"8080"`
	DBPath string `env:"DB_PATH" envDefault:"data/modsync.db"`

	// JWTSecret signs access tokens. Must be long random data, e.g.
	// JWT_SECRET=$(openssl rand -hex 32).
	JWTSecret string `env:"JWT_SECRET,required"`

	DiscordClientID     string `env:"DISCORD_CLIENT_ID,required"`
	DiscordClientSecret string `env:"DISCORD_CLIENT_SECRET,required"`
	// DiscordCallbackURL must exactly match the redirect URI registered
	// with the Discord application.
	DiscordCallbackURL string `env:"DISCORD_CALLBACK_URL" envDefault:"http://localhost:8080/auth/callback"`
	// ClientRedirectURL is the desktop app's loopback listener that
	// receives the token pair after a completed login.
	ClientRedirectURL string `env:"CLIENT_REDIRECT_URL" envDefault:"http://localhost:22942"`

	S3Bucket    string `env:"S3_BUCKET,required"`
	S3Region    string `env:"S3_REGION,required"`
	S3Endpoint  string `env:"S3_ENDPOINT"`
	S3AccessKey string `env:"S3_ACCESS_KEY,required"`
	S3SecretKey string `env:"S3_SECRET_KEY,required"`
}

// Load parses the environment into a Config.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("config: parse env: %w", err)
	}
	return &cfg, nil
}
