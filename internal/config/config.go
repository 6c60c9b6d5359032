// Package config loads settings for the connectx binaries from an optional
// YAML file and CONNECTX_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// DefaultDevTokens lets the dev server run without any configuration.
var DefaultDevTokens = map[string]string{"dev-token": "dev-org"}

// DevServer configures connectx-devserver.
type DevServer struct {
	Addr string `yaml:"addr" env:"CONNECTX_DEV_ADDR" env-default:":8080"`
	// DatabaseURL selects the Postgres store. Empty keeps data in memory.
	DatabaseURL string `yaml:"database_url" env:"CONNECTX_DEV_DATABASE_URL"`
	// Tokens maps bearer token to organization id, "token:org,token:org" in env.
	Tokens    map[string]string `yaml:"tokens" env:"CONNECTX_DEV_TOKENS"`
	LogLevel  string            `yaml:"log_level" env:"CONNECTX_LOG_LEVEL" env-default:"info"`
	LogPretty bool              `yaml:"log_pretty" env:"CONNECTX_LOG_PRETTY"`
}

// Demo configures connectx-demo.
type Demo struct {
	Token          string        `yaml:"token" env:"CONNECTX_TOKEN"`
	OrganizationID string        `yaml:"organization_id" env:"CONNECTX_ORGANIZATION_ID"`
	Env            string        `yaml:"env" env:"CONNECTX_ENV"`
	BaseURL        string        `yaml:"base_url" env:"CONNECTX_BASE_URL"`
	Timeout        time.Duration `yaml:"timeout" env:"CONNECTX_TIMEOUT" env-default:"10s"`
	LogLevel       string        `yaml:"log_level" env:"CONNECTX_LOG_LEVEL" env-default:"info"`
	LogPretty      bool          `yaml:"log_pretty" env:"CONNECTX_LOG_PRETTY"`
}

// LoadDevServer reads the dev server config. path may be empty.
func LoadDevServer(path string) (*DevServer, error) {
	var cfg DevServer
	if err := load(path, &cfg); err != nil {
		return nil, err
	}
	if cfg.Addr == "" {
		return nil, errors.New("config: addr must not be empty")
	}
	if len(cfg.Tokens) == 0 {
		cfg.Tokens = DefaultDevTokens
	}
	for token, org := range cfg.Tokens {
		if token == "" || org == "" {
			return nil, errors.New(`config: tokens must be "token:org,token:org"`)
		}
	}
	return &cfg, nil
}

// LoadDemo reads the demo CLI config. path may be empty.
func LoadDemo(path string) (*Demo, error) {
	var cfg Demo
	if err := load(path, &cfg); err != nil {
		return nil, err
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("config: timeout must be positive, got %s", cfg.Timeout)
	}
	return &cfg, nil
}

// Path resolves the config file path. Priority: flag > CONNECTX_CONFIG.
func Path(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv("CONNECTX_CONFIG")
}

// load reads path when given, then applies the environment on top.
func load(path string, cfg any) error {
	if path == "" {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return fmt.Errorf("config: read env: %w", err)
		}
		return nil
	}
	if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	return nil
}
