// Package config loads the service configuration from the environment with
// an optional YAML file underneath it.
package config

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"
)

// DefaultTokenURL is the GitHub endpoint template for installation token
// exchanges. The %d placeholder is the installation ID.
const DefaultTokenURL = "https://api.github.com/app/installations/%d/access_tokens"

// Config holds everything the server needs to run. Environment variables
// override values from the config file.
type Config struct {
	// GitHub App credential
	AppID          int64  `yaml:"app_id" env:"GITHUB_APP_ID, overwrite"`
	PrivateKey     string `yaml:"private_key" env:"GITHUB_PRIVATE_KEY, overwrite"`
	PrivateKeyPath string `yaml:"private_key_path" env:"GITHUB_PRIVATE_KEY_PATH, overwrite"`
	WebhookSecret  string `yaml:"webhook_secret" env:"GITHUB_WEBHOOK_SECRET, overwrite"`
	TokenURL       string `yaml:"token_url" env:"GITHUB_TOKEN_URL, overwrite"`

	// Analysis
	AnthropicAPIKey string `yaml:"anthropic_api_key" env:"ANTHROPIC_API_KEY, overwrite"`
	Model           string `yaml:"model" env:"HINDSIGHT_MODEL, overwrite"`

	// Storage
	DatabaseURL string `yaml:"database_url" env:"DATABASE_URL, overwrite"`

	// Server
	Port                 int   `yaml:"port" env:"PORT, overwrite"`
	ProcessAsync         bool  `yaml:"process_async" env:"PROCESS_ASYNC, overwrite"`
	MaxConcurrentReviews int64 `yaml:"max_concurrent_reviews" env:"MAX_CONCURRENT_REVIEWS, overwrite"`
}

// Load reads the optional YAML file named by HINDSIGHT_CONFIG, overlays the
// environment on top, applies defaults, and validates the result.
func Load(ctx context.Context) (*Config, error) {
	var cfg Config

	if path := os.Getenv("HINDSIGHT_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.TokenURL == "" {
		c.TokenURL = DefaultTokenURL
	}
	if c.Model == "" {
		c.Model = "claude-sonnet-4-20250514"
	}
	if c.MaxConcurrentReviews <= 0 {
		c.MaxConcurrentReviews = 4
	}
}

// Validate checks that every required setting is present.
func (c *Config) Validate() error {
	if c.AppID == 0 {
		return fmt.Errorf("GITHUB_APP_ID is required")
	}
	if c.PrivateKey == "" && c.PrivateKeyPath == "" {
		return fmt.Errorf("GITHUB_PRIVATE_KEY or GITHUB_PRIVATE_KEY_PATH is required")
	}
	if c.WebhookSecret == "" {
		return fmt.Errorf("GITHUB_WEBHOOK_SECRET is required")
	}
	if c.AnthropicAPIKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is required")
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	return nil
}

// LoadPrivateKey parses the configured RSA key, reading it from disk when
// only a path was given.
func (c *Config) LoadPrivateKey() (*rsa.PrivateKey, error) {
	keyPEM := c.PrivateKey
	if keyPEM == "" {
		data, err := os.ReadFile(c.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read private key file %s: %w", c.PrivateKeyPath, err)
		}
		keyPEM = string(data)
	}
	return ParseRSAPrivateKey([]byte(keyPEM))
}

// ParseRSAPrivateKey parses a PEM-encoded RSA private key in either PKCS#1
// or PKCS#8 form. GitHub issues PKCS#1 keys; keys converted by other tooling
// are often PKCS#8.
func ParseRSAPrivateKey(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found in private key")
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key is %T, not RSA", parsed)
	}
	return key, nil
}
