// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads configuration from config.yaml and environment
// variables. All of it is read once at startup and treated as immutable
// afterwards; the process fails fast when a required value is absent.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ClassifierConfig holds the language-model endpoint settings. Either
// APIKey or the full Entra client-credentials triple must be set.
type ClassifierConfig struct {
	BaseURL      string `yaml:"base_url"`
	APIKey       string `yaml:"api_key"`
	Model        string `yaml:"model"`
	TenantID     string `yaml:"tenant_id"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

// UseClientCredentials reports whether the classifier authenticates via
// Entra ID client credentials instead of a static API key.
func (c ClassifierConfig) UseClientCredentials() bool {
	return c.TenantID != "" && c.ClientID != "" && c.ClientSecret != ""
}

// SMSConfig holds the SMS transport settings.
type SMSConfig struct {
	APIURL     string   `yaml:"api_url"`
	APIKey     string   `yaml:"api_key"`
	From       string   `yaml:"from"`
	Recipients []string `yaml:"recipients"`
}

// StoreConfig holds the object-store settings.
type StoreConfig struct {
	Bucket         string `yaml:"bucket"`
	Region         string `yaml:"region"`
	Endpoint       string `yaml:"endpoint"`
	IncomingPrefix string `yaml:"incoming_prefix"`
}

// Config holds all configuration for the dispatch service.
type Config struct {
	Classifier ClassifierConfig
	SMS        SMSConfig
	Store      StoreConfig

	DatabaseURL string
	RedisURL    string

	// Retry
	RetryBaseDelay time.Duration

	// Server (entry points + health)
	Port int
}

// rawConfig mirrors the YAML structure for unmarshalling.
type rawConfig struct {
	Classifier ClassifierConfig `yaml:"classifier"`
	SMS        SMSConfig        `yaml:"sms"`
	Store      StoreConfig      `yaml:"store"`
	Database   struct {
		URL string `yaml:"url"`
	} `yaml:"database"`
	Redis struct {
		URL string `yaml:"url"`
	} `yaml:"redis"`
}

// Load reads configuration from config.yaml (with env var expansion) and
// environment variables for non-YAML settings.
func Load() (*Config, error) {
	configPath := envOrDefault("CONFIG_PATH", "/app/config/config.yaml")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", configPath, err)
	}

	// Expand ${VAR} references in the YAML
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config YAML: %w", err)
	}

	cfg := &Config{
		Classifier:     raw.Classifier,
		SMS:            raw.SMS,
		Store:          raw.Store,
		DatabaseURL:    firstNonEmpty(raw.Database.URL, os.Getenv("DATABASE_URL")),
		RedisURL:       firstNonEmpty(raw.Redis.URL, envOrDefault("REDIS_URL", "redis://localhost:6379/0")),
		RetryBaseDelay: envOrDefaultDuration("RETRY_BASE_DELAY", 500*time.Millisecond),
		Port:           envOrDefaultInt("PORT", 8080),
	}

	if cfg.Classifier.BaseURL == "" {
		cfg.Classifier.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Classifier.Model == "" {
		cfg.Classifier.Model = "gpt-4o-mini"
	}
	if cfg.Store.IncomingPrefix == "" {
		cfg.Store.IncomingPrefix = "incoming/"
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate checks every required setting and reports the first one missing.
func (c *Config) validate() error {
	if c.Classifier.APIKey == "" && !c.Classifier.UseClientCredentials() {
		return fmt.Errorf("classifier credentials required: set classifier.api_key or the tenant_id/client_id/client_secret triple")
	}
	if c.SMS.APIKey == "" {
		return fmt.Errorf("sms.api_key is required")
	}
	if c.SMS.APIURL == "" {
		return fmt.Errorf("sms.api_url is required")
	}
	if c.SMS.From == "" {
		return fmt.Errorf("sms.from origin number is required")
	}
	if len(recipients(c.SMS.Recipients)) == 0 {
		return fmt.Errorf("at least one sms recipient is required")
	}
	if c.Store.Bucket == "" {
		return fmt.Errorf("store.bucket is required")
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("database URL is required: set database.url or DATABASE_URL")
	}
	if c.RedisURL == "" {
		return fmt.Errorf("redis URL is required: set redis.url or REDIS_URL")
	}
	return nil
}

// recipients filters out blank entries (commented out in YAML).
func recipients(list []string) []string {
	var out []string
	for _, r := range list {
		if strings.TrimSpace(r) != "" {
			out = append(out, strings.TrimSpace(r))
		}
	}
	return out
}

// Recipients returns the cleaned default recipient list.
func (c *Config) Recipients() []string {
	return recipients(c.SMS.Recipients)
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envOrDefaultDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
