// Package config assembles runtime configuration from the environment with
// an optional YAML overlay so main stays lean.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config captures everything the binaries need to wire the platform.
type Config struct {
	Addr string `yaml:"addr"`

	// Store selects the document store backend: memory or postgres.
	Store       string `yaml:"store"`
	DatabaseURL string `yaml:"database_url"`
	RedisURL    string `yaml:"redis_url"`

	KafkaBrokers []string `yaml:"kafka_brokers"`
	KafkaTopic   string   `yaml:"kafka_topic"`

	SyncCapacityPerMinute int    `yaml:"sync_capacity_per_minute"`
	SyncFetchLimit        int    `yaml:"sync_fetch_limit"`
	FraudWeights          string `yaml:"fraud_weights"`

	RegistryBaseURL string `yaml:"registry_base_url"`
}

// FromEnv builds the config from environment variables, then applies the
// YAML file named by GOVDOCIQ_CONFIG when set. File values win.
func FromEnv() (Config, error) {
	cfg := Config{
		Addr:                  envOr("GOVDOCIQ_ADDR", ":8080"),
		Store:                 envOr("GOVDOCIQ_STORE", "memory"),
		DatabaseURL:           os.Getenv("GOVDOCIQ_DATABASE_URL"),
		RedisURL:              os.Getenv("GOVDOCIQ_REDIS_URL"),
		KafkaTopic:            envOr("GOVDOCIQ_KAFKA_TOPIC", "govdociq.events"),
		SyncCapacityPerMinute: envIntOr("GOVDOCIQ_SYNC_CAPACITY", 50),
		SyncFetchLimit:        envIntOr("GOVDOCIQ_SYNC_FETCH_LIMIT", 200),
		FraudWeights:          os.Getenv("GOVDOCIQ_FRAUD_WEIGHTS"),
		RegistryBaseURL:       os.Getenv("GOVDOCIQ_REGISTRY_URL"),
	}
	if brokers := os.Getenv("GOVDOCIQ_KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitComma(brokers)
	}

	if path := os.Getenv("GOVDOCIQ_CONFIG"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func splitComma(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
