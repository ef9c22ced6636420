package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds the effective configuration: defaults, then the optional YAML
// file at path, then environment variable overrides. The result is
// validated before being returned.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		k := koanf.New(".")
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config from %q: %w", path, err)
		}
		if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
			return nil, fmt.Errorf("failed to parse config from %q: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides config fields from environment variables. The variable
// names match the original deployment's .env contract.
func applyEnv(cfg *Config) {
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.ListenAddr, "LISTEN_ADDR")
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		cfg.CORSOrigins = origins
	}

	setString(&cfg.Graph.Host, "FALKORDB_HOST")
	setInt(&cfg.Graph.Port, "FALKORDB_PORT")
	setString(&cfg.Graph.Password, "FALKORDB_PASSWORD")

	setString(&cfg.ObjectStore.Endpoint, "S3_ENDPOINT_URL")
	setString(&cfg.ObjectStore.AccessKey, "S3_ACCESS_KEY")
	setString(&cfg.ObjectStore.SecretKey, "S3_SECRET_KEY")
	setString(&cfg.ObjectStore.Region, "S3_REGION")
	setString(&cfg.ObjectStore.BucketPrefix, "S3_BUCKET_PREFIX")
	setBool(&cfg.ObjectStore.UseTLS, "S3_SECURE")

	setString(&cfg.Database.URL, "DATABASE_URL")

	setString(&cfg.Yente.BaseURL, "YENTE_URL")
	setString(&cfg.Yente.Dataset, "YENTE_DATASET")
	setInt(&cfg.Yente.TimeoutSeconds, "YENTE_TIMEOUT_SECONDS")

	setString(&cfg.LLM.Model, "LLM_MODEL")
	setString(&cfg.LLM.APIKey, "ANTHROPIC_API_KEY")
	setInt(&cfg.LLM.MaxTokens, "LLM_MAX_TOKENS")

	setString(&cfg.Schema.CatalogPath, "SCHEMA_CATALOG_PATH")

	setBool(&cfg.Tracing.Enabled, "TRACING_ENABLED")
	setString(&cfg.Tracing.Endpoint, "TRACING_ENDPOINT")
	setString(&cfg.Tracing.TLSCAPath, "TRACING_TLS_CA")
	setBool(&cfg.Tracing.TLSInsecure, "TRACING_TLS_INSECURE")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
