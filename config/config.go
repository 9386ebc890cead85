// Package config loads backend configuration from yaml and opens a ready
// graph backend from it, so consumers can switch storage without importing
// backend packages directly.
package config

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"gopkg.in/yaml.v3"

	"github.com/kgraph-ai/kgraph/graph"
	"github.com/kgraph-ai/kgraph/graph/memgraph"
	"github.com/kgraph-ai/kgraph/graph/neograph"
	"github.com/kgraph-ai/kgraph/graph/otelgraph"
	"github.com/kgraph-ai/kgraph/graph/redisgraph"
)

// Backend names accepted in the "backend" field.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendNeo4j  = "neo4j"
)

// Config is a knowledge-graph storage configuration file.
type Config struct {
	// Backend selects the storage implementation: "memory", "redis", or
	// "neo4j". Default: "memory".
	Backend string `yaml:"backend"`

	// Redis configures the redis backend. Ignored otherwise.
	Redis *RedisConfig `yaml:"redis,omitempty"`

	// Neo4j configures the neo4j backend. Ignored otherwise.
	Neo4j *Neo4jConfig `yaml:"neo4j,omitempty"`

	// Tracing wraps the backend with OpenTelemetry instrumentation using
	// the global tracer and meter providers.
	Tracing bool `yaml:"tracing,omitempty"`
}

// RedisConfig holds redis connection settings.
type RedisConfig struct {
	// URL is a redis connection URL (e.g., "redis://localhost:6379/0").
	URL string `yaml:"url"`

	// KeyPrefix namespaces all keys. Default: "kg:".
	KeyPrefix string `yaml:"key_prefix,omitempty"`

	// Timeouts as Go duration strings (e.g., "5s"). Zero uses defaults.
	ConnectTimeout string `yaml:"connect_timeout,omitempty"`
	ReadTimeout    string `yaml:"read_timeout,omitempty"`
	WriteTimeout   string `yaml:"write_timeout,omitempty"`
}

// Neo4jConfig holds neo4j connection settings.
type Neo4jConfig struct {
	URI      string `yaml:"uri"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	Database string `yaml:"database,omitempty"`
}

// Load reads and parses a yaml config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses yaml config bytes and validates them.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Backend == "" {
		cfg.Backend = BackendMemory
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the selected backend has the settings it needs.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendMemory:
		return nil
	case BackendRedis:
		if c.Redis == nil || c.Redis.URL == "" {
			return fmt.Errorf("redis backend requires redis.url")
		}
		for _, d := range []string{c.Redis.ConnectTimeout, c.Redis.ReadTimeout, c.Redis.WriteTimeout} {
			if d == "" {
				continue
			}
			if _, err := time.ParseDuration(d); err != nil {
				return fmt.Errorf("invalid redis timeout %q: %w", d, err)
			}
		}
		return nil
	case BackendNeo4j:
		if c.Neo4j == nil || c.Neo4j.URI == "" {
			return fmt.Errorf("neo4j backend requires neo4j.uri")
		}
		return nil
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
}

// Open builds the configured backend and initializes it. The caller owns
// the returned backend and must Close it.
func (c *Config) Open(ctx context.Context) (graph.Backend, error) {
	backend, err := c.build()
	if err != nil {
		return nil, err
	}
	if c.Tracing {
		backend, err = otelgraph.Wrap(backend,
			otelgraph.WithTracerProvider(otel.GetTracerProvider()),
			otelgraph.WithMeterProvider(otel.GetMeterProvider()))
		if err != nil {
			return nil, fmt.Errorf("wrap backend with tracing: %w", err)
		}
	}
	if err := backend.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("initialize %s backend: %w", c.Backend, err)
	}
	return backend, nil
}

func (c *Config) build() (graph.Backend, error) {
	switch c.Backend {
	case BackendMemory:
		return memgraph.New(), nil
	case BackendRedis:
		opts := redisgraph.Options{
			URL:       c.Redis.URL,
			KeyPrefix: c.Redis.KeyPrefix,
		}
		opts.ConnectTimeout, _ = time.ParseDuration(c.Redis.ConnectTimeout)
		opts.ReadTimeout, _ = time.ParseDuration(c.Redis.ReadTimeout)
		opts.WriteTimeout, _ = time.ParseDuration(c.Redis.WriteTimeout)
		return redisgraph.New(opts)
	case BackendNeo4j:
		return neograph.New(neograph.Options{
			URI:      c.Neo4j.URI,
			Username: c.Neo4j.Username,
			Password: c.Neo4j.Password,
			Database: c.Neo4j.Database,
		})
	default:
		return nil, fmt.Errorf("unknown backend %q", c.Backend)
	}
}
