// Package config handles runtime settings for the vault server:
// defaults, environment overlay, then command-line flags.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Store backends selectable via -b / VAULT_STORE.
const (
	BackendMemory = "memory"
	BackendMongo  = "mongo"
	BackendRedis  = "redis"
)

// Config holds runtime settings for the vault server.
//
// MinCodes/MaxCodes bound how many encrypted codes one registration may
// carry. Deployments that require exactly ten codes set both to 10.
type Config struct {
	EndpointAddr  string
	StoreBackend  string
	MongoURI      string
	MongoDatabase string
	RedisAddr     string
	Cooldown      time.Duration
	MinCodes      int
	MaxCodes      int
}

// LoadDefaults populates Config with development defaults.
func (c *Config) LoadDefaults() {
	c.EndpointAddr = ":3000"
	c.StoreBackend = BackendMemory
	c.MongoURI = "mongodb://localhost:27017"
	c.MongoDatabase = "vault"
	c.RedisAddr = "localhost:6379"
	c.Cooldown = 5 * time.Minute
	c.MinCodes = 1
	c.MaxCodes = 10
}

// LoadConfig builds a Config by applying defaults, then overlaying
// environment variables and finally command-line flags.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, os.Args[1:]); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreBackend {
	case BackendMemory, BackendMongo, BackendRedis:
	default:
		return fmt.Errorf("unknown store backend %q", c.StoreBackend)
	}
	if c.MinCodes < 1 || c.MaxCodes < c.MinCodes {
		return fmt.Errorf("invalid code bounds: min=%d max=%d", c.MinCodes, c.MaxCodes)
	}
	if c.Cooldown < 0 {
		return fmt.Errorf("cooldown must not be negative")
	}
	return nil
}

func parseEnv(cfg *Config) error {
	if v := os.Getenv("VAULT_ADDR"); v != "" {
		cfg.EndpointAddr = v
	}
	if v := os.Getenv("VAULT_STORE"); v != "" {
		cfg.StoreBackend = v
	}
	if v := os.Getenv("VAULT_MONGO_URI"); v != "" {
		cfg.MongoURI = v
	}
	if v := os.Getenv("VAULT_MONGO_DB"); v != "" {
		cfg.MongoDatabase = v
	}
	if v := os.Getenv("VAULT_REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("VAULT_COOLDOWN_MINUTES"); v != "" {
		minutes, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("VAULT_COOLDOWN_MINUTES: %w", err)
		}
		cfg.Cooldown = time.Duration(minutes) * time.Minute
	}
	return nil
}

// parseFlags overlays Config fields from command-line flags:
//
//	-a string   HTTP bind address (e.g., ":3000")
//	-b string   store backend: memory, mongo or redis
//	-d string   MongoDB URI
//	-n string   MongoDB database name
//	-r string   Redis address
//	-c int      retrieval cooldown, minutes
//	-min int    minimum codes per registration
//	-max int    maximum codes per registration
func parseFlags(cfg *Config, args []string) error {
	fs := flag.NewFlagSet("vault-server", flag.ContinueOnError)

	fs.StringVar(&cfg.EndpointAddr, "a", cfg.EndpointAddr, "address and port to run server")
	fs.StringVar(&cfg.StoreBackend, "b", cfg.StoreBackend, "store backend (memory|mongo|redis)")
	fs.StringVar(&cfg.MongoURI, "d", cfg.MongoURI, "MongoDB URI")
	fs.StringVar(&cfg.MongoDatabase, "n", cfg.MongoDatabase, "MongoDB database name")
	fs.StringVar(&cfg.RedisAddr, "r", cfg.RedisAddr, "Redis address")
	cooldownMinutes := fs.Int("c", int(cfg.Cooldown.Minutes()), "retrieval cooldown (in minutes)")
	fs.IntVar(&cfg.MinCodes, "min", cfg.MinCodes, "minimum codes per registration")
	fs.IntVar(&cfg.MaxCodes, "max", cfg.MaxCodes, "maximum codes per registration")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg.Cooldown = time.Duration(*cooldownMinutes) * time.Minute
	return nil
}
