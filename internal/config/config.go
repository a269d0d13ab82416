package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultAPIBaseURL = "http://localhost:8000"

type CartBackend string

const (
	CartBackendMemory CartBackend = "memory"
	CartBackendFile   CartBackend = "file"
	CartBackendRedis  CartBackend = "redis"
	CartBackendMongo  CartBackend = "mongo"
)

type Config struct {
	HTTPPort        string        `yaml:"http_port"`
	APIBaseURL      string        `yaml:"api_base_url"`
	MockData        bool          `yaml:"mock_data"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	LogLevel        string        `yaml:"log_level"`

	CartBackend CartBackend `yaml:"cart_backend"`
	CartDir     string      `yaml:"cart_dir"`

	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	MongoURI      string `yaml:"mongo_uri"`
	MongoDBName   string `yaml:"mongo_db_name"`

	// KafkaBrokers is a comma separated list; empty disables the pending-order journal.
	KafkaBrokers string `yaml:"kafka_brokers"`
	CatalogDSN   string `yaml:"catalog_dsn"`
}

func defaults() *Config {
	return &Config{
		HTTPPort:        "8080",
		APIBaseURL:      DefaultAPIBaseURL,
		RequestTimeout:  10 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		LogLevel:        "info",
		CartBackend:     CartBackendMemory,
		CartDir:         defaultCartDir(),
		RedisAddr:       "localhost:6379",
		MongoURI:        "mongodb://localhost:27017",
		MongoDBName:     "storefront",
		CatalogDSN:      ":memory:",
	}
}

// Load builds the configuration from defaults, the optional YAML file named by
// STOREFRONT_CONFIG, and environment overrides, in that order.
func Load() (*Config, error) {
	cfg := defaults()
	if path := os.Getenv("STOREFRONT_CONFIG"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.HTTPPort = getEnv("HTTP_PORT", c.HTTPPort)
	c.APIBaseURL = getEnv("API_BASE_URL", c.APIBaseURL)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.CartBackend = CartBackend(getEnv("CART_BACKEND", string(c.CartBackend)))
	c.CartDir = getEnv("CART_DIR", c.CartDir)
	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = getEnv("REDIS_PASSWORD", c.RedisPassword)
	c.MongoURI = getEnv("MONGO_URI", c.MongoURI)
	c.MongoDBName = getEnv("MONGO_DB_NAME", c.MongoDBName)
	c.KafkaBrokers = getEnv("KAFKA_BROKERS", c.KafkaBrokers)
	c.CatalogDSN = getEnv("CATALOG_DSN", c.CatalogDSN)

	if v := os.Getenv("MOCK_DATA"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid MOCK_DATA: %w", err)
		}
		c.MockData = b
	}
	var err error
	if c.RequestTimeout, err = getDuration("REQUEST_TIMEOUT", c.RequestTimeout); err != nil {
		return err
	}
	if c.ShutdownTimeout, err = getDuration("SHUTDOWN_TIMEOUT", c.ShutdownTimeout); err != nil {
		return err
	}
	return nil
}

func (c *Config) validate() error {
	switch c.CartBackend {
	case CartBackendMemory, CartBackendFile, CartBackendRedis, CartBackendMongo:
	default:
		return fmt.Errorf("unknown cart backend %q", c.CartBackend)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}
	return nil
}

// Brokers splits KafkaBrokers into addresses.
func (c *Config) Brokers() []string {
	var brokers []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func defaultCartDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".storefront"
	}
	return dir + string(os.PathSeparator) + "storefront"
}
