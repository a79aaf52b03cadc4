package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Roles a process can run as
const (
	RoleBooks     = "books"
	RoleCustomers = "customers"
	RoleServices  = "services"
	RoleGateway   = "gateway"
)

// Config holds all configuration for the service
type Config struct {
	Service ServiceConfig `yaml:"service"`
	Shard   ShardConfig   `yaml:"shard"`
	Peers   PeersConfig   `yaml:"peers"`
	Client  ClientConfig  `yaml:"client"`
	Store   StoreConfig   `yaml:"store"`
	Kafka   KafkaConfig   `yaml:"kafka"`
	GRPC    GRPCConfig    `yaml:"grpc"`
	HTTP    HTTPConfig    `yaml:"http"`
	Gateway GatewayConfig `yaml:"gateway"`
	Fault   FaultConfig   `yaml:"fault"`
	Rules   RulesConfig   `yaml:"rules"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServiceConfig holds service-level configuration
type ServiceConfig struct {
	Name        string `yaml:"name" validate:"required"`
	Role        string `yaml:"role" validate:"oneof=books customers services gateway"`
	Environment string `yaml:"environment"`
}

// ShardConfig describes the books shard this process serves
type ShardConfig struct {
	Local           string   `yaml:"local" validate:"required,len=2,lowercase"`
	Known           []string `yaml:"known" validate:"dive,len=2,lowercase"`
	Fallback        string   `yaml:"fallback"`
	ServiceTemplate string   `yaml:"service_template" validate:"required,contains={shard}"`
}

// PeersConfig names the services this process calls
type PeersConfig struct {
	URLTemplate     string `yaml:"url_template" validate:"required,contains={service}"`
	BooksService    string `yaml:"books_service" validate:"required"`
	InsightsService string `yaml:"insights_service" validate:"required"`
	// UsageURL overrides where usage is recorded; empty means the insights service
	UsageURL string `yaml:"usage_url"`
}

// ClientConfig holds outbound call policy
type ClientConfig struct {
	ProxyTimeout      time.Duration `yaml:"proxy_timeout" validate:"gt=0"`
	DependencyTimeout time.Duration `yaml:"dependency_timeout" validate:"gt=0"`
	MaxRetries        int           `yaml:"max_retries" validate:"gte=0,lte=20"`
	Backoff           time.Duration `yaml:"backoff" validate:"gte=0"`
}

// StoreConfig selects the record store backend
type StoreConfig struct {
	Backend     string `yaml:"backend" validate:"oneof=memory postgres redis"`
	DatabaseURL string `yaml:"database_url" validate:"required_if=Backend postgres"`
	RedisAddr   string `yaml:"redis_addr" validate:"required_if=Backend redis"`
}

// KafkaConfig holds Kafka broker configuration
type KafkaConfig struct {
	Enabled     bool     `yaml:"enabled"`
	Brokers     []string `yaml:"brokers" validate:"required_if=Enabled true"`
	TopicPrefix string   `yaml:"topic_prefix"`
	BufferSize  int      `yaml:"buffer_size" validate:"gte=0"`
}

// GRPCConfig holds gRPC server configuration
type GRPCConfig struct {
	Port int `yaml:"port" validate:"min=1,max=65535"`
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	Port int `yaml:"port" validate:"min=1,max=65535"`
}

// GatewayConfig holds the reverse proxy upstreams
type GatewayConfig struct {
	BooksUpstream     string  `yaml:"books_upstream" validate:"required,url"`
	CustomersUpstream string  `yaml:"customers_upstream" validate:"required,url"`
	RateLimit         float64 `yaml:"rate_limit" validate:"gte=0"` // requests per second, 0 disables
	Burst             int     `yaml:"burst" validate:"gte=0"`
}

// FaultConfig selects the fault injection policy
type FaultConfig struct {
	Mode  string             `yaml:"mode" validate:"oneof=never random"`
	Rate  float64            `yaml:"rate" validate:"gte=0,lte=1"`
	Rates map[string]float64 `yaml:"rates" validate:"dive,gte=0,lte=1"`
	Seed  uint64             `yaml:"seed"`
}

// RulesConfig holds the sentinel business rules of the demo shop. Every
// marker is disabled when empty.
type RulesConfig struct {
	// ISBNs containing this marker are reported as already stocked
	ExistingISBNMarker string `yaml:"existing_isbn_marker"`
	// ISBNs containing this marker are reported as unavailable
	UnavailableISBNMarker string `yaml:"unavailable_isbn_marker"`
	// usernames starting with this prefix (case-insensitive) count as taken
	ReservedUsernamePrefix string `yaml:"reserved_username_prefix"`
	// authors starting with this prefix (case-insensitive) are unknown
	UnknownAuthorPrefix string `yaml:"unknown_author_prefix"`
	// a changed order quantity divisible by this is refused; 0 disables
	QuantityDivisor int `yaml:"quantity_divisor" validate:"gte=0"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format" validate:"oneof=json console"` // "json" or "console"
}

// Default returns the configuration used when nothing is overridden
func Default() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:        "books-service",
			Role:        RoleBooks,
			Environment: "development",
		},
		Shard: ShardConfig{
			Local:           "en",
			Known:           []string{"en", "fr", "de", "es"},
			Fallback:        "en",
			ServiceTemplate: "{shard}-books-service",
		},
		Peers: PeersConfig{
			URLTemplate:     "http://{service}:5000",
			BooksService:    "books-service",
			InsightsService: "bookshop-services",
		},
		Client: ClientConfig{
			ProxyTimeout:      120 * time.Second,
			DependencyTimeout: 10 * time.Second,
			MaxRetries:        5,
			Backoff:           200 * time.Millisecond,
		},
		Store: StoreConfig{
			Backend: "memory",
		},
		Kafka: KafkaConfig{
			Brokers:     []string{"localhost:9092"},
			TopicPrefix: "bookshop",
			BufferSize:  1024,
		},
		GRPC: GRPCConfig{Port: 9090},
		HTTP: HTTPConfig{Port: 5000},
		Gateway: GatewayConfig{
			BooksUpstream:     "http://books-service:5000",
			CustomersUpstream: "http://customer-order-service:5000",
			Burst:             50,
		},
		Fault: FaultConfig{
			Mode: "never",
			Seed: 1,
		},
		Rules: RulesConfig{
			QuantityDivisor: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadConfig loads configuration from defaults, an optional YAML file named
// by CONFIG_FILE and finally environment variables, in that order.
func LoadConfig() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.Service.Name = getEnv("SERVICE_NAME", c.Service.Name)
	c.Service.Role = getEnv("SERVICE_ROLE", c.Service.Role)
	c.Service.Environment = getEnv("ENVIRONMENT", c.Service.Environment)

	c.Shard.Local = strings.ToLower(getEnv("LANGUAGE", c.Shard.Local))
	c.Shard.Known = getEnvSlice("ALL_LANGUAGES", c.Shard.Known)
	c.Shard.Fallback = getEnv("FALLBACK_LANGUAGE", c.Shard.Fallback)
	c.Shard.ServiceTemplate = getEnv("SHARD_SERVICE_TEMPLATE", c.Shard.ServiceTemplate)

	c.Peers.URLTemplate = getEnv("PEER_URL_TEMPLATE", c.Peers.URLTemplate)
	c.Peers.BooksService = getEnv("BOOKS_SERVICE_NAME", c.Peers.BooksService)
	c.Peers.InsightsService = getEnv("INSIGHTS_SERVICE_NAME", c.Peers.InsightsService)
	c.Peers.UsageURL = getEnv("USAGE_SERVICE_URL", c.Peers.UsageURL)

	c.Client.ProxyTimeout = getEnvDuration("PROXY_TIMEOUT", c.Client.ProxyTimeout)
	c.Client.DependencyTimeout = getEnvDuration("DEPENDENCY_TIMEOUT", c.Client.DependencyTimeout)
	c.Client.MaxRetries = getEnvInt("CLIENT_MAX_RETRIES", c.Client.MaxRetries)
	c.Client.Backoff = getEnvDuration("CLIENT_BACKOFF", c.Client.Backoff)

	c.Store.Backend = getEnv("STORE_BACKEND", c.Store.Backend)
	c.Store.DatabaseURL = getEnv("DATABASE_URL", c.Store.DatabaseURL)
	c.Store.RedisAddr = getEnv("REDIS_ADDR", c.Store.RedisAddr)

	c.Kafka.Enabled = getEnvBool("KAFKA_ENABLED", c.Kafka.Enabled)
	c.Kafka.Brokers = getEnvSlice("KAFKA_BROKERS", c.Kafka.Brokers)
	c.Kafka.TopicPrefix = getEnv("KAFKA_TOPIC_PREFIX", c.Kafka.TopicPrefix)
	c.Kafka.BufferSize = getEnvInt("KAFKA_BUFFER_SIZE", c.Kafka.BufferSize)

	c.GRPC.Port = getEnvInt("GRPC_PORT", c.GRPC.Port)
	c.HTTP.Port = getEnvInt("HTTP_PORT", c.HTTP.Port)

	c.Gateway.BooksUpstream = getEnv("BOOK_SERVICE", c.Gateway.BooksUpstream)
	c.Gateway.CustomersUpstream = getEnv("CUSTOMER_SERVICE", c.Gateway.CustomersUpstream)
	c.Gateway.RateLimit = getEnvFloat("GATEWAY_RATE_LIMIT", c.Gateway.RateLimit)
	c.Gateway.Burst = getEnvInt("GATEWAY_BURST", c.Gateway.Burst)

	c.Fault.Mode = getEnv("FAULT_MODE", c.Fault.Mode)
	c.Fault.Rate = getEnvFloat("FAULT_RATE", c.Fault.Rate)
	c.Fault.Seed = uint64(getEnvInt("FAULT_SEED", int(c.Fault.Seed)))
	if raw := os.Getenv("FAULT_RATES"); raw != "" {
		rates, err := parseRates(raw)
		if err != nil {
			return err
		}
		c.Fault.Rates = rates
	}

	c.Rules.ExistingISBNMarker = getEnv("RULE_EXISTING_ISBN_MARKER", c.Rules.ExistingISBNMarker)
	c.Rules.UnavailableISBNMarker = getEnv("RULE_UNAVAILABLE_ISBN_MARKER", c.Rules.UnavailableISBNMarker)
	c.Rules.ReservedUsernamePrefix = getEnv("RULE_RESERVED_USERNAME_PREFIX", c.Rules.ReservedUsernamePrefix)
	c.Rules.UnknownAuthorPrefix = getEnv("RULE_UNKNOWN_AUTHOR_PREFIX", c.Rules.UnknownAuthorPrefix)
	c.Rules.QuantityDivisor = getEnvInt("RULE_QUANTITY_DIVISOR", c.Rules.QuantityDivisor)

	c.Logging.Level = getEnv("LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnv("LOG_FORMAT", c.Logging.Format)
	return nil
}

// Validate checks struct constraints and cross-field rules
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Service.Role == RoleBooks && !contains(c.Shard.Known, c.Shard.Local) {
		return errors.New("invalid configuration: local shard must be one of the known shards")
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

// parseRates reads "checkpoint=rate,checkpoint=rate"
func parseRates(raw string) (map[string]float64, error) {
	rates := make(map[string]float64)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid FAULT_RATES entry %q", pair)
		}
		rate, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid FAULT_RATES entry %q: %w", pair, err)
		}
		rates[strings.TrimSpace(name)] = rate
	}
	return rates, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvSlice gets a comma or space separated environment variable as a slice
func getEnvSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	fields := strings.FieldsFunc(value, func(r rune) bool { return r == ',' || r == ' ' })
	if len(fields) == 0 {
		return defaultValue
	}
	return fields
}
