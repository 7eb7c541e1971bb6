package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Google geocoding configuration.
	GoogleDomain    string
	GoogleProtocol  string
	GoogleClientID  string
	GoogleSecretKey string
	GoogleTimeout   time.Duration
	GoogleProxyURL  string
	GoogleQPS       float64
	CacheSize       int

	// Shared Redis response cache; disabled when RedisURL is empty.
	RedisURL string
	CacheTTL time.Duration

	// Kafka request pipeline configuration.
	PipelineEnabled    bool
	KafkaBrokers       []string
	KafkaSourceTopic   string
	KafkaSinkTopic     string
	KafkaGroupID       string
	BatchSize          int
	BatchFlushInterval time.Duration
}

// Premium reports whether premium credentials are configured.
func (c *Config) Premium() bool {
	return c.GoogleClientID != "" && c.GoogleSecretKey != ""
}

// Load reads configuration from environment variables, applying defaults where unset.
// A .env file in the working directory is read first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	googleTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("GOOGLE_TIMEOUT", "10s"))
	if err != nil || googleTimeout <= 0 {
		return nil, errors.New("invalid GOOGLE_TIMEOUT")
	}

	googleQPS, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("GOOGLE_QPS", "0"), 64)
	if err != nil || googleQPS < 0 {
		return nil, errors.New("invalid GOOGLE_QPS")
	}

	cacheTTL, err := time.ParseDuration(sharedcfg.EnvOrDefault("GEOCODE_CACHE_TTL", "24h"))
	if err != nil || cacheTTL <= 0 {
		return nil, errors.New("invalid GEOCODE_CACHE_TTL")
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		GoogleDomain:    strings.Trim(sharedcfg.EnvOrDefault("GOOGLE_DOMAIN", "maps.googleapis.com"), "/"),
		GoogleProtocol:  strings.ToLower(sharedcfg.EnvOrDefault("GOOGLE_PROTOCOL", "https")),
		GoogleClientID:  os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleSecretKey: os.Getenv("GOOGLE_SECRET_KEY"),
		GoogleTimeout:   googleTimeout,
		GoogleProxyURL:  os.Getenv("GOOGLE_PROXY_URL"),
		GoogleQPS:       googleQPS,
		CacheSize:       parseCacheSize(),
		RedisURL:        os.Getenv("REDIS_URL"),
		CacheTTL:        cacheTTL,

		PipelineEnabled:    os.Getenv("PIPELINE_ENABLED") == "true",
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "geocode-requests"),
		KafkaSinkTopic:     sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "geocode-replies"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "geocoder"),
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,
	}

	if cfg.GoogleProtocol != "http" && cfg.GoogleProtocol != "https" {
		return nil, fmt.Errorf("invalid GOOGLE_PROTOCOL %q: supported protocols are http and https", cfg.GoogleProtocol)
	}
	if cfg.GoogleDomain == "" {
		return nil, errors.New("GOOGLE_DOMAIN is required")
	}
	if cfg.GoogleClientID != "" && cfg.GoogleSecretKey == "" {
		return nil, errors.New("GOOGLE_CLIENT_ID is set but GOOGLE_SECRET_KEY is not")
	}
	if cfg.GoogleSecretKey != "" && cfg.GoogleClientID == "" {
		return nil, errors.New("GOOGLE_SECRET_KEY is set but GOOGLE_CLIENT_ID is not")
	}

	if cfg.PipelineEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required")
		}
		if cfg.KafkaSourceTopic == "" {
			return nil, errors.New("KAFKA_SOURCE_TOPIC is required")
		}
		if cfg.KafkaSinkTopic == "" {
			return nil, errors.New("KAFKA_SINK_TOPIC is required")
		}
	}

	return cfg, nil
}

func parseCacheSize() int {
	if s := os.Getenv("GEOCODE_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n >= 0 {
			return n
		}
	}
	return 1000
}
