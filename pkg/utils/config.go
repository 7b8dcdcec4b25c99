package utils

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Relay    RelayConfig
	Sweeper  SweeperConfig
	Notify   NotifyConfig
	Redis    RedisConfig
	Tracing  TracingConfig
}

type AppConfig struct {
	Name           string
	Port           string
	Debug          bool
	LogPath        string
	HTTPEnabled    bool
	WorkersEnabled bool
}

type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	MaxConns int32
	Migrate  bool
}

type RelayConfig struct {
	Interval    time.Duration
	BatchSize   int
	StuckAfter  time.Duration
	MaxRetries  int
	BackoffBase time.Duration
	BackoffMax  time.Duration
}

type SweeperConfig struct {
	Interval     time.Duration
	BatchSize    int
	OfferTimeout time.Duration
}

type NotifyConfig struct {
	Driver       string
	AMQPURL      string
	AMQPExchange string
	KafkaBrokers []string
	KafkaTopic   string
	DedupTTL     time.Duration
}

type RedisConfig struct {
	URL string
}

type TracingConfig struct {
	Endpoint    string
	Environment string
}

func LoadConfig() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")

	// Set defaults
	viper.SetDefault("APP_NAME", "transport-booking")
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("DEBUG", false)
	viper.SetDefault("LOG_PATH", "logs/")
	viper.SetDefault("HTTP_ENABLED", true)
	viper.SetDefault("WORKERS_ENABLED", true)
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_MAX_CONNS", 10)
	viper.SetDefault("DB_MIGRATE", true)
	viper.SetDefault("RELAY_INTERVAL", "5s")
	viper.SetDefault("RELAY_BATCH_SIZE", 50)
	viper.SetDefault("RELAY_STUCK_AFTER", "5m")
	viper.SetDefault("RELAY_MAX_RETRIES", 5)
	viper.SetDefault("RELAY_BACKOFF_BASE", "2s")
	viper.SetDefault("RELAY_BACKOFF_MAX", "5m")
	viper.SetDefault("SWEEPER_INTERVAL", "30s")
	viper.SetDefault("SWEEPER_BATCH_SIZE", 100)
	viper.SetDefault("OFFER_TIMEOUT", "5m")
	viper.SetDefault("NOTIFY_DRIVER", "log")
	viper.SetDefault("AMQP_EXCHANGE", "booking.events")
	viper.SetDefault("KAFKA_TOPIC", "booking-events")
	viper.SetDefault("NOTIFY_DEDUP_TTL", "24h")
	viper.SetDefault("ENV", "dev")

	if err := viper.ReadInConfig(); err != nil {
		// .env is optional; environment variables are enough.
		var pathErr *fs.PathError
		if !errors.As(err, &pathErr) {
			return nil, err
		}
	}

	viper.AutomaticEnv()

	config := &Config{
		App: AppConfig{
			Name:           viper.GetString("APP_NAME"),
			Port:           viper.GetString("PORT"),
			Debug:          viper.GetBool("DEBUG"),
			LogPath:        viper.GetString("LOG_PATH"),
			HTTPEnabled:    viper.GetBool("HTTP_ENABLED"),
			WorkersEnabled: viper.GetBool("WORKERS_ENABLED"),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			Name:     viper.GetString("DB_NAME"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASS"),
			MaxConns: viper.GetInt32("DB_MAX_CONNS"),
			Migrate:  viper.GetBool("DB_MIGRATE"),
		},
		Relay: RelayConfig{
			Interval:    viper.GetDuration("RELAY_INTERVAL"),
			BatchSize:   viper.GetInt("RELAY_BATCH_SIZE"),
			StuckAfter:  viper.GetDuration("RELAY_STUCK_AFTER"),
			MaxRetries:  viper.GetInt("RELAY_MAX_RETRIES"),
			BackoffBase: viper.GetDuration("RELAY_BACKOFF_BASE"),
			BackoffMax:  viper.GetDuration("RELAY_BACKOFF_MAX"),
		},
		Sweeper: SweeperConfig{
			Interval:     viper.GetDuration("SWEEPER_INTERVAL"),
			BatchSize:    viper.GetInt("SWEEPER_BATCH_SIZE"),
			OfferTimeout: viper.GetDuration("OFFER_TIMEOUT"),
		},
		Notify: NotifyConfig{
			Driver:       strings.ToLower(viper.GetString("NOTIFY_DRIVER")),
			AMQPURL:      viper.GetString("AMQP_URL"),
			AMQPExchange: viper.GetString("AMQP_EXCHANGE"),
			KafkaBrokers: splitList(viper.GetString("KAFKA_BROKERS")),
			KafkaTopic:   viper.GetString("KAFKA_TOPIC"),
			DedupTTL:     viper.GetDuration("NOTIFY_DEDUP_TTL"),
		},
		Redis: RedisConfig{
			URL: viper.GetString("REDIS_URL"),
		},
		Tracing: TracingConfig{
			Endpoint:    viper.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
			Environment: viper.GetString("ENV"),
		},
	}

	return config, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
