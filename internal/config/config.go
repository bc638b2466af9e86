package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix namespaces every variable; tags carry the full name so lookups hit TRACKING_* directly.
const EnvPrefix = "TRACKING"

const devJWTSecret = "dev-secret-change-me"

// Config holds all application configuration.
type Config struct {
	App      AppConfig
	Database DatabaseConfig
	HTTP     HTTPConfig
	GRPC     GRPCConfig
	Auth     AuthConfig
	Tracking TrackingConfig
	Redis    RedisConfig
	Events   EventsConfig
}

type AppConfig struct {
	Env       string `envconfig:"TRACKING_APP_ENV" default:"dev"`
	LogLevel  string `envconfig:"TRACKING_LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"TRACKING_LOG_FORMAT" default:"json"`
}

// DatabaseConfig contains database-related settings.
type DatabaseConfig struct {
	Path string `envconfig:"TRACKING_DB_PATH" default:"tracking.db"` // SQLite database file path
}

type HTTPConfig struct {
	Address         string        `envconfig:"TRACKING_HTTP_ADDRESS" default:":8080"`
	WSWriteTimeout  time.Duration `envconfig:"TRACKING_WS_WRITE_TIMEOUT" default:"10s"`
	WSPingInterval  time.Duration `envconfig:"TRACKING_WS_PING_INTERVAL" default:"25s"`
	WSMaxMessageLen int64         `envconfig:"TRACKING_WS_MAX_MESSAGE_BYTES" default:"8192"`
}

// GRPCConfig contains gRPC server settings.
type GRPCConfig struct {
	Address string `envconfig:"TRACKING_GRPC_ADDRESS" default:":50051"` // empty disables the stream transport
}

// AuthConfig contains authentication settings.
type AuthConfig struct {
	JWTSecret string `envconfig:"TRACKING_JWT_SECRET"`
	JWTIssuer string `envconfig:"TRACKING_JWT_ISSUER"`
}

type TrackingConfig struct {
	AverageSpeedKmh float64 `envconfig:"TRACKING_ETA_SPEED_KMH" default:"20"`
	RoomBuffer      int     `envconfig:"TRACKING_ROOM_BUFFER" default:"32"`
}

type RedisConfig struct {
	URL string `envconfig:"TRACKING_REDIS_URL"` // empty disables the driver geo mirror
}

type EventsConfig struct {
	Broker       string   `envconfig:"TRACKING_EVENTS_BROKER" default:"none"` // none | nats | kafka
	NATSURL      string   `envconfig:"TRACKING_NATS_URL" default:"nats://127.0.0.1:4222"`
	KafkaBrokers []string `envconfig:"TRACKING_KAFKA_BROKERS" default:"127.0.0.1:9092"`
	TopicPrefix  string   `envconfig:"TRACKING_EVENTS_TOPIC_PREFIX" default:"tracking"`
}

func process() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.Events.Broker = strings.ToLower(strings.TrimSpace(cfg.Events.Broker))
	switch cfg.Events.Broker {
	case "", "none", "nats", "kafka":
	default:
		return nil, fmt.Errorf("unsupported %s_EVENTS_BROKER %q", EnvPrefix, cfg.Events.Broker)
	}
	if cfg.Tracking.AverageSpeedKmh <= 0 {
		return nil, fmt.Errorf("%s_ETA_SPEED_KMH must be positive", EnvPrefix)
	}
	if cfg.Tracking.RoomBuffer <= 0 {
		return nil, fmt.Errorf("%s_ROOM_BUFFER must be positive", EnvPrefix)
	}
	return &cfg, nil
}

// Load loads configuration from the environment. The JWT secret is mandatory.
func Load() (*Config, error) {
	cfg, err := process()
	if err != nil {
		return nil, err
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("%s_JWT_SECRET environment variable is not set; required for production", EnvPrefix)
	}
	return cfg, nil
}

// LoadWithDefaults is like Load but falls back to a development JWT secret.
// WARNING: Only use in development! Use Load() in production.
func LoadWithDefaults() (*Config, error) {
	cfg, err := process()
	if err != nil {
		return nil, err
	}
	if cfg.Auth.JWTSecret == "" {
		cfg.Auth.JWTSecret = devJWTSecret
	}
	return cfg, nil
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, "prod") || strings.EqualFold(a.Env, "production")
}

// String returns a string representation of the config (sensitive values are masked).
func (c *Config) String() string {
	redis := "disabled"
	if c.Redis.URL != "" {
		redis = "*** (masked) ***"
	}
	return fmt.Sprintf("Config{Env: %s, DB: %s, HTTP: %s, gRPC: %s, Broker: %s, Redis: %s, Auth: *** (masked) ***}",
		c.App.Env, c.Database.Path, c.HTTP.Address, c.GRPC.Address, c.Events.Broker, redis)
}
