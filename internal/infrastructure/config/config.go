package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Push          PushConfig          `mapstructure:"push"`
	Gateway       GatewayConfig       `mapstructure:"gateway"`
	Webhook       WebhookConfig       `mapstructure:"webhook"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	InstanceID    string              `mapstructure:"instance_id"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORS            CORSConfig    `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	MaxConnections  int           `mapstructure:"max_connections"`
	MinConnections  int           `mapstructure:"min_connections"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	SSLMode         string        `mapstructure:"ssl_mode"`
}

type RedisConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	DB                int           `mapstructure:"db"`
	Password          string        `mapstructure:"password"`
	ConnectRetries    int           `mapstructure:"connect_retries"`
	ConnectRetryDelay time.Duration `mapstructure:"connect_retry_delay"`
}

// PushConfig drives the confirmation loop. The result-code table lives here
// rather than in code because providers renumber codes; GatewayCallTimeout
// must stay strictly shorter than PollInterval so a slow call never overlaps
// the next scheduled poll.
type PushConfig struct {
	PollInterval       time.Duration     `mapstructure:"poll_interval"`
	PollMaxAttempts    uint              `mapstructure:"poll_max_attempts"`
	PollRetryDelay     time.Duration     `mapstructure:"poll_retry_delay"`
	GlobalTimeout      time.Duration     `mapstructure:"global_timeout"`
	GatewayCallTimeout time.Duration     `mapstructure:"gateway_call_timeout"`
	SweepInterval      time.Duration     `mapstructure:"sweep_interval"`
	SweepBatchSize     int               `mapstructure:"sweep_batch_size"`
	ResultCodes        map[string]string `mapstructure:"result_codes"`
	StageMap           map[string]string `mapstructure:"stage_map"`
}

type GatewayConfig struct {
	Provider        string        `mapstructure:"provider"`
	MockLatency     time.Duration `mapstructure:"mock_latency"`
	MockFailureRate float64       `mapstructure:"mock_failure_rate"`
}

type WebhookConfig struct {
	Endpoint      string        `mapstructure:"endpoint"`
	ConsumerGroup string        `mapstructure:"consumer_group"`
	BatchSize     int64         `mapstructure:"batch_size"`
	BlockDuration time.Duration `mapstructure:"block_duration"`
	MaxAttempts   uint          `mapstructure:"max_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
	LockTTL       time.Duration `mapstructure:"lock_ttl"`
}

type ObservabilityConfig struct {
	LogLevel       string `mapstructure:"log_level"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
	EnableMetrics  bool   `mapstructure:"enable_metrics"`
	EnableTracing  bool   `mapstructure:"enable_tracing"`
}

func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read from environment variables
	v.SetEnvPrefix("PUSHPAY")
	v.AutomaticEnv()

	// Read from config file if exists
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/smartduka-payments")

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.read_timeout must be positive"))
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.write_timeout must be positive"))
	}
	if c.Database.Host == "" {
		errs = append(errs, fmt.Errorf("database.host is required"))
	}
	if c.Database.Port <= 0 {
		errs = append(errs, fmt.Errorf("database.port must be positive"))
	}
	if c.Redis.Port <= 0 {
		errs = append(errs, fmt.Errorf("redis.port must be positive"))
	}
	if c.Push.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("push.poll_interval must be positive"))
	}
	if c.Push.GlobalTimeout <= c.Push.PollInterval {
		errs = append(errs, fmt.Errorf("push.global_timeout must exceed push.poll_interval"))
	}
	if c.Push.GatewayCallTimeout <= 0 || c.Push.GatewayCallTimeout >= c.Push.PollInterval {
		errs = append(errs, fmt.Errorf("push.gateway_call_timeout must be positive and shorter than push.poll_interval"))
	}
	if c.Push.PollMaxAttempts == 0 {
		errs = append(errs, fmt.Errorf("push.poll_max_attempts must be at least 1"))
	}
	if c.Webhook.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("webhook.batch_size must be positive"))
	}

	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.cors.allowed_origins", []string{"*"})
	v.SetDefault("server.cors.allow_credentials", false)

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "pushpay")
	v.SetDefault("database.database", "pushpay")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.min_connections", 5)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.ssl_mode", "disable")

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.connect_retries", 5)
	v.SetDefault("redis.connect_retry_delay", "1s")

	// Push confirmation defaults: conservative per common STK provider SLAs.
	v.SetDefault("push.poll_interval", "4s")
	v.SetDefault("push.poll_max_attempts", 3)
	v.SetDefault("push.poll_retry_delay", "500ms")
	v.SetDefault("push.global_timeout", "120s")
	v.SetDefault("push.gateway_call_timeout", "2s")
	v.SetDefault("push.sweep_interval", "5s")
	v.SetDefault("push.sweep_batch_size", 100)
	v.SetDefault("push.result_codes", map[string]string{})
	v.SetDefault("push.stage_map", map[string]string{})

	// Gateway defaults
	v.SetDefault("gateway.provider", "mock")
	v.SetDefault("gateway.mock_latency", "200ms")
	v.SetDefault("gateway.mock_failure_rate", 0.0)

	// Webhook relay defaults
	v.SetDefault("webhook.endpoint", "")
	v.SetDefault("webhook.consumer_group", "push-webhook-relay")
	v.SetDefault("webhook.batch_size", 10)
	v.SetDefault("webhook.block_duration", "1s")
	v.SetDefault("webhook.max_attempts", 5)
	v.SetDefault("webhook.retry_delay", "1s")
	v.SetDefault("webhook.lock_ttl", "30s")

	// Observability defaults
	v.SetDefault("observability.log_level", "info")
	v.SetDefault("observability.jaeger_endpoint", "http://localhost:14268/api/traces")
	v.SetDefault("observability.enable_metrics", true)
	v.SetDefault("observability.enable_tracing", true)

	// Instance ID
	v.SetDefault("instance_id", "pushpay-1")
}

func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
