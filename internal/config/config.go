package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var (
	ServiceName    = "dashboard-sync"
	ServiceVersion = ""
)

var (
	Env *EnvConfig
)

type EnvConfig struct {
	Env                     string                    `mapstructure:"env"`
	Log                     LogConfig                 `mapstructure:"log"`
	GracefulShutdownTimeout time.Duration             `mapstructure:"graceful_shutdown_timeout"`
	Port                    map[string]string         `mapstructure:"port"`
	Dashboard               DashboardConfig           `mapstructure:"dashboard"`
	Database                map[string]DatabaseConfig `mapstructure:"database"`
	Redis                   map[string]RedisConfig    `mapstructure:"redis"`
	NatsJetstream           NatsJetstreamConfig       `mapstructure:"nats_jetstream"`
	APIKeys                 []APIKeyConfig            `mapstructure:"api_keys"`
}

// APIKeyConfig guards the write endpoints of the local HTTP surface. ExpiredAt accepts
// RFC3339 or a date; a date expires at the end of that day.
type APIKeyConfig struct {
	Name      string `mapstructure:"name"`
	Key       string `mapstructure:"key"`
	Active    bool   `mapstructure:"active"`
	ExpiredAt string `mapstructure:"expired_at"`
}

type LogConfig struct {
	ShowCaller bool   `mapstructure:"show_caller"`
	LogLevel   string `mapstructure:"log_level"`
}

// DashboardConfig describes both backend channels. An empty StreamURL disables the
// council feed entirely.
type DashboardConfig struct {
	SnapshotURL     string            `mapstructure:"snapshot_url"`
	StreamURL       string            `mapstructure:"stream_url"`
	Headers         map[string]string `mapstructure:"headers"`
	PollInterval    time.Duration     `mapstructure:"poll_interval"`
	MaxPollInterval time.Duration     `mapstructure:"max_poll_interval"`
	BackoffFactor   float64           `mapstructure:"backoff_factor"`
	GraceFailures   int               `mapstructure:"grace_failures"`
	RequestTimeout  time.Duration     `mapstructure:"request_timeout"`
	ReconnectDelay  time.Duration     `mapstructure:"reconnect_delay"`
	PingInterval    time.Duration     `mapstructure:"ping_interval"`
	LogCapacity     int               `mapstructure:"log_capacity"`
	CouncilCapacity int               `mapstructure:"council_capacity"`
}

type NatsJetstreamConfig struct {
	URL             string        `mapstructure:"url"`
	MaxRetries      int           `mapstructure:"max_retries"`
	ReconnectFactor float64       `mapstructure:"reconnect_factor"`
	MinJitter       time.Duration `mapstructure:"min_jitter"`
	MaxJitter       time.Duration `mapstructure:"max_jitter"`
}

type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	PingInterval    time.Duration `mapstructure:"ping_interval"`
	ReconnectFactor float64       `mapstructure:"reconnect_factor"`
	MinJitter       time.Duration `mapstructure:"min_jitter"`
	MaxJitter       time.Duration `mapstructure:"max_jitter"`
	MaxRetry        int           `mapstructure:"max_retry"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxActiveConns  int           `mapstructure:"max_active_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

type RedisConfig struct {
	CacheDSN string        `mapstructure:"cache_dsn"`
	Key      string        `mapstructure:"key"`
	TTL      time.Duration `mapstructure:"ttl"`
}

func setDefaults() {
	viper.SetDefault("env", "development")
	viper.SetDefault("log.show_caller", false)
	viper.SetDefault("log.log_level", "info")
	viper.SetDefault("graceful_shutdown_timeout", 10*time.Second)
	viper.SetDefault("port.http", "8080")
	viper.SetDefault("port.grpc", "9090")

	viper.SetDefault("dashboard.snapshot_url", "")
	viper.SetDefault("dashboard.stream_url", "")
	viper.SetDefault("dashboard.poll_interval", 15*time.Second)
	viper.SetDefault("dashboard.max_poll_interval", 60*time.Second)
	viper.SetDefault("dashboard.backoff_factor", 1.5)
	viper.SetDefault("dashboard.grace_failures", 3)
	viper.SetDefault("dashboard.request_timeout", 10*time.Second)
	viper.SetDefault("dashboard.reconnect_delay", 3*time.Second)
	viper.SetDefault("dashboard.ping_interval", 30*time.Second)
	viper.SetDefault("dashboard.log_capacity", 100)
	viper.SetDefault("dashboard.council_capacity", 50)

	viper.SetDefault("database.council.dsn", "")
	viper.SetDefault("redis.snapshot.cache_dsn", "")
	viper.SetDefault("redis.snapshot.key", "dashboard:snapshot:latest")
	viper.SetDefault("redis.snapshot.ttl", 5*time.Minute)
	viper.SetDefault("nats_jetstream.url", "")
}

// LoadConfig reads the optional yaml config file and overlays environment variables,
// e.g. DASHBOARD_SNAPSHOT_URL overrides dashboard.snapshot_url.
func LoadConfig(configPath string) error {
	viper.Reset()
	setDefaults()

	configPath = strings.TrimSpace(configPath)
	explicit := configPath != ""
	if !explicit {
		viper.SetConfigName("config")
		viper.SetConfigType("yml")
		viper.AddConfigPath(".")
	} else {
		ext := strings.ToLower(filepath.Ext(configPath))
		if ext == ".yml" || ext == ".yaml" {
			viper.SetConfigFile(configPath)
		} else {
			viper.SetConfigName(filepath.Base(configPath))
			viper.SetConfigType("yml")
			configDir := filepath.Dir(configPath)
			if configDir == "." || configDir == "" {
				viper.AddConfigPath(".")
			} else {
				viper.AddConfigPath(configDir)
			}
		}
	}

	replacer := strings.NewReplacer(".", "_")
	viper.SetEnvKeyReplacer(replacer)
	viper.AutomaticEnv()

	err := viper.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit || !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	err = viper.Unmarshal(&Env)
	if err != nil {
		return fmt.Errorf("failed to unmarshal config file: %w", err)
	}

	return nil
}

func (c DashboardConfig) Validate() error {
	if strings.TrimSpace(c.SnapshotURL) == "" {
		return errors.New("dashboard.snapshot_url is required")
	}

	return nil
}
