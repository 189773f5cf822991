package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Port           int      `mapstructure:"port"`
	DatabaseDriver string   `mapstructure:"database_driver"` // sqlite3 or postgres
	DatabaseDSN    string   `mapstructure:"database_dsn"`
	LogLevel       string   `mapstructure:"log_level"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`

	UploadDir string `mapstructure:"upload_dir"` // uploaded kubeconfig files

	// External CLI binaries; overridable for test doubles and packaging.
	K8sgptBin  string `mapstructure:"k8sgpt_bin"`
	KubectlBin string `mapstructure:"kubectl_bin"`
	HelmBin    string `mapstructure:"helm_bin"`

	CommandTimeoutSec int `mapstructure:"command_timeout_sec"` // wall-clock ceiling per external command

	// Identity service. When auth_mode is "local", bearer tokens are HS256
	// JWTs validated in-process with auth_jwt_secret instead of calling out.
	AuthMode       string `mapstructure:"auth_mode"` // remote | local
	UserServiceURL string `mapstructure:"user_service_url"`
	AuthJWTSecret  string `mapstructure:"auth_jwt_secret"`

	// Redis cache/queue. Empty address disables both tiers (the durable
	// store remains authoritative either way).
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	CacheTTLSec   int    `mapstructure:"cache_ttl_sec"`
	TaskQueueName string `mapstructure:"task_queue_name"`

	ReconcileIntervalSec int `mapstructure:"reconcile_interval_sec"`
	ReconcileBackoffSec  int `mapstructure:"reconcile_backoff_sec"`

	RequestTimeoutSec  int `mapstructure:"request_timeout_sec"`
	ShutdownTimeoutSec int `mapstructure:"shutdown_timeout_sec"`

	TracingEndpoint     string  `mapstructure:"tracing_endpoint"` // OTLP HTTP endpoint; empty = disabled
	TracingSamplingRate float64 `mapstructure:"tracing_sampling_rate"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("/etc/kubesage/")
	viper.AddConfigPath("$HOME/.kubesage")
	viper.AddConfigPath(".")

	// Defaults
	viper.SetDefault("port", 8080)
	viper.SetDefault("database_driver", "sqlite3")
	viper.SetDefault("database_dsn", "./kubesage.db")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("allowed_origins", []string{"*"})
	viper.SetDefault("upload_dir", "uploaded_kubeconfigs")
	viper.SetDefault("k8sgpt_bin", "k8sgpt")
	viper.SetDefault("kubectl_bin", "kubectl")
	viper.SetDefault("helm_bin", "helm")
	viper.SetDefault("command_timeout_sec", 60)
	viper.SetDefault("auth_mode", "remote")
	viper.SetDefault("user_service_url", "https://user-service:8000")
	viper.SetDefault("auth_jwt_secret", "")
	viper.SetDefault("redis_addr", "")
	viper.SetDefault("redis_password", "")
	viper.SetDefault("redis_db", 0)
	viper.SetDefault("cache_ttl_sec", 3600)
	viper.SetDefault("task_queue_name", "kubesage:tasks")
	viper.SetDefault("reconcile_interval_sec", 3600)
	viper.SetDefault("reconcile_backoff_sec", 60)
	viper.SetDefault("request_timeout_sec", 30)
	viper.SetDefault("shutdown_timeout_sec", 15)
	viper.SetDefault("tracing_endpoint", "")
	viper.SetDefault("tracing_sampling_rate", 1.0)

	// Environment variables
	viper.SetEnvPrefix("KUBESAGE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; using defaults and env vars
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
