// Package config loads the service configuration from defaults, an optional
// config file and KIOSK_ prefixed environment variables.
package config

import "time"

type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Redis    RedisConfig    `mapstructure:"redis" validate:"required"`
	Ledger   LedgerConfig   `mapstructure:"ledger" validate:"required"`
}

type ServerConfig struct {
	GRPCPort int    `mapstructure:"grpc_port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn" validate:"required"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"gt=0"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr" validate:"required"`
	PoolSize int           `mapstructure:"pool_size" validate:"gt=0"`
	ItemTTL  time.Duration `mapstructure:"item_ttl" validate:"gt=0"`
}

type LedgerConfig struct {
	ReconcileInterval time.Duration `mapstructure:"reconcile_interval" validate:"gt=0"`
	HealthInterval    time.Duration `mapstructure:"health_interval" validate:"gt=0"`
	HighscoreLimit    int           `mapstructure:"highscore_limit" validate:"gt=0"`
}
