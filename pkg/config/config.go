package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	StoreBackendMemory   = "memory"
	StoreBackendRedis    = "redis"
	StoreBackendDatabase = "database"
)

type Config struct {
	App        AppConfig
	Store      StoreConfig
	Redis      RedisConfig
	DB         DBConfig
	Payment    PaymentConfig
	Activation ActivationConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Store.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"COURSEVAULT_APP_ENV" default:"dev"`
	Port         string `envconfig:"COURSEVAULT_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"COURSEVAULT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"COURSEVAULT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// StoreConfig selects the persistence adapter behind the key-value contract.
type StoreConfig struct {
	Backend   string `envconfig:"COURSEVAULT_STORE_BACKEND" default:"memory"`
	Namespace string `envconfig:"COURSEVAULT_STORE_NAMESPACE" default:"coursevault"`
}

func (s StoreConfig) validate() error {
	switch s.Backend {
	case StoreBackendMemory, StoreBackendRedis, StoreBackendDatabase:
		return nil
	default:
		return fmt.Errorf("unknown store backend %q", s.Backend)
	}
}

type RedisConfig struct {
	URL          string        `envconfig:"COURSEVAULT_REDIS_URL"`
	Address      string        `envconfig:"COURSEVAULT_REDIS_ADDR"`
	Password     string        `envconfig:"COURSEVAULT_REDIS_PASSWORD"`
	DB           int           `envconfig:"COURSEVAULT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"COURSEVAULT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"COURSEVAULT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"COURSEVAULT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"COURSEVAULT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"COURSEVAULT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type DBConfig struct {
	DSN    string `envconfig:"COURSEVAULT_DB_DSN"`
	Driver string `envconfig:"COURSEVAULT_DB_DRIVER" default:"sqlite"`

	MaxOpenConns    int           `envconfig:"COURSEVAULT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"COURSEVAULT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"COURSEVAULT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"COURSEVAULT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type PaymentConfig struct {
	// IdempotencyTTL bounds how long a gateway transaction id is remembered
	// for duplicate-callback suppression.
	IdempotencyTTL time.Duration `envconfig:"COURSEVAULT_PAYMENT_IDEMPOTENCY_TTL" default:"720h"`
	// DefaultAmount is the course price applied when a purchase omits one.
	DefaultAmount string `envconfig:"COURSEVAULT_PAYMENT_DEFAULT_AMOUNT" default:"99"`
}

type ActivationConfig struct {
	// SeedCodes are loaded into the activation-code pool at boot when the
	// pool key is empty. Comma separated.
	SeedCodes []string `envconfig:"COURSEVAULT_ACTIVATION_SEED_CODES"`
}
