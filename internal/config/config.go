// Package config loads Kestrel configuration from the environment,
// with an optional .env file for local development.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"

	"github.com/finwatch/kestrel/internal/domain"
)

// envConfig is the flat environment mapping. Values not set in the
// environment keep the defaults from domain.DefaultConfig.
type envConfig struct {
	Host         string `env:"KESTREL_HOST" envDefault:"0.0.0.0"`
	Port         int    `env:"KESTREL_PORT" envDefault:"8080"`
	ReadTimeout  int    `env:"KESTREL_READ_TIMEOUT" envDefault:"30"`
	WriteTimeout int    `env:"KESTREL_WRITE_TIMEOUT" envDefault:"30"`

	DBDriver         string        `env:"KESTREL_DB_DRIVER" envDefault:"sqlite"`
	SQLitePath       string        `env:"KESTREL_SQLITE_PATH" envDefault:"./kestrel.db"`
	SQLiteBusyWait   time.Duration `env:"KESTREL_SQLITE_BUSY_TIMEOUT" envDefault:"5s"`
	PostgresHost     string        `env:"KESTREL_POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort     int           `env:"KESTREL_POSTGRES_PORT" envDefault:"5432"`
	PostgresUser     string        `env:"KESTREL_POSTGRES_USER" envDefault:"kestrel"`
	PostgresPassword string        `env:"KESTREL_POSTGRES_PASSWORD"`
	PostgresDB       string        `env:"KESTREL_POSTGRES_DB" envDefault:"kestrel"`
	PostgresSSLMode  string        `env:"KESTREL_POSTGRES_SSLMODE" envDefault:"disable"`
	DBMaxOpenConns   int           `env:"KESTREL_DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns   int           `env:"KESTREL_DB_MAX_IDLE_CONNS" envDefault:"5"`
	DBConnLifetime   time.Duration `env:"KESTREL_DB_CONN_LIFETIME" envDefault:"30m"`

	CacheType      string        `env:"KESTREL_CACHE_TYPE" envDefault:"memory"`
	CacheMaxSize   int           `env:"KESTREL_CACHE_MAX_SIZE" envDefault:"10000"`
	CacheTTL       time.Duration `env:"KESTREL_CACHE_TTL" envDefault:"5m"`
	RedisAddr      string        `env:"KESTREL_REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword  string        `env:"KESTREL_REDIS_PASSWORD"`
	RedisDB        int           `env:"KESTREL_REDIS_DB" envDefault:"0"`
	CacheTwoPhase  bool          `env:"KESTREL_CACHE_TWO_PHASE" envDefault:"false"`

	BusType           string `env:"KESTREL_BUS_TYPE" envDefault:"channel"`
	BusBufferSize     int    `env:"KESTREL_BUS_BUFFER_SIZE" envDefault:"1000"`
	NATSUrl           string `env:"KESTREL_NATS_URL" envDefault:"nats://localhost:4222"`
	NATSToken         string `env:"KESTREL_NATS_TOKEN"`
	NATSMaxReconnects int    `env:"KESTREL_NATS_MAX_RECONNECTS" envDefault:"10"`
	NATSReconnectWait int    `env:"KESTREL_NATS_RECONNECT_WAIT" envDefault:"2"`

	Scorer         string        `env:"KESTREL_SCORER" envDefault:"heuristic"`
	FraudThreshold float64       `env:"KESTREL_FRAUD_THRESHOLD" envDefault:"0.7"`
	VelocityWindow time.Duration `env:"KESTREL_VELOCITY_WINDOW" envDefault:"1h"`

	BatchMaxWorkers  int           `env:"KESTREL_BATCH_MAX_WORKERS" envDefault:"16"`
	BatchItemTimeout time.Duration `env:"KESTREL_BATCH_ITEM_TIMEOUT" envDefault:"10s"`

	LogLevel  string `env:"KESTREL_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"KESTREL_LOG_FORMAT" envDefault:"json"`
}

// Load reads configuration from the environment. A .env file in the
// working directory is merged in when present; a missing file is not
// an error.
func Load() (*domain.Config, error) {
	_ = godotenv.Load()

	var ec envConfig
	if err := env.Parse(&ec); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	cfg := domain.DefaultConfig()

	cfg.Server = domain.ServerConfig{
		Host:         ec.Host,
		Port:         ec.Port,
		ReadTimeout:  ec.ReadTimeout,
		WriteTimeout: ec.WriteTimeout,
	}
	cfg.Repository = domain.RepositoryConfig{
		Driver:            ec.DBDriver,
		SQLitePath:        ec.SQLitePath,
		SQLiteBusyTimeout: ec.SQLiteBusyWait,
		PostgresHost:      ec.PostgresHost,
		PostgresPort:      ec.PostgresPort,
		PostgresUser:      ec.PostgresUser,
		PostgresPassword:  ec.PostgresPassword,
		PostgresDB:        ec.PostgresDB,
		PostgresSSLMode:   ec.PostgresSSLMode,
		MaxOpenConns:      ec.DBMaxOpenConns,
		MaxIdleConns:      ec.DBMaxIdleConns,
		ConnMaxLifetime:   ec.DBConnLifetime,
	}
	cfg.Cache = domain.CacheConfig{
		Type:           ec.CacheType,
		LocalMaxSize:   ec.CacheMaxSize,
		LocalTTL:       ec.CacheTTL,
		RedisAddr:      ec.RedisAddr,
		RedisPassword:  ec.RedisPassword,
		RedisDB:        ec.RedisDB,
		EnableTwoPhase: ec.CacheTwoPhase,
	}
	cfg.EventBus = domain.EventBusConfig{
		Type:              ec.BusType,
		ChannelBufferSize: ec.BusBufferSize,
		NATSUrl:           ec.NATSUrl,
		NATSToken:         ec.NATSToken,
		NATSMaxReconnects: ec.NATSMaxReconnects,
		NATSReconnectWait: ec.NATSReconnectWait,
	}
	cfg.Scoring = domain.ScoringConfig{
		Scorer:         ec.Scorer,
		FraudThreshold: ec.FraudThreshold,
		VelocityWindow: ec.VelocityWindow,
	}
	cfg.Batch = domain.BatchConfig{
		MaxWorkers:  ec.BatchMaxWorkers,
		ItemTimeout: ec.BatchItemTimeout,
	}
	cfg.Logging = domain.LoggingConfig{
		Level:  ec.LogLevel,
		Format: ec.LogFormat,
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func validate(cfg *domain.Config) error {
	switch cfg.Repository.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown database driver %q", cfg.Repository.Driver)
	}

	switch cfg.Scoring.Scorer {
	case domain.ScorerHeuristic, domain.ScorerLinear:
	default:
		return fmt.Errorf("unknown scorer %q", cfg.Scoring.Scorer)
	}

	if cfg.Scoring.FraudThreshold <= 0 || cfg.Scoring.FraudThreshold >= 1 {
		return fmt.Errorf("fraud threshold %v out of range (0, 1)", cfg.Scoring.FraudThreshold)
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", cfg.Server.Port)
	}

	return nil
}
