package config

import (
	"runtime"
	"time"

	"github.com/caarlos0/env/v10"

	"github.com/iho/payengine/internal/usecase"
)

// Config holds all application configuration.
type Config struct {
	// Engine
	Engine                    string `env:"ENGINE"                      envDefault:"sequential"`
	MaxAccounts               int    `env:"MAX_ACCOUNTS"                envDefault:"10000"`
	MaxDisputableTransactions int    `env:"MAX_DISPUTABLE_TRANSACTIONS" envDefault:"50000"`
	MaxProcessedIDs           int    `env:"MAX_PROCESSED_IDS"           envDefault:"1000000"`
	MemoryLimitMB             int    `env:"MEMORY_LIMIT_MB"             envDefault:"0"`
	Workers                   int    `env:"WORKERS"                     envDefault:"0"`
	QueueSize                 int    `env:"QUEUE_SIZE"                  envDefault:"1024"`
	BoundedWorkers            bool   `env:"BOUNDED_WORKERS"             envDefault:"false"`

	// Database (optional - snapshot export is disabled when empty)
	DatabaseURL      string        `env:"DATABASE_URL"       envDefault:""`
	DatabaseMaxConns int           `env:"DATABASE_MAX_CONNS" envDefault:"4"`
	DatabaseMinConns int           `env:"DATABASE_MIN_CONNS" envDefault:"0"`
	DatabaseTimeout  time.Duration `env:"DATABASE_TIMEOUT"   envDefault:"30s"`
	MigrationsPath   string        `env:"MIGRATIONS_PATH"    envDefault:"migrations"`

	// Redis (optional - the shared transaction id index stays in process when empty)
	RedisURL       string        `env:"REDIS_URL"       envDefault:""`
	RedisTxTTL     time.Duration `env:"REDIS_TX_TTL"    envDefault:"0s"`
	RedisTimeout   time.Duration `env:"REDIS_TIMEOUT"   envDefault:"5s"`
	IdempotencyTTL time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`

	// HTTP Server
	HTTPPort            string        `env:"HTTP_PORT"             envDefault:"8080"`
	HTTPReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT"     envDefault:"30s"`
	HTTPWriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT"    envDefault:"30s"`
	HTTPIdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT"     envDefault:"60s"`
	HTTPShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	HTTPMaxBodyBytes    int64         `env:"HTTP_MAX_BODY_BYTES"   envDefault:"67108864"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	err := env.Parse(cfg)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// EngineConfig converts the engine settings. A zero worker count means one
// worker per CPU.
func (c *Config) EngineConfig() (usecase.EngineConfig, error) {
	variant, err := usecase.ParseVariant(c.Engine)
	if err != nil {
		return usecase.EngineConfig{}, err
	}

	workers := c.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	return usecase.EngineConfig{
		Variant:                   variant,
		MaxAccounts:               c.MaxAccounts,
		MaxDisputableTransactions: c.MaxDisputableTransactions,
		MaxProcessedIDs:           c.MaxProcessedIDs,
		MemoryLimitMB:             c.MemoryLimitMB,
		Workers:                   workers,
		QueueSize:                 c.QueueSize,
		Bounded:                   c.BoundedWorkers,
	}, nil
}
