package config

import (
	"fmt"
	"time"

	"github.com/Netflix/go-env"
)

type Config struct {
	DatabaseDSN         string `env:"DATABASE_DSN,required=true"`
	RabbitMQURL         string `env:"RABBITMQ_URL,required=true"`
	RedisURL            string `env:"REDIS_URL,required=true"`
	APIPort             int    `env:"API_PORT,default=8080"`
	LogLevel            string `env:"LOG_LEVEL,default=info"`
	MaxDeliveryAttempts int    `env:"MAX_DELIVERY_ATTEMPTS,default=3"`
	RetryBaseDelaySec   int    `env:"RETRY_BASE_DELAY,default=1"`
	SweepIntervalSec    int    `env:"SWEEP_INTERVAL,default=30"`
	WorkerConcurrency   int    `env:"WORKER_CONCURRENCY,default=4"`
	RateLimitPerSec     int    `env:"RATE_LIMIT_PER_SEC,default=100"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) RetryBaseDelay() time.Duration {
	return time.Duration(c.RetryBaseDelaySec) * time.Second
}

func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSec) * time.Second
}
