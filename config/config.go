package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port     string        `env:"PORT" envDefault:"80"`
	Sign     string        `env:"SIGN,required,notEmpty"`
	TokenTTL time.Duration `env:"TOKEN_TTL" envDefault:"8h"`

	MongoConnString string `env:"MONGODB_CONNSTRING"`
	MongoDatabase   string `env:"MONGODB_DATABASE" envDefault:"conference-central"`
	LocalDBPath     string `env:"LOCAL_DB_PATH" envDefault:"./database/conferences.json"`

	TxAttempts       uint          `env:"TX_ATTEMPTS" envDefault:"3"`
	TxInitialBackoff time.Duration `env:"TX_INITIAL_BACKOFF" envDefault:"20ms"`

	QueueWorkers       int           `env:"QUEUE_WORKERS" envDefault:"4"`
	QueueSize          int           `env:"QUEUE_SIZE" envDefault:"256"`
	TaskAttempts       uint          `env:"TASK_ATTEMPTS" envDefault:"5"`
	TaskInitialBackoff time.Duration `env:"TASK_INITIAL_BACKOFF" envDefault:"200ms"`

	// zero keeps derived facts until they are recomputed
	CacheTTL time.Duration `env:"CACHE_TTL" envDefault:"0"`

	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
	LogDevelopment bool   `env:"LOG_DEVELOPMENT" envDefault:"false"`

	TraceExporter   string  `env:"TRACE_EXPORTER" envDefault:"none"`
	OTLPEndpoint    string  `env:"OTLP_ENDPOINT" envDefault:"localhost:4317"`
	TraceSampleRate float64 `env:"TRACE_SAMPLE_RATE" envDefault:"1.0"`

	SMTPAddr     string `env:"SMTP_ADDR"`
	SMTPFrom     string `env:"SMTP_FROM" envDefault:"noreply@conference-central.local"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
}

// UseMongo reports whether a Mongo deployment is configured; otherwise the local store is used.
func (c Config) UseMongo() bool {
	return c.MongoConnString != ""
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.TxAttempts == 0 {
		return Config{}, fmt.Errorf("TX_ATTEMPTS must be positive")
	}
	if cfg.QueueWorkers <= 0 {
		return Config{}, fmt.Errorf("QUEUE_WORKERS must be positive")
	}
	return cfg, nil
}
