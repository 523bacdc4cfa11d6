package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Common struct {
	Port        string `envconfig:"PORT" default:"8080"`
	MetricsPort string `envconfig:"METRICS_PORT" default:"9090"`
	LogFormat   string `envconfig:"LOG_FORMAT" default:"json"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogFile     string `envconfig:"LOG_FILE"`
}

type DBConfig struct {
	DBDSN            string        `envconfig:"DB_DSN" required:"true"`
	DBMaxConns       int32         `envconfig:"DB_MAX_CONNS" default:"10"`
	DBMinConns       int32         `envconfig:"DB_MIN_CONNS" default:"1"`
	DBConnLifetime   time.Duration `envconfig:"DB_CONN_LIFETIME" default:"30m"`
	DBStartupTimeout time.Duration `envconfig:"DB_STARTUP_TIMEOUT" default:"3s"`
}

type DispatchConfig struct {
	// channel:provider pairs, e.g. sms:twilio,email:resend
	ChannelProviders map[string]string `envconfig:"CHANNEL_PROVIDERS" default:"sms:twilio,email:resend"`
	LedgerTimeout    time.Duration     `envconfig:"LEDGER_TIMEOUT" default:"5s"`

	// 0 dispatches every recipient of a fan-out at once
	FanoutConcurrency int `envconfig:"FANOUT_CONCURRENCY" default:"0"`

	TwilioBaseURL              string        `envconfig:"TWILIO_BASE_URL" default:"https://api.twilio.com"`
	TransportTimeout           time.Duration `envconfig:"TRANSPORT_TIMEOUT" default:"8s"`
	TwilioRPSPerPod            float64       `envconfig:"TWILIO_RPS_PER_POD" default:"5"`
	TwilioBurst                int           `envconfig:"TWILIO_BURST" default:"10"`
	BreakerConsecutiveFailures uint32        `envconfig:"BREAKER_CONSECUTIVE_FAILURES" default:"10"`
	BreakerOpenFor             time.Duration `envconfig:"BREAKER_OPEN_FOR" default:"20s"`
}

type SQSConfig struct {
	AWSRegion          string `envconfig:"AWS_REGION" default:"us-east-1"`
	SQSQueueURL        string `envconfig:"SQS_QUEUE_URL"`
	LocalstackEndpoint string `envconfig:"LOCALSTACK_ENDPOINT"`
	SQSWaitTime        int32  `envconfig:"SQS_WAIT_TIME" default:"20"`
	SQSMaxMsgs         int32  `envconfig:"SQS_MAX_MSGS" default:"10"`
	SQSVizTimeout      int32  `envconfig:"SQS_VISIBILITY_TIMEOUT" default:"60"`
}

type RedisConfig struct {
	RedisAddr     string        `envconfig:"REDIS_ADDR"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	ReportTTL     time.Duration `envconfig:"REPORT_TTL" default:"24h"`
}

// APIConfig: the deferred queue and the report store are enabled by
// SQS_QUEUE_URL and REDIS_ADDR respectively.
type APIConfig struct {
	Common
	DBConfig
	DispatchConfig
	SQSConfig
	RedisConfig
}

type WorkerConfig struct {
	Common
	DBConfig
	DispatchConfig
	SQSConfig

	WorkerConcurrency int           `envconfig:"WORKER_CONCURRENCY" default:"20"`
	SweepInterval     time.Duration `envconfig:"SWEEP_INTERVAL" default:"1m"`
	StalePendingAfter time.Duration `envconfig:"STALE_PENDING_AFTER" default:"10m"`
}

type MockProviderConfig struct {
	Common

	AccountSID string        `envconfig:"MOCK_ACCOUNT_SID" default:"ACmock"`
	AuthToken  string        `envconfig:"MOCK_AUTH_TOKEN" default:"mock-token"`
	FailStatus int           `envconfig:"MOCK_FAIL_STATUS" default:"0"`
	Delay      time.Duration `envconfig:"MOCK_DELAY" default:"0s"`
}

func LoadAPI() APIConfig {
	var cfg APIConfig
	mustProcess(&cfg)
	return cfg
}

func LoadWorker() WorkerConfig {
	var cfg WorkerConfig
	mustProcess(&cfg)
	if cfg.SQSQueueURL == "" {
		panic(errors.New("SQS_QUEUE_URL is required for the worker"))
	}
	if cfg.SweepInterval <= 0 {
		panic(fmt.Errorf("SWEEP_INTERVAL must be positive, got %s", cfg.SweepInterval))
	}
	return cfg
}

func LoadMockProvider() MockProviderConfig {
	var cfg MockProviderConfig
	mustProcess(&cfg)
	return cfg
}

// mustProcess reads a .env file when present, then the environment.
// Variables already set win over .env values.
func mustProcess(cfg any) {
	_ = godotenv.Load()
	if err := envconfig.Process("", cfg); err != nil {
		panic(err)
	}
}
