package main

import (
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type (
	ServiceConfig struct {
		Environment string `env:"SENTRY_ENVIRONMENT" env-default:"development"`
		SentryDSN   string `env:"SENTRY_DSN"`
		Port        string `env:"PORT" env-default:"8080"`
		LogLevel    string `env:"FLAMEGRAPH_LOG_LEVEL" env-default:"info"`

		// Stored profiles are read from the first configured of GCSBucket
		// with the native client, ProfilesBucket as a gocloud.dev bucket
		// URL and BadgerDir as an embedded store.
		GCSBucket      string `env:"GCS_BUCKET"`
		GCSEndpoint    string `env:"GCS_ENDPOINT"`
		ProfilesBucket string `env:"SENTRY_BUCKET_PROFILES"`
		BadgerDir      string `env:"FLAMEGRAPH_BADGER_DIR"`
		ReadWorkers    int    `env:"FLAMEGRAPH_READ_WORKERS" env-default:"20"`

		MinWorkers         int           `env:"FLAMEGRAPH_MIN_WORKERS" env-default:"5"`
		MaxDepth           int           `env:"FLAMEGRAPH_MAX_DEPTH" env-default:"256"`
		MaxNodes           int           `env:"FLAMEGRAPH_MAX_NODES" env-default:"50000"`
		SessionTTL         time.Duration `env:"FLAMEGRAPH_SESSION_TTL" env-default:"15m"`
		AggregationTimeout time.Duration `env:"FLAMEGRAPH_AGGREGATION_TIMEOUT" env-default:"30s"`
	}
)

func readServiceConfig() (ServiceConfig, error) {
	var c ServiceConfig
	if err := cleanenv.ReadEnv(&c); err != nil {
		return ServiceConfig{}, err
	}
	return c, nil
}
