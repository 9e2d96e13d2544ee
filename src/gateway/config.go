package gateway

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	MinInterval  time.Duration `envconfig:"GATEWAY_MIN_INTERVAL" default:"150ms"`
	QueueSize    int           `envconfig:"GATEWAY_QUEUE_SIZE" default:"256"`
	MaxRetries   int           `envconfig:"GATEWAY_MAX_RETRIES" default:"3"`
	RetryInitial time.Duration `envconfig:"GATEWAY_RETRY_INITIAL" default:"800ms"`
	RetryMax     time.Duration `envconfig:"GATEWAY_RETRY_MAX" default:"8s"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}

// RetryPolicy returns the backoff policy described by the config.
func (c Config) RetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: c.MaxRetries,
		Initial:    c.RetryInitial,
		Max:        c.RetryMax,
	}
}
