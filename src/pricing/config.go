package pricing

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	TTL             time.Duration `envconfig:"PRICE_CACHE_TTL" default:"10s"`
	SecondaryTTL    time.Duration `envconfig:"PRICE_CACHE_SECONDARY_TTL" default:"60s"`
	CleanupInterval time.Duration `envconfig:"PRICE_CACHE_CLEANUP" default:"60s"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
