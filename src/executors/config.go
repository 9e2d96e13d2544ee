package executors

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	LoopPeriod time.Duration `envconfig:"RECONCILE_LOOP_PERIOD" default:"30s"`
	BatchSize  int           `envconfig:"RECONCILE_BATCH_SIZE" default:"200"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
