package execution

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	FillWaitTimeout   time.Duration `envconfig:"FILL_WAIT_TIMEOUT" default:"10s"`
	FillPollInterval  time.Duration `envconfig:"FILL_POLL_INTERVAL" default:"2s"`
	BuyMaxDeviation   float64       `envconfig:"BUY_PRICE_MAX_DEVIATION" default:"0.05"`
	BuyWarnDeviation  float64       `envconfig:"BUY_PRICE_WARN_DEVIATION" default:"0.01"`
	SellMaxDeviation  float64       `envconfig:"SELL_PRICE_MAX_DEVIATION" default:"0.20"`
	SellWarnDeviation float64       `envconfig:"SELL_PRICE_WARN_DEVIATION" default:"0.05"`
	ForceCloseRatio   float64       `envconfig:"FORCE_CLOSE_LIMIT_RATIO" default:"0.10"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}

// withDefaults fills zero fields so hand-built configs behave like env ones.
func (c Config) withDefaults() Config {
	if c.FillWaitTimeout <= 0 {
		c.FillWaitTimeout = 10 * time.Second
	}
	if c.FillPollInterval <= 0 {
		c.FillPollInterval = 2 * time.Second
	}
	if c.BuyMaxDeviation <= 0 {
		c.BuyMaxDeviation = 0.05
	}
	if c.BuyWarnDeviation <= 0 {
		c.BuyWarnDeviation = 0.01
	}
	if c.SellMaxDeviation <= 0 {
		c.SellMaxDeviation = 0.20
	}
	if c.SellWarnDeviation <= 0 {
		c.SellWarnDeviation = 0.05
	}
	if c.ForceCloseRatio <= 0 {
		c.ForceCloseRatio = 0.10
	}
	return c
}
