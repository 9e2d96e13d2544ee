package connectors

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	LongportAppKey         string `envconfig:"LONGPORT_APP_KEY"`
	LongportAppSecret      string `envconfig:"LONGPORT_APP_SECRET"`
	LongportAccessToken    string `envconfig:"LONGPORT_ACCESS_TOKEN"`
	LongportAppKeyEnc      string `envconfig:"LONGPORT_APP_KEY_ENC"`
	LongportAppSecretEnc   string `envconfig:"LONGPORT_APP_SECRET_ENC"`
	LongportAccessTokenEnc string `envconfig:"LONGPORT_ACCESS_TOKEN_ENC"`

	MoomooBaseURL    string        `envconfig:"MOOMOO_BASE_URL" default:"https://www.moomoo.com"`
	MoomooCSRFToken  string        `envconfig:"MOOMOO_CSRF_TOKEN"`
	MoomooCookies    string        `envconfig:"MOOMOO_COOKIES"`
	MoomooQuoteToken string        `envconfig:"MOOMOO_QUOTE_TOKEN"`
	MoomooTimeout    time.Duration `envconfig:"MOOMOO_TIMEOUT" default:"10s"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
