package security

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the base64 secretbox key for stored broker credentials.
// There is no default: an unset key fails every Encrypt/Decrypt call.
type Config struct {
	CredentialsKey string `envconfig:"EXCHANGE_CREDENTIALS_KEY"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
