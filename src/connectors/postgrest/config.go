package postgrest

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	BaseURL      string        `envconfig:"BACKEND_URL" default:"http://localhost:54321"`
	APIKey       string        `envconfig:"BACKEND_API_KEY"`
	ServiceToken string        `envconfig:"BACKEND_SERVICE_TOKEN"`
	Timeout      time.Duration `envconfig:"BACKEND_TIMEOUT" default:"15s"`
	RetryCount   int           `envconfig:"BACKEND_RETRY_COUNT" default:"3"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
