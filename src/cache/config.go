package cache

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Enabled  bool          `envconfig:"ENABLE_CACHE" default:"false"`
	Addr     string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	Username string        `envconfig:"REDIS_USERNAME"`
	Password string        `envconfig:"REDIS_PASSWORD"`
	DB       int           `envconfig:"REDIS_DB" default:"0"`
	TTL      time.Duration `envconfig:"METRICS_CACHE_TTL" default:"5m"`
	Prefix   string        `envconfig:"METRICS_CACHE_PREFIX" default:"copyinvest:user_metrics:"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
