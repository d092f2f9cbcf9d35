package server

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	BackendPostgres = "postgres"
	BackendREST     = "rest"
)

type Config struct {
	Port           string        `envconfig:"PORT" default:"9898"`
	AdminTokenHash string        `envconfig:"ADMIN_TOKEN_HASH"`
	StoreBackend   string        `envconfig:"STORE_BACKEND" default:"postgres"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
}

func GetConfig() *Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return &config
}
