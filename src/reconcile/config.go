package reconcile

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// Timezone decides which calendar day counts as "today" for today_pnl_percent.
	// UTC matches the date portion of an ISO-8601 timestamp.
	Timezone string `envconfig:"RECONCILE_TIMEZONE" default:"UTC"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
