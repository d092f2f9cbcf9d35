package realtime

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	URL          string        `envconfig:"REALTIME_URL" default:"ws://localhost:54321/realtime/v1/websocket"`
	APIKey       string        `envconfig:"BACKEND_API_KEY"`
	Schema       string        `envconfig:"REALTIME_SCHEMA" default:"public"`
	Tables       string        `envconfig:"REALTIME_TABLES" default:"open_positions,closed_positions"`
	Heartbeat    time.Duration `envconfig:"REALTIME_HEARTBEAT" default:"30s"`
	ReadTimeout  time.Duration `envconfig:"REALTIME_READ_TIMEOUT" default:"75s"`
	MinBackoff   time.Duration `envconfig:"REALTIME_MIN_BACKOFF" default:"1s"`
	MaxBackoff   time.Duration `envconfig:"REALTIME_MAX_BACKOFF" default:"30s"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}

// Topics returns the channel topic for every configured table.
func (c Config) Topics() []string {
	var out []string
	for _, t := range strings.Split(c.Tables, ",") {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		out = append(out, fmt.Sprintf("realtime:%s:%s", c.Schema, t))
	}
	return out
}

// ErrNoTopics is returned by Validate when no table is configured.
var ErrNoTopics = errors.New("realtime: no tables configured")

func (c Config) Validate() error {
	if len(c.Topics()) == 0 {
		return ErrNoTopics
	}
	if c.Heartbeat <= 0 || c.MinBackoff <= 0 || c.MaxBackoff < c.MinBackoff {
		return fmt.Errorf("realtime: invalid timings heartbeat=%s min_backoff=%s max_backoff=%s",
			c.Heartbeat, c.MinBackoff, c.MaxBackoff)
	}
	return nil
}
