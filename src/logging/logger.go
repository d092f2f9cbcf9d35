package logging

import (
	"strings"

	logger "github.com/sirupsen/logrus"
)

// SetupLogger configures the global logrus logger from LOG_LEVEL and LOG_FORMAT.
func SetupLogger() {
	config := GetConfig()
	Configure(config.LogLevel, config.LogFormat)
}

func Configure(levelStr, format string) {
	level, err := logger.ParseLevel(strings.ToLower(levelStr))
	if err != nil {
		level = logger.DebugLevel
	}
	logger.SetLevel(level)

	if strings.EqualFold(format, "json") {
		logger.SetFormatter(&logger.JSONFormatter{})
		return
	}
	logger.SetFormatter(&logger.TextFormatter{
		FullTimestamp: true,
	})
}
