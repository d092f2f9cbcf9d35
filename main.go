package main

import (
	"fmt"
	"os"
	"time"

	"copyinvest/cmd/serve"
	"copyinvest/src/logging"

	logger "github.com/sirupsen/logrus"
)

var APP_NAME = os.Getenv("APP_NAME")

func main() {
	logging.SetupLogger()
	defer handlePanic()

	s := &serve.Serve{}
	if err := s.Start(); err != nil {
		logger.WithError(err).Fatal("Failed to start server")
	}
}

func handlePanic() {
	if r := recover(); r != nil {
		logger.WithError(fmt.Errorf("%+v", r)).Error(fmt.Sprintf("Application %s panic", APP_NAME))
		//nolint
		time.Sleep(time.Second * 5)
	}
}
