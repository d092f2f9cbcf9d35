package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"copyinvest/cmd/reconcile"
	"copyinvest/cmd/serve"
	"copyinvest/cmd/watch"
	"copyinvest/src/logging"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

var Version string

func main() {
	logging.SetupLogger()

	app := cli.NewApp()
	app.Name = "copyinvest"
	app.Usage = "Account metrics service for the copy-investing dashboard"
	app.Version = Version

	app.Commands = []cli.Command{
		serveCMD,
		reconcileCMD,
		watchCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	serveCMD = cli.Command{
		Name:        "serve",
		Usage:       "run the HTTP API",
		Action:      serveAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Serve dashboard metrics and back-office position endpoints`,
	}
	reconcileCMD = cli.Command{
		Name:      "reconcile",
		Usage:     "recompute user_metrics for one or more users",
		Action:    reconcileAction,
		ArgsUsage: "",
		Flags: []cli.Flag{
			cli.StringSliceFlag{
				Name:  "user, u",
				Usage: "user id to reconcile (repeatable)",
			},
		},
		Description: `Rebuild the user_metrics row of each --user from its positions`,
	}
	watchCMD = cli.Command{
		Name:        "watch",
		Usage:       "reconcile users as their positions change",
		Action:      watchAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Follow the realtime position feed and reconcile affected users`,
	}
)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func serveAction(_ *cli.Context) error {
	logrus.WithField("cmd", "serve").Info("Starting serve CMD")

	s := &serve.Serve{}
	if err := s.Start(); err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}
	return nil
}

func reconcileAction(c *cli.Context) error {
	logrus.WithField("cmd", "reconcile").Info("Starting reconcile CMD")
	ctx, cancel := signalContext()
	defer cancel()

	r := &reconcile.Reconcile{UserIDs: c.StringSlice("user")}
	if err := r.Start(ctx); err != nil {
		logrus.WithError(err).Error("Reconcile cmd failed")
		return err
	}
	return nil
}

func watchAction(_ *cli.Context) error {
	logrus.WithField("cmd", "watch").Info("Starting watch CMD")
	ctx, cancel := signalContext()
	defer cancel()

	w := &watch.Watch{}
	if err := w.Start(ctx); err != nil {
		logrus.WithError(err).Error("Watch cmd failed")
		return err
	}
	return nil
}
