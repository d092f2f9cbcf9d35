package watch

import (
	"context"

	"copyinvest/src/app"
	"copyinvest/src/connectors/realtime"

	"github.com/google/uuid"
	logger "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Watch follows the position change feed and reconciles every affected user.
type Watch struct{}

func (w *Watch) Start(ctx context.Context) error {
	config := GetConfig()
	rtConfig := realtime.GetConfig()
	if err := rtConfig.Validate(); err != nil {
		return err
	}

	a, err := app.Build(ctx)
	if err != nil {
		return err
	}

	coalescer := NewCoalescer(config.Debounce)
	sub := realtime.NewSubscriber(rtConfig, func(_ context.Context, userID uuid.UUID, change realtime.Change) {
		logger.WithFields(map[string]interface{}{
			"user_id": userID,
			"table":   change.Table,
			"type":    change.Type,
		}).Debug("Position change received")
		coalescer.Notify(userID)
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		coalescer.Run(gctx, func(ctx context.Context, userID uuid.UUID) {
			// failures are logged and counted by the reconciler observers
			_, _ = a.Reconciler.Reconcile(ctx, userID)
		})
		return nil
	})
	g.Go(func() error {
		return sub.Run(gctx)
	})
	return g.Wait()
}
