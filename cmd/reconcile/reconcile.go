package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"copyinvest/src/app"
	"copyinvest/src/model"

	"github.com/google/uuid"
	logger "github.com/sirupsen/logrus"
)

type batchReconciler interface {
	ReconcileAll(ctx context.Context, userIDs []uuid.UUID) ([]*model.UserMetrics, error)
}

// Reconcile recomputes the metrics of the given users once and exits.
type Reconcile struct {
	UserIDs []string
	// Out receives one JSON row per reconciled user. Defaults to stdout.
	Out io.Writer
	// Reconciler is built from the environment when nil.
	Reconciler batchReconciler
}

func parseUserIDs(raw []string) ([]uuid.UUID, error) {
	if len(raw) == 0 {
		return nil, errors.New("at least one --user is required")
	}
	ids := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("invalid user id %q: %w", s, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *Reconcile) Start(ctx context.Context) error {
	ids, err := parseUserIDs(r.UserIDs)
	if err != nil {
		return err
	}

	if r.Reconciler == nil {
		a, err := app.Build(ctx)
		if err != nil {
			return err
		}
		r.Reconciler = a.Reconciler
	}

	done, err := r.Reconciler.ReconcileAll(ctx, ids)
	logger.WithFields(map[string]interface{}{
		"requested":  len(ids),
		"reconciled": len(done),
	}).Info("Reconcile run finished")

	out := r.Out
	if out == nil {
		out = os.Stdout
	}
	enc := json.NewEncoder(out)
	for _, m := range done {
		if encErr := enc.Encode(m); encErr != nil {
			return errors.Join(err, encErr)
		}
	}
	return err
}
