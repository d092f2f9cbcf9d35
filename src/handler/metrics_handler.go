package handler

import (
	"context"
	"fmt"
	"net/http"

	"copyinvest/src/model"

	"github.com/google/uuid"
	logger "github.com/sirupsen/logrus"
)

type metricsCache interface {
	Get(ctx context.Context, userID uuid.UUID) (*model.UserMetrics, error)
	Set(ctx context.Context, m *model.UserMetrics) error
}

type metricsReader interface {
	UserMetrics(ctx context.Context, userID uuid.UUID) (*model.UserMetrics, error)
}

type userReconciler interface {
	Reconcile(ctx context.Context, userID uuid.UUID) (*model.UserMetrics, error)
}

// GetUserMetricsHandler serves the dashboard summary, from cache when possible.
func GetUserMetricsHandler(cache metricsCache, st metricsReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := uuidParam(r, "userID")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log := logger.WithField("user_id", userID)

		if cache != nil {
			cached, err := cache.Get(r.Context(), userID)
			if err != nil {
				log.WithError(err).Warn("metrics cache read failed")
			}
			if cached != nil {
				writeJSON(w, http.StatusOK, cached)
				return
			}
		}

		m, err := st.UserMetrics(r.Context(), userID)
		if err != nil {
			log.WithError(err).Error("failed to read user metrics")
			writeError(w, http.StatusBadGateway, "failed to read user metrics")
			return
		}
		if m == nil {
			writeError(w, http.StatusNotFound, fmt.Sprintf("no metrics for user %s", userID))
			return
		}

		if cache != nil {
			if err := cache.Set(r.Context(), m); err != nil {
				log.WithError(err).Warn("metrics cache write failed")
			}
		}
		writeJSON(w, http.StatusOK, m)
	}
}

// ReconcileUserHandler recomputes a user's metrics on demand.
func ReconcileUserHandler(rec userReconciler, exceptions exceptionRecorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := uuidParam(r, "userID")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		m, err := rec.Reconcile(r.Context(), userID)
		if err != nil {
			recordReconcileFailure(r, exceptions, "ReconcileUser", err, "")
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, m)
	}
}
