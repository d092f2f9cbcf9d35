package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"copyinvest/src/model"
	"copyinvest/src/reconcile"
	"copyinvest/src/service"

	"github.com/google/uuid"
	logger "github.com/sirupsen/logrus"
)

type positionManager interface {
	Positions(ctx context.Context, userID uuid.UUID) ([]model.OpenPosition, []model.ClosedPosition, error)
	Open(ctx context.Context, userID uuid.UUID, in service.OpenInput) (*model.OpenPosition, *model.UserMetrics, error)
	Edit(ctx context.Context, id uuid.UUID, in service.EditInput) (*model.OpenPosition, *model.UserMetrics, error)
	Close(ctx context.Context, id uuid.UUID, in service.CloseInput) (*model.ClosedPosition, *model.UserMetrics, error)
	Delete(ctx context.Context, id uuid.UUID) (*model.UserMetrics, error)
	DeleteClosed(ctx context.Context, userID, id uuid.UUID) (*model.UserMetrics, error)
}

type positionsResponse struct {
	Open   []model.OpenPosition   `json:"open"`
	Closed []model.ClosedPosition `json:"closed"`
}

type mutationResponse struct {
	Position interface{}        `json:"position,omitempty"`
	Metrics  *model.UserMetrics `json:"metrics,omitempty"`
}

// finishMutation writes the outcome of a mutation followed by a reconcile. A
// failed reconcile after a successful write is persisted and reported as 502,
// with the written position so the caller knows which row changed.
func finishMutation(w http.ResponseWriter, r *http.Request, exceptions exceptionRecorder, method string, status int, position interface{}, m *model.UserMetrics, err error, detail string) {
	if err != nil {
		recordReconcileFailure(r, exceptions, method, err, detail)
		var rerr *reconcile.Error
		if errors.As(err, &rerr) && position != nil {
			writeErrorWithData(w, statusFor(err), err.Error(), mutationResponse{Position: position})
			return
		}
		writeDomainError(w, err)
		return
	}
	writeJSON(w, status, mutationResponse{Position: position, Metrics: m})
}

func ListPositionsHandler(svc positionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := uuidParam(r, "userID")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		open, closed, err := svc.Positions(r.Context(), userID)
		if err != nil {
			logger.WithError(err).WithField("user_id", userID).Error("failed to list positions")
			writeError(w, http.StatusBadGateway, "failed to list positions")
			return
		}
		writeJSON(w, http.StatusOK, positionsResponse{Open: open, Closed: closed})
	}
}

func OpenPositionHandler(svc positionManager, exceptions exceptionRecorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := uuidParam(r, "userID")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		var in service.OpenInput
		if err := decodeBody(r, &in); err != nil {
			logger.WithError(err).Warn("invalid open position payload")
			writeError(w, http.StatusBadRequest, "Invalid payload")
			return
		}

		p, m, err := svc.Open(r.Context(), userID, in)
		detail := ""
		var position interface{}
		if p != nil {
			detail = fmt.Sprintf("position_id=%s", p.ID)
			position = p
		}
		finishMutation(w, r, exceptions, "OpenPosition", http.StatusCreated, position, m, err, detail)
	}
}

func EditPositionHandler(svc positionManager, exceptions exceptionRecorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuidParam(r, "positionID")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		var in service.EditInput
		if err := decodeBody(r, &in); err != nil {
			logger.WithError(err).Warn("invalid edit position payload")
			writeError(w, http.StatusBadRequest, "Invalid payload")
			return
		}

		p, m, err := svc.Edit(r.Context(), id, in)
		var position interface{}
		if p != nil {
			position = p
		}
		finishMutation(w, r, exceptions, "EditPosition", http.StatusOK, position, m, err, fmt.Sprintf("position_id=%s", id))
	}
}

func ClosePositionHandler(svc positionManager, exceptions exceptionRecorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuidParam(r, "positionID")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		var in service.CloseInput
		if err := decodeBody(r, &in); err != nil {
			logger.WithError(err).Warn("invalid close position payload")
			writeError(w, http.StatusBadRequest, "Invalid payload")
			return
		}

		p, m, err := svc.Close(r.Context(), id, in)
		var position interface{}
		if p != nil {
			position = p
		}
		finishMutation(w, r, exceptions, "ClosePosition", http.StatusOK, position, m, err, fmt.Sprintf("position_id=%s", id))
	}
}

func DeletePositionHandler(svc positionManager, exceptions exceptionRecorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuidParam(r, "positionID")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		m, err := svc.Delete(r.Context(), id)
		finishMutation(w, r, exceptions, "DeletePosition", http.StatusOK, nil, m, err, fmt.Sprintf("position_id=%s", id))
	}
}

func DeleteClosedPositionHandler(svc positionManager, exceptions exceptionRecorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := uuidParam(r, "userID")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		id, err := uuidParam(r, "positionID")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		m, err := svc.DeleteClosed(r.Context(), userID, id)
		finishMutation(w, r, exceptions, "DeleteClosedPosition", http.StatusOK, nil, m, err, fmt.Sprintf("closed_position_id=%s", id))
	}
}
