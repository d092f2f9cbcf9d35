package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"copyinvest/src/auth"
	"copyinvest/src/model"
	"copyinvest/src/reconcile"
	"copyinvest/src/service"
	"copyinvest/src/store"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	logger "github.com/sirupsen/logrus"
)

const serviceName = "admin_api"

type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{Success: true, Data: data}); err != nil {
		logger.WithError(err).Error("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeErrorWithData(w, status, msg, nil)
}

func writeErrorWithData(w http.ResponseWriter, status int, msg string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{Success: false, Error: msg, Data: data}); err != nil {
		logger.WithError(err).Error("failed to encode error response")
	}
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	var verr *service.ValidationError
	var rerr *reconcile.Error
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &rerr):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeDomainError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "Internal Server Error"
	}
	writeError(w, status, msg)
}

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s", name)
	}
	return id, nil
}

func decodeBody(r *http.Request, dst interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

type exceptionRecorder interface {
	Create(ctx context.Context, exc *model.Exception) error
}

// recordReconcileFailure stores a failed reconciliation so it can be found and
// retried. Errors that are not reconciliation failures are ignored.
func recordReconcileFailure(r *http.Request, rec exceptionRecorder, method string, err error, detail string) {
	var rerr *reconcile.Error
	if rec == nil || !errors.As(err, &rerr) {
		return
	}

	userID := rerr.UserID
	exc := &model.Exception{
		Service:   serviceName,
		Module:    "reconcile",
		Method:    method,
		UserID:    &userID,
		Message:   rerr.Error(),
		Kind:      string(rerr.Kind),
		Level:     model.ExceptionLevelError,
		Context:   detail,
		CreatedAt: time.Now().UTC(),
	}
	if op, ok := auth.GetOperatorFromContext(r.Context()); ok && op != nil {
		exc.Operator = op.Name
	}

	// The request context may already be cancelled; the record must still land.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 5*time.Second)
	defer cancel()
	if cerr := rec.Create(ctx, exc); cerr != nil {
		logger.WithError(cerr).WithField("user_id", userID).Error("failed to persist reconcile exception")
	}
}
