package handler

import (
	"context"
	"net/http"
	"strconv"

	"copyinvest/src/model"

	logger "github.com/sirupsen/logrus"
)

type exceptionLister interface {
	FindRecent(ctx context.Context, limit int) ([]model.Exception, error)
}

// ListExceptionsHandler returns the newest failed back-office actions.
func ListExceptionsHandler(repo exceptionLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
			parsed, err := strconv.Atoi(limitParam)
			if err != nil || parsed <= 0 || parsed > 500 {
				writeError(w, http.StatusBadRequest, "invalid limit")
				return
			}
			limit = parsed
		}

		out, err := repo.FindRecent(r.Context(), limit)
		if err != nil {
			logger.WithError(err).Error("failed to list exceptions")
			writeError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}
