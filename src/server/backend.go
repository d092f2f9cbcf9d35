package server

import (
	"context"
	"fmt"

	"copyinvest/src/connectors/postgrest"
	"copyinvest/src/database"
	"copyinvest/src/model"
	"copyinvest/src/repository"
	"copyinvest/src/store"

	logger "github.com/sirupsen/logrus"
)

// ExceptionStore persists and lists failed back-office actions.
type ExceptionStore interface {
	Create(ctx context.Context, exc *model.Exception) error
	FindRecent(ctx context.Context, limit int) ([]model.Exception, error)
}

// Backend is the data layer selected by STORE_BACKEND.
type Backend struct {
	Store      store.Store
	Exceptions ExceptionStore
}

// OpenBackend connects to the configured backend. "postgres" opens the main
// database and runs migrations; "rest" talks to the hosted HTTP API.
func OpenBackend(kind string) (*Backend, error) {
	switch kind {
	case BackendPostgres, "":
		if err := database.InitMainDB(); err != nil {
			return nil, fmt.Errorf("init main db: %w", err)
		}
		return &Backend{
			Store:      repository.NewGormStore(),
			Exceptions: repository.NewExceptionRepository(),
		}, nil
	case BackendREST:
		client := postgrest.NewClientFromConfig()
		logger.Info("[server] using REST backend")
		return &Backend{
			Store:      client,
			Exceptions: postgrest.NewExceptionLog(client),
		}, nil
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", kind)
	}
}
