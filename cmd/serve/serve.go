package serve

import (
	"context"

	"copyinvest/src/app"
	"copyinvest/src/server"

	logger "github.com/sirupsen/logrus"
)

type Serve struct{}

func (s *Serve) Start() error {
	a, err := app.Build(context.Background())
	if err != nil {
		return err
	}
	if a.Config.AdminTokenHash == "" {
		logger.Warn("ADMIN_TOKEN_HASH is empty, every admin request will be rejected")
	}

	server.StartServer(a.Config.Port, server.NewRouter(a.Config, a.Deps()))
	return nil
}
