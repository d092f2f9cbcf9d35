package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"copyinvest/src/auth"
	"copyinvest/src/cache"
	"copyinvest/src/handler"
	"copyinvest/src/reconcile"
	"copyinvest/src/service"
	"copyinvest/src/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	logger "github.com/sirupsen/logrus"
)

// Deps are the collaborators the HTTP API is built from.
type Deps struct {
	Store      store.Store
	Exceptions ExceptionStore
	Reconciler *reconcile.Reconciler
	Positions  *service.PositionService
	Cache      cache.MetricsCache
}

func NewRouter(config *Config, deps Deps) http.Handler {
	r := chi.NewRouter()

	// === Global Middleware ===
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)

	// Public routes
	r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.WithError(err).Error(" \"/health error")
		}
	})
	r.Handle("/metrics", promhttp.Handler())

	// Operator routes
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAdminToken(config.AdminTokenHash))
		r.Use(middleware.Timeout(config.RequestTimeout))

		r.Get("/users/{userID}/metrics", handler.GetUserMetricsHandler(deps.Cache, deps.Store))
		r.Get("/users/{userID}/positions", handler.ListPositionsHandler(deps.Positions))

		r.Route("/admin", func(r chi.Router) {
			r.Get("/exceptions", handler.ListExceptionsHandler(deps.Exceptions))
			r.Post("/users/{userID}/reconcile", handler.ReconcileUserHandler(deps.Reconciler, deps.Exceptions))
			r.Post("/users/{userID}/positions", handler.OpenPositionHandler(deps.Positions, deps.Exceptions))
			r.Delete("/users/{userID}/closed-positions/{positionID}", handler.DeleteClosedPositionHandler(deps.Positions, deps.Exceptions))
			r.Patch("/positions/{positionID}", handler.EditPositionHandler(deps.Positions, deps.Exceptions))
			r.Post("/positions/{positionID}/close", handler.ClosePositionHandler(deps.Positions, deps.Exceptions))
			r.Delete("/positions/{positionID}", handler.DeletePositionHandler(deps.Positions, deps.Exceptions))
		})
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logger.WithFields(map[string]interface{}{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"took":       time.Since(started).String(),
			"request_id": middleware.GetReqID(r.Context()),
		}).Debug("http request")
	})
}

// StartServer serves handler until SIGINT or SIGTERM, then shuts down gracefully.
func StartServer(port string, h http.Handler) {
	addr := ":" + port
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Infof("Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server crashed")
		}
	}()

	// Shutdown on SIGINT or SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Shutdown error")
	}
}
