package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	jobshandler "github.com/de-tools/data-profiler/pkg/handlers/jobs"
	uploadhandler "github.com/de-tools/data-profiler/pkg/handlers/upload"
	profilermiddleware "github.com/de-tools/data-profiler/pkg/server/middleware"
	"github.com/de-tools/data-profiler/pkg/services/workflow"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

const DefaultShutdownTimeout = 10 * time.Second

// JobController is the report controller as seen by the server: the
// handlers use it and Start stops it on shutdown.
type JobController interface {
	workflow.Controller
	Shutdown(ctx context.Context) error
}

type WebAPI struct {
	router          chi.Router
	logger          *zerolog.Logger
	server          *http.Server
	jobs            JobController
	shutdownTimeout time.Duration
}

type Dependencies struct {
	Files uploadhandler.FileStore
	Jobs  JobController
}

type Config struct {
	Addr            string
	ShutdownTimeout time.Duration
	MaxUploadBytes  int64
	Dependencies    Dependencies
}

func ConfigureRouter(logger zerolog.Logger, config Config) (chi.Router, error) {
	uploads, err := uploadhandler.NewHandler(config.Dependencies.Files, config.Dependencies.Jobs, config.MaxUploadBytes)
	if err != nil {
		return nil, err
	}
	jobs := jobshandler.NewHandler(config.Dependencies.Jobs)

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(profilermiddleware.Logger(&logger))
	router.Use(middleware.Recoverer)

	router.Get("/", uploads.Index)
	router.Post("/upload", uploads.Upload)
	router.Get("/download/{filename}", uploads.Download)
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/jobs", jobs.ListJobs)
		r.Get("/jobs/{id}", jobs.GetJob)
		r.Delete("/jobs/{id}", jobs.CancelJob)
	})

	return router, nil
}

func NewWebAPI(logger zerolog.Logger, config Config) (*WebAPI, error) {
	router, err := ConfigureRouter(logger, config)
	if err != nil {
		return nil, fmt.Errorf("configure router: %w", err)
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = DefaultShutdownTimeout
	}

	return &WebAPI{
		router: router,
		logger: &logger,
		server: &http.Server{
			Addr:              config.Addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		jobs:            config.Dependencies.Jobs,
		shutdownTimeout: config.ShutdownTimeout,
	}, nil
}

func (w *WebAPI) Start() error {
	serverErrors := make(chan error, 1)
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	go func() {
		w.logger.Info().Str("addr", w.server.Addr).Msg("starting server")
		serverErrors <- w.server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case sig := <-shutdown:
		w.logger.Info().Str("signal", sig.String()).Msg("shutdown initiated")
		return w.Shutdown()
	}
}

// Shutdown stops accepting requests, drains in-flight ones and then cancels
// report jobs that are still pending.
func (w *WebAPI) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), w.shutdownTimeout)
	defer cancel()

	err := w.server.Shutdown(ctx)
	if err != nil {
		w.logger.Error().Err(err).Msg("graceful shutdown failed")
		err = w.server.Close()
	}

	if jobsErr := w.jobs.Shutdown(w.logger.WithContext(ctx)); jobsErr != nil {
		w.logger.Error().Err(jobsErr).Msg("report jobs did not stop in time")
		err = errors.Join(err, jobsErr)
	}
	return err
}
