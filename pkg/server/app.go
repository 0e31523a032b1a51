package server

import (
	"context"
	"io"
	"os/signal"
	"syscall"

	"KlineFeed/internal/usecase"
	"KlineFeed/pkg/config"
	xhttp "KlineFeed/pkg/http"
	"KlineFeed/pkg/logger"
)

// App encapsulates the process lifecycle: the fleet supervisor, the ops
// HTTP surface and graceful teardown of store handles.
type App struct {
	cfg        *config.Config
	log        *logger.Logger
	supervisor *usecase.FleetSupervisor
	httpServer *xhttp.Server
	closers    []io.Closer
}

// New creates a new App. Store handles passed as closers are released on
// shutdown, after the fleet has drained.
func New(
	cfg *config.Config,
	log *logger.Logger,
	supervisor *usecase.FleetSupervisor,
	httpServer *xhttp.Server,
	closers ...io.Closer,
) *App {
	return &App{
		cfg:        cfg,
		log:        log,
		supervisor: supervisor,
		httpServer: httpServer,
		closers:    closers,
	}
}

// Run starts the application and blocks until SIGINT/SIGTERM.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.httpServer.Start(); err != nil {
		return err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		a.supervisor.Run(ctx)
	}()
	a.log.Info("fleet supervisor started",
		logger.String("environment", a.cfg.Environment))

	<-ctx.Done()
	a.log.Info("shutdown signal received")

	// Supervisor waits for every worker connection to close.
	<-done

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Warn("http shutdown error", logger.Error(err))
	}

	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.log.Warn("store close error", logger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
