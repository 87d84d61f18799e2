// Package server wires and runs the custody server: the gRPC endpoint, the
// quarantine monitor and the revocation purge loop.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/cryptexdrive/internal/logging"
	"github.com/dmitrijs2005/cryptexdrive/internal/server/config"
	"github.com/dmitrijs2005/cryptexdrive/internal/worker"

	gs "github.com/dmitrijs2005/cryptexdrive/internal/server/grpc"
)

type App struct {
	config *config.Config
	logger logging.Logger
	core   *Core
}

// NewLogger builds the JSON stdout logger at the configured level.
func NewLogger(cfg *config.Config) (logging.Logger, error) {
	l, err := logging.NewJSON(os.Stdout, cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	return l, nil
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger, err := NewLogger(c)
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	core, err := NewCore(ctx, c, logger)
	if err != nil {
		return nil, err
	}

	return &App{config: c, logger: logger, core: core}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	c := app.core
	s, err := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, c.Credentials, c.Sessions, c.Files, c.Admin, c.Tokens, c.Auditor)
	if err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
		return
	}

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.core.Monitor.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Loop(ctx, "revocation-purge", app.config.RevocationPurgeInterval, app.logger, app.core.Registry.Purge)
	}()

	wg.Wait()

	if err := app.core.Close(); err != nil {
		app.logger.Error(ctx, "closing database", "error", err)
	}
	app.logger.Info(ctx, "Stopped")
}
