// Package server initializes and runs the registry auth service. It owns the
// database handle lifecycle, wires repositories and services together, and
// starts the HTTP boundary with graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/registryauth/internal/dbx"
	"github.com/dmitrijs2005/registryauth/internal/logging"
	"github.com/dmitrijs2005/registryauth/internal/server/config"
	"github.com/dmitrijs2005/registryauth/internal/server/httpapi"
	"github.com/dmitrijs2005/registryauth/internal/server/models"
	"github.com/dmitrijs2005/registryauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/registryauth/internal/server/services"
	_ "github.com/jackc/pgx/v5/stdlib"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	repos       repomanager.RepositoryManager
	sink        *logging.StoreSink
	userService *services.UserService
}

func NewApp(c *config.Config) (*App, error) {

	if c.SecretKey == "" {
		return nil, errors.New("secret key is not configured")
	}

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()

	handler := slog.NewJSONHandler(os.Stdout, nil)

	var sink *logging.StoreSink
	var logger logging.Logger
	if c.StoreLogs {
		flush := func(ctx context.Context, records []models.LogRecord) error {
			return dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
				return rm.Logs(tx).Create(ctx, records)
			})
		}
		sink = logging.NewStoreSink(handler, flush)
		logger = logging.NewSlogLogger(slog.New(sink))
	} else {
		logger = logging.NewSlogLogger(slog.New(handler))
	}

	us := services.NewUserService(db, rm, c)

	return &App{config: c, logger: logger, db: db, repos: rm, sink: sink, userService: us}, nil
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

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {

	s, err := httpapi.NewServer(app.config.EndpointAddr, app.logger, app.userService, app.config.SecretKey)

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

	if err := app.repos.RunMigrations(ctx, app.db); err != nil {
		app.logger.Error(ctx, "migration error", "error", err.Error())
		return
	}

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	if app.sink != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.sink.Run(ctx)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err.Error())
	}
}
