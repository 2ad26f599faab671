// Package server initializes and runs the chat server: database and object
// storage backends, business services, the websocket gateway, and the fiber
// HTTP endpoint with graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/gofiber/fiber/v2"

	"github.com/skorolev/duetchat/internal/logging"
	"github.com/skorolev/duetchat/internal/server/config"
	"github.com/skorolev/duetchat/internal/server/gateway"
	"github.com/skorolev/duetchat/internal/server/httpapi"
	"github.com/skorolev/duetchat/internal/server/media"
	"github.com/skorolev/duetchat/internal/server/presence"
	"github.com/skorolev/duetchat/internal/server/repositories/repomanager"
	"github.com/skorolev/duetchat/internal/server/services"
)

type App struct {
	config         *config.Config
	logger         logging.Logger
	db             *sql.DB
	userService    *services.UserService
	messageService *services.MessageService
	gateway        *gateway.Gateway
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {

	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	mediaStore := media.NewS3Store(media.S3Options{
		RootUser:     cfg.S3RootUser,
		RootPassword: cfg.S3RootPassword,
		Bucket:       cfg.S3Bucket,
		Region:       cfg.S3Region,
		BaseEndpoint: cfg.S3BaseEndpoint,
	})

	registry := presence.NewRegistry()
	gw := gateway.New(registry, logger)

	us := services.NewUserService(db, rm, mediaStore, cfg)
	ms := services.NewMessageService(db, rm, mediaStore, gw, logger)

	return &App{
		config:         cfg,
		logger:         logger,
		db:             db,
		userService:    us,
		messageService: ms,
		gateway:        gw,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {

	fiberApp := fiber.New(fiber.Config{DisableStartupMessage: true})

	api := httpapi.NewServer(app.userService, app.messageService, app.gateway,
		app.config.RefreshTokenValidityDuration, app.logger)
	api.Register(fiberApp)

	go func() {
		<-ctx.Done()
		if err := fiberApp.Shutdown(); err != nil {
			app.logger.Error(ctx, "shutdown error", "error", err)
		}
	}()

	app.logger.Info(ctx, "starting http server", "addr", app.config.EndpointAddr)
	if err := fiberApp.Listen(app.config.EndpointAddr); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}
}
