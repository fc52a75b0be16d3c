package app

import (
	"context"
	"log/slog"

	grpcapp "forum/internal/app/grpc"
	httpapp "forum/internal/app/http"
	"forum/internal/config"
	delivery "forum/internal/delivery/http"
	"forum/internal/lib/sl"
	"forum/internal/services/auth"
	"forum/internal/services/forum"
	"forum/internal/storage/mongodb"
	"forum/internal/storage/sqlite"
)

type App struct {
	GRPCSrv *grpcapp.App
	HTTPSrv *httpapp.App

	logger       *slog.Logger
	closeStorage func(ctx context.Context) error
}

// store is everything the services need from a storage backend.
type store interface {
	auth.UserSaver
	auth.UserProvider
	auth.SessionStore
	auth.AccountUpdater
	forum.TagUpserter
	forum.QuestionStore
	forum.AnswerStore
	forum.VoteCaster
	Ping(ctx context.Context) error
}

func New(ctx context.Context, logger *slog.Logger, cfg *config.Config) *App {
	storage, closeStorage := mustOpenStorage(ctx, cfg)

	authService := auth.New(logger, storage, storage, storage, storage, cfg.Tokens)
	forumService := forum.New(logger, storage, storage, storage, storage)

	router, err := delivery.InitRoutes(logger, cfg.HTTPServer, delivery.Services{
		Auth:    authService,
		Forum:   forumService,
		Storage: storage,
	})
	if err != nil {
		panic(err)
	}

	return &App{
		GRPCSrv: grpcapp.New(logger, storage, cfg.Grpc.Port, cfg.Grpc.Timeout),
		HTTPSrv: httpapp.New(
			logger,
			cfg.HTTPServer.Address,
			cfg.HTTPServer.Timeout,
			cfg.HTTPServer.IdleTimeout,
			router,
		),
		logger:       logger,
		closeStorage: closeStorage,
	}
}

// Stop shuts the servers down and releases the storage.
func (a *App) Stop(ctx context.Context) {
	if err := a.HTTPSrv.Stop(); err != nil {
		a.logger.Error("failed to stop http server", sl.Err(err))
	}

	a.GRPCSrv.Stop()

	if err := a.closeStorage(ctx); err != nil {
		a.logger.Error("failed to close storage", sl.Err(err))
	}
}

func mustOpenStorage(ctx context.Context, cfg *config.Config) (store, func(context.Context) error) {
	switch cfg.Storage {
	case config.StorageSQLite:
		storage, err := sqlite.New(cfg.StoragePath)
		if err != nil {
			panic(err)
		}
		if err := storage.Migrate(); err != nil {
			panic(err)
		}
		return storage, func(context.Context) error { return storage.Close() }
	default:
		ctx, cancel := context.WithTimeout(ctx, cfg.Mongo.Timeout)
		defer cancel()

		storage, err := mongodb.New(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			panic(err)
		}
		return storage, storage.Close
	}
}
