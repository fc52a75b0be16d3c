package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"forum/internal/app"
	"forum/internal/config"
	"forum/internal/lib/handlers/slogpretty"
	"forum/internal/lib/sl"

	"github.com/gin-gonic/gin"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	cfg := config.MustLoad()
	logger := setupLogger(cfg.Env)
	logger.Info("starting forum server", slog.String("env", cfg.Env), slog.String("storage", cfg.Storage))

	if cfg.Env != envLocal {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()
	application := app.New(ctx, logger, cfg)

	go application.GRPCSrv.MustRun()
	application.HTTPSrv.Start()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-stop:
		logger.Info("received signal", slog.String("signal", s.String()))
	case err := <-application.HTTPSrv.Notify():
		logger.Error("http server failed", sl.Err(err))
	}

	application.Stop(ctx)

	logger.Info("forum server stopped")
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger
	switch env {
	case envLocal:
		log = setupPrettySlog()
	case envDev:
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envProd:
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		panic("unknown environment: " + env)
	}
	return log
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}
	h := opts.NewPrettyHandler(os.Stdout)

	return slog.New(h)
}
