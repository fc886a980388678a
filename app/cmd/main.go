package main

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"legis/app/config"
	"legis/app/server"
)

func init() {
	mustLoadEnvVariables()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("error to load config: ", err)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := server.NewServer(cfg)
	errch := make(chan error, 1)
	go func() {
		errch <- s.Run(ctx)
	}()

	select {
	case err := <-errch:
		if err != nil {
			slog.Error("server failed", "error", err)
			s.Stop()
			os.Exit(1)
		}
	case <-ctx.Done():
		slog.Info("Received shutdown signal, shutting down server...")
	}
	s.Stop()
}

// .env is optional; real deployments pass the environment directly.
func mustLoadEnvVariables() {
	err := godotenv.Load()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatal("Error loading .env file")
	}
}
