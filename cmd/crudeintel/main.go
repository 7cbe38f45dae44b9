package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/crudeintel/crudeintel/internal/app"
	"github.com/crudeintel/crudeintel/internal/config"
	"github.com/crudeintel/crudeintel/internal/logger"
)

func main() {
	once := flag.Bool("once", false, "run a single pass and exit")
	testAlert := flag.Bool("test-alert", false, "send a test message to the configured endpoints and exit")
	flag.Parse()

	// Local development keeps secrets in .env; in deployment the
	// environment is already populated and the file is absent.
	godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger.Init(cfg.Debug)

	a, err := app.New(cfg)
	if err != nil {
		log.Fatalf("startup: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch {
	case *testAlert:
		err = a.SendTestAlert(ctx)
	case *once:
		err = a.RunOnce(ctx)
	default:
		err = a.Run(ctx)
	}

	a.Close()

	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("run: %v", err)
	}
}
