package main

import (
	"context"
	"log"

	"voicero/internal/app"
	"voicero/internal/config"
	"voicero/internal/logging"

	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.MustNew(cfg.Environment, cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("init failed", zap.Error(err))
	}

	lambda.Start(a.Proxy.Handle)
}
