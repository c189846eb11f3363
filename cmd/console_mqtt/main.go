package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/prashant23kumthekar/Uroflowmetry-001/internal/app"
	"github.com/prashant23kumthekar/Uroflowmetry-001/internal/config"
	"github.com/prashant23kumthekar/Uroflowmetry-001/internal/logging"
)

func main() {
	configPath := flag.String("config", "uroflow_config.txt", "path to the KEY=VALUE config file")
	flag.Parse()

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Get()

	logger, err := logging.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting uroflow console (MQTT subscriber)")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunConsoleMQTT(ctx, os.Stdout, logger); err != nil {
		logger.Fatal("fatal", zap.Error(err))
	}
}
