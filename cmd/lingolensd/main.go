// Command lingolensd serves the detection and translation HTTP API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/nvr-ai/lingolens/app"
	"github.com/nvr-ai/lingolens/config"
	"github.com/nvr-ai/lingolens/inference/detectors"
	"github.com/nvr-ai/lingolens/logger"
	"github.com/nvr-ai/lingolens/server"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", config.DefaultPath, "Path to the YAML configuration")
	addr := flag.String("addr", "", "Listen address, overrides server.addr")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	if err := logger.Init(cfg.Log.Mode); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer logger.Sync()
	log := logger.Log()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, detectors.New, log)
	if err != nil {
		log.Error("startup failed", zap.Error(err))
		return 1
	}
	defer a.Close()

	if cfg.Server.ProcessSampleInterval > 0 {
		a.Metrics.StartProcessSampler(ctx, cfg.Server.ProcessSampleInterval)
	}

	srv, err := server.New(server.Options{
		Detector:        a.Detector,
		Labels:          a.Labels,
		Translator:      a.Translator,
		Languages:       a.Languages,
		DefaultLanguage: cfg.Translate.DefaultLanguage,
		MaxUploadBytes:  cfg.Server.MaxUploadBytes,
		Metrics:         a.Metrics,
		Logger:          log,
	})
	if err != nil {
		log.Error("failed to create server", zap.Error(err))
		return 1
	}

	if err := srv.Run(ctx, cfg.Server.Addr); err != nil {
		log.Error("server stopped", zap.Error(err))
		return 1
	}
	return 0
}
