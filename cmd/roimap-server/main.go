package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joelkehle/roimap/internal/app"
	"github.com/joelkehle/roimap/internal/config"
	"github.com/joelkehle/roimap/internal/httpapi"
	"github.com/joelkehle/roimap/internal/llm"
	"github.com/joelkehle/roimap/internal/logging"
	"github.com/joelkehle/roimap/internal/render"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	var (
		addr       = flag.String("addr", cfg.Addr, "HTTP listen address")
		dataDir    = flag.String("data-dir", cfg.DataDir, "Directory with <city>.geojson and <city>.report.json files")
		citiesFile = flag.String("cities", cfg.CitiesFile, "YAML file listing the served cities (default: built-in berlin, milan)")
		noChat     = flag.Bool("no-chat", false, "Disable the chat endpoint even if an Anthropic key is configured")
		noPDF      = flag.Bool("no-pdf", false, "Disable PDF rendering")
	)
	flag.Parse()
	cfg.Addr, cfg.DataDir, cfg.CitiesFile = *addr, *dataDir, *citiesFile
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	logger := logging.New(logging.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	logging.SetGlobalLogger(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("startup failed")
	}

	var chat httpapi.Answerer
	if !*noChat {
		caller, err := llm.NewAnthropicCaller(cfg.AnthropicAPIKey, cfg.AnthropicModel)
		if err != nil {
			logger.Warn().Err(err).Msg("chat disabled")
		} else {
			chat = llm.NewChat(caller, logger, a.Metrics)
		}
	}

	var pdf render.PDFRenderer
	if !*noPDF {
		r, err := render.NewChromiumPDFRenderer(cfg.ChromePath)
		if err != nil {
			logger.Warn().Err(err).Msg("pdf rendering disabled")
		} else {
			pdf = r
		}
	}

	srv := httpapi.New(httpapi.Config{
		Addr:        cfg.Addr,
		Log:         logger,
		Cities:      a.View,
		Chat:        chat,
		PDF:         pdf,
		Metrics:     a.Metrics.Handler(),
		Observer:    a.Metrics,
		CORSOrigins: cfg.CORSOrigins,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("server stopped")
		}
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		logger.Error().Err(err).Msg("http shutdown")
	}
	if err := a.Close(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("close resources")
	}
	logger.Info().Msg("bye")
}
