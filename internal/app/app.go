// Package app wires configuration into the long-lived clients shared by the
// server and the CLI, and owns their lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/joelkehle/roimap/internal/cityconfig"
	"github.com/joelkehle/roimap/internal/cityview"
	"github.com/joelkehle/roimap/internal/config"
	"github.com/joelkehle/roimap/internal/docsource"
	"github.com/joelkehle/roimap/internal/metrics"
	"github.com/joelkehle/roimap/internal/report"
	"github.com/joelkehle/roimap/internal/telemetry"
	"github.com/rs/zerolog"
)

type App struct {
	Config  *config.Config
	Log     zerolog.Logger
	Cities  *cityconfig.Table
	Store   docsource.Store // nil when no remote backend is configured
	Codec   docsource.Codec
	Metrics *metrics.Registry
	View    *cityview.Service

	shutdownTracing telemetry.Shutdown
}

// Open builds every shared dependency. The caller must Close the App.
func Open(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	cities := cityconfig.Builtin()
	if cfg.CitiesFile != "" {
		t, err := cityconfig.Load(cfg.CitiesFile)
		if err != nil {
			return nil, err
		}
		cities = t
	}

	encoding, err := docsource.ParseGeometryEncoding(cfg.GeometryEncoding)
	if err != nil {
		return nil, err
	}
	store, err := docsource.OpenStore(ctx, docsource.BackendConfig{
		Backend: cfg.StoreBackend,
		DSN:     cfg.StoreDSN,
		Redis: docsource.RedisConfig{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		},
		Encoding: encoding,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.StoreBackend, err)
	}

	tp, shutdown, err := telemetry.Setup(ctx, telemetry.Config{ServiceName: "roimap", Endpoint: cfg.OTLPEndpoint})
	if err != nil {
		if store != nil {
			store.Close()
		}
		return nil, err
	}

	reg := metrics.New()
	codec := docsource.Codec{Encoding: encoding}
	source := docsource.NewSource(cfg.DataDir, store, codec, log, reg)
	assembler := report.NewAssembler(cities, log, reg)
	view := cityview.New(cities, docsource.NewLoader(source), assembler, telemetry.Tracer(tp), log)

	log.Info().
		Str("data_dir", cfg.DataDir).
		Str("store", cfg.StoreBackend).
		Str("geometry_encoding", string(encoding)).
		Strs("cities", cities.Keys()).
		Msg("application wired")

	return &App{
		Config:          cfg,
		Log:             log,
		Cities:          cities,
		Store:           store,
		Codec:           codec,
		Metrics:         reg,
		View:            view,
		shutdownTracing: shutdown,
	}, nil
}

func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	if a.shutdownTracing != nil {
		errs = append(errs, a.shutdownTracing(ctx))
	}
	return errors.Join(errs...)
}
