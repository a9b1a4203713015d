package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joelkehle/roimap/internal/app"
	"github.com/joelkehle/roimap/internal/config"
	"github.com/joelkehle/roimap/internal/logging"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// cli carries state shared by every subcommand after the root pre-run.
type cli struct {
	cfg *config.Config
	log zerolog.Logger

	logLevel   string
	dataDir    string
	citiesFile string
	store      string
	storeDSN   string
	encoding   string
}

func newRootCommand() *cobra.Command {
	c := &cli{}
	cmd := &cobra.Command{
		Use:           "roimapctl",
		Short:         "Manage city ROI map data",
		Long:          "roimapctl seeds the document store, assembles city reports offline and generates fictional reports with an LLM.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.init(cmd)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&c.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.StringVar(&c.dataDir, "data-dir", "", "local data directory (overrides ROIMAP_DATA_DIR)")
	pf.StringVar(&c.citiesFile, "cities", "", "YAML cities file (overrides ROIMAP_CITIES_FILE)")
	pf.StringVar(&c.store, "store", "", "remote store backend: none, memory, sqlite, postgres, redis (overrides STORE_BACKEND)")
	pf.StringVar(&c.storeDSN, "store-dsn", "", "sqlite path or postgres DSN (overrides STORE_DSN)")
	pf.StringVar(&c.encoding, "geometry-encoding", "", "remote geometry encoding: nested or string (overrides STORE_GEOMETRY_ENCODING)")

	cmd.AddCommand(
		newCitiesCmd(c),
		newSeedCmd(c),
		newAssembleCmd(c),
		newGenerateCmd(c),
	)
	return cmd
}

func (c *cli) init(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	override := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	override(&cfg.LogLevel, c.logLevel)
	override(&cfg.DataDir, c.dataDir)
	override(&cfg.CitiesFile, c.citiesFile)
	override(&cfg.StoreBackend, c.store)
	override(&cfg.StoreDSN, c.storeDSN)
	override(&cfg.GeometryEncoding, c.encoding)
	if err := cfg.Validate(); err != nil {
		return err
	}
	c.cfg = cfg
	c.log = logging.New(logging.Config{Level: cfg.LogLevel, Pretty: true, Out: cmd.ErrOrStderr()})
	return nil
}

func (c *cli) open(ctx context.Context) (*app.App, error) {
	return app.Open(ctx, c.cfg, c.log)
}

func writeIndented(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
