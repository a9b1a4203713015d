package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/joelkehle/roimap/internal/cityconfig"
	"github.com/joelkehle/roimap/internal/docsource"
	"github.com/joelkehle/roimap/internal/llm"
	"github.com/joelkehle/roimap/internal/report"
	"github.com/joelkehle/roimap/internal/seed"
	"github.com/spf13/cobra"
)

func newCitiesCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "cities",
		Short: "List the configured cities and their map views",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tCENTER\tZOOM")
			for _, city := range a.Cities.Cities() {
				v := a.Cities.View(city.ID)
				fmt.Fprintf(tw, "%s\t%s\t%.4f,%.4f\t%g\n", city.ID, city.Name, v.Center.Lat, v.Center.Lng, v.Zoom)
			}
			return tw.Flush()
		},
	}
}

func newSeedCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "seed [city...]",
		Short: "Upload local data files into the remote document store",
		Long:  "seed copies <city>.geojson (or <city>.json) and <city>.report.json from the data directory into the configured store, applying its geometry encoding. Without arguments every configured city is seeded.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())
			if a.Store == nil {
				return fmt.Errorf("no remote store configured; set --store or STORE_BACKEND")
			}

			ids := args
			if len(ids) == 0 {
				ids = a.Cities.Keys()
			}
			u := seed.NewUploader(docsource.NewFileSource(c.cfg.DataDir), a.Store, a.Codec, c.log)
			sum, err := u.Upload(cmd.Context(), ids)
			fmt.Fprintf(cmd.OutOrStdout(), "uploaded %d, skipped %d, failed %d\n", len(sum.Uploaded), len(sum.Skipped), len(sum.Failed))
			return err
		},
	}
}

func newAssembleCmd(c *cli) *cobra.Command {
	var geometryPath, reportPath string
	cmd := &cobra.Command{
		Use:   "assemble <city>",
		Short: "Assemble a city report and print it as JSON",
		Long:  "assemble joins a city's geometry and report documents. With --geometry and --report the two files are read directly instead of going through the configured sources.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())

			var res *report.Result
			if geometryPath != "" || reportPath != "" {
				if geometryPath == "" || reportPath == "" {
					return fmt.Errorf("--geometry and --report must be given together")
				}
				res, err = assembleFiles(c, a.Cities, geometryPath, reportPath, args[0])
			} else {
				res, err = a.View.Report(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			for _, w := range res.Warnings {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s [%s] %s\n", w.Severity, w.Kind, w.Message)
			}
			return writeIndented(cmd.OutOrStdout(), res.Report)
		},
	}
	cmd.Flags().StringVar(&geometryPath, "geometry", "", "GeoJSON file to assemble")
	cmd.Flags().StringVar(&reportPath, "report", "", "report JSON file to assemble")
	return cmd
}

func assembleFiles(c *cli, cities *cityconfig.Table, geometryPath, reportPath, city string) (*report.Result, error) {
	geometry, err := os.ReadFile(geometryPath)
	if err != nil {
		return nil, err
	}
	doc, err := os.ReadFile(reportPath)
	if err != nil {
		return nil, err
	}
	key := strings.ToLower(strings.TrimSpace(city))
	label := city
	if known, ok := cities.Lookup(key); ok {
		label = known.Name
	}
	return report.NewAssembler(cities, c.log, nil).Assemble(geometry, doc, label, key)
}

func newGenerateCmd(c *cli) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "generate <city name>",
		Short: "Generate a fictional ROI report for a city with the LLM",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := llm.NewAnthropicCaller(c.cfg.AnthropicAPIKey, c.cfg.AnthropicModel)
			if err != nil {
				return err
			}
			rep, err := llm.NewGenerator(caller, c.log).Generate(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			if out == "" {
				return writeIndented(cmd.OutOrStdout(), rep)
			}
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			if err := writeIndented(f, rep); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s (%d regions)\n", out, len(rep.Regions))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the report to this file instead of stdout")
	return cmd
}
