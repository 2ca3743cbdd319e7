package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"bookmark-cataloger/internal/app"
	"bookmark-cataloger/internal/config"
	"bookmark-cataloger/internal/events"
	"bookmark-cataloger/internal/ioformats"
	"bookmark-cataloger/internal/models"
	"bookmark-cataloger/pkg/logger"
)

var (
	configFile   string
	bookmarkFile string
	inputFile    string
	storeDriver  string
	storeDSN     string
	outputFile   string
	verbose      bool

	optLift      bool
	optDedupe    bool
	optFlat      bool
	optSplit     bool
	optParallel  int
	optTimeoutMs int
	optLimit     int
	optStaleMs   int64
	optMode      string
)

var rootCmd = &cobra.Command{
	Use:           "bookmarkcat",
	Short:         "Scan, classify and catalog browser bookmarks",
	Long:          `Fetches every bookmarked page, tags and categorizes it, and files the links into generated folders.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Fetch and classify bookmarked URLs",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			sum, err := a.Service.RunScan(ctx, patchFromFlags(cmd))
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "planned=%d ok=%d failed=%d\n", sum.Planned, sum.OK, sum.Failed)
			return nil
		})
	},
}

var sortCmd = &cobra.Command{
	Use:   "sort",
	Short: "Drop failed records and organize the rest under SORTED",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			return a.Service.Sort(ctx)
		})
	},
}

var integrateCmd = &cobra.Command{
	Use:   "integrate",
	Short: "File records into category folders under SORTED",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			_, err := a.Service.Integrate(ctx)
			return err
		})
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the records report as CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			exp, err := a.Service.ExportCSV(ctx)
			if err != nil {
				return err
			}
			if outputFile != "" {
				csv, _, err := a.Service.LastCSV(ctx)
				if err != nil {
					return err
				}
				if err := os.WriteFile(outputFile, []byte(csv), 0o644); err != nil {
					return fmt.Errorf("write output: %w", err)
				}
				exp.Location = outputFile
			}
			fmt.Printf("rows=%d report=%s location=%s\n", exp.Rows, exp.ReportURL, exp.Location)
			return nil
		})
	},
}

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Print stored records as NDJSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			recs, err := a.Service.Records(ctx)
			if err != nil {
				return err
			}
			w := os.Stdout
			if outputFile != "" {
				f, err := os.Create(outputFile)
				if err != nil {
					return fmt.Errorf("create output: %w", err)
				}
				defer f.Close()
				w = f
			}
			return ioformats.WriteNDJSON(w, ioformats.SortedRecords(recs))
		})
	},
}

var optionsCmd = &cobra.Command{
	Use:   "options",
	Short: "Show the stored options, updating them from any option flags given",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			opts, err := a.Service.SetOptions(ctx, patchFromFlags(cmd))
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(opts)
		})
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear records and restore default options",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			return a.Service.Reset(ctx)
		})
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", os.Getenv("BOOKMARKCAT_CONFIG"), "Path to YAML config")
	pf.StringVar(&bookmarkFile, "bookmarks", "", "Netscape bookmark HTML file")
	pf.StringVar(&inputFile, "input", "", "CSV (url column) or NDJSON URL list used instead of the bookmark file")
	pf.StringVar(&storeDriver, "store", "", "Store driver: memory, sqlite or postgres")
	pf.StringVar(&storeDSN, "dsn", "", "Store DSN")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Debug logging")

	for _, c := range []*cobra.Command{scanCmd, optionsCmd} {
		f := c.Flags()
		f.BoolVar(&optLift, "lift", false, "Lift URLs to their domain root")
		f.BoolVar(&optDedupe, "dedupe", false, "Drop repeated URLs")
		f.BoolVar(&optFlat, "flat", false, "Sort everything flat under SORTED")
		f.BoolVar(&optSplit, "split", true, "Sort into top tag folders")
		f.IntVar(&optParallel, "parallel", 6, "Concurrent fetches (1-16)")
		f.IntVar(&optTimeoutMs, "timeout-ms", 8000, "Per-fetch timeout in milliseconds")
		f.IntVar(&optLimit, "limit", 0, "Scan at most this many URLs")
		f.Int64Var(&optStaleMs, "stale-ms", models.DefaultStaleMs, "Age after which a record is stale")
		f.StringVar(&optMode, "mode", "all", "Scan mode: all, missing, errors, stale or resume")
	}
	exportCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Also write the CSV to this file")
	recordsCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output NDJSON file (default stdout)")

	rootCmd.AddCommand(scanCmd, sortCmd, integrateCmd, exportCmd, recordsCmd, optionsCmd, resetCmd)
}

// patchFromFlags turns the option flags the user actually set into a patch.
func patchFromFlags(cmd *cobra.Command) models.ScanOptionsPatch {
	var p models.ScanOptionsPatch
	f := cmd.Flags()
	if f.Changed("lift") {
		p.LiftToDomain = &optLift
	}
	if f.Changed("dedupe") {
		p.Dedupe = &optDedupe
	}
	if f.Changed("flat") {
		p.FlatMode = &optFlat
	}
	if f.Changed("split") {
		p.SplitIntoFolders = &optSplit
	}
	if f.Changed("parallel") {
		p.Parallel = &optParallel
	}
	if f.Changed("timeout-ms") {
		p.TimeoutMs = &optTimeoutMs
	}
	if f.Changed("limit") {
		p.Limit = &optLimit
	}
	if f.Changed("stale-ms") {
		p.StaleMs = &optStaleMs
	}
	if f.Changed("mode") {
		m := models.ScanMode(optMode)
		p.Mode = &m
	}
	return p
}

// withApp loads config, applies the persistent flags and runs fn with a
// context cancelled on SIGINT/SIGTERM.
func withApp(cmd *cobra.Command, fn func(context.Context, *app.App) error) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if bookmarkFile != "" {
		cfg.Bookmarks.Path = bookmarkFile
	}
	if storeDriver != "" {
		cfg.Store.Driver = storeDriver
	}
	if storeDSN != "" {
		cfg.Store.DSN = storeDSN
	}
	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	l := logger.NewWith(os.Stderr, level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, l, app.Options{Input: inputFile, Extra: progressPrinter()})
	if err != nil {
		return err
	}
	if err := a.Service.Init(ctx); err != nil {
		a.Close()
		return err
	}
	runErr := fn(ctx, a)
	if err := a.Close(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// progressPrinter writes events to stderr.
func progressPrinter() events.Publisher {
	return events.PublisherFunc(func(e events.Event) {
		switch e.Kind {
		case events.KindProgress:
			if e.Completed == e.Total || e.Completed%10 == 0 {
				fmt.Fprintf(os.Stderr, "progress %d/%d\n", e.Completed, e.Total)
			}
		case events.KindStatus:
			fmt.Fprintln(os.Stderr, e.Text)
		case events.KindPhase:
			fmt.Fprintf(os.Stderr, "%s %s\n", e.Name, e.Step)
		case events.KindError:
			fmt.Fprintln(os.Stderr, "error:", e.Text)
		}
	})
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
