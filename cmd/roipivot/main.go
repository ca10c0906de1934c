// Package main provides the CLI entry point for roipivot.
package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/tinafang86/OM-to-ROI-data-process/internal/audit"
	"github.com/tinafang86/OM-to-ROI-data-process/internal/config"
	"github.com/tinafang86/OM-to-ROI-data-process/internal/discovery"
	"github.com/tinafang86/OM-to-ROI-data-process/internal/orchestrator"
	"github.com/tinafang86/OM-to-ROI-data-process/internal/output"
)

const usage = `Usage:
  roipivot [-config file] [-o dir|s3://bucket/prefix] [-sqlite file] [-audit dir] [-dry-run] [-v] <input>
  roipivot inspect [-config file] [-v] <input>
  roipivot watch [-config file] [-o dir] [-sqlite file] [-audit dir] [-v] <dir>...
  roipivot history [-config file] [-audit dir] [-n count]
  roipivot validate [-config file]

<input> is a .csv or .xlsx file, or s3://bucket/key.
`

// errUsage means the arguments were wrong; usage has already been printed.
var errUsage = errors.New("usage")

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	if len(args) > 0 {
		switch args[0] {
		case "inspect":
			err = runInspect(ctx, args[1:], stdout, stderr)
		case "watch":
			err = runWatch(ctx, args[1:], stdout, stderr)
		case "history":
			err = runHistory(args[1:], stdout, stderr)
		case "validate":
			err = runValidate(args[1:], stdout, stderr)
		case "help", "-h", "-help", "--help":
			fmt.Fprint(stdout, usage)
			return 0
		default:
			err = runConvert(ctx, args, stdout, stderr)
		}
	} else {
		err = runConvert(ctx, args, stdout, stderr)
	}

	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage):
		return 2
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
}

// commonFlags are shared by every subcommand that runs conversions.
type commonFlags struct {
	configPath string
	outputDir  string
	sqlitePath string
	auditDir   string
	verbose    bool
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	return fs
}

func (c *commonFlags) register(fs *flag.FlagSet, withSinks bool) {
	fs.StringVar(&c.configPath, "config", "", "configuration file (.json, .yaml or .toml)")
	fs.BoolVar(&c.verbose, "v", false, "list ignored headers, duplicates and warnings")
	if withSinks {
		fs.StringVar(&c.outputDir, "o", "", "output directory or s3://bucket/prefix")
		fs.StringVar(&c.sqlitePath, "sqlite", "", "also write rows to this SQLite database")
		fs.StringVar(&c.auditDir, "audit", "", "append conversions to the audit log in this directory")
	}
}

// loadConfig applies flag values over the file and environment settings.
func (c *commonFlags) loadConfig() (*config.Configuration, error) {
	cfg, err := config.LoadOrDefault(c.configPath)
	if err != nil {
		return nil, err
	}
	if c.outputDir != "" {
		cfg.OutputDirectory = c.outputDir
	}
	if c.sqlitePath != "" {
		cfg.SQLitePath = c.sqlitePath
	}
	if c.auditDir != "" {
		cfg.Audit.LogDirectory = c.auditDir
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parse reports bad flags as errUsage; the FlagSet has already printed them.
func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	return nil
}

func runConvert(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var flags commonFlags
	var dryRun bool
	fs := newFlagSet("roipivot", stderr)
	flags.register(fs, true)
	fs.BoolVar(&dryRun, "dry-run", false, "print the long table instead of writing it")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fmt.Fprint(stderr, usage)
		return errUsage
	}

	cfg, err := flags.loadConfig()
	if err != nil {
		return err
	}

	outCfg := output.DefaultConfig()
	outCfg.Verbose = flags.verbose
	outCfg.Writer = stdout
	outCfg.ErrWriter = stderr
	if dryRun {
		// stdout carries the table; messages go to stderr.
		outCfg.Writer = stderr
		outCfg.IsTTY = false
	}
	out := output.New(outCfg)

	o, err := orchestrator.New(cfg, out, orchestrator.Options{DryRun: dryRun})
	if err != nil {
		return err
	}
	defer o.Close()

	summary, err := o.Convert(ctx, fs.Arg(0))
	if err != nil {
		return err
	}

	if dryRun {
		w := csv.NewWriter(stdout)
		if err := w.WriteAll(summary.Records); err != nil {
			return fmt.Errorf("failed to print table: %w", err)
		}
		out.Info("%s", summary)
		out.Info("Dry run: would write %s", summary.Destination)
		return nil
	}

	out.Info("%s", summary)
	out.Info("Wrote %s", summary.Destination)
	if summary.StoredRows > 0 {
		out.Verbose("Stored %d rows in %s", summary.StoredRows, cfg.SQLitePath)
	}
	return nil
}

func runInspect(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var flags commonFlags
	fs := newFlagSet("inspect", stderr)
	flags.register(fs, false)
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fmt.Fprint(stderr, usage)
		return errUsage
	}

	cfg, err := flags.loadConfig()
	if err != nil {
		return err
	}
	// Inspect never writes, so skip opening the store and the audit log.
	cfg.SQLitePath = ""
	cfg.Audit.LogDirectory = ""

	o, err := orchestrator.New(cfg, nil, orchestrator.Options{DryRun: true})
	if err != nil {
		return err
	}
	defer o.Close()

	report, err := o.Inspect(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	printReport(stdout, report, flags.verbose)
	return nil
}

func printReport(w io.Writer, r *discovery.Report, verbose bool) {
	if r.HasDateColumn() {
		fmt.Fprintf(w, "Date column: %d %q\n", r.DateColumn, r.DateHeader)
	} else {
		fmt.Fprintln(w, "Date column: none (no header contains a date keyword)")
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Media: %d\n", len(r.Coverage))
	for _, mc := range r.Coverage {
		line := fmt.Sprintf("  %s\t%s", displayMedia(mc.Media), joinIDs(mc.Metrics))
		if len(mc.Missing) > 0 {
			line += fmt.Sprintf("\t(0 for %s)", joinIDs(mc.Missing))
		}
		fmt.Fprintln(tw, line)
	}
	tw.Flush()

	ignored := r.Ignored()
	fmt.Fprintf(w, "Ignored headers: %d\n", len(ignored))
	if verbose {
		for _, h := range ignored {
			fmt.Fprintf(tw, "  %d\t%q\t%s\n", h.Column, h.Header, h.Reason)
		}
		tw.Flush()
	}

	if len(r.UnknownSuffixes) > 0 {
		fmt.Fprintln(w, "Unknown suffixes (add to metricMapping to keep them):")
		for _, sc := range r.UnknownSuffixes {
			fmt.Fprintf(tw, "  %s\t%d\te.g. %q\n", sc.Suffix, sc.Count, sc.Example)
		}
		tw.Flush()
	}

	if r.Convertible() {
		fmt.Fprintln(w, "Result: convertible")
	} else {
		fmt.Fprintln(w, "Result: not convertible")
	}
}

func displayMedia(name string) string {
	if name == "" {
		return "(blank)"
	}
	return name
}

func joinIDs[T ~string](ids []T) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, ", ")
}

func runWatch(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var flags commonFlags
	fs := newFlagSet("watch", stderr)
	flags.register(fs, true)
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fmt.Fprint(stderr, usage)
		return errUsage
	}

	cfg, err := flags.loadConfig()
	if err != nil {
		return err
	}

	outCfg := output.DefaultConfig()
	outCfg.Verbose = flags.verbose
	outCfg.Writer = stdout
	outCfg.ErrWriter = stderr
	outCfg.IsTTY = false
	out := output.New(outCfg)

	o, err := orchestrator.New(cfg, out, orchestrator.Options{})
	if err != nil {
		return err
	}
	defer o.Close()

	summary, err := o.Watch(ctx, fs.Args())
	if err != nil {
		return err
	}
	out.Info("%s", orchestrator.WatchReport(summary))
	return nil
}

func runHistory(args []string, stdout, stderr io.Writer) error {
	var configPath, auditDir string
	var limit int
	fs := newFlagSet("history", stderr)
	fs.StringVar(&configPath, "config", "", "configuration file (.json, .yaml or .toml)")
	fs.StringVar(&auditDir, "audit", "", "audit log directory")
	fs.IntVar(&limit, "n", 20, "number of runs to show (0 for all)")
	if err := parse(fs, args); err != nil {
		return err
	}

	if auditDir == "" {
		cfg, err := config.LoadOrDefault(configPath)
		if err != nil {
			return err
		}
		auditDir = cfg.Audit.LogDirectory
	}
	if auditDir == "" {
		return errors.New("no audit log directory: pass -audit or set audit.logDirectory")
	}

	runs, err := audit.NewAuditReader(auditDir).ListRuns()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(stdout, "No runs recorded.")
		return nil
	}
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tKIND\tSTARTED\tCONVERTED\tFAILED\tSOURCES")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
			shortID(r.RunID), r.Kind, r.StartTime.Local().Format(time.DateTime),
			r.Converted, r.Failed, strings.Join(r.Sources, ", "))
	}
	return tw.Flush()
}

func shortID(id audit.RunID) string {
	s := string(id)
	if len(s) > 8 {
		return s[:8]
	}
	return s
}

func runValidate(args []string, stdout, stderr io.Writer) error {
	var configPath string
	fs := newFlagSet("validate", stderr)
	fs.StringVar(&configPath, "config", "", "configuration file (.json, .yaml or .toml)")
	if err := parse(fs, args); err != nil {
		return err
	}

	cfg := config.Default()
	cfg.ApplyEnv()
	if configPath != "" {
		var err error
		if cfg, err = config.Parse(configPath); err != nil {
			return err
		}
	}

	result := config.ValidateConfig(cfg)
	for _, e := range result.Errors {
		fmt.Fprintf(stdout, "error: %s: %s\n", e.Field, e.Message)
	}
	for _, w := range result.Warnings {
		fmt.Fprintf(stdout, "warning: %s: %s\n", w.Field, w.Message)
	}
	if !result.Valid {
		return fmt.Errorf("configuration has %d error(s)", len(result.Errors))
	}
	// Token conflicts only show up when the vocabulary is built.
	if err := cfg.Validate(); err != nil {
		return err
	}
	fmt.Fprintln(stdout, "Configuration OK")
	return nil
}
