// Command metextract extracts the variables of one NetCDF granule into OODT
// CAS metadata files, one point per grid cell.
//
// Usage:
//
//	metextract [flags] <input-file>
//	metextract [flags] <ncdump-path> <input-file> <output-dir> <vars|all> [maxPointsPerUnit]
//
// Settings not given on the command line come from the environment
// (NCDUMP_PATH, OUTPUT_DIR, VARIABLES, MAX_POINTS_PER_UNIT, ...).
//
// Exit status is 0 on success, 1 when the extraction fails and 2 on usage or
// configuration errors.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	kafkaadapter "github.com/couchcryptid/granule-extract/internal/adapter/kafka"
	"github.com/couchcryptid/granule-extract/internal/adapter/ncdump"
	"github.com/couchcryptid/granule-extract/internal/adapter/netcdf"
	"github.com/couchcryptid/granule-extract/internal/config"
	"github.com/couchcryptid/granule-extract/internal/observability"
	"github.com/couchcryptid/granule-extract/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
)

// Exit codes.
const (
	exitOK         = 0
	exitExtraction = 1
	exitUsage      = 2
)

// exitError carries the process exit code of a failed run.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func usageErrorf(format string, args ...any) error {
	return &exitError{code: exitUsage, err: fmt.Errorf(format, args...)}
}

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

func execute(args []string, stdout, stderr io.Writer) int {
	cmd := newRootCommand(stdout, stderr)
	cmd.SetArgs(args)
	cmd.SetOutput(stderr)

	err := cmd.Execute()
	if err == nil {
		return exitOK
	}
	fmt.Fprintln(stderr, "Error:", err)

	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	// cobra reports unknown flags and bad argument counts as plain errors.
	return exitUsage
}

type options struct {
	backend         string
	ncdumpPath      string
	outputDir       string
	variables       string
	maxPoints       int
	profile         string
	datasetID       string
	granuleTime     string
	timeout         time.Duration
	logLevel        string
	logFormat       string
	metricsTextfile string
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:           "metextract [flags] <input-file> | <ncdump-path> <input-file> <output-dir> <vars|all> [maxPointsPerUnit]",
		Short:         "Extract granule variables into CAS metadata files",
		Args:          cobra.RangeArgs(1, 5),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return &exitError{code: exitUsage, err: err}
			}
			input, err := applyArgs(cfg, args)
			if err != nil {
				return err
			}
			applyFlags(cmd, cfg, &opts)
			if err := cfg.Validate(); err != nil {
				return &exitError{code: exitUsage, err: err}
			}
			return run(context.Background(), cfg, input, opts.granuleTime, stdout, stderr)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.backend, "backend", config.BackendNcdump, "dump backend: ncdump or native (env DUMP_BACKEND)")
	f.StringVar(&opts.ncdumpPath, "ncdump", ncdump.DefaultPath, "path to the ncdump executable (env NCDUMP_PATH)")
	f.StringVarP(&opts.outputDir, "output-dir", "o", ".", "directory for .met files (env OUTPUT_DIR)")
	f.StringVarP(&opts.variables, "variables", "v", "all", "comma-separated variables or \"all\" (env VARIABLES)")
	f.IntVarP(&opts.maxPoints, "max-points", "n", 0, "maximum points per output unit, 0 for unlimited (env MAX_POINTS_PER_UNIT)")
	f.StringVar(&opts.profile, "profile", "", "TOML dataset profile (env PROFILE_PATH)")
	f.StringVar(&opts.datasetID, "dataset-id", "", "dataset identifier written to every unit (env DATASET_ID)")
	f.StringVar(&opts.granuleTime, "granule-time", "", "timestamp for every point, instead of the one in the file name")
	f.DurationVar(&opts.timeout, "timeout", 2*time.Minute, "timeout of each dump tool invocation (env DUMP_TIMEOUT)")
	f.StringVar(&opts.logLevel, "log-level", "info", "debug, info, warn or error (env LOG_LEVEL)")
	f.StringVar(&opts.logFormat, "log-format", "json", "json or text (env LOG_FORMAT)")
	f.StringVar(&opts.metricsTextfile, "metrics-textfile", "", "write Prometheus metrics to this file after the run (env METRICS_TEXTFILE)")

	return cmd
}

// applyArgs takes the input file, and in the five-argument form also the
// tool path, output directory, variables and point budget, from args.
func applyArgs(cfg *config.Config, args []string) (string, error) {
	switch len(args) {
	case 1:
		return args[0], nil
	case 4, 5:
		cfg.NcdumpPath = args[0]
		cfg.OutputDir = args[2]
		cfg.Variables = args[3]
		if len(args) == 5 {
			n, err := cast.ToIntE(args[4])
			if err != nil || n < 0 {
				return "", usageErrorf("invalid maxPointsPerUnit %q", args[4])
			}
			cfg.MaxPointsPerUnit = n
		}
		return args[1], nil
	default:
		return "", usageErrorf("expected 1, 4 or 5 arguments, got %d", len(args))
	}
}

// applyFlags overrides env settings with flags given explicitly.
func applyFlags(cmd *cobra.Command, cfg *config.Config, opts *options) {
	f := cmd.Flags()
	if f.Changed("backend") {
		cfg.DumpBackend = opts.backend
	}
	if f.Changed("ncdump") {
		cfg.NcdumpPath = opts.ncdumpPath
	}
	if f.Changed("output-dir") {
		cfg.OutputDir = opts.outputDir
	}
	if f.Changed("variables") {
		cfg.Variables = opts.variables
	}
	if f.Changed("max-points") {
		cfg.MaxPointsPerUnit = opts.maxPoints
	}
	if f.Changed("profile") {
		cfg.ProfilePath = opts.profile
	}
	if f.Changed("dataset-id") {
		cfg.DatasetID = opts.datasetID
	}
	if f.Changed("timeout") {
		cfg.DumpTimeout = opts.timeout
	}
	if f.Changed("log-level") {
		cfg.LogLevel = opts.logLevel
	}
	if f.Changed("log-format") {
		cfg.LogFormat = opts.logFormat
	}
	if f.Changed("metrics-textfile") {
		cfg.MetricsTextfile = opts.metricsTextfile
	}
}

func run(parent context.Context, cfg *config.Config, input, granuleTime string, stdout, stderr io.Writer) error {
	logger := observability.NewLogger(stderr, cfg.LogLevel, cfg.LogFormat)

	filter, err := pipeline.ParseVariableFilter(cfg.Variables)
	if err != nil {
		return &exitError{code: exitUsage, err: err}
	}

	profile, err := config.LoadProfile(cfg.ProfilePath)
	if err != nil {
		return &exitError{code: exitUsage, err: err}
	}
	convention, err := profile.TimeConvention()
	if err != nil {
		return &exitError{code: exitUsage, err: err}
	}
	datasetID := profile.DatasetID
	if cfg.DatasetID != "" {
		datasetID = cfg.DatasetID
	}

	if _, err := os.Stat(input); err != nil {
		return usageErrorf("input file: %w", err)
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return usageErrorf("output directory: %w", err)
	}

	client, err := newClient(cfg, logger)
	if err != nil {
		return &exitError{code: exitUsage, err: err}
	}

	reg := prometheus.NewRegistry()
	metrics := observability.NewMetricsWith(reg)
	defer func() {
		if err := observability.WriteTextfile(cfg.MetricsTextfile, reg); err != nil {
			logger.Error("write metrics textfile failed", "path", cfg.MetricsTextfile, "error", err)
		}
	}()

	var notifier pipeline.Notifier
	if cfg.NotificationsEnabled() {
		kn := kafkaadapter.NewNotifier(cfg, logger)
		defer func() {
			if err := kn.Close(); err != nil {
				logger.Error("kafka notifier close error", "error", err)
			}
		}()
		notifier = kn
		logger.Info("unit notifications enabled", "topic", cfg.KafkaTopic)
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	driver := pipeline.NewDriver(client, pipeline.FileSinks(cfg.OutputDir), pipeline.Config{
		DatasetID:          datasetID,
		Time:               convention,
		GranuleTime:        granuleTime,
		FixedLevel:         profile.FixedLevel,
		NormalizeLongitude: profile.NormalizeLongitude,
	}, notifier, logger, metrics)

	res, err := driver.Run(ctx, pipeline.Request{
		Path:             input,
		Variables:        filter,
		MaxPointsPerUnit: cfg.MaxPointsPerUnit,
	})
	for _, u := range res.Units {
		fmt.Fprintln(stdout, u.Name)
	}
	if err != nil {
		return &exitError{code: exitExtraction, err: err}
	}
	return nil
}

func newClient(cfg *config.Config, logger *slog.Logger) (pipeline.DumpToolClient, error) {
	if cfg.DumpBackend == config.BackendNative {
		return netcdf.New(), nil
	}
	c := ncdump.New(cfg.NcdumpPath, cfg.DumpTimeout, logger)
	if err := c.Check(); err != nil {
		return nil, err
	}
	return c, nil
}
