package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"

	"github.com/couchcryptid/granule-extract/internal/domain"
	"github.com/couchcryptid/granule-extract/internal/metwriter"
	"github.com/couchcryptid/granule-extract/internal/observability"
	"github.com/gonum/floats"
)

// Header keys repeated at the top of every output unit.
const (
	KeyDatasetID       = "dataset_id"
	KeyGranuleFilename = "granule_filename"
)

// Skip reasons, also used as metric labels.
const (
	skipDimension  = "dimension"
	skipFiltered   = "filtered"
	skipNonNumeric = "non_numeric"
)

// Config holds the dataset conventions applied to every granule a Driver extracts.
type Config struct {
	DatasetID string
	Time      domain.TimeConvention
	// GranuleTime, when set, is stamped on every point instead of the time
	// derived from the file name.
	GranuleTime        string
	FixedLevel         float64
	NormalizeLongitude bool
}

// SinkFactory returns the unit sink for a granule, given its base file name.
type SinkFactory func(granule string) metwriter.UnitSink

// FileSinks writes units as .met files into dir.
func FileSinks(dir string) SinkFactory {
	return func(granule string) metwriter.UnitSink {
		return metwriter.FileSink{Dir: dir, Base: granule}
	}
}

// Request is one extraction run.
type Request struct {
	Path             string
	Variables        VariableFilter
	MaxPointsPerUnit int
}

// Result summarizes an extraction run. On failure it covers the work done
// before the failing variable.
type Result struct {
	Processed int
	Skipped   int
	Points    int
	Units     []metwriter.UnitSummary
}

// RunError aborts a run. Units sealed before the failure stay in place.
type RunError struct {
	Granule   string
	Variable  string // empty when the run failed before any variable
	Processed int
	Err       error
}

func (e *RunError) Error() string {
	if e.Variable == "" {
		return fmt.Sprintf("extract %s: %v", e.Granule, e.Err)
	}
	return fmt.Sprintf("extract %s: variable %q failed after %d variable(s) processed: %v",
		e.Granule, e.Variable, e.Processed, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

// Driver runs granule extractions: header once, then per variable
// resolve, extract, flatten and write.
type Driver struct {
	client   DumpToolClient
	sinks    SinkFactory
	cfg      Config
	notifier Notifier
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewDriver creates a Driver. notifier may be nil.
func NewDriver(client DumpToolClient, sinks SinkFactory, cfg Config, notifier Notifier, logger *slog.Logger, metrics *observability.Metrics) *Driver {
	return &Driver{
		client:   client,
		sinks:    sinks,
		cfg:      cfg,
		notifier: notifier,
		logger:   logger,
		metrics:  metrics,
	}
}

// Run extracts one granule. Any variable failure stops the run; the open unit
// is sealed and a *RunError names the variable.
func (d *Driver) Run(ctx context.Context, req Request) (Result, error) {
	start := domain.Now()
	d.metrics.ExtractionRunning.Set(1)
	defer d.metrics.ExtractionRunning.Set(0)
	defer func() { d.metrics.RunDuration.Observe(domain.Since(start).Seconds()) }()

	granule := filepath.Base(req.Path)
	logger := d.logger.With("granule", granule)

	fail := func(res Result, variable string, err error) (Result, error) {
		d.metrics.ExtractionFailures.WithLabelValues(errorKind(err)).Inc()
		return res, &RunError{Granule: granule, Variable: variable, Processed: res.Processed, Err: err}
	}

	granuleTime, err := d.granuleTime(req.Path)
	if err != nil {
		return fail(Result{}, "", err)
	}

	ext := NewExtractor(d.client, req.Path, logger, d.metrics)
	header, err := ext.DescribeHeader(ctx)
	if err != nil {
		return fail(Result{}, "", err)
	}
	d.warnMissing(logger, header, req.Variables)

	session := metwriter.NewSession(d.sinks(granule), metwriter.Options{
		MaxPointsPerUnit: req.MaxPointsPerUnit,
		Header: []metwriter.KeyValue{
			{Key: KeyDatasetID, Values: []string{d.cfg.DatasetID}},
			{Key: KeyGranuleFilename, Values: []string{granule}},
		},
		Logger:  logger,
		Metrics: d.metrics,
		OnSeal:  d.onSeal(ctx, logger, granule),
	})
	resolver := NewResolver(header, ext, logger)

	var res Result
	// abort seals the partial unit and reports the failing variable.
	abort := func(variable string, err error) (Result, error) {
		if closeErr := session.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
		res.Units = session.Units()
		logger.Error("extraction aborted",
			"variable", variable,
			"processed", res.Processed,
			"units_sealed", len(res.Units),
			"error", err,
		)
		return fail(res, variable, err)
	}

	logger.Info("extraction started",
		"variables", req.Variables.String(),
		"max_points_per_unit", req.MaxPointsPerUnit,
		"granule_time", granuleTime,
	)

	for _, v := range header.Variables {
		if reason, skip := skipReason(header, v, req.Variables); skip {
			res.Skipped++
			d.metrics.VariablesSkipped.WithLabelValues(reason).Inc()
			logger.Debug("variable skipped", "variable", v.Name, "reason", reason)
			continue
		}

		if err := ctx.Err(); err != nil {
			return abort(v.Name, err)
		}

		n, err := d.extractVariable(ctx, logger, resolver, ext, session, v, granuleTime)
		if err != nil {
			return abort(v.Name, err)
		}
		res.Processed++
		res.Points += n
		d.metrics.VariablesProcessed.Inc()
	}

	if err := session.Close(); err != nil {
		res.Units = session.Units()
		return fail(res, "", err)
	}
	res.Units = session.Units()

	logger.Info("extraction complete",
		"processed", res.Processed,
		"skipped", res.Skipped,
		"points", res.Points,
		"units", len(res.Units),
		"duration", domain.Since(start).String(),
	)
	return res, nil
}

func (d *Driver) extractVariable(ctx context.Context, logger *slog.Logger, resolver *Resolver, ext *Extractor, session *metwriter.Session, v domain.VariableDescriptor, granuleTime string) (int, error) {
	logger.Debug("processing variable", "variable", v.Name, "shape", v.ShapeString(), "type", v.Type)

	if n := len(v.Shape); n != 2 && n != 3 {
		return 0, &domain.UnsupportedDimensionalityError{Variable: v.Name, Dims: n}
	}

	meta, err := resolver.Describe(ctx, v)
	if err != nil {
		return 0, err
	}
	values, err := ext.Extract(ctx, v.Name)
	if err != nil {
		return 0, err
	}

	if err := session.BeginVariable(v); err != nil {
		return 0, err
	}
	grid := meta.Grid(granuleTime, d.cfg.FixedLevel, d.cfg.NormalizeLongitude)
	slices := 0
	err = domain.Flatten(values, grid, func(batch []domain.FlatPoint) error {
		slices++
		if len(batch) > 0 {
			logger.Debug("writing slice", "variable", v.Name, "level", batch[0].Level, "points", len(batch))
		}
		return session.Offer(batch)
	})
	if err != nil {
		return 0, err
	}
	if err := session.EndVariable(); err != nil {
		return 0, err
	}

	attrs := []any{"variable", v.Name, "points", meta.Points, "slices", slices}
	if lo, hi, ok := valueRange(values); ok {
		attrs = append(attrs, "min", lo, "max", hi)
	}
	logger.Info("variable extracted", attrs...)
	return meta.Points, nil
}

func (d *Driver) granuleTime(path string) (string, error) {
	if d.cfg.GranuleTime != "" {
		return d.cfg.GranuleTime, nil
	}
	return d.cfg.Time.GranuleTime(path)
}

func (d *Driver) onSeal(ctx context.Context, logger *slog.Logger, granule string) func(metwriter.UnitSummary) {
	if d.notifier == nil {
		return nil
	}
	return func(u metwriter.UnitSummary) {
		n := domain.UnitSealed{
			DatasetID: d.cfg.DatasetID,
			Granule:   granule,
			Unit:      u.Name,
			Index:     u.Index,
			Points:    u.Points,
			Variables: u.Variables,
			Overshoot: u.Overshoot,
			SealedAt:  u.SealedAt,
		}
		if err := d.notifier.NotifyUnitSealed(ctx, n); err != nil {
			d.metrics.NotificationErrors.Inc()
			logger.Error("unit notification failed", "unit", u.Name, "error", err)
			return
		}
		d.metrics.NotificationsPublished.Inc()
	}
}

func (d *Driver) warnMissing(logger *slog.Logger, h *domain.Header, f VariableFilter) {
	for _, name := range f.Names() {
		if _, ok := h.Variable(name); !ok {
			logger.Warn("requested variable not in granule", "variable", name)
		}
	}
}

// skipReason applies the skip rules in order: coordinate variables, the
// request filter, then non-numeric types.
func skipReason(h *domain.Header, v domain.VariableDescriptor, f VariableFilter) (string, bool) {
	switch {
	case h.IsDimensionVariable(v.Name):
		return skipDimension, true
	case !f.Includes(v.Name):
		return skipFiltered, true
	case !v.Numeric():
		return skipNonNumeric, true
	}
	return "", false
}

// valueRange returns the min and max of the finite, non-missing values.
func valueRange(values []float64) (lo, hi float64, ok bool) {
	valid := make([]float64, 0, len(values))
	for _, v := range values {
		if v == domain.MissingValue || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		valid = append(valid, v)
	}
	if len(valid) == 0 {
		return 0, 0, false
	}
	return floats.Min(valid), floats.Max(valid), true
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrMalformedHeader):
		return "malformed_header"
	case errors.Is(err, domain.ErrUnknownDimension):
		return "unknown_dimension"
	case errors.Is(err, domain.ErrUnsupportedDimensionality):
		return "unsupported_dimensionality"
	case errors.Is(err, domain.ErrExtractionIO):
		return "extraction_io"
	case errors.Is(err, domain.ErrGranuleTime):
		return "granule_time"
	default:
		return "other"
	}
}
