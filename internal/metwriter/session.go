package metwriter

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/granule-extract/internal/domain"
	"github.com/couchcryptid/granule-extract/internal/observability"
)

// Options configures a Session.
type Options struct {
	// MaxPointsPerUnit bounds the points per unit. 0 means unlimited.
	MaxPointsPerUnit int
	// Header keys are written at the top of every unit.
	Header  []KeyValue
	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// Metrics defaults to observability.NewUnregisteredMetrics(): recorded,
	// never exported.
	Metrics *observability.Metrics
	// OnSeal, if set, is called after each unit is sealed.
	OnSeal func(UnitSummary)
}

// Session is the running state of one extraction: the open unit and the
// number of points written to it. Point batches are appended whole; a new
// unit is started before a batch that would overflow a non-empty unit.
type Session struct {
	sink UnitSink
	opts Options

	unit      UnitEncoder
	index     int
	points    int
	variables []string
	overshoot bool

	// variable in progress and whether its keys are open in the current unit
	current    *domain.VariableDescriptor
	keysOpened bool

	units  []UnitSummary
	closed bool
}

var errSessionClosed = errors.New("metwriter: session closed")

// NewSession creates a session writing units to sink.
func NewSession(sink UnitSink, opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = observability.NewUnregisteredMetrics()
	}
	if opts.MaxPointsPerUnit < 0 {
		opts.MaxPointsPerUnit = 0
	}
	return &Session{sink: sink, opts: opts}
}

// PointsInCurrentUnit returns the points written to the open unit.
func (s *Session) PointsInCurrentUnit() int { return s.points }

// Units returns the summaries of all sealed units in order.
func (s *Session) Units() []UnitSummary { return s.units }

// BeginVariable starts the variable whose point batches follow. Its keys are
// written with its first batch, so a unit never ends with an empty data key
// left behind by a rollover.
func (s *Session) BeginVariable(v domain.VariableDescriptor) error {
	if s.closed {
		return errSessionClosed
	}
	if s.current != nil {
		return fmt.Errorf("metwriter: begin %q while %q is open", v.Name, s.current.Name)
	}
	s.current = &v
	s.keysOpened = false
	return nil
}

// Offer appends one batch of points for the current variable.
func (s *Session) Offer(points []domain.FlatPoint) error {
	if s.closed {
		return errSessionClosed
	}
	if s.current == nil {
		return errors.New("metwriter: offer without a variable")
	}

	n := len(points)
	limit := s.opts.MaxPointsPerUnit
	if limit > 0 && s.points > 0 && s.points+n > limit {
		s.opts.Logger.Debug("max points per unit reached, starting new unit",
			"max_points_per_unit", limit,
			"unit", s.unitName(),
			"points", s.points,
			"next_batch", n,
		)
		if err := s.rollover(); err != nil {
			return err
		}
	}

	if err := s.openVariableKeys(); err != nil {
		return err
	}

	values := make([]string, n)
	for i := range points {
		values[i] = points[i].Encode()
	}
	if err := s.unit.WriteValues(values...); err != nil {
		return fmt.Errorf("write %s: %w", DataKey(s.current.Name), err)
	}
	s.points += n
	s.opts.Metrics.PointsWritten.Add(float64(n))

	if limit > 0 && n > limit {
		s.overshoot = true
		s.opts.Metrics.UnitOvershoots.Inc()
		s.opts.Logger.Warn("point batch exceeds max points per unit, written whole",
			"variable", s.current.Name,
			"unit", s.unitName(),
			"batch", n,
			"max_points_per_unit", limit,
		)
	}
	return nil
}

// EndVariable closes the data key of the current variable.
func (s *Session) EndVariable() error {
	if s.closed {
		return errSessionClosed
	}
	if s.current == nil {
		return nil
	}
	// A variable without points still gets its definition and an empty data key.
	if err := s.openVariableKeys(); err != nil {
		return err
	}
	if err := s.unit.CloseKey(); err != nil {
		return fmt.Errorf("close %s: %w", DataKey(s.current.Name), err)
	}
	s.current = nil
	s.keysOpened = false
	return nil
}

// Close seals the open unit. A session that never wrote a variable still
// produces one unit holding the header keys. Close is idempotent.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	defer func() { s.closed = true }()

	if err := s.ensureUnit(); err != nil {
		return err
	}
	if s.current != nil && s.keysOpened {
		if err := s.unit.CloseKey(); err != nil {
			return err
		}
	}
	s.current = nil
	return s.seal()
}

func (s *Session) rollover() error {
	if s.keysOpened {
		if err := s.unit.CloseKey(); err != nil {
			return err
		}
		s.keysOpened = false
	}
	if err := s.seal(); err != nil {
		return err
	}
	s.index++
	return s.ensureUnit()
}

func (s *Session) ensureUnit() error {
	if s.unit != nil {
		return nil
	}
	unit, err := s.sink.OpenUnit(s.index)
	if err != nil {
		return fmt.Errorf("open unit %d: %w", s.index, err)
	}
	s.unit = unit
	s.points = 0
	s.variables = nil
	s.overshoot = false

	for _, kv := range s.opts.Header {
		if err := unit.WriteKey(kv.Key, kv.Values...); err != nil {
			return fmt.Errorf("write header key %s: %w", kv.Key, err)
		}
	}
	return nil
}

// openVariableKeys writes param_<name> and opens data_<name> in the current
// unit unless that already happened.
func (s *Session) openVariableKeys() error {
	if s.keysOpened {
		return nil
	}
	if err := s.ensureUnit(); err != nil {
		return err
	}
	v := s.current
	if err := s.unit.WriteKey(ParamKey(v.Name), v.Name, v.ShapeString(), v.Type); err != nil {
		return fmt.Errorf("write %s: %w", ParamKey(v.Name), err)
	}
	if err := s.unit.OpenKey(DataKey(v.Name)); err != nil {
		return fmt.Errorf("open %s: %w", DataKey(v.Name), err)
	}
	s.keysOpened = true
	s.variables = append(s.variables, v.Name)
	return nil
}

func (s *Session) seal() error {
	if s.unit == nil {
		return nil
	}
	summary := UnitSummary{
		Index:     s.index,
		Name:      s.unit.Name(),
		Points:    s.points,
		Variables: s.variables,
		Overshoot: s.overshoot,
	}
	if err := s.unit.Seal(); err != nil {
		return fmt.Errorf("seal unit %s: %w", summary.Name, err)
	}
	summary.SealedAt = domain.Now()
	s.unit = nil
	s.units = append(s.units, summary)
	s.opts.Metrics.UnitsSealed.Inc()
	s.opts.Logger.Info("unit sealed", "unit", summary.Name, "points", summary.Points, "variables", len(summary.Variables))

	if s.opts.OnSeal != nil {
		s.opts.OnSeal(summary)
	}
	return nil
}

func (s *Session) unitName() string {
	if s.unit == nil {
		return ""
	}
	return s.unit.Name()
}
