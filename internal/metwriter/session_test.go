package metwriter_test

import (
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/couchcryptid/granule-extract/internal/domain"
	"github.com/couchcryptid/granule-extract/internal/metwriter"
	"github.com/couchcryptid/granule-extract/internal/observability"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testHeader = []metwriter.KeyValue{
	{Key: "dataset_id", Values: []string{"3B42_daily"}},
	{Key: "granule_filename", Values: []string{"3B42_daily.2009.01.15.7.nc"}},
}

var precip = domain.VariableDescriptor{Name: "precipitation", Shape: []string{"lat", "lon"}, Type: "float"}

func points(n int, level float64) []domain.FlatPoint {
	out := make([]domain.FlatPoint, n)
	for i := range out {
		out[i] = domain.FlatPoint{Lat: 10, Lon: float64(i), Level: level, Time: "20090115T0000Z", Value: float64(i)}
	}
	return out
}

func newSession(sink metwriter.UnitSink, maxPoints int, m *observability.Metrics) *metwriter.Session {
	return metwriter.NewSession(sink, metwriter.Options{
		MaxPointsPerUnit: maxPoints,
		Header:           testHeader,
		Logger:           slog.Default(),
		Metrics:          m,
	})
}

func writeVariable(t *testing.T, s *metwriter.Session, v domain.VariableDescriptor, batches ...[]domain.FlatPoint) {
	t.Helper()
	require.NoError(t, s.BeginVariable(v))
	for _, b := range batches {
		require.NoError(t, s.Offer(b))
	}
	require.NoError(t, s.EndVariable())
}

func TestSession_UnlimitedSingleUnit(t *testing.T) {
	sink := &metwriter.MemorySink{}
	s := newSession(sink, 0, observability.NewMetricsForTesting())

	temp := domain.VariableDescriptor{Name: "temp", Shape: []string{"level", "lat", "lon"}, Type: "double"}
	writeVariable(t, s, precip, points(1000, 0))
	writeVariable(t, s, temp, points(500, 850), points(500, 500))
	require.NoError(t, s.Close())

	require.Len(t, sink.Units, 1)
	unit := sink.Units[0]
	assert.True(t, unit.Sealed)
	assert.Equal(t, []string{
		"dataset_id", "granule_filename",
		"param_precipitation", "data_precipitation",
		"param_temp", "data_temp",
	}, unit.KeyNames())

	param, ok := unit.Key("param_temp")
	require.True(t, ok)
	assert.Equal(t, []string{"temp", "level lat lon", "double"}, param)

	data, _ := unit.Key("data_temp")
	assert.Len(t, data, 1000)
	assert.Equal(t, "10,0,850,20090115T0000Z,0", data[0])
	assert.Equal(t, "10,499,500,20090115T0000Z,499", data[999])
}

func TestSession_RolloverReemitsHeaderAndVariableKeys(t *testing.T) {
	sink := &metwriter.MemorySink{}
	m := observability.NewMetricsForTesting()
	s := newSession(sink, 4, m)

	writeVariable(t, s, precip, points(3, 0), points(3, 1))
	require.NoError(t, s.Close())

	require.Len(t, sink.Units, 2)
	for _, unit := range sink.Units {
		assert.Equal(t, []string{"dataset_id", "granule_filename", "param_precipitation", "data_precipitation"}, unit.KeyNames())
		data, _ := unit.Key("data_precipitation")
		assert.Len(t, data, 3)
		assert.True(t, unit.Sealed)
	}

	units := s.Units()
	require.Len(t, units, 2)
	assert.Equal(t, 0, units[0].Index)
	assert.Equal(t, 1, units[1].Index)
	assert.Equal(t, 3, units[0].Points)
	assert.False(t, units[0].Overshoot)
	assert.Equal(t, float64(2), testutil.ToFloat64(m.UnitsSealed))
	assert.Equal(t, float64(6), testutil.ToFloat64(m.PointsWritten))
}

func TestSession_BatchFillingUnitExactlyDoesNotRoll(t *testing.T) {
	sink := &metwriter.MemorySink{}
	s := newSession(sink, 6, observability.NewMetricsForTesting())

	writeVariable(t, s, precip, points(3, 0), points(3, 1))
	assert.Equal(t, 6, s.PointsInCurrentUnit())
	require.NoError(t, s.Close())
	assert.Len(t, sink.Units, 1)
}

func TestSession_NeverExceedsBudgetAcrossUnits(t *testing.T) {
	sink := &metwriter.MemorySink{}
	s := newSession(sink, 10, observability.NewMetricsForTesting())

	sizes := []int{4, 4, 4, 7, 3, 1, 9, 2}
	require.NoError(t, s.BeginVariable(precip))
	for _, n := range sizes {
		require.NoError(t, s.Offer(points(n, 0)))
		assert.LessOrEqual(t, s.PointsInCurrentUnit(), 10)
	}
	require.NoError(t, s.EndVariable())
	require.NoError(t, s.Close())

	total := 0
	for _, u := range s.Units() {
		assert.LessOrEqual(t, u.Points, 10)
		total += u.Points
	}
	assert.Equal(t, 34, total)
}

func TestSession_OversizedBatchWrittenWholeAndFlagged(t *testing.T) {
	sink := &metwriter.MemorySink{}
	m := observability.NewMetricsForTesting()
	s := newSession(sink, 2, m)

	writeVariable(t, s, precip, points(5, 0))
	require.NoError(t, s.Close())

	require.Len(t, sink.Units, 1)
	data, _ := sink.Units[0].Key("data_precipitation")
	assert.Len(t, data, 5)

	units := s.Units()
	require.Len(t, units, 1)
	assert.True(t, units[0].Overshoot)
	assert.Equal(t, 5, units[0].Points)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.UnitOvershoots))
}

func TestSession_OversizedBatchAfterPointsStartsNewUnit(t *testing.T) {
	sink := &metwriter.MemorySink{}
	s := newSession(sink, 4, observability.NewMetricsForTesting())

	writeVariable(t, s, precip, points(2, 0), points(9, 1))
	require.NoError(t, s.Close())

	units := s.Units()
	require.Len(t, units, 2)
	assert.Equal(t, 2, units[0].Points)
	assert.False(t, units[0].Overshoot)
	assert.Equal(t, 9, units[1].Points)
	assert.True(t, units[1].Overshoot)
}

func TestSession_RolloverBetweenVariables(t *testing.T) {
	sink := &metwriter.MemorySink{}
	s := newSession(sink, 5, observability.NewMetricsForTesting())

	other := domain.VariableDescriptor{Name: "error", Shape: []string{"lat", "lon"}, Type: "float"}
	writeVariable(t, s, precip, points(4, 0))
	writeVariable(t, s, other, points(4, 0))
	require.NoError(t, s.Close())

	require.Len(t, sink.Units, 2)
	assert.Equal(t, []string{"dataset_id", "granule_filename", "param_precipitation", "data_precipitation"}, sink.Units[0].KeyNames())
	assert.Equal(t, []string{"dataset_id", "granule_filename", "param_error", "data_error"}, sink.Units[1].KeyNames())
	assert.Equal(t, []string{"precipitation"}, s.Units()[0].Variables)
	assert.Equal(t, []string{"error"}, s.Units()[1].Variables)
}

func TestSession_VariableWithoutPoints(t *testing.T) {
	sink := &metwriter.MemorySink{}
	s := newSession(sink, 0, observability.NewMetricsForTesting())

	writeVariable(t, s, precip)
	require.NoError(t, s.Close())

	require.Len(t, sink.Units, 1)
	data, ok := sink.Units[0].Key("data_precipitation")
	require.True(t, ok)
	assert.Empty(t, data)
}

func TestSession_CloseWithoutVariablesWritesHeader(t *testing.T) {
	sink := &metwriter.MemorySink{}
	s := newSession(sink, 0, observability.NewMetricsForTesting())

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	require.Len(t, sink.Units, 1)
	assert.Equal(t, []string{"dataset_id", "granule_filename"}, sink.Units[0].KeyNames())
	assert.Len(t, s.Units(), 1)
}

func TestSession_CloseMidVariableSealsPartialUnit(t *testing.T) {
	sink := &metwriter.MemorySink{}
	s := newSession(sink, 0, observability.NewMetricsForTesting())

	require.NoError(t, s.BeginVariable(precip))
	require.NoError(t, s.Offer(points(3, 0)))
	require.NoError(t, s.Close())

	require.Len(t, sink.Units, 1)
	assert.True(t, sink.Units[0].Sealed)
	assert.Equal(t, 3, s.Units()[0].Points)
}

func TestSession_UseAfterClose(t *testing.T) {
	s := newSession(&metwriter.MemorySink{}, 0, observability.NewMetricsForTesting())
	require.NoError(t, s.Close())

	require.Error(t, s.BeginVariable(precip))
	require.Error(t, s.Offer(points(1, 0)))
}

func TestSession_OfferWithoutVariable(t *testing.T) {
	s := newSession(&metwriter.MemorySink{}, 0, observability.NewMetricsForTesting())
	require.Error(t, s.Offer(points(1, 0)))
}

func TestSession_BeginWhileOpen(t *testing.T) {
	s := newSession(&metwriter.MemorySink{}, 0, observability.NewMetricsForTesting())
	require.NoError(t, s.BeginVariable(precip))
	err := s.BeginVariable(precip)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "precipitation")
}

func TestSession_OnSealReportsSummaries(t *testing.T) {
	clk := clockwork.NewFakeClockAt(time.Date(2009, 1, 15, 12, 0, 0, 0, time.UTC))
	domain.SetClock(clk)
	t.Cleanup(func() { domain.SetClock(nil) })

	var sealed []metwriter.UnitSummary
	s := metwriter.NewSession(&metwriter.MemorySink{}, metwriter.Options{
		MaxPointsPerUnit: 3,
		Header:           testHeader,
		Metrics:          observability.NewMetricsForTesting(),
		OnSeal:           func(u metwriter.UnitSummary) { sealed = append(sealed, u) },
	})

	writeVariable(t, s, precip, points(3, 0), points(3, 1), points(1, 2))
	require.NoError(t, s.Close())

	require.Len(t, sealed, 3)
	assert.Equal(t, "unit-2", sealed[2].Name)
	assert.Equal(t, 1, sealed[2].Points)
	assert.Equal(t, clk.Now(), sealed[0].SealedAt)
}

type failingSink struct{ err error }

func (f failingSink) OpenUnit(int) (metwriter.UnitEncoder, error) { return nil, f.err }

func TestSession_OpenUnitFailure(t *testing.T) {
	boom := errors.New("disk full")
	s := newSession(failingSink{err: boom}, 0, observability.NewMetricsForTesting())

	require.NoError(t, s.BeginVariable(precip))
	err := s.Offer(points(1, 0))
	require.ErrorIs(t, err, boom)
}

func TestSession_DefaultsWithoutLoggerOrMetrics(t *testing.T) {
	sink := &metwriter.MemorySink{}
	s := metwriter.NewSession(sink, metwriter.Options{MaxPointsPerUnit: 2, Header: testHeader})

	writeVariable(t, s, precip, points(3, 0))
	require.NoError(t, s.Close())

	require.Len(t, sink.Units, 1)
	assert.True(t, s.Units()[0].Overshoot)
}

func TestSession_RerunRemovesStaleUnits(t *testing.T) {
	sink := metwriter.FileSink{Dir: t.TempDir(), Base: "g.nc"}

	first := newSession(sink, 2, observability.NewMetricsForTesting())
	writeVariable(t, first, precip, points(2, 0), points(2, 0), points(2, 0))
	require.NoError(t, first.Close())

	paths, err := sink.UnitPaths()
	require.NoError(t, err)
	require.Len(t, paths, 3)

	second := newSession(sink, 0, observability.NewMetricsForTesting())
	writeVariable(t, second, precip, points(2, 0), points(2, 0), points(2, 0))
	require.NoError(t, second.Close())

	paths, err = sink.UnitPaths()
	require.NoError(t, err)
	assert.Equal(t, []string{sink.UnitPath(0)}, paths)
	_, err = os.Stat(sink.UnitPath(2))
	assert.ErrorIs(t, err, os.ErrNotExist)

	keys, err := metwriter.ReadUnitFile(sink.UnitPath(0))
	require.NoError(t, err)
	require.Len(t, keys, 4)
	assert.Len(t, keys[3].Values, 6)
}
