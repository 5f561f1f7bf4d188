package pipeline_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/couchcryptid/granule-extract/internal/domain"
	"github.com/couchcryptid/granule-extract/internal/observability"
	"github.com/couchcryptid/granule-extract/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newResolver(t *testing.T, client *fakeDumpTool) *pipeline.Resolver {
	t.Helper()
	ext := pipeline.NewExtractor(client, testGranule, slog.Default(), observability.NewMetricsForTesting())
	h, err := ext.DescribeHeader(context.Background())
	require.NoError(t, err)
	return pipeline.NewResolver(h, ext, slog.Default())
}

func TestResolver_CachesSharedDimensions(t *testing.T) {
	client := gridGranule()
	r := newResolver(t, client)

	for range 3 {
		coords, err := r.Resolve(context.Background(), []string{"lat", "lon"})
		require.NoError(t, err)
		assert.Equal(t, []float64{10, 20}, coords["lat"])
		assert.Equal(t, []float64{100, 200, 300}, coords["lon"])
	}
	assert.Equal(t, 1, client.callCount("lat"))
	assert.Equal(t, 1, client.callCount("lon"))
}

func TestResolver_IndexCoordinatesWithoutCoordinateVariable(t *testing.T) {
	header := ncml([]string{"row=3", "col=2"}, ncmlVar{"field", "row col", "short"})
	client := newFakeDumpTool(header)
	r := newResolver(t, client)

	coords, err := r.Resolve(context.Background(), []string{"row", "col"})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 2}, coords["row"])
	assert.Equal(t, []float64{0, 1}, coords["col"])
	assert.Zero(t, client.callCount("row"))
}

func TestResolver_LengthMismatch(t *testing.T) {
	client := gridGranule().withValues("lon", "100, 200")
	r := newResolver(t, client)

	_, err := r.Resolve(context.Background(), []string{"lat", "lon"})
	require.ErrorIs(t, err, domain.ErrExtractionIO)
	assert.Contains(t, err.Error(), "resolved 2 coordinates, dimension declares 3")
}

func TestResolver_UnknownDimension(t *testing.T) {
	r := newResolver(t, gridGranule())

	_, err := r.Resolve(context.Background(), []string{"lat", "depth"})
	require.ErrorIs(t, err, domain.ErrUnknownDimension)
}

func TestResolver_Describe(t *testing.T) {
	r := newResolver(t, gridGranule())
	v := domain.VariableDescriptor{Name: "precipitation", Shape: []string{"lat", "lon"}, Type: "float"}

	meta, err := r.Describe(context.Background(), v)
	require.NoError(t, err)
	assert.Equal(t, "precipitation", meta.Variable)
	assert.Equal(t, "float", meta.Type)
	assert.Equal(t, "lat lon", meta.Shape)
	assert.Equal(t, 6, meta.Points)
	assert.Len(t, meta.Coords, 2)
}

func TestExtractor_MissingTokens(t *testing.T) {
	client := newFakeDumpTool("").withValues("precipitation", "1.5, _, -3, _")
	ext := pipeline.NewExtractor(client, testGranule, slog.Default(), observability.NewMetricsForTesting())

	values, err := ext.Extract(context.Background(), "precipitation")
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5, -9999, -3, -9999}, values)
}
