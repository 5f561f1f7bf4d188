package domain

import (
	"math"
	"strconv"
	"strings"
)

// FlatPoint is one grid cell of a variable tagged with its coordinates.
// Lat and Lon come from the outer and inner spatial dimensions; Level is the
// vertical coordinate of the slice (or the fixed level for 2-D variables).
type FlatPoint struct {
	Lat   float64
	Lon   float64
	Level float64
	Time  string
	Value float64
}

// Encode renders the point as "lat,lon,level,time,value".
func (p FlatPoint) Encode() string {
	var b strings.Builder
	b.Grow(48)
	b.WriteString(formatNumber(p.Lat))
	b.WriteByte(',')
	b.WriteString(formatNumber(p.Lon))
	b.WriteByte(',')
	b.WriteString(formatNumber(p.Level))
	b.WriteByte(',')
	b.WriteString(p.Time)
	b.WriteByte(',')
	b.WriteString(formatNumber(p.Value))
	return b.String()
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Grid describes how a variable's flat values map onto coordinates.
type Grid struct {
	Variable string
	Dims     []string             // shape, outermost first
	Coords   map[string][]float64 // resolved coordinates per dimension

	Time       string  // granule time stamped on every point
	FixedLevel float64 // level used for 2-D variables

	// NormalizeLongitude converts the innermost axis of 3-D variables from
	// 0..360 to -180..180 before flattening.
	NormalizeLongitude bool
}

// PointCount returns the product of the coordinate lengths of the grid's dimensions.
func (g Grid) PointCount() int {
	n := 1
	for _, d := range g.Dims {
		n *= len(g.Coords[d])
	}
	return n
}

// Flatten walks values in row-major order (last dimension fastest) and hands
// the resulting points to emit: once for a 2-D grid, once per level slice for a
// 3-D grid, in level order. Nothing is emitted if the grid is not 2 or 3
// dimensional or the value count does not match the grid.
func Flatten(values []float64, g Grid, emit func([]FlatPoint) error) error {
	switch len(g.Dims) {
	case 2, 3:
	default:
		return &UnsupportedDimensionalityError{Variable: g.Variable, Dims: len(g.Dims)}
	}

	for _, d := range g.Dims {
		if _, ok := g.Coords[d]; !ok {
			return &UnknownDimensionError{Variable: g.Variable, Dimension: d}
		}
	}

	if want := g.PointCount(); len(values) != want {
		return extractionErrorf(g.Variable, "got %d values, shape %q implies %d", len(values), strings.Join(g.Dims, " "), want)
	}

	if len(g.Dims) == 2 {
		lats := g.Coords[g.Dims[0]]
		lons := g.Coords[g.Dims[1]]
		return emit(flattenSlice(values, lats, lons, g.FixedLevel, g.Time))
	}

	levels := g.Coords[g.Dims[0]]
	lats := g.Coords[g.Dims[1]]
	lons := g.Coords[g.Dims[2]]
	if g.NormalizeLongitude {
		lons = NormalizeLongitudes(lons)
	}

	sliceLen := len(lats) * len(lons)
	for k, level := range levels {
		offset := k * sliceLen
		if err := emit(flattenSlice(values[offset:offset+sliceLen], lats, lons, level, g.Time)); err != nil {
			return err
		}
	}
	return nil
}

// flattenSlice converts one lat x lon slice. values must hold exactly
// len(lats)*len(lons) entries.
func flattenSlice(values, lats, lons []float64, level float64, t string) []FlatPoint {
	cols := len(lons)
	points := make([]FlatPoint, len(values))
	for i, v := range values {
		points[i] = FlatPoint{
			Lat:   lats[i/cols],
			Lon:   lons[i%cols],
			Level: level,
			Time:  t,
			Value: v,
		}
	}
	return points
}

// NormalizeLongitude maps a longitude above 180 into (-180, 180]. Values at or
// below 180 are returned unchanged, so applying it twice changes nothing.
func NormalizeLongitude(x float64) float64 {
	if x > 180 {
		return x - 360*math.Ceil((x-180)/360)
	}
	return x
}

// NormalizeLongitudes returns a normalized copy of lons.
func NormalizeLongitudes(lons []float64) []float64 {
	out := make([]float64, len(lons))
	for i, x := range lons {
		out[i] = NormalizeLongitude(x)
	}
	return out
}
