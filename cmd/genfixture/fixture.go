package main

import (
	"fmt"
	"math"

	"github.com/couchcryptid/granule-extract/internal/adapter/netcdf"
)

const fillValue = float32(-9999.9)

type fixtureOptions struct {
	Lats      int
	Lons      int
	Levels    int
	FillEvery int
}

func defaultFixtureOptions() fixtureOptions {
	return fixtureOptions{Lats: 20, Lons: 40, Levels: 0, FillEvery: 7}
}

// buildFixture lays out the granule: a 0.25 degree style grid covering
// 50S..50N and 0..360E, precipitation and relativeError on lat x lon, and
// an optional temperature cube on level x lat x lon.
func buildFixture(o fixtureOptions) (netcdf.Granule, error) {
	if o.Lats < 1 || o.Lons < 1 {
		return netcdf.Granule{}, fmt.Errorf("grid must have at least one row and column, got %d x %d", o.Lats, o.Lons)
	}
	if o.Levels < 0 || o.FillEvery < 0 {
		return netcdf.Granule{}, fmt.Errorf("levels and fill-every must not be negative")
	}

	lats := axis(o.Lats, -50, 50)
	lons := axis(o.Lons, 0, 360)

	cells := o.Lats * o.Lons
	precip := make([]float32, cells)
	relErr := make([]float32, cells)
	for i := range precip {
		if o.FillEvery > 0 && i%o.FillEvery == o.FillEvery-1 {
			precip[i] = fillValue
			relErr[i] = fillValue
			continue
		}
		lat := float64(lats[i/o.Lons])
		lon := float64(lons[i%o.Lons])
		rain := 10 * math.Cos(lat*math.Pi/180) * (1 + math.Sin(lon*math.Pi/90))
		precip[i] = float32(math.Round(rain*100) / 100)
		relErr[i] = float32(math.Round(rain*10) / 100)
	}

	g := netcdf.Granule{
		Dims:    []string{"latitude", "longitude"},
		Lengths: []int{o.Lats, o.Lons},
		Attributes: []netcdf.Attribute{
			{Name: "title", Value: "synthetic TRMM 3B42 daily accumulation"},
			{Name: "source", Value: "genfixture"},
		},
		Variables: []netcdf.Variable{
			{Name: "latitude", Dims: []string{"latitude"}, Values: lats, Attributes: []netcdf.Attribute{
				{Name: "units", Value: "degrees_north"},
			}},
			{Name: "longitude", Dims: []string{"longitude"}, Values: lons, Attributes: []netcdf.Attribute{
				{Name: "units", Value: "degrees_east"},
			}},
			{Name: "precipitation", Dims: []string{"latitude", "longitude"}, Values: precip, Attributes: []netcdf.Attribute{
				{Name: "units", Value: "mm"},
				{Name: "_FillValue", Value: []float32{fillValue}},
			}},
			{Name: "relativeError", Dims: []string{"latitude", "longitude"}, Values: relErr, Attributes: []netcdf.Attribute{
				{Name: "units", Value: "mm"},
				{Name: "_FillValue", Value: []float32{fillValue}},
			}},
		},
	}

	if o.Levels > 0 {
		g.Dims = append(g.Dims, "level")
		g.Lengths = append(g.Lengths, o.Levels)

		levels := make([]float32, o.Levels)
		for k := range levels {
			levels[k] = float32(1000 - 100*k)
		}
		temp := make([]float32, o.Levels*cells)
		for k := 0; k < o.Levels; k++ {
			for i := 0; i < cells; i++ {
				lat := float64(lats[i/o.Lons])
				temp[k*cells+i] = float32(math.Round((300-0.4*math.Abs(lat)-6.5*float64(k))*10) / 10)
			}
		}
		g.Variables = append(g.Variables,
			netcdf.Variable{Name: "level", Dims: []string{"level"}, Values: levels, Attributes: []netcdf.Attribute{
				{Name: "units", Value: "hPa"},
			}},
			netcdf.Variable{Name: "temperature", Dims: []string{"level", "latitude", "longitude"}, Values: temp, Attributes: []netcdf.Attribute{
				{Name: "units", Value: "K"},
			}},
		)
	}
	return g, nil
}

// axis returns n cell centres spread evenly over [lo, hi).
func axis(n int, lo, hi float64) []float32 {
	step := (hi - lo) / float64(n)
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(lo + step*(float64(i)+0.5))
	}
	return out
}
