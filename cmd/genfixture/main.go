// Command genfixture writes a synthetic NetCDF classic granule shaped like a
// TRMM 3B42 daily product. The output feeds the native backend of metextract
// in demos and lets ncdump-based runs be checked without archive access.
//
// Usage:
//
//	go run ./cmd/genfixture \
//	  -out data/fixtures/3B42_daily.2009.01.15.7.nc \
//	  -lat 40 -lon 80 -levels 3
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/couchcryptid/granule-extract/internal/adapter/netcdf"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("genfixture", flag.ContinueOnError)
	out := fs.String("out", "", "output path of the granule (the file name carries the granule date)")
	opts := defaultFixtureOptions()
	fs.IntVar(&opts.Lats, "lat", opts.Lats, "number of latitude rows")
	fs.IntVar(&opts.Lons, "lon", opts.Lons, "number of longitude columns")
	fs.IntVar(&opts.Levels, "levels", opts.Levels, "number of vertical levels; 0 omits the 3-D variable")
	fs.IntVar(&opts.FillEvery, "fill-every", opts.FillEvery, "mark every n-th precipitation cell as missing; 0 disables")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *out == "" {
		fs.Usage()
		return fmt.Errorf("missing required flag: -out")
	}

	g, err := buildFixture(opts)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(*out); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	if err := netcdf.Write(*out, g); err != nil {
		return fmt.Errorf("writing %s: %w", *out, err)
	}

	log.Printf("wrote %s: %d x %d grid, %d level(s), %d variable(s)", *out, opts.Lats, opts.Lons, opts.Levels, len(g.Variables))
	return nil
}
