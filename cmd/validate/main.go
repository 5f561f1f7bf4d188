// Command validate checks the .met units written for one granule: every unit
// parses, carries the granule header first, pairs each param_<name> key with
// its data_<name> key, encodes points as lat,lon,level,time,value and, when a
// point budget is given, stays within it.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -dir out \
//	  -granule 3B42_daily.2009.01.15.7.nc \
//	  -max 50000
package main

import (
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/granule-extract/internal/metwriter"
	"github.com/couchcryptid/granule-extract/internal/pipeline"
	"github.com/spf13/cast"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// unit is one decoded .met file.
type unit struct {
	name string
	keys []metwriter.KeyValue
}

func main() {
	dir := flag.String("dir", ".", "directory holding the .met units")
	granule := flag.String("granule", "", "granule file name the units were written for")
	maxPoints := flag.Int("max", 0, "point budget per unit; 0 skips the budget check")
	flag.Parse()

	if *granule == "" {
		flag.Usage()
		os.Exit(1)
	}

	os.Exit(run(os.Stdout, *dir, filepath.Base(*granule), *maxPoints))
}

func run(w io.Writer, dir, granule string, maxPoints int) int {
	fmt.Fprintln(w, "=== Metadata Unit Validation ===")
	fmt.Fprintln(w)

	paths, err := metwriter.FileSink{Dir: dir, Base: granule}.UnitPaths()
	if err != nil {
		fmt.Fprintf(w, "FATAL: list units of %s: %v\n", granule, err)
		return 1
	}

	units := make([]unit, 0, len(paths))
	for _, p := range paths {
		keys, err := metwriter.ReadUnitFile(p)
		if err != nil {
			fmt.Fprintf(w, "FATAL: %s: %v\n", filepath.Base(p), err)
			return 1
		}
		units = append(units, unit{name: filepath.Base(p), keys: keys})
	}

	phases := []*phase{
		validateHeader(units, granule),
		validatePairing(units),
		validatePoints(units),
		validateBudget(units, maxPoints),
	}

	fmt.Fprintln(w)
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(w, "  %-42s %s\n", p.name, status)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Units: %d, points: %d\n", len(units), totalPoints(units))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(w, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			if i >= 20 {
				fmt.Fprintf(w, "  ... and %d more\n", len(p.errors)-20)
				break
			}
			fmt.Fprintf(w, "  %s\n", e)
		}
	}

	if !allPassed {
		return 1
	}
	fmt.Fprintln(w, "\nAll checks passed.")
	return 0
}

// validateHeader checks that every unit opens with the same dataset_id and
// granule_filename keys and that the file name matches the granule.
func validateHeader(units []unit, granule string) *phase {
	p := &phase{name: "Header keys"}
	var dataset string
	for i, u := range units {
		if len(u.keys) < 2 {
			p.errorf("%s: %d key(s), want at least the two header keys", u.name, len(u.keys))
			continue
		}
		id, file := u.keys[0], u.keys[1]
		if id.Key != pipeline.KeyDatasetID || len(id.Values) != 1 {
			p.errorf("%s: first key is %q with %d value(s), want a single %s", u.name, id.Key, len(id.Values), pipeline.KeyDatasetID)
		} else if i == 0 {
			dataset = id.Values[0]
		} else if id.Values[0] != dataset {
			p.errorf("%s: dataset_id %q differs from first unit's %q", u.name, id.Values[0], dataset)
		}
		if file.Key != pipeline.KeyGranuleFilename || len(file.Values) != 1 || file.Values[0] != granule {
			p.errorf("%s: second key is %q=%v, want %s=%q", u.name, file.Key, file.Values, pipeline.KeyGranuleFilename, granule)
		}
	}
	return p
}

// validatePairing checks that each data_<name> key directly follows its
// param_<name> key and that a variable appears once per unit.
func validatePairing(units []unit) *phase {
	p := &phase{name: "Parameter/data pairing"}
	for _, u := range units {
		seen := make(map[string]bool)
		body := bodyKeys(u)
		for i := 0; i < len(body); i++ {
			k := body[i]
			name, ok := strings.CutPrefix(k.Key, "param_")
			if !ok {
				p.errorf("%s: key %q is not preceded by a param key", u.name, k.Key)
				continue
			}
			if seen[name] {
				p.errorf("%s: variable %q appears twice", u.name, name)
			}
			seen[name] = true
			if len(k.Values) != 3 || k.Values[0] != name {
				p.errorf("%s: %s has values %v, want name, shape and type", u.name, k.Key, k.Values)
			}
			if i+1 >= len(body) || body[i+1].Key != metwriter.DataKey(name) {
				p.errorf("%s: %s is not followed by %s", u.name, k.Key, metwriter.DataKey(name))
				continue
			}
			i++
		}
	}
	return p
}

// validatePoints checks the lat,lon,level,time,value encoding of every point.
func validatePoints(units []unit) *phase {
	p := &phase{name: "Point encoding"}
	for _, u := range units {
		for _, k := range dataKeys(u) {
			for j, v := range k.Values {
				if err := checkPoint(v); err != nil {
					p.errorf("%s: %s[%d] %q: %v", u.name, k.Key, j, v, err)
				}
			}
		}
	}
	return p
}

func checkPoint(v string) error {
	fields := strings.Split(v, ",")
	if len(fields) != 5 {
		return fmt.Errorf("%d fields, want 5", len(fields))
	}
	nums := make([]float64, 0, 4)
	for _, i := range []int{0, 1, 2, 4} {
		f, err := cast.ToFloat64E(fields[i])
		if err != nil {
			return fmt.Errorf("field %d: %w", i+1, err)
		}
		nums = append(nums, f)
	}
	if fields[3] == "" {
		return fmt.Errorf("empty time")
	}
	if lat := nums[0]; !math.IsNaN(lat) && math.Abs(lat) > 90 {
		return fmt.Errorf("latitude %g out of range", lat)
	}
	if lon := nums[1]; lon < -180 || lon > 360 {
		return fmt.Errorf("longitude %g out of range", lon)
	}
	return nil
}

// validateBudget checks the point count of every unit against max. A unit may
// exceed the budget only when it holds a single batch, which shows up as
// exactly one data key.
func validateBudget(units []unit, max int) *phase {
	p := &phase{name: "Point budget"}
	if max <= 0 {
		return p
	}
	for i, u := range units {
		n := unitPoints(u)
		data := dataKeys(u)
		if n > max && len(data) != 1 {
			p.errorf("%s: %d points across %d variables exceeds budget %d", u.name, n, len(data), max)
		}
		if n == 0 && i < len(units)-1 {
			p.errorf("%s: empty unit before the last one", u.name)
		}
	}
	return p
}

func bodyKeys(u unit) []metwriter.KeyValue {
	if len(u.keys) < 2 {
		return nil
	}
	return u.keys[2:]
}

func dataKeys(u unit) []metwriter.KeyValue {
	var out []metwriter.KeyValue
	for _, k := range bodyKeys(u) {
		if strings.HasPrefix(k.Key, "data_") {
			out = append(out, k)
		}
	}
	return out
}

func unitPoints(u unit) int {
	n := 0
	for _, k := range dataKeys(u) {
		n += len(k.Values)
	}
	return n
}

func totalPoints(units []unit) int {
	n := 0
	for _, u := range units {
		n += unitPoints(u)
	}
	return n
}
