package pipeline_test

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/couchcryptid/granule-extract/internal/domain"
)

const testGranule = "/data/trmm/3B42_daily.2009.01.15.7.nc"

// fakeDumpTool serves canned header and data-section text.
type fakeDumpTool struct {
	mu        sync.Mutex
	header    string
	headerErr error
	data      map[string]string
	errs      map[string]error
	calls     map[string]int
}

func newFakeDumpTool(header string) *fakeDumpTool {
	return &fakeDumpTool{
		header: header,
		data:   make(map[string]string),
		errs:   make(map[string]error),
		calls:  make(map[string]int),
	}
}

// withValues registers the data section of name.
func (f *fakeDumpTool) withValues(name, values string) *fakeDumpTool {
	f.data[name] = dataSection(name, values)
	return f
}

func (f *fakeDumpTool) DescribeHeader(_ context.Context, _ string) ([]byte, error) {
	if f.headerErr != nil {
		return nil, f.headerErr
	}
	return []byte(f.header), nil
}

func (f *fakeDumpTool) ExtractRaw(_ context.Context, _ string, name string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
	if err, ok := f.errs[name]; ok {
		return nil, err
	}
	text, ok := f.data[name]
	if !ok {
		return nil, fmt.Errorf("ncdump: variable %q not found", name)
	}
	return []byte(text), nil
}

func (f *fakeDumpTool) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func dataSection(name, values string) string {
	return "netcdf granule {\ndimensions:\n\tlat = 2 ;\nvariables:\n\tfloat " + name + "(lat) ;\ndata:\n\n " +
		name + " = " + values + " ;\n}\n"
}

type ncmlVar struct {
	name, shape, typ string
}

// ncml renders a header with the given dimensions (name=length) and variables.
func ncml(dims []string, vars ...ncmlVar) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<netcdf xmlns="http://www.unidata.ucar.edu/namespaces/netcdf/ncml-2.2" location="file:3B42_daily.2009.01.15.7.nc">` + "\n")
	for _, d := range dims {
		name, length, _ := strings.Cut(d, "=")
		fmt.Fprintf(&b, "  <dimension name=%q length=%q />\n", name, length)
	}
	b.WriteString(`  <attribute name="title" type="String" value="TRMM 3B42 daily" />` + "\n")
	for _, v := range vars {
		fmt.Fprintf(&b, "  <variable name=%q shape=%q type=%q />\n", v.name, v.shape, v.typ)
	}
	b.WriteString("</netcdf>\n")
	return b.String()
}

// recordingNotifier keeps every notification.
type recordingNotifier struct {
	sealed []domain.UnitSealed
	err    error
}

func (r *recordingNotifier) NotifyUnitSealed(_ context.Context, n domain.UnitSealed) error {
	if r.err != nil {
		return r.err
	}
	r.sealed = append(r.sealed, n)
	return nil
}
