package netcdf

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ctessum/cdf"
)

// Attribute is a named attribute value. Value must be a string or a slice of
// uint8, int16, int32, float32 or float64.
type Attribute struct {
	Name  string
	Value interface{}
}

// Variable is one variable of a granule written by Write. Values has the same
// type rules as Attribute.Value and holds the data in row-major order.
type Variable struct {
	Name       string
	Dims       []string
	Values     interface{}
	Attributes []Attribute
}

// Granule describes a NetCDF classic file. A dimension of length 0 is the
// record dimension; its length follows from the data written.
type Granule struct {
	Dims       []string
	Lengths    []int
	Attributes []Attribute
	Variables  []Variable
}

// Write creates the file at path and writes g to it.
func Write(path string, g Granule) (err error) {
	h, err := define(g)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create granule: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	nc, err := cdf.Create(f, h)
	if err != nil {
		return fmt.Errorf("write netcdf header: %w", err)
	}

	records := false
	for _, v := range g.Variables {
		var end []int
		if h.IsRecordVariable(v.Name) {
			records = true
		} else {
			end = h.Lengths(v.Name)
		}
		w := nc.Writer(v.Name, make([]int, len(v.Dims)), end)
		if _, err := w.Write(v.Values); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("write variable %s: %w", v.Name, err)
		}
	}

	if records {
		if err := cdf.UpdateNumRecs(f); err != nil {
			return fmt.Errorf("update record count: %w", err)
		}
	}
	return nil
}

// define builds the immutable header. cdf panics on invalid definitions; the
// panic is turned into an error.
func define(g Granule) (h *cdf.Header, err error) {
	defer func() {
		if r := recover(); r != nil {
			h, err = nil, fmt.Errorf("define netcdf header: %v", r)
		}
	}()

	h = cdf.NewHeader(g.Dims, g.Lengths)
	for _, a := range g.Attributes {
		h.AddAttribute("", a.Name, a.Value)
	}
	for _, v := range g.Variables {
		h.AddVariable(v.Name, v.Dims, v.Values)
		for _, a := range v.Attributes {
			h.AddAttribute(v.Name, a.Name, a.Value)
		}
	}
	h.Define()
	if errs := h.Check(); len(errs) > 0 {
		return nil, fmt.Errorf("define netcdf header: %w", errors.Join(errs...))
	}
	return h, nil
}
