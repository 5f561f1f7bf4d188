// Package netcdf reads NetCDF classic (CDF-1 and CDF-2) granules in process
// and renders them in the same text forms ncdump produces, so granules can be
// extracted on hosts without the netCDF tools installed.
package netcdf

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/couchcryptid/granule-extract/internal/domain"
	"github.com/ctessum/cdf"
)

const ncmlNamespace = "http://www.unidata.ucar.edu/namespaces/netcdf/ncml-2.2"

// Client implements pipeline.DumpToolClient over local NetCDF classic files.
type Client struct{}

// New creates a Client.
func New() *Client { return &Client{} }

// DescribeHeader renders the granule's header as NcML.
func (c *Client) DescribeHeader(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g, err := open(path)
	if err != nil {
		return nil, err
	}
	defer g.close()
	return g.ncml()
}

// ExtractRaw renders the data section of one variable as CDL.
func (c *Client) ExtractRaw(ctx context.Context, path, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g, err := open(path)
	if err != nil {
		return nil, err
	}
	defer g.close()

	tokens, err := g.read(name)
	if err != nil {
		return nil, &domain.ExtractionIOError{Name: name, Reason: "read variable", Err: err}
	}

	var b bytes.Buffer
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	fmt.Fprintf(&b, "netcdf %s {\ndata:\n\n %s = ", domain.EscapeCDLName(base), domain.EscapeCDLName(name))
	for i, tok := range tokens {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(tok)
	}
	b.WriteString(" ;\n}\n")
	return b.Bytes(), nil
}

type granule struct {
	path    string
	file    *os.File
	nc      *cdf.File
	numRecs int
}

func open(path string) (*granule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open granule: %w", err)
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat granule: %w", err)
	}
	nc, err := cdf.Open(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("read netcdf header of %s: %w", filepath.Base(path), err)
	}
	if errs := nc.Header.Check(); len(errs) > 0 {
		_ = f.Close()
		return nil, fmt.Errorf("invalid netcdf header of %s: %v", filepath.Base(path), errs[0])
	}
	return &granule{
		path:    path,
		file:    f,
		nc:      nc,
		numRecs: int(nc.Header.NumRecs(st.Size())),
	}, nil
}

func (g *granule) close() { _ = g.file.Close() }

// lengths returns the dimension lengths of v with the record dimension
// replaced by the number of records in the file.
func (g *granule) lengths(v string) []int {
	lengths := append([]int(nil), g.nc.Header.Lengths(v)...)
	if g.nc.Header.IsRecordVariable(v) {
		lengths[0] = g.numRecs
	}
	return lengths
}

type ncmlDocument struct {
	XMLName    xml.Name        `xml:"netcdf"`
	Xmlns      string          `xml:"xmlns,attr"`
	Location   string          `xml:"location,attr"`
	Dimensions []ncmlDimension `xml:"dimension"`
	Attributes []ncmlAttribute `xml:"attribute"`
	Variables  []ncmlVariable  `xml:"variable"`
}

type ncmlDimension struct {
	Name        string `xml:"name,attr"`
	Length      int    `xml:"length,attr"`
	IsUnlimited string `xml:"isUnlimited,attr,omitempty"`
}

type ncmlAttribute struct {
	Name  string `xml:"name,attr"`
	Type  string `xml:"type,attr,omitempty"`
	Value string `xml:"value,attr"`
}

type ncmlVariable struct {
	Name       string          `xml:"name,attr"`
	Shape      string          `xml:"shape,attr"`
	Type       string          `xml:"type,attr"`
	Attributes []ncmlAttribute `xml:"attribute"`
}

func (g *granule) ncml() ([]byte, error) {
	h := g.nc.Header
	doc := ncmlDocument{
		Xmlns:    ncmlNamespace,
		Location: "file:" + g.path,
	}

	names, lengths := h.Dimensions(""), h.Lengths("")
	for i, name := range names {
		d := ncmlDimension{Name: name, Length: lengths[i]}
		if lengths[i] == 0 {
			d.Length = g.numRecs
			d.IsUnlimited = "true"
		}
		doc.Dimensions = append(doc.Dimensions, d)
	}

	doc.Attributes = attributes(h, "")

	for _, v := range h.Variables() {
		doc.Variables = append(doc.Variables, ncmlVariable{
			Name:       v,
			Shape:      strings.Join(h.Dimensions(v), " "),
			Type:       typeName(h.ZeroValue(v, 0)),
			Attributes: attributes(h, v),
		})
	}

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode ncml: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}

func attributes(h *cdf.Header, v string) []ncmlAttribute {
	var out []ncmlAttribute
	for _, a := range h.Attributes(v) {
		val := h.GetAttribute(v, a)
		typ := typeName(val)
		if typ == "char" {
			typ = "String"
		}
		out = append(out, ncmlAttribute{Name: a, Type: typ, Value: attributeValue(val)})
	}
	return out
}

// typeName maps a cdf value slice to its CDL type name.
func typeName(val interface{}) string {
	switch val.(type) {
	case []uint8:
		return "byte"
	case string:
		return "char"
	case []int16:
		return "short"
	case []int32:
		return "int"
	case []float32:
		return "float"
	case []float64:
		return "double"
	}
	return ""
}

func attributeValue(val interface{}) string {
	if s, ok := val.(string); ok {
		return s
	}
	tokens, _ := formatValues(val, nil)
	return strings.Join(tokens, " ")
}

// read loads all values of v and formats them as CDL data tokens, printing
// fill values as "_".
func (g *granule) read(v string) ([]string, error) {
	h := g.nc.Header
	zero := h.ZeroValue(v, 0)
	if zero == nil {
		return nil, fmt.Errorf("no variable %q", v)
	}
	if _, ok := zero.(string); ok {
		return nil, fmt.Errorf("variable %q holds characters", v)
	}

	lengths := g.lengths(v)
	n := 1
	for _, l := range lengths {
		n *= l
	}
	if n == 0 {
		return []string{}, nil
	}

	// Record variables need an explicit end corner; without one the reader
	// stops after the first record.
	var end []int
	if h.IsRecordVariable(v) {
		end = make([]int, len(lengths))
		for i, l := range lengths {
			end[i] = l - 1
		}
	}
	r := g.nc.Reader(v, nil, end)
	buf := r.Zero(n)
	if _, err := r.Read(buf); err != nil {
		return nil, err
	}

	fill, hasFill := fillValue(h.FillValue(v))
	isFill := func(x float64) bool { return hasFill && x == fill }
	return formatValues(buf, isFill)
}

// fillValue converts the typed fill value of a variable to float64. NC_BYTE
// is signed; cdf hands a _FillValue attribute back as uint8 and the default
// fill as int8, so both are read as int8.
func fillValue(v interface{}) (float64, bool) {
	switch f := v.(type) {
	case int8:
		return float64(f), true
	case uint8:
		return float64(int8(f)), true
	case int16:
		return float64(f), true
	case int32:
		return float64(f), true
	case float32:
		return float64(f), true
	case float64:
		return f, true
	}
	return 0, false
}

func formatValues(val interface{}, isFill func(float64) bool) ([]string, error) {
	var tokens []string
	emit := func(x float64, bits int) {
		switch {
		case isFill != nil && isFill(x):
			tokens = append(tokens, "_")
		case math.IsNaN(x):
			tokens = append(tokens, "NaN")
		case math.IsInf(x, 1):
			tokens = append(tokens, "Infinity")
		case math.IsInf(x, -1):
			tokens = append(tokens, "-Infinity")
		default:
			tokens = append(tokens, strconv.FormatFloat(x, 'g', -1, bits))
		}
	}

	switch vs := val.(type) {
	case []uint8:
		// cdf stores NC_BYTE as uint8; ncdump prints it signed.
		for _, x := range vs {
			emit(float64(int8(x)), 64)
		}
	case []int16:
		for _, x := range vs {
			emit(float64(x), 64)
		}
	case []int32:
		for _, x := range vs {
			emit(float64(x), 64)
		}
	case []float32:
		for _, x := range vs {
			emit(float64(x), 32)
		}
	case []float64:
		for _, x := range vs {
			emit(x, 64)
		}
	default:
		return nil, fmt.Errorf("unsupported value type %T", val)
	}
	return tokens, nil
}
