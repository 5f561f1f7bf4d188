package domain

import (
	"bytes"
	"encoding/xml"
	"strconv"
	"strings"
)

// DimensionTable maps a dimension name to its declared length.
type DimensionTable map[string]int

// AttributeTable maps an attribute name to its value as written in the header.
type AttributeTable map[string]string

// VariableDescriptor is one declared variable of a granule.
type VariableDescriptor struct {
	Name       string
	Shape      []string // dimension names, outermost first
	Type       string   // CDL type: byte, short, int, float, double, char, ...
	Attributes AttributeTable
}

// ShapeString returns the shape as it appears in the header, e.g. "time lat lon".
func (v VariableDescriptor) ShapeString() string {
	return strings.Join(v.Shape, " ")
}

// Numeric reports whether the variable holds numbers rather than text.
func (v VariableDescriptor) Numeric() bool {
	switch strings.ToLower(v.Type) {
	case "char", "string":
		return false
	default:
		return v.Type != ""
	}
}

// Header is the parsed structural description of one granule.
type Header struct {
	Dimensions     DimensionTable
	DimensionOrder []string
	Attributes     AttributeTable
	Variables      []VariableDescriptor // file order
}

// Variable looks up a declared variable by name.
func (h *Header) Variable(name string) (VariableDescriptor, bool) {
	for _, v := range h.Variables {
		if v.Name == name {
			return v, true
		}
	}
	return VariableDescriptor{}, false
}

// IsDimensionVariable reports whether name is both a dimension and a variable,
// i.e. the coordinate variable that defines that dimension's values.
func (h *Header) IsDimensionVariable(name string) bool {
	_, ok := h.Dimensions[name]
	return ok
}

// HasCoordinateVariable reports whether dimension dim has a variable of the same name.
func (h *Header) HasCoordinateVariable(dim string) bool {
	_, ok := h.Variable(dim)
	return ok
}

// NcML document as written by `ncdump -h -x`. Element names are matched on the
// local name so both namespaced and bare documents decode.
type ncmlDocument struct {
	XMLName    xml.Name        `xml:"netcdf"`
	Dimensions []ncmlDimension `xml:"dimension"`
	Attributes []ncmlAttribute `xml:"attribute"`
	Variables  []ncmlVariable  `xml:"variable"`
}

type ncmlDimension struct {
	Name        string `xml:"name,attr"`
	Length      string `xml:"length,attr"`
	IsUnlimited string `xml:"isUnlimited,attr"`
}

type ncmlAttribute struct {
	Name  string `xml:"name,attr"`
	Type  string `xml:"type,attr"`
	Value string `xml:"value,attr"`
}

type ncmlVariable struct {
	Name       string          `xml:"name,attr"`
	Shape      string          `xml:"shape,attr"`
	Type       string          `xml:"type,attr"`
	Attributes []ncmlAttribute `xml:"attribute"`
}

// ParseHeader decodes the NcML header of a granule into its dimension,
// attribute and variable tables.
func ParseHeader(ncml []byte) (*Header, error) {
	if len(bytes.TrimSpace(ncml)) == 0 {
		return nil, &MalformedHeaderError{Reason: "empty structural description"}
	}

	var doc ncmlDocument
	if err := xml.Unmarshal(ncml, &doc); err != nil {
		return nil, &MalformedHeaderError{Reason: "decode ncml", Err: err}
	}

	h := &Header{
		Dimensions:     make(DimensionTable, len(doc.Dimensions)),
		DimensionOrder: make([]string, 0, len(doc.Dimensions)),
		Attributes:     make(AttributeTable, len(doc.Attributes)),
		Variables:      make([]VariableDescriptor, 0, len(doc.Variables)),
	}

	for _, d := range doc.Dimensions {
		if d.Name == "" {
			return nil, &MalformedHeaderError{Reason: "dimension without a name"}
		}
		if _, dup := h.Dimensions[d.Name]; dup {
			return nil, &MalformedHeaderError{Reason: "duplicate dimension " + strconv.Quote(d.Name)}
		}
		n, err := strconv.Atoi(strings.TrimSpace(d.Length))
		if err != nil || n < 0 {
			return nil, &MalformedHeaderError{Reason: "dimension " + strconv.Quote(d.Name) + " has invalid length " + strconv.Quote(d.Length)}
		}
		h.Dimensions[d.Name] = n
		h.DimensionOrder = append(h.DimensionOrder, d.Name)
	}

	for _, a := range doc.Attributes {
		if a.Name == "" {
			return nil, &MalformedHeaderError{Reason: "global attribute without a name"}
		}
		h.Attributes[a.Name] = a.Value
	}

	seen := make(map[string]struct{}, len(doc.Variables))
	for _, v := range doc.Variables {
		if v.Name == "" {
			return nil, &MalformedHeaderError{Reason: "variable without a name"}
		}
		if _, dup := seen[v.Name]; dup {
			return nil, &MalformedHeaderError{Reason: "duplicate variable " + strconv.Quote(v.Name)}
		}
		seen[v.Name] = struct{}{}

		attrs := make(AttributeTable, len(v.Attributes))
		for _, a := range v.Attributes {
			attrs[a.Name] = a.Value
		}
		h.Variables = append(h.Variables, VariableDescriptor{
			Name:       v.Name,
			Shape:      strings.Fields(v.Shape),
			Type:       v.Type,
			Attributes: attrs,
		})
	}

	return h, nil
}
