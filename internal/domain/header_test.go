package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const trmmHeader = `<?xml version="1.0" encoding="UTF-8"?>
<netcdf xmlns="http://www.unidata.ucar.edu/namespaces/netcdf/ncml-2.2" location="file:3B42_daily.2009.01.15.7.nc">
  <dimension name="time" length="1" isUnlimited="true" />
  <dimension name="lat" length="2" />
  <dimension name="lon" length="3" />
  <attribute name="title" value="TRMM 3B42 daily" />
  <attribute name="version" type="int" value="7" />
  <variable name="time" shape="time" type="double">
    <attribute name="units" value="days since 1970-01-01" />
  </variable>
  <variable name="lat" shape="lat" type="float" />
  <variable name="lon" shape="lon" type="float" />
  <variable name="pcp" shape="time lat lon" type="float">
    <attribute name="_FillValue" type="float" value="-9999.9" />
  </variable>
  <variable name="comment" shape="lat" type="char" />
</netcdf>
`

func TestParseHeader_Tables(t *testing.T) {
	h, err := ParseHeader([]byte(trmmHeader))
	require.NoError(t, err)

	assert.Equal(t, DimensionTable{"time": 1, "lat": 2, "lon": 3}, h.Dimensions)
	assert.Equal(t, []string{"time", "lat", "lon"}, h.DimensionOrder)
	assert.Equal(t, "TRMM 3B42 daily", h.Attributes["title"])
	assert.Equal(t, "7", h.Attributes["version"])

	require.Len(t, h.Variables, 5)
	names := make([]string, len(h.Variables))
	for i, v := range h.Variables {
		names[i] = v.Name
	}
	assert.Equal(t, []string{"time", "lat", "lon", "pcp", "comment"}, names)

	pcp, ok := h.Variable("pcp")
	require.True(t, ok)
	assert.Equal(t, []string{"time", "lat", "lon"}, pcp.Shape)
	assert.Equal(t, "time lat lon", pcp.ShapeString())
	assert.Equal(t, "float", pcp.Type)
	assert.Equal(t, "-9999.9", pcp.Attributes["_FillValue"])
	assert.True(t, pcp.Numeric())

	comment, ok := h.Variable("comment")
	require.True(t, ok)
	assert.False(t, comment.Numeric())
}

func TestParseHeader_DimensionVariables(t *testing.T) {
	h, err := ParseHeader([]byte(trmmHeader))
	require.NoError(t, err)

	assert.True(t, h.IsDimensionVariable("lat"))
	assert.True(t, h.IsDimensionVariable("time"))
	assert.False(t, h.IsDimensionVariable("pcp"))
	assert.True(t, h.HasCoordinateVariable("lon"))
}

func TestParseHeader_WithoutNamespace(t *testing.T) {
	h, err := ParseHeader([]byte(`<netcdf><dimension name="x" length="4"/><variable name="v" shape="x x" type="int"/></netcdf>`))
	require.NoError(t, err)
	assert.Equal(t, 4, h.Dimensions["x"])
	assert.False(t, h.HasCoordinateVariable("x"))
}

func TestParseHeader_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", "   "},
		{"cdl text instead of ncml", "netcdf foo {\ndimensions:\n\tlat = 2 ;\n}"},
		{"truncated xml", `<netcdf><dimension name="lat" length="2"`},
		{"wrong root", `<dataset><dimension name="lat" length="2"/></dataset>`},
		{"bad length", `<netcdf><dimension name="lat" length="two"/></netcdf>`},
		{"negative length", `<netcdf><dimension name="lat" length="-1"/></netcdf>`},
		{"nameless dimension", `<netcdf><dimension length="1"/></netcdf>`},
		{"duplicate dimension", `<netcdf><dimension name="a" length="1"/><dimension name="a" length="2"/></netcdf>`},
		{"duplicate variable", `<netcdf><variable name="v" type="int"/><variable name="v" type="int"/></netcdf>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseHeader([]byte(tt.input))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedHeader), "got %v", err)

			var mhe *MalformedHeaderError
			assert.True(t, errors.As(err, &mhe))
		})
	}
}
