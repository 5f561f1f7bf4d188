package domain

import (
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeConvention_Default(t *testing.T) {
	c := DefaultTimeConvention()

	got, err := c.GranuleTime("/data/trmm/3B42_daily.2009.01.15.7.nc")
	require.NoError(t, err)
	assert.Equal(t, "20090115T0000Z", got)
}

func TestTimeConvention_Submatch(t *testing.T) {
	c := TimeConvention{
		Pattern: regexp.MustCompile(`MERRA\d+\.prod\.assim\.[a-z0-9_]+\.(\d{8})`),
		Layout:  "20060102",
		Format:  "20060102T150405Z",
	}

	got, err := c.GranuleTime("MERRA100.prod.assim.inst6_3d_ana_np.19790101.hdf")
	require.NoError(t, err)
	assert.Equal(t, "19790101T000000Z", got)
}

func TestTimeConvention_Errors(t *testing.T) {
	_, err := DefaultTimeConvention().GranuleTime("granule.nc")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrGranuleTime))

	bad := TimeConvention{Pattern: regexp.MustCompile(`\d{4}\.\d{2}\.\d{2}`), Layout: "2006.01.02"}
	_, err = bad.GranuleTime("3B42_daily.2009.13.40.nc")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrGranuleTime))

	_, err = TimeConvention{}.GranuleTime("3B42_daily.2009.01.15.nc")
	assert.True(t, errors.Is(err, ErrGranuleTime))
}
