package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProfile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profile.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadProfile_Default(t *testing.T) {
	p, err := LoadProfile("")
	require.NoError(t, err)
	assert.Equal(t, DefaultProfile(), p)

	tc, err := p.TimeConvention()
	require.NoError(t, err)
	got, err := tc.GranuleTime("/data/3B42_daily.2009.01.15.7.nc")
	require.NoError(t, err)
	assert.Equal(t, "20090115T0000Z", got)
}

func TestLoadProfile_OverridesAndKeepsDefaults(t *testing.T) {
	path := writeProfile(t, `
dataset_id = "12"
granule_time_pattern = 'wrfout_d01_(\d{4}-\d{2}-\d{2}_\d{2})'
granule_time_layout = "2006-01-02_15"
normalize_longitude = false
fixed_level = 1000.0
`)

	p, err := LoadProfile(path)
	require.NoError(t, err)
	assert.Equal(t, "12", p.DatasetID)
	assert.False(t, p.NormalizeLongitude)
	assert.InDelta(t, 1000.0, p.FixedLevel, 1e-9)
	assert.Equal(t, DefaultProfile().TimeFormat, p.TimeFormat)

	tc, err := p.TimeConvention()
	require.NoError(t, err)
	got, err := tc.GranuleTime("wrfout_d01_2010-06-01_18.nc")
	require.NoError(t, err)
	assert.Equal(t, "20100601T1800Z", got)
}

func TestLoadProfile_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "syntax", body: "dataset_id = ", want: "load profile"},
		{name: "unknown key", body: `datasetid = "3"`, want: "unknown keys datasetid"},
		{name: "bad pattern", body: `granule_time_pattern = "(\\d{4}"`, want: "granule_time_pattern"},
		{name: "empty layout", body: `granule_time_layout = ""`, want: "granule_time_layout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadProfile(writeProfile(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadProfile_MissingFile(t *testing.T) {
	_, err := LoadProfile(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
}
