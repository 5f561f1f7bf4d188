package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/couchcryptid/granule-extract/internal/domain"
)

// DefaultDatasetID is the catalog id of the TRMM 3B42 daily dataset.
const DefaultDatasetID = "3"

// Profile captures the conventions of one dataset: how its granules name
// their time and how their coordinates are laid out.
type Profile struct {
	DatasetID          string  `toml:"dataset_id"`
	GranuleTimePattern string  `toml:"granule_time_pattern"`
	GranuleTimeLayout  string  `toml:"granule_time_layout"`
	TimeFormat         string  `toml:"time_format"`
	NormalizeLongitude bool    `toml:"normalize_longitude"`
	FixedLevel         float64 `toml:"fixed_level"`
}

// DefaultProfile returns the TRMM 3B42 daily conventions.
func DefaultProfile() Profile {
	return Profile{
		DatasetID:          DefaultDatasetID,
		GranuleTimePattern: domain.DefaultGranuleTimePattern,
		GranuleTimeLayout:  domain.DefaultGranuleTimeLayout,
		TimeFormat:         domain.DefaultTimeFormat,
		NormalizeLongitude: true,
	}
}

// LoadProfile reads a TOML dataset profile. Keys left out keep their
// DefaultProfile value. An empty path returns the default profile.
func LoadProfile(path string) (Profile, error) {
	p := DefaultProfile()
	if path == "" {
		return p, nil
	}

	md, err := toml.DecodeFile(path, &p)
	if err != nil {
		return Profile{}, fmt.Errorf("load profile %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Profile{}, fmt.Errorf("load profile %s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	if _, err := p.TimeConvention(); err != nil {
		return Profile{}, fmt.Errorf("load profile %s: %w", path, err)
	}
	return p, nil
}

// TimeConvention compiles the profile's granule time settings.
func (p Profile) TimeConvention() (domain.TimeConvention, error) {
	if p.GranuleTimePattern == "" {
		return domain.TimeConvention{}, fmt.Errorf("granule_time_pattern is empty")
	}
	re, err := regexp.Compile(p.GranuleTimePattern)
	if err != nil {
		return domain.TimeConvention{}, fmt.Errorf("invalid granule_time_pattern: %w", err)
	}
	if p.GranuleTimeLayout == "" {
		return domain.TimeConvention{}, fmt.Errorf("granule_time_layout is empty")
	}
	return domain.TimeConvention{
		Pattern: re,
		Layout:  p.GranuleTimeLayout,
		Format:  p.TimeFormat,
	}, nil
}
