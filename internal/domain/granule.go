package domain

import (
	"fmt"
	"path/filepath"
	"regexp"
	"time"
)

// Default granule time convention: TRMM 3B42 daily file names carry the date
// as YYYY.MM.DD, e.g. "3B42_daily.2009.01.15.7.nc".
const (
	DefaultGranuleTimePattern = `\d{4}\.\d{2}\.\d{2}`
	DefaultGranuleTimeLayout  = "2006.01.02"
	DefaultTimeFormat         = "20060102T1504Z"
)

// TimeConvention derives the granule time from a granule's file name.
type TimeConvention struct {
	Pattern *regexp.Regexp // first submatch (or whole match) holds the date text
	Layout  string         // Go time layout of the matched text
	Format  string         // output format stamped on points
}

// DefaultTimeConvention returns the TRMM daily convention.
func DefaultTimeConvention() TimeConvention {
	return TimeConvention{
		Pattern: regexp.MustCompile(DefaultGranuleTimePattern),
		Layout:  DefaultGranuleTimeLayout,
		Format:  DefaultTimeFormat,
	}
}

// GranuleTime returns the formatted time encoded in the base name of path.
func (c TimeConvention) GranuleTime(path string) (string, error) {
	base := filepath.Base(path)
	if c.Pattern == nil {
		return "", fmt.Errorf("%w: no file name pattern configured", ErrGranuleTime)
	}

	m := c.Pattern.FindStringSubmatch(base)
	if m == nil {
		return "", fmt.Errorf("%w: %q does not match %q", ErrGranuleTime, base, c.Pattern.String())
	}
	text := m[0]
	if len(m) > 1 {
		text = m[1]
	}

	t, err := time.Parse(c.Layout, text)
	if err != nil {
		return "", fmt.Errorf("%w: parse %q with layout %q: %v", ErrGranuleTime, text, c.Layout, err)
	}

	format := c.Format
	if format == "" {
		format = DefaultTimeFormat
	}
	return t.UTC().Format(format), nil
}
