package domain

import (
	"math"
	"regexp"
	"strings"

	"github.com/spf13/cast"
)

// MissingValue replaces every fill value ("_") in extracted data.
const MissingValue = -9999

// missingToken is how ncdump prints a fill value in a data section.
const missingToken = "_"

var dataHeaderRe = regexp.MustCompile(`(?m)^\s*data:\s*$`)

// ParseDataSection extracts the values assigned to name in the data section
// of an `ncdump -v name` dump. The assignment may use the plain name or its
// CDL-escaped form (see EscapeCDLName). Values keep source order. Fill values
// become MissingValue. Any deviation from the expected layout is an
// *ExtractionIOError.
func ParseDataSection(name string, dump []byte) ([]float64, error) {
	text := string(dump)

	loc := dataHeaderRe.FindStringIndex(text)
	if loc == nil {
		return nil, extractionErrorf(name, "no data section in dump output")
	}
	section := text[loc[1]:]

	pattern := regexp.QuoteMeta(name)
	if escaped := EscapeCDLName(name); escaped != name {
		pattern = "(?:" + pattern + "|" + regexp.QuoteMeta(escaped) + ")"
	}
	assignRe, err := regexp.Compile(`(?m)^\s*` + pattern + `\s*=`)
	if err != nil {
		return nil, &ExtractionIOError{Name: name, Reason: "build assignment matcher", Err: err}
	}
	aloc := assignRe.FindStringIndex(section)
	if aloc == nil {
		return nil, extractionErrorf(name, "no assignment for %q in data section", name)
	}
	body := section[aloc[1]:]

	end := strings.IndexByte(body, ';')
	if end < 0 {
		return nil, extractionErrorf(name, "unterminated value list")
	}
	body = body[:end]

	tokens := strings.Split(body, ",")
	values := make([]float64, 0, len(tokens))
	for i, tok := range tokens {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			return nil, extractionErrorf(name, "empty value at position %d", i)
		}
		v, err := parseValueToken(tok)
		if err != nil {
			return nil, &ExtractionIOError{Name: name, Reason: "invalid value at position " + cast.ToString(i), Err: err}
		}
		values = append(values, v)
	}
	return values, nil
}

// parseValueToken converts one CDL data token. ncdump suffixes non-finite
// float values with "f" (NaNf, Infinityf).
func parseValueToken(tok string) (float64, error) {
	switch tok {
	case missingToken:
		return MissingValue, nil
	case "NaN", "NaNf":
		return math.NaN(), nil
	case "Infinity", "Infinityf":
		return math.Inf(1), nil
	case "-Infinity", "-Infinityf":
		return math.Inf(-1), nil
	}
	return cast.ToFloat64E(tok)
}
