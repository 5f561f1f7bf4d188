package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every typed error below matches exactly one of these with errors.Is.
var (
	ErrMalformedHeader           = errors.New("malformed header")
	ErrUnknownDimension          = errors.New("unknown dimension")
	ErrExtractionIO              = errors.New("extraction i/o failure")
	ErrUnsupportedDimensionality = errors.New("unsupported dimensionality")
	ErrGranuleTime               = errors.New("granule time not derivable")
)

// MalformedHeaderError reports a structural description that could not be decoded.
type MalformedHeaderError struct {
	Reason string
	Err    error
}

func (e *MalformedHeaderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrMalformedHeader, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", ErrMalformedHeader, e.Reason)
}

func (e *MalformedHeaderError) Is(target error) bool { return target == ErrMalformedHeader }
func (e *MalformedHeaderError) Unwrap() error        { return e.Err }

// UnknownDimensionError reports a shape entry with no declared dimension.
type UnknownDimensionError struct {
	Variable  string
	Dimension string
}

func (e *UnknownDimensionError) Error() string {
	if e.Variable == "" {
		return fmt.Sprintf("%s %q", ErrUnknownDimension, e.Dimension)
	}
	return fmt.Sprintf("%s %q in shape of %q", ErrUnknownDimension, e.Dimension, e.Variable)
}

func (e *UnknownDimensionError) Is(target error) bool { return target == ErrUnknownDimension }

// ExtractionIOError reports a failed, timed out or unparsable dump of one
// variable or dimension.
type ExtractionIOError struct {
	Name   string
	Reason string
	Err    error
}

func (e *ExtractionIOError) Error() string {
	msg := fmt.Sprintf("%s for %q: %s", ErrExtractionIO, e.Name, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ExtractionIOError) Is(target error) bool { return target == ErrExtractionIO }
func (e *ExtractionIOError) Unwrap() error        { return e.Err }

// UnsupportedDimensionalityError reports a variable that is neither 2 nor 3 dimensional.
type UnsupportedDimensionalityError struct {
	Variable string
	Dims     int
}

func (e *UnsupportedDimensionalityError) Error() string {
	return fmt.Sprintf("%s: %q has %d dimensions, supported: 2 or 3", ErrUnsupportedDimensionality, e.Variable, e.Dims)
}

func (e *UnsupportedDimensionalityError) Is(target error) bool {
	return target == ErrUnsupportedDimensionality
}

func extractionErrorf(name string, format string, args ...any) error {
	return &ExtractionIOError{Name: name, Reason: fmt.Sprintf(format, args...)}
}
