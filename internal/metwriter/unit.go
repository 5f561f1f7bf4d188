// Package metwriter writes extracted points as bounded output units.
//
// A granule's points are spread over one or more units. Each unit repeats the
// granule header keys (dataset_id, granule_filename) and then holds, for every
// variable it contains, one definition key (param_<name>) followed by one data
// key (data_<name>). A Session decides when a unit is full; a UnitSink decides
// how units are stored.
package metwriter

import "time"

// KeyValue is one metadata key with its values.
type KeyValue struct {
	Key    string
	Values []string
}

// UnitEncoder writes the keys of one output unit in order. A data key is
// streamed: OpenKey, any number of WriteValues, CloseKey.
type UnitEncoder interface {
	Name() string
	WriteKey(key string, values ...string) error
	OpenKey(key string) error
	WriteValues(values ...string) error
	CloseKey() error
	// Seal completes the unit. The encoder must not be used afterwards.
	Seal() error
}

// UnitSink creates the encoder for the unit with the given zero-based index.
type UnitSink interface {
	OpenUnit(index int) (UnitEncoder, error)
}

// UnitSummary describes a sealed unit.
type UnitSummary struct {
	Index     int       `json:"index"`
	Name      string    `json:"name"`
	Points    int       `json:"points"`
	Variables []string  `json:"variables"`
	Overshoot bool      `json:"overshoot"` // a single batch exceeded the point budget
	SealedAt  time.Time `json:"sealed_at"`
}

// ParamKey and DataKey name the definition and data keys of a variable.
func ParamKey(variable string) string { return "param_" + variable }
func DataKey(variable string) string  { return "data_" + variable }
