package pipeline

import (
	"errors"
	"strings"
)

// VariableFilter selects the variables of a granule to extract. The zero
// value selects all of them.
type VariableFilter struct {
	names []string
	set   map[string]struct{}
}

// AllVariables selects every variable.
func AllVariables() VariableFilter { return VariableFilter{} }

// ParseVariableFilter parses "all" (any case) or a comma-separated list of names.
func ParseVariableFilter(s string) (VariableFilter, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "all") {
		return AllVariables(), nil
	}

	f := VariableFilter{set: make(map[string]struct{})}
	for _, name := range strings.Split(s, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, dup := f.set[name]; dup {
			continue
		}
		f.set[name] = struct{}{}
		f.names = append(f.names, name)
	}
	if len(f.names) == 0 {
		return VariableFilter{}, errors.New("variable list is empty; use \"all\" or name1,name2")
	}
	return f, nil
}

// All reports whether the filter selects every variable.
func (f VariableFilter) All() bool { return f.set == nil }

// Includes reports whether name is selected.
func (f VariableFilter) Includes(name string) bool {
	if f.All() {
		return true
	}
	_, ok := f.set[name]
	return ok
}

// Names returns the explicitly selected names in the order given.
func (f VariableFilter) Names() []string { return f.names }

func (f VariableFilter) String() string {
	if f.All() {
		return "all"
	}
	return strings.Join(f.names, ",")
}
