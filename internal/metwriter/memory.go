package metwriter

import (
	"errors"
	"strconv"
)

// MemorySink keeps units in memory. It backs tests and dry runs.
type MemorySink struct {
	Units []*MemoryUnit
}

// MemoryUnit is one unit held by a MemorySink.
type MemoryUnit struct {
	UnitName string
	Keys     []KeyValue
	Sealed   bool

	open bool
}

// OpenUnit appends a new, empty unit.
func (m *MemorySink) OpenUnit(index int) (UnitEncoder, error) {
	u := &MemoryUnit{UnitName: "unit-" + strconv.Itoa(index)}
	m.Units = append(m.Units, u)
	return u, nil
}

// Key returns the values of the first key with the given name.
func (u *MemoryUnit) Key(name string) ([]string, bool) {
	for _, kv := range u.Keys {
		if kv.Key == name {
			return kv.Values, true
		}
	}
	return nil, false
}

// KeyNames lists the keys of the unit in write order.
func (u *MemoryUnit) KeyNames() []string {
	names := make([]string, len(u.Keys))
	for i, kv := range u.Keys {
		names[i] = kv.Key
	}
	return names
}

func (u *MemoryUnit) Name() string { return u.UnitName }

func (u *MemoryUnit) WriteKey(key string, values ...string) error {
	if err := u.OpenKey(key); err != nil {
		return err
	}
	if err := u.WriteValues(values...); err != nil {
		return err
	}
	return u.CloseKey()
}

func (u *MemoryUnit) OpenKey(key string) error {
	if u.Sealed {
		return errors.New("metwriter: unit sealed")
	}
	if u.open {
		return errKeyOpen
	}
	u.Keys = append(u.Keys, KeyValue{Key: key, Values: []string{}})
	u.open = true
	return nil
}

func (u *MemoryUnit) WriteValues(values ...string) error {
	if !u.open {
		return errors.New("metwriter: no key open")
	}
	last := &u.Keys[len(u.Keys)-1]
	last.Values = append(last.Values, values...)
	return nil
}

func (u *MemoryUnit) CloseKey() error {
	u.open = false
	return nil
}

func (u *MemoryUnit) Seal() error {
	if u.Sealed {
		return errors.New("metwriter: unit already sealed")
	}
	u.open = false
	u.Sealed = true
	return nil
}
