package workflow

import (
	"fmt"
	"strconv"
)

// Well-known seed keys supplied for every flow start
const (
	SeedUserID    = "user_id"
	SeedRole      = "role"
	SeedDriverID  = "driver_id"
	SeedVehicleID = "vehicle_id"
	SeedName      = "name"
)

// Fields maps field keys to canonical (validator-normalized) values
type Fields map[string]string

// Lookup implements validator.Scope
func (f Fields) Lookup(key string) (string, bool) {
	v, ok := f[key]
	return v, ok
}

// Int parses the value stored under key
func (f Fields) Int(key string) (int64, error) {
	raw, ok := f[key]
	if !ok {
		return 0, fmt.Errorf("field %q is not set", key)
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("field %q is not an integer: %w", key, err)
	}
	return n, nil
}

// Has reports whether key is set
func (f Fields) Has(key string) bool {
	_, ok := f[key]
	return ok
}

// Clone returns an independent copy
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// layered resolves collected fields first, then the seed
type layered struct {
	fields Fields
	seed   Fields
}

func (l layered) Lookup(key string) (string, bool) {
	if v, ok := l.fields[key]; ok {
		return v, true
	}
	v, ok := l.seed[key]
	return v, ok
}
