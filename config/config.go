// Package config implements the flat key/value configuration blob the
// thermal model and controller are built from, and the validator bounds
// each key is held to. It is the host-agnostic equivalent of Klipper-style
// config.getfloat(key, default, minval=, maxval=) accessors.
package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// Values is the flat string -> float64 blob read from or written to disk.
// Integer-typed keys (model_metal_cells, model_passes_per_sec) are still
// stored as float64 and truncated on read, matching the wire format of
// spec.md's trace/config files.
type Values map[string]float64

// bound describes the inclusive range a key's value must fall within.
// A NaN Min or Max means that side is unbounded.
type bound struct {
	min, max float64
}

func (b bound) check(key string, v float64) error {
	if !math.IsNaN(b.min) && v < b.min {
		return fmt.Errorf("%w: %s = %g is below minimum %g", ErrOutOfBounds, key, v, b.min)
	}
	if !math.IsNaN(b.max) && v > b.max {
		return fmt.Errorf("%w: %s = %g is above maximum %g", ErrOutOfBounds, key, v, b.max)
	}
	return nil
}

func unbounded() bound               { return bound{math.NaN(), math.NaN()} }
func atLeast(min float64) bound      { return bound{min, math.NaN()} }
func between(min, max float64) bound { return bound{min, max} }

// Float reads a required or defaulted float64 key, applying bounds. A NaN
// default marks the key as required; a missing required key is a
// configuration rejection error (spec.md §7).
func (v Values) Float(key string, def float64, b bound) (float64, error) {
	val, ok := v[key]
	if !ok {
		if math.IsNaN(def) {
			return 0, fmt.Errorf("%w: missing required key %q", ErrMissingKey, key)
		}
		val = def
	}
	if err := b.check(key, val); err != nil {
		return 0, err
	}
	return val, nil
}

// Int reads a required or defaulted integer key, applying bounds.
func (v Values) Int(key string, def int64, b bound) (int64, error) {
	fdef := float64(def)
	val, err := v.Float(key, fdef, b)
	if err != nil {
		return 0, err
	}
	return int64(val), nil
}

// Load reads a Values blob from a JSON file on disk.
func Load(path string) (Values, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var v Values
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return v, nil
}

// Save writes the Values blob to path as indented JSON.
func (v Values) Save(path string) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}
