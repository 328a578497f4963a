// Package config holds the typed key/value tree that describes a lattice and
// the beam entering it.
//
// A Config maps string keys to one of five kinds: float64, string,
// []float64, *Config and []*Config. Typed access goes through the generic
// [Get], [GetOr] and [Set] functions:
//
//	L, err := config.Get[float64](c, "L")        // ErrKeyNotFound / ErrTypeMismatch
//	K := config.GetOr(c, "K", 0.0)                 // never fails
//	config.Set(c, "cavtype", "0.041QWR")
//
// A Config may inherit a parent scope. Lookups that miss locally continue in
// the parent, which is how element sections see lattice-wide keys such as
// Frf and IonEs.
package config

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// Value enumerates the kinds a configuration entry can hold.
type Value interface {
	float64 | string | []float64 | *Config | []*Config
}

type Config struct {
	props  map[string]any
	parent *Config
}

func New() *Config {
	return &Config{props: make(map[string]any)}
}

func (c *Config) lookup(key string) (any, bool) {
	for s := c; s != nil; s = s.parent {
		if v, ok := s.props[key]; ok {
			return v, true
		}
	}
	return nil, false
}

// Has reports whether key is present in c or any parent scope.
func (c *Config) Has(key string) bool {
	_, ok := c.lookup(key)
	return ok
}

// Get returns the value stored under key as a T.
func Get[T Value](c *Config, key string) (T, error) {
	var zero T
	v, ok := c.lookup(key)
	if !ok {
		return zero, fmt.Errorf("%w: %q", ErrKeyNotFound, key)
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %q holds %s, want %s", ErrTypeMismatch, key, kindOf(v), kindOf(zero))
	}
	return t, nil
}

// GetOr returns the value under key, or def when the key is absent or holds
// another kind.
func GetOr[T Value](c *Config, key string, def T) T {
	v, err := Get[T](c, key)
	if err != nil {
		return def
	}
	return v
}

// Set stores v under key in the local scope, replacing any previous value.
func Set[T Value](c *Config, key string, v T) {
	if c.props == nil {
		c.props = make(map[string]any)
	}
	c.props[key] = v
}

// Delete removes key from the local scope.
func (c *Config) Delete(key string) {
	delete(c.props, key)
}

// Keys returns the local keys in sorted order.
func (c *Config) Keys() []string {
	keys := make([]string, 0, len(c.props))
	for k := range c.props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (c *Config) Len() int { return len(c.props) }

func (c *Config) Parent() *Config { return c.parent }

// Inherit returns a view of c whose lookups fall back to parent. The view
// shares local values with c.
func (c *Config) Inherit(parent *Config) *Config {
	if c.props == nil {
		c.props = make(map[string]any)
	}
	return &Config{props: c.props, parent: parent}
}

// Clone deep-copies the local values. The parent scope is shared.
func (c *Config) Clone() *Config {
	out := &Config{props: make(map[string]any, len(c.props)), parent: c.parent}
	for k, v := range c.props {
		out.props[k] = cloneValue(v)
	}
	return out
}

// Merge copies every local value of other into c, overwriting.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}
	if c.props == nil {
		c.props = make(map[string]any)
	}
	for k, v := range other.props {
		c.props[k] = cloneValue(v)
	}
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case []float64:
		return append([]float64(nil), t...)
	case *Config:
		return t.Clone()
	case []*Config:
		out := make([]*Config, len(t))
		for i, sub := range t {
			out[i] = sub.Clone()
		}
		return out
	default:
		return v
	}
}

func kindOf(v any) string {
	switch v.(type) {
	case float64:
		return "double"
	case string:
		return "string"
	case []float64:
		return "vector"
	case *Config:
		return "config"
	case []*Config:
		return "config list"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func (c *Config) String() string {
	var sb strings.Builder
	c.write(&sb, 0)
	return sb.String()
}

func (c *Config) write(w io.Writer, depth int) {
	pad := strings.Repeat("  ", depth)
	for _, k := range c.Keys() {
		switch v := c.props[k].(type) {
		case *Config:
			fmt.Fprintf(w, "%s%s = {\n", pad, k)
			v.write(w, depth+1)
			fmt.Fprintf(w, "%s}\n", pad)
		case []*Config:
			fmt.Fprintf(w, "%s%s = [\n", pad, k)
			for _, sub := range v {
				fmt.Fprintf(w, "%s  {\n", pad)
				sub.write(w, depth+2)
				fmt.Fprintf(w, "%s  }\n", pad)
			}
			fmt.Fprintf(w, "%s]\n", pad)
		case string:
			fmt.Fprintf(w, "%s%s = %q\n", pad, k, v)
		default:
			fmt.Fprintf(w, "%s%s = %v\n", pad, k, v)
		}
	}
}
