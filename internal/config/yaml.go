package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const maxDepth = 3

// configListKeys hold lists of sections, so an empty list under them is an
// empty []*Config rather than an empty vector.
var configListKeys = map[string]bool{"elements": true}

// Load reads a YAML lattice description from path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse decodes a YAML mapping into a Config. Numbers and booleans become
// float64, number sequences []float64, mappings *Config and sequences of
// mappings []*Config.
func Parse(data []byte) (*Config, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return fromMap(raw, 0)
}

func Save(path string, c *Config) error {
	data, err := yaml.Marshal(c.toMap())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func fromMap(raw map[string]any, depth int) (*Config, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("%w: nesting deeper than %d", ErrUnsupportedValue, maxDepth)
	}
	c := New()
	for k, v := range raw {
		val, err := convert(v, depth)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", k, err)
		}
		if vec, ok := val.([]float64); ok && len(vec) == 0 && configListKeys[k] {
			val = []*Config{}
		}
		c.props[k] = val
	}
	return c, nil
}

func convert(v any, depth int) (any, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case uint64:
		return float64(t), nil
	case bool:
		if t {
			return 1.0, nil
		}
		return 0.0, nil
	case string:
		return t, nil
	case map[string]any:
		return fromMap(t, depth+1)
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, sub := range t {
			m[fmt.Sprint(k)] = sub
		}
		return fromMap(m, depth+1)
	case []any:
		return convertList(t, depth)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
	}
}

func convertList(items []any, depth int) (any, error) {
	if len(items) == 0 {
		return []float64{}, nil
	}
	if _, ok := items[0].(map[string]any); ok {
		out := make([]*Config, 0, len(items))
		for i, item := range items {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: item %d of a config list is %T", ErrUnsupportedValue, i, item)
			}
			sub, err := fromMap(m, depth+1)
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			out = append(out, sub)
		}
		return out, nil
	}
	out := make([]float64, 0, len(items))
	for i, item := range items {
		v, err := convert(item, depth)
		if err != nil {
			return nil, err
		}
		f, ok := v.(float64)
		if !ok {
			return nil, fmt.Errorf("%w: item %d of a number list is %T", ErrUnsupportedValue, i, item)
		}
		out = append(out, f)
	}
	return out, nil
}

func (c *Config) toMap() map[string]any {
	out := make(map[string]any, len(c.props))
	for k, v := range c.props {
		switch t := v.(type) {
		case *Config:
			out[k] = t.toMap()
		case []*Config:
			list := make([]map[string]any, len(t))
			for i, sub := range t {
				list[i] = sub.toMap()
			}
			out[k] = list
		default:
			out[k] = v
		}
	}
	return out
}
