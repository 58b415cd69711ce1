package node

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

// Params are a node's construction parameters as HCL-typed values. The
// getters convert with the same coercion rules patch files get, so "0.5"
// and 0.5 behave identically.
type Params map[string]cty.Value

// Has reports whether the key is present.
func (p Params) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// Float64 requires a numeric param.
func (p Params) Float64(key string) (float64, error) {
	v, ok := p[key]
	if !ok {
		return 0, fmt.Errorf("param %q: missing", key)
	}
	return convFloat(key, v)
}

// Float64Or reads a numeric param, defaulting when absent.
func (p Params) Float64Or(key string, def float64) (float64, error) {
	v, ok := p[key]
	if !ok {
		return def, nil
	}
	return convFloat(key, v)
}

// Int requires an integral param.
func (p Params) Int(key string) (int, error) {
	v, ok := p[key]
	if !ok {
		return 0, fmt.Errorf("param %q: missing", key)
	}
	return convInt(key, v)
}

// IntOr reads an integral param, defaulting when absent.
func (p Params) IntOr(key string, def int) (int, error) {
	v, ok := p[key]
	if !ok {
		return def, nil
	}
	return convInt(key, v)
}

// String requires a string param.
func (p Params) String(key string) (string, error) {
	v, ok := p[key]
	if !ok {
		return "", fmt.Errorf("param %q: missing", key)
	}
	return convString(key, v)
}

// StringOr reads a string param, defaulting when absent.
func (p Params) StringOr(key, def string) (string, error) {
	v, ok := p[key]
	if !ok {
		return def, nil
	}
	return convString(key, v)
}

// BoolOr reads a boolean param, defaulting when absent.
func (p Params) BoolOr(key string, def bool) (bool, error) {
	v, ok := p[key]
	if !ok {
		return def, nil
	}
	conv, err := convert.Convert(v, cty.Bool)
	if err != nil {
		return false, fmt.Errorf("param %q: %w", key, err)
	}
	return conv.True(), nil
}

func convFloat(key string, v cty.Value) (float64, error) {
	conv, err := convert.Convert(v, cty.Number)
	if err != nil {
		return 0, fmt.Errorf("param %q: %w", key, err)
	}
	var f float64
	if err := gocty.FromCtyValue(conv, &f); err != nil {
		return 0, fmt.Errorf("param %q: %w", key, err)
	}
	return f, nil
}

func convInt(key string, v cty.Value) (int, error) {
	conv, err := convert.Convert(v, cty.Number)
	if err != nil {
		return 0, fmt.Errorf("param %q: %w", key, err)
	}
	var i int
	if err := gocty.FromCtyValue(conv, &i); err != nil {
		return 0, fmt.Errorf("param %q: %w", key, err)
	}
	return i, nil
}

func convString(key string, v cty.Value) (string, error) {
	conv, err := convert.Convert(v, cty.String)
	if err != nil {
		return "", fmt.Errorf("param %q: %w", key, err)
	}
	return conv.AsString(), nil
}
