// ABOUTME: Typed accessors over decoded tool-call arguments
// ABOUTME: Coerces JSON numbers and numeric strings the way loosely typed clients send them

package mcp

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrMissingArgument indicates a required argument was not supplied.
var ErrMissingArgument = errors.New("missing required argument")

// ErrArgumentType indicates an argument could not be read as the requested type.
var ErrArgumentType = errors.New("wrong argument type")

// Arguments holds the tools/call arguments after filtering to declared
// parameters. Values are as decoded with json.Decoder.UseNumber.
type Arguments map[string]any

// Has reports whether name is present and not null.
func (a Arguments) Has(name string) bool {
	v, ok := a[name]
	return ok && v != nil
}

// String returns a string argument. Numbers and booleans are rendered as text.
func (a Arguments) String(name string) (string, error) {
	v, ok := a[name]
	if !ok || v == nil {
		return "", fmt.Errorf("%w: %s", ErrMissingArgument, name)
	}
	switch x := v.(type) {
	case string:
		return x, nil
	case json.Number:
		return x.String(), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(x), nil
	default:
		return "", fmt.Errorf("%w: %s must be a string", ErrArgumentType, name)
	}
}

// Int returns an integer argument. Integral floats and numeric strings are accepted.
func (a Arguments) Int(name string) (int64, error) {
	v, ok := a[name]
	if !ok || v == nil {
		return 0, fmt.Errorf("%w: %s", ErrMissingArgument, name)
	}
	switch x := v.(type) {
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n, nil
		}
		f, err := x.Float64()
		if err == nil && f == math.Trunc(f) && !math.IsInf(f, 0) {
			return int64(f), nil
		}
	case float64:
		if x == math.Trunc(x) && !math.IsInf(x, 0) && !math.IsNaN(x) {
			return int64(x), nil
		}
	case int:
		return int64(x), nil
	case int64:
		return x, nil
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, fmt.Errorf("%w: %s must be an integer, got %v", ErrArgumentType, name, v)
}

// IntOr returns an integer argument, or def when it is absent or null.
func (a Arguments) IntOr(name string, def int64) (int64, error) {
	if !a.Has(name) {
		return def, nil
	}
	return a.Int(name)
}

// Float returns a numeric argument.
func (a Arguments) Float(name string) (float64, error) {
	v, ok := a[name]
	if !ok || v == nil {
		return 0, fmt.Errorf("%w: %s", ErrMissingArgument, name)
	}
	switch x := v.(type) {
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return f, nil
		}
	case float64:
		return x, nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
			return f, nil
		}
	}
	return 0, fmt.Errorf("%w: %s must be a number, got %v", ErrArgumentType, name, v)
}

// Bool returns a boolean argument. The strings "true" and "false" are accepted.
func (a Arguments) Bool(name string) (bool, error) {
	v, ok := a[name]
	if !ok || v == nil {
		return false, fmt.Errorf("%w: %s", ErrMissingArgument, name)
	}
	switch x := v.(type) {
	case bool:
		return x, nil
	case string:
		if b, err := strconv.ParseBool(x); err == nil {
			return b, nil
		}
	}
	return false, fmt.Errorf("%w: %s must be a boolean, got %v", ErrArgumentType, name, v)
}
