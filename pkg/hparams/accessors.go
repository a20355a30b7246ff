package hparams

import (
	"fmt"
	"math"
)

// Bool returns the option as a boolean. Missing or non-boolean values read as false.
func (h *Hyperparameters) Bool(key string) bool {
	val, ok := h.Get(key)
	if !ok {
		return false
	}
	b, ok := val.(bool)
	return ok && b
}

// Int returns the option as an int. Floats with no fractional part are accepted.
func (h *Hyperparameters) Int(key string) (int, bool) {
	val, ok := h.Get(key)
	if !ok {
		return 0, false
	}
	switch v := val.(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case float64:
		if v == math.Trunc(v) {
			return int(v), true
		}
	}
	return 0, false
}

// Float returns the option as a float64.
func (h *Hyperparameters) Float(key string) (float64, bool) {
	val, ok := h.Get(key)
	if !ok {
		return 0, false
	}
	switch v := val.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// StringValue returns the option formatted as a string.
func (h *Hyperparameters) StringValue(key string) (string, bool) {
	val, ok := h.Get(key)
	if !ok {
		return "", false
	}
	if s, ok := val.(string); ok {
		return s, true
	}
	return fmt.Sprint(val), true
}
