package hparams

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/emirpasic/gods/maps/linkedhashmap"
	"github.com/pkg/errors"
)

// Hyperparameters is an ordered mapping from option name to value. Values are numbers, booleans,
// strings, lists or nested maps; nothing is validated and unknown keys are carried through
// unchanged.
//
// A Hyperparameters value is only mutated while it is being built. Anything handed out by this
// package (presets, merge results, copies) is a fresh value that shares no state with its inputs.
type Hyperparameters struct {
	m *linkedhashmap.Map
}

// New returns an empty set of hyperparameters.
func New() *Hyperparameters {
	return &Hyperparameters{m: linkedhashmap.New()}
}

// FromPairs builds hyperparameters from alternating keys and values, keeping the given order.
func FromPairs(kvs ...interface{}) *Hyperparameters {
	if len(kvs)%2 != 0 {
		panic(fmt.Sprintf("hparams.FromPairs: odd number of arguments: %d", len(kvs)))
	}
	h := New()
	for i := 0; i < len(kvs); i += 2 {
		key, ok := kvs[i].(string)
		if !ok {
			panic(fmt.Sprintf("hparams.FromPairs: key %v is a %T, not a string", kvs[i], kvs[i]))
		}
		h.Set(key, kvs[i+1])
	}
	return h
}

// FromMap builds hyperparameters from a plain map. Since maps are unordered, keys are inserted in
// sorted order.
func FromMap(values map[string]interface{}) *Hyperparameters {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	h := New()
	for _, k := range keys {
		h.Set(k, values[k])
	}
	return h
}

func (h *Hyperparameters) lazy() *linkedhashmap.Map {
	if h.m == nil {
		h.m = linkedhashmap.New()
	}
	return h.m
}

// Set stores a deep copy of val under key. An existing key keeps its position.
func (h *Hyperparameters) Set(key string, val interface{}) *Hyperparameters {
	h.lazy().Put(key, deepCopy(val))
	return h
}

// Get returns a deep copy of the value stored under key.
func (h *Hyperparameters) Get(key string) (interface{}, bool) {
	if h == nil || h.m == nil {
		return nil, false
	}
	val, ok := h.m.Get(key)
	if !ok {
		return nil, false
	}
	return deepCopy(val), true
}

// Has reports whether key is present.
func (h *Hyperparameters) Has(key string) bool {
	_, ok := h.Get(key)
	return ok
}

// Len returns the number of options.
func (h *Hyperparameters) Len() int {
	if h == nil || h.m == nil {
		return 0
	}
	return h.m.Size()
}

// Keys returns the option names in insertion order.
func (h *Hyperparameters) Keys() []string {
	if h == nil || h.m == nil {
		return nil
	}
	keys := make([]string, 0, h.m.Size())
	for _, k := range h.m.Keys() {
		keys = append(keys, k.(string))
	}
	return keys
}

// Each calls fn for every option in insertion order.
func (h *Hyperparameters) Each(fn func(key string, val interface{})) {
	if h == nil || h.m == nil {
		return
	}
	h.m.Each(func(k interface{}, v interface{}) {
		fn(k.(string), v)
	})
}

// Copy returns a deep copy. Nested lists and maps are copied as well, so the result can be
// mutated without affecting h.
func (h *Hyperparameters) Copy() *Hyperparameters {
	out := New()
	h.Each(func(key string, val interface{}) {
		out.Set(key, val)
	})
	return out
}

// Merge returns a copy of h with each of the overrides applied in order. A key present in an
// override replaces the current value and keeps its position; keys absent from h are appended.
// Nil overrides are skipped.
func (h *Hyperparameters) Merge(overrides ...*Hyperparameters) *Hyperparameters {
	out := h.Copy()
	for _, o := range overrides {
		o.Each(func(key string, val interface{}) {
			out.Set(key, val)
		})
	}
	return out
}

// ToMap returns the options as a plain map holding deep copies of the values.
func (h *Hyperparameters) ToMap() map[string]interface{} {
	out := make(map[string]interface{}, h.Len())
	h.Each(func(key string, val interface{}) {
		out[key] = deepCopy(val)
	})
	return out
}

// Equal reports whether both sets have the same keys, in the same order, with deeply equal
// values.
func (h *Hyperparameters) Equal(other *Hyperparameters) bool {
	if h.Len() != other.Len() {
		return false
	}
	keys, otherKeys := h.Keys(), other.Keys()
	for i, key := range keys {
		if otherKeys[i] != key {
			return false
		}
		a, _ := h.Get(key)
		b, _ := other.Get(key)
		if !reflect.DeepEqual(a, b) {
			return false
		}
	}
	return true
}

// String renders the options like a dictionary literal, in order.
func (h *Hyperparameters) String() string {
	parts := make([]string, 0, h.Len())
	h.Each(func(key string, val interface{}) {
		if s, ok := val.(string); ok {
			parts = append(parts, fmt.Sprintf("%q: %q", key, s))
			return
		}
		parts = append(parts, fmt.Sprintf("%q: %v", key, val))
	})
	return "{" + strings.Join(parts, ", ") + "}"
}

// MarshalJSON implements the json.Marshaler interface, keeping the insertion order.
func (h *Hyperparameters) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	var err error
	i := 0
	h.Each(func(key string, val interface{}) {
		if err != nil {
			return
		}
		if i > 0 {
			buf.WriteByte(',')
		}
		i++
		var kb, vb []byte
		if kb, err = json.Marshal(key); err != nil {
			return
		}
		if vb, err = json.Marshal(val); err != nil {
			err = errors.Wrapf(err, "marshaling hyperparameter %s", key)
			return
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	})
	if err != nil {
		return nil, err
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements the json.Unmarshaler interface. Top-level key order follows the
// document and integral numbers decode as int.
func (h *Hyperparameters) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return errors.Wrap(err, "reading hyperparameters")
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errors.Errorf("hyperparameters must be an object, got %v", tok)
	}

	m := linkedhashmap.New()
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return errors.Wrap(err, "reading hyperparameter name")
		}
		key, ok := keyTok.(string)
		if !ok {
			return errors.Errorf("unexpected hyperparameter name %v", keyTok)
		}
		val, err := decodeValue(dec)
		if err != nil {
			return errors.Wrapf(err, "decoding hyperparameter %s", key)
		}
		m.Put(key, val)
	}
	if _, err := dec.Token(); err != nil {
		return errors.Wrap(err, "reading end of hyperparameters")
	}
	h.m = m
	return nil
}

func decodeValue(dec *json.Decoder) (interface{}, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			obj := make(map[string]interface{})
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, errors.Errorf("unexpected object key %v", keyTok)
				}
				if obj[key], err = decodeValue(dec); err != nil {
					return nil, err
				}
			}
			_, err := dec.Token()
			return obj, err
		case '[':
			list := make([]interface{}, 0)
			for dec.More() {
				val, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				list = append(list, val)
			}
			_, err := dec.Token()
			return list, err
		default:
			return nil, errors.Errorf("unexpected delimiter %v", t)
		}
	case json.Number:
		return normalizeNumber(t)
	default:
		return t, nil
	}
}

func normalizeNumber(n json.Number) (interface{}, error) {
	if !strings.ContainsAny(n.String(), ".eE") {
		if i, err := n.Int64(); err == nil {
			return int(i), nil
		}
	}
	return n.Float64()
}
