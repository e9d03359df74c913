package config

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind enumerates the semantic types a parameter value can take. Parameters
// differ only in how their raw input is coerced and how the value is
// canonically stringified for flat storage; there are no per-kind subtypes.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindBool
	KindStringList
	KindBlob
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindStringList:
		return "string-list"
	case KindBlob:
		return "blob"
	default:
		return "unknown"
	}
}

// Value is a tagged variant holding one parameter value. The zero Value is
// "unset"; an unset value compares equal only to another unset value.
type Value struct {
	kind Kind
	set  bool

	str  string
	i    int
	f    float64
	b    bool
	list []string
	blob map[string]interface{}
}

// StringValue returns a set string Value
func StringValue(s string) Value { return Value{kind: KindString, set: true, str: s} }

// IntValue returns a set int Value
func IntValue(i int) Value { return Value{kind: KindInt, set: true, i: i} }

// FloatValue returns a set float Value
func FloatValue(f float64) Value { return Value{kind: KindFloat, set: true, f: f} }

// BoolValue returns a set bool Value
func BoolValue(b bool) Value { return Value{kind: KindBool, set: true, b: b} }

// ListValue returns a set string-list Value
func ListValue(items ...string) Value {
	return Value{kind: KindStringList, set: true, list: append([]string(nil), items...)}
}

// BlobValue returns a set structured-blob Value
func BlobValue(m map[string]interface{}) Value {
	return Value{kind: KindBlob, set: true, blob: m}
}

// Kind returns the value's semantic type
func (v Value) Kind() Kind { return v.kind }

// IsSet reports whether the value carries data
func (v Value) IsSet() bool { return v.set }

// IsEmpty reports whether the value is unset or holds its kind's empty form
func (v Value) IsEmpty() bool {
	if !v.set {
		return true
	}
	switch v.kind {
	case KindString:
		return v.str == ""
	case KindStringList:
		return len(v.list) == 0
	case KindBlob:
		return len(v.blob) == 0
	}
	return false
}

// String returns the string payload (empty unless KindString)
func (v Value) String() string { return v.str }

// Int returns the int payload
func (v Value) Int() int { return v.i }

// Float returns the float payload
func (v Value) Float() float64 { return v.f }

// Bool returns the bool payload
func (v Value) Bool() bool { return v.b }

// List returns a copy of the string-list payload
func (v Value) List() []string { return append([]string(nil), v.list...) }

// Blob returns the structured-blob payload
func (v Value) Blob() map[string]interface{} { return v.blob }

// Equal reports deep equality between two values. Values of different kinds
// are never equal, except that two unset values always are.
func (v Value) Equal(o Value) bool {
	if !v.set && !o.set {
		return true
	}
	if v.set != o.set || v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == o.str
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f
	case KindBool:
		return v.b == o.b
	case KindStringList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if v.list[i] != o.list[i] {
				return false
			}
		}
		return true
	case KindBlob:
		a, _ := json.Marshal(sortedBlob(v.blob))
		b, _ := json.Marshal(sortedBlob(o.blob))
		return string(a) == string(b)
	}
	return false
}

// StorageString returns the canonical flat-storage representation. Parsing
// the result with ParseStorage yields an equal Value (round-trip law).
func (v Value) StorageString() string {
	if !v.set {
		return ""
	}
	switch v.kind {
	case KindString:
		return v.str
	case KindInt:
		return strconv.Itoa(v.i)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindStringList:
		return strings.Join(v.list, ",")
	case KindBlob:
		data, _ := json.Marshal(v.blob)
		return string(data)
	}
	return ""
}

// Native returns the document-native form of the value for serialization
func (v Value) Native() interface{} {
	if !v.set {
		return nil
	}
	switch v.kind {
	case KindString:
		return v.str
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindBool:
		return v.b
	case KindStringList:
		return v.List()
	case KindBlob:
		return v.blob
	}
	return nil
}

// Coerce converts a document-native raw value (as decoded by yaml or json)
// into a Value of the given kind.
func Coerce(kind Kind, raw interface{}) (Value, error) {
	if raw == nil {
		return Value{kind: kind}, nil
	}
	switch kind {
	case KindString:
		s, ok := raw.(string)
		if !ok {
			return Value{}, fmt.Errorf("expected string, got %T", raw)
		}
		return StringValue(s), nil
	case KindInt:
		switch n := raw.(type) {
		case int:
			return IntValue(n), nil
		case int64:
			return IntValue(int(n)), nil
		case float64:
			// json decodes all numbers as float64
			if n != float64(int(n)) {
				return Value{}, fmt.Errorf("expected integer, got %v", n)
			}
			return IntValue(int(n)), nil
		case string:
			i, err := strconv.Atoi(n)
			if err != nil {
				return Value{}, fmt.Errorf("expected integer, got %q", n)
			}
			return IntValue(i), nil
		default:
			return Value{}, fmt.Errorf("expected integer, got %T", raw)
		}
	case KindFloat:
		switch n := raw.(type) {
		case float64:
			return FloatValue(n), nil
		case int:
			return FloatValue(float64(n)), nil
		case int64:
			return FloatValue(float64(n)), nil
		case string:
			f, err := strconv.ParseFloat(n, 64)
			if err != nil {
				return Value{}, fmt.Errorf("expected number, got %q", n)
			}
			return FloatValue(f), nil
		default:
			return Value{}, fmt.Errorf("expected number, got %T", raw)
		}
	case KindBool:
		switch b := raw.(type) {
		case bool:
			return BoolValue(b), nil
		case string:
			parsed, err := strconv.ParseBool(b)
			if err != nil {
				return Value{}, fmt.Errorf("expected boolean, got %q", b)
			}
			return BoolValue(parsed), nil
		default:
			return Value{}, fmt.Errorf("expected boolean, got %T", raw)
		}
	case KindStringList:
		items, ok := raw.([]interface{})
		if !ok {
			if s, isStr := raw.(string); isStr {
				// storage form: comma-joined
				if s == "" {
					return ListValue(), nil
				}
				return ListValue(strings.Split(s, ",")...), nil
			}
			return Value{}, fmt.Errorf("expected list of strings, got %T", raw)
		}
		list := make([]string, 0, len(items))
		for _, item := range items {
			s, isStr := item.(string)
			if !isStr {
				return Value{}, fmt.Errorf("expected list of strings, got element %T", item)
			}
			list = append(list, s)
		}
		return ListValue(list...), nil
	case KindBlob:
		m, ok := normalizeMap(raw)
		if !ok {
			return Value{}, fmt.Errorf("expected mapping, got %T", raw)
		}
		return BlobValue(m), nil
	}
	return Value{}, fmt.Errorf("unknown value kind %v", kind)
}

// ParseStorage converts a canonical flat-storage string back into a Value of
// the given kind. The inverse of StorageString.
func ParseStorage(kind Kind, s string) (Value, error) {
	if s == "" && kind != KindString {
		return Value{kind: kind}, nil
	}
	switch kind {
	case KindString:
		return StringValue(s), nil
	case KindInt:
		i, err := strconv.Atoi(s)
		if err != nil {
			return Value{}, fmt.Errorf("invalid stored integer %q", s)
		}
		return IntValue(i), nil
	case KindFloat:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Value{}, fmt.Errorf("invalid stored number %q", s)
		}
		return FloatValue(f), nil
	case KindBool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return Value{}, fmt.Errorf("invalid stored boolean %q", s)
		}
		return BoolValue(b), nil
	case KindStringList:
		return ListValue(strings.Split(s, ",")...), nil
	case KindBlob:
		var m map[string]interface{}
		if err := json.Unmarshal([]byte(s), &m); err != nil {
			return Value{}, fmt.Errorf("invalid stored blob: %w", err)
		}
		return BlobValue(m), nil
	}
	return Value{}, fmt.Errorf("unknown value kind %v", kind)
}

// normalizeMap converts the mapping shapes produced by yaml.v3 and json
// decoding into a map[string]interface{}.
func normalizeMap(raw interface{}) (map[string]interface{}, bool) {
	switch m := raw.(type) {
	case map[string]interface{}:
		return m, true
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(m))
		for k, v := range m {
			key, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[key] = v
		}
		return out, true
	}
	return nil, false
}

func sortedBlob(m map[string]interface{}) []interface{} {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]interface{}, 0, len(keys)*2)
	for _, k := range keys {
		out = append(out, k, m[k])
	}
	return out
}
