package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestValueIsEmpty tests the empty-form rules per kind
func TestValueIsEmpty(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want bool
	}{
		{name: "unset value", v: Value{}, want: true},
		{name: "empty string", v: StringValue(""), want: true},
		{name: "non-empty string", v: StringValue("x"), want: false},
		{name: "zero int is not empty", v: IntValue(0), want: false},
		{name: "false bool is not empty", v: BoolValue(false), want: false},
		{name: "empty list", v: ListValue(), want: true},
		{name: "non-empty list", v: ListValue("a"), want: false},
		{name: "empty blob", v: BlobValue(map[string]interface{}{}), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.v.IsEmpty())
		})
	}
}

// TestValueEqual tests deep equality across kinds and set states
func TestValueEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{name: "two unset values", a: Value{}, b: Value{}, want: true},
		{name: "unset vs set", a: Value{}, b: StringValue(""), want: false},
		{name: "equal strings", a: StringValue("t2.micro"), b: StringValue("t2.micro"), want: true},
		{name: "different strings", a: StringValue("a"), b: StringValue("b"), want: false},
		{name: "different kinds", a: StringValue("1"), b: IntValue(1), want: false},
		{name: "equal ints", a: IntValue(10), b: IntValue(10), want: true},
		{name: "equal floats", a: FloatValue(0.5), b: FloatValue(0.5), want: true},
		{name: "equal bools", a: BoolValue(true), b: BoolValue(true), want: true},
		{name: "equal lists", a: ListValue("a", "b"), b: ListValue("a", "b"), want: true},
		{name: "list order matters", a: ListValue("a", "b"), b: ListValue("b", "a"), want: false},
		{name: "list length differs", a: ListValue("a"), b: ListValue("a", "b"), want: false},
		{
			name: "blobs compare by content not key order",
			a:    BlobValue(map[string]interface{}{"x": 1.0, "y": "z"}),
			b:    BlobValue(map[string]interface{}{"y": "z", "x": 1.0}),
			want: true,
		},
		{
			name: "different blobs",
			a:    BlobValue(map[string]interface{}{"x": 1.0}),
			b:    BlobValue(map[string]interface{}{"x": 2.0}),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Equal(tt.b))
			assert.Equal(t, tt.want, tt.b.Equal(tt.a), "Equal must be symmetric")
		})
	}
}

// TestStorageRoundTrip tests that ParseStorage inverts StorageString
func TestStorageRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		kind Kind
		v    Value
	}{
		{name: "string", kind: KindString, v: StringValue("head-node")},
		{name: "int", kind: KindInt, v: IntValue(42)},
		{name: "negative int", kind: KindInt, v: IntValue(-3)},
		{name: "float", kind: KindFloat, v: FloatValue(0.25)},
		{name: "bool true", kind: KindBool, v: BoolValue(true)},
		{name: "bool false", kind: KindBool, v: BoolValue(false)},
		{name: "list", kind: KindStringList, v: ListValue("q1", "q2")},
		{name: "blob", kind: KindBlob, v: BlobValue(map[string]interface{}{"a": "b"})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tt.v.StorageString()
			got, err := ParseStorage(tt.kind, s)
			require.NoError(t, err)
			assert.True(t, tt.v.Equal(got), "round-trip changed value: %q -> %v", s, got)
		})
	}
}

// TestParseStorageEmpty tests that an empty storage string yields an unset
// value for every kind except string
func TestParseStorageEmpty(t *testing.T) {
	for _, kind := range []Kind{KindInt, KindFloat, KindBool, KindStringList, KindBlob} {
		t.Run(kind.String(), func(t *testing.T) {
			v, err := ParseStorage(kind, "")
			require.NoError(t, err)
			assert.False(t, v.IsSet())
			assert.Equal(t, kind, v.Kind())
		})
	}

	v, err := ParseStorage(KindString, "")
	require.NoError(t, err)
	assert.True(t, v.IsSet(), "empty string is a legitimate string value")
}

// TestParseStorageInvalid tests rejection of malformed stored values
func TestParseStorageInvalid(t *testing.T) {
	tests := []struct {
		name string
		kind Kind
		s    string
	}{
		{name: "non-numeric int", kind: KindInt, s: "ten"},
		{name: "non-numeric float", kind: KindFloat, s: "half"},
		{name: "non-boolean", kind: KindBool, s: "yes please"},
		{name: "malformed blob", kind: KindBlob, s: "{not json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseStorage(tt.kind, tt.s)
			assert.Error(t, err)
		})
	}
}

// TestCoerce tests document-native conversion, including the json float64
// and yaml interface-keyed-map shapes
func TestCoerce(t *testing.T) {
	tests := []struct {
		name    string
		kind    Kind
		raw     interface{}
		want    Value
		wantErr bool
	}{
		{name: "nil is unset", kind: KindInt, raw: nil, want: Value{kind: KindInt}},
		{name: "string", kind: KindString, raw: "slurm", want: StringValue("slurm")},
		{name: "string from int rejected", kind: KindString, raw: 5, wantErr: true},
		{name: "int from int", kind: KindInt, raw: 7, want: IntValue(7)},
		{name: "int from whole float64", kind: KindInt, raw: float64(7), want: IntValue(7)},
		{name: "int from fractional float64 rejected", kind: KindInt, raw: 7.5, wantErr: true},
		{name: "int from numeric string", kind: KindInt, raw: "12", want: IntValue(12)},
		{name: "int from junk string rejected", kind: KindInt, raw: "lots", wantErr: true},
		{name: "float from int", kind: KindFloat, raw: 2, want: FloatValue(2)},
		{name: "float from float64", kind: KindFloat, raw: 0.3, want: FloatValue(0.3)},
		{name: "bool from bool", kind: KindBool, raw: true, want: BoolValue(true)},
		{name: "bool from string", kind: KindBool, raw: "false", want: BoolValue(false)},
		{name: "bool from int rejected", kind: KindBool, raw: 1, wantErr: true},
		{
			name: "list from interface slice",
			kind: KindStringList,
			raw:  []interface{}{"a", "b"},
			want: ListValue("a", "b"),
		},
		{
			name:    "list with non-string element rejected",
			kind:    KindStringList,
			raw:     []interface{}{"a", 2},
			wantErr: true,
		},
		{name: "list from comma string", kind: KindStringList, raw: "a,b", want: ListValue("a", "b")},
		{name: "list from empty string", kind: KindStringList, raw: "", want: ListValue()},
		{
			name: "blob from string-keyed map",
			kind: KindBlob,
			raw:  map[string]interface{}{"k": "v"},
			want: BlobValue(map[string]interface{}{"k": "v"}),
		},
		{
			name: "blob from interface-keyed map",
			kind: KindBlob,
			raw:  map[interface{}]interface{}{"k": "v"},
			want: BlobValue(map[string]interface{}{"k": "v"}),
		},
		{name: "blob from scalar rejected", kind: KindBlob, raw: "x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Coerce(tt.kind, tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "Coerce(%v, %v) = %v, want %v", tt.kind, tt.raw, got, tt.want)
		})
	}
}

// TestValueNative tests document-native serialization forms
func TestValueNative(t *testing.T) {
	assert.Nil(t, Value{}.Native())
	assert.Equal(t, "x", StringValue("x").Native())
	assert.Equal(t, 5, IntValue(5).Native())
	assert.Equal(t, true, BoolValue(true).Native())
	assert.Equal(t, []string{"a", "b"}, ListValue("a", "b").Native())
}
