package config

import (
	"regexp"
)

// Visibility controls whether a parameter may appear in user input
type Visibility int

const (
	// Public parameters are settable by the user
	Public Visibility = iota
	// Private parameters are internal or derived; their presence in a user
	// document is a parse error, but they may be persisted to flat storage.
	Private
)

// DefaultFunc computes a parameter default from the partially resolved owning
// section. It may only read parameters declared before its own; the schema
// registry enforces that at construction time.
type DefaultFunc func(s *Section) Value

// ParamValidator is a parameter-level validation rule. It receives the
// parameter key, its resolved value, and the configuration root for
// cross-section lookups, and returns hard errors and non-blocking warnings.
type ParamValidator func(key string, v Value, root *Root) (errs []string, warns []string)

// ParamSpec declares one parameter of a section kind
type ParamSpec struct {
	Key        string
	Kind       Kind
	Required   bool
	Visibility Visibility

	// StorageKey overrides Key in the flat storage representation
	StorageKey string

	// Default is the literal default; DefaultFn computes one from siblings.
	// At most one of the two may be set.
	Default   Value
	DefaultFn DefaultFunc
	// DefaultFnReads names the sibling parameters the default function reads.
	// Checked against declaration order when the schema is built.
	DefaultFnReads []string

	// Allowed restricts the value to an enumerated set (storage-string form);
	// Pattern to a full-match regular expression. ElemPattern applies the
	// pattern check to every element of a string-list value.
	Allowed     []string
	Pattern     string
	ElemPattern string

	// Policy names the update policy governing changes to this parameter.
	// Empty resolves to the most conservative policy at diff time.
	Policy string

	// SettingsFor marks this parameter as a settings reference attaching
	// child sections of the named kind. Its value is the ordered label list.
	SettingsFor string

	Validators []ParamValidator

	pattern     *regexp.Regexp
	elemPattern *regexp.Regexp
}

func (ps *ParamSpec) storageKey() string {
	if ps.StorageKey != "" {
		return ps.StorageKey
	}
	return ps.Key
}

// Param is one parameter instance inside a section
type Param struct {
	spec        *ParamSpec
	value       Value
	fromDefault bool
}

// Spec returns the parameter's declaration
func (p *Param) Spec() *ParamSpec { return p.spec }

// Key returns the parameter key
func (p *Param) Key() string { return p.spec.Key }

// Value returns the resolved value
func (p *Param) Value() Value { return p.value }

// FromDefault reports whether the value came from default resolution rather
// than user input.
func (p *Param) FromDefault() bool { return p.fromDefault }

// Load validates raw user input against the parameter's constraints and
// coerces it to the parameter's kind.
func (p *Param) Load(raw interface{}) error {
	v, err := Coerce(p.spec.Kind, raw)
	if err != nil {
		return &InvalidValueError{Param: p.spec.Key, Value: raw, Reason: err.Error()}
	}
	if err := p.check(v, raw); err != nil {
		return err
	}
	p.value = v
	p.fromDefault = false
	return nil
}

// LoadStorage is Load for the canonical flat-storage string form
func (p *Param) LoadStorage(s string) error {
	v, err := ParseStorage(p.spec.Kind, s)
	if err != nil {
		return &InvalidValueError{Param: p.spec.Key, Value: s, Reason: err.Error()}
	}
	if err := p.check(v, s); err != nil {
		return err
	}
	p.value = v
	p.fromDefault = false
	return nil
}

func (p *Param) check(v Value, raw interface{}) error {
	if !v.IsSet() {
		return nil
	}
	if len(p.spec.Allowed) > 0 {
		got := v.StorageString()
		found := false
		for _, a := range p.spec.Allowed {
			if a == got {
				found = true
				break
			}
		}
		if !found {
			return &InvalidValueError{Param: p.spec.Key, Value: raw, Allowed: p.spec.Allowed}
		}
	}
	if p.spec.pattern != nil && !p.spec.pattern.MatchString(v.StorageString()) {
		return &InvalidValueError{Param: p.spec.Key, Value: raw, Pattern: p.spec.Pattern}
	}
	if p.spec.elemPattern != nil && v.Kind() == KindStringList {
		for _, item := range v.List() {
			if !p.spec.elemPattern.MatchString(item) {
				return &InvalidValueError{Param: p.spec.Key, Value: item, Pattern: p.spec.ElemPattern}
			}
		}
	}
	return nil
}

// resolveDefault fills the value from the literal or computed default. The
// section passed in is partially resolved: parameters declared before this
// one already carry their final values.
func (p *Param) resolveDefault(s *Section) {
	if p.value.IsSet() {
		return
	}
	switch {
	case p.spec.DefaultFn != nil:
		p.value = p.spec.DefaultFn(s)
	case p.spec.Default.IsSet():
		p.value = p.spec.Default
	default:
		p.value = Value{kind: p.spec.Kind}
	}
	p.fromDefault = true
}

// Storage returns the parameter's flat-storage entry
func (p *Param) Storage() (key, value string) {
	return p.spec.storageKey(), p.value.StorageString()
}
