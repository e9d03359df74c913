package config

import (
	"fmt"
	"strings"
)

// InvalidValueError reports a parameter value that violates its allowed-values
// constraint or cannot be coerced to the parameter's kind.
type InvalidValueError struct {
	Param   string
	Value   interface{}
	Allowed []string
	Pattern string
	Reason  string
}

func (e *InvalidValueError) Error() string {
	msg := fmt.Sprintf("invalid value %v for parameter %q", e.Value, e.Param)
	switch {
	case len(e.Allowed) > 0:
		msg += fmt.Sprintf(": allowed values are [%s]", strings.Join(e.Allowed, ", "))
	case e.Pattern != "":
		msg += fmt.Sprintf(": must match %q", e.Pattern)
	case e.Reason != "":
		msg += ": " + e.Reason
	}
	return msg
}

// Kind returns the stable machine-readable error kind
func (e *InvalidValueError) Kind() string { return "InvalidValue" }

// UnknownFieldError reports a field in user input that the section does not declare
type UnknownFieldError struct {
	Section string
	Label   string
	Field   string
}

func (e *UnknownFieldError) Error() string {
	if e.Label != "" {
		return fmt.Sprintf("unknown field %q in section %s[%s]", e.Field, e.Section, e.Label)
	}
	return fmt.Sprintf("unknown field %q in section %q", e.Field, e.Section)
}

// Kind returns the stable machine-readable error kind
func (e *UnknownFieldError) Kind() string { return "UnknownField" }

// DisallowedFieldError reports a PRIVATE field supplied in user input
type DisallowedFieldError struct {
	Section string
	Field   string
}

func (e *DisallowedFieldError) Error() string {
	return fmt.Sprintf("field %q in section %q is not allowed", e.Field, e.Section)
}

// Kind returns the stable machine-readable error kind
func (e *DisallowedFieldError) Kind() string { return "DisallowedField" }

// TooManySectionsError reports that attaching a section would exceed the
// per-parent instance cap for its kind.
type TooManySectionsError struct {
	Section string
	Parent  string
	Max     int
}

func (e *TooManySectionsError) Error() string {
	return fmt.Sprintf("too many %q sections under %s: at most %d allowed", e.Section, e.Parent, e.Max)
}

// Kind returns the stable machine-readable error kind
func (e *TooManySectionsError) Kind() string { return "TooManySections" }

// LabelError reports a section label that violates the label grammar or
// collides with a sibling of the same kind.
type LabelError struct {
	Section string
	Label   string
	Reason  string
}

func (e *LabelError) Error() string {
	return fmt.Sprintf("invalid label %q for section %q: %s", e.Label, e.Section, e.Reason)
}

// Kind returns the stable machine-readable error kind
func (e *LabelError) Kind() string { return "InvalidLabel" }
