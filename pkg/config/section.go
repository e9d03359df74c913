package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// DefaultLabel is the label given to autocreated singleton sections
const DefaultLabel = "default"

var labelPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]{0,29}$`)

// ValidateLabel checks a section label against the label grammar: a leading
// letter, then letters, digits, hyphens or underscores, at most 30 characters.
func ValidateLabel(sectionKey, label string) error {
	if !labelPattern.MatchString(label) {
		return &LabelError{
			Section: sectionKey,
			Label:   label,
			Reason:  "must start with a letter, contain only letters, digits, '-' or '_', and be at most 30 characters",
		}
	}
	return nil
}

// SectionValidator is a section-level validation rule receiving the section
// and the configuration root for cross-section lookups.
type SectionValidator func(s *Section, root *Root) (errs []string, warns []string)

// SectionSpec declares one section kind
type SectionSpec struct {
	// Key is the section type identifier, e.g. "queue"
	Key string

	// MaxInstances caps sibling sections of this kind under one parent.
	// Zero means exactly one instance.
	MaxInstances int

	// Autocreate sections are instantiated with defaults under DefaultLabel
	// even when no settings reference points at them.
	Autocreate bool

	// Params are the declared parameters, in declaration order. Order is
	// significant for default resolution and for combined storage blobs.
	Params []*ParamSpec

	// CombinedStorage serializes all scalar parameters of an instance as one
	// ordered comma-joined storage entry instead of one entry per parameter.
	// The blob carries no field names, so deserialization relies on
	// declaration order.
	CombinedStorage bool

	// Policy names the update policy governing addition or removal of whole
	// instances of this section kind.
	Policy string

	Validators []SectionValidator
}

func (ss *SectionSpec) maxInstances() int {
	if ss.MaxInstances <= 0 {
		return 1
	}
	return ss.MaxInstances
}

func (ss *SectionSpec) param(key string) *ParamSpec {
	for _, ps := range ss.Params {
		if ps.Key == key {
			return ps
		}
	}
	return nil
}

// Section is one labeled instance of a section kind, owning its parameters.
// The parent reference is a lookup key into the root's section table, never
// an owning pointer.
type Section struct {
	spec   *SectionSpec
	label  string
	params map[string]*Param

	parentKey   string
	parentLabel string
}

func newSection(spec *SectionSpec, label string) *Section {
	s := &Section{
		spec:   spec,
		label:  label,
		params: make(map[string]*Param, len(spec.Params)),
	}
	for _, ps := range spec.Params {
		s.params[ps.Key] = &Param{spec: ps}
	}
	return s
}

// Spec returns the section's declaration
func (s *Section) Spec() *SectionSpec { return s.spec }

// Key returns the section type identifier
func (s *Section) Key() string { return s.spec.Key }

// Label returns the instance identifier
func (s *Section) Label() string { return s.label }

// Parent returns the lookup key of the owning section
func (s *Section) Parent() (key, label string) { return s.parentKey, s.parentLabel }

// Param returns the named parameter instance, or nil if not declared
func (s *Section) Param(key string) *Param { return s.params[key] }

// Value returns the resolved value of the named parameter. An undeclared key
// yields the unset Value.
func (s *Section) Value(key string) Value {
	p := s.params[key]
	if p == nil {
		return Value{}
	}
	return p.value
}

// SetValue explicitly sets a parameter value, subject to the parameter's
// constraints. This is the only mutation entry point after population.
func (s *Section) SetValue(key string, raw interface{}) error {
	p := s.params[key]
	if p == nil {
		return &UnknownFieldError{Section: s.spec.Key, Label: s.label, Field: key}
	}
	return p.Load(raw)
}

// Params returns the parameter instances in declaration order
func (s *Section) Params() []*Param {
	out := make([]*Param, 0, len(s.spec.Params))
	for _, ps := range s.spec.Params {
		out = append(out, s.params[ps.Key])
	}
	return out
}

// populate loads every declared parameter from the document fragment, in
// declaration order, resolving defaults for parameters the fragment omits.
// Settings references must already have been rewritten to label lists by the
// tree builder. Errors are aggregated, not short-circuited.
func (s *Section) populate(fragment map[string]interface{}) error {
	var result *multierror.Error

	for key := range fragment {
		ps := s.spec.param(key)
		if ps == nil {
			result = multierror.Append(result, &UnknownFieldError{Section: s.spec.Key, Label: s.label, Field: key})
			continue
		}
		if ps.Visibility == Private {
			result = multierror.Append(result, &DisallowedFieldError{Section: s.spec.Key, Field: key})
		}
	}

	for _, ps := range s.spec.Params {
		p := s.params[ps.Key]
		raw, supplied := fragment[ps.Key]
		if supplied && ps.Visibility != Private {
			if err := p.Load(raw); err != nil {
				result = multierror.Append(result, err)
				continue
			}
		}
		p.resolveDefault(s)
	}

	return result.ErrorOrNil()
}

// populateStorage loads parameters from their flat-storage entries. For
// combined-storage sections the single blob must already have been split
// into per-parameter strings, in declaration order.
func (s *Section) populateStorage(flat map[string]string) error {
	var result *multierror.Error

	for _, ps := range s.spec.Params {
		p := s.params[ps.Key]
		raw, supplied := flat[ps.storageKey()]
		if supplied && raw != "" {
			if err := p.LoadStorage(raw); err != nil {
				result = multierror.Append(result, err)
				continue
			}
		}
		p.resolveDefault(s)
	}

	return result.ErrorOrNil()
}

// combinedStorage returns the single ordered blob for a combined-storage
// section: the storage strings of all non-settings parameters joined by
// commas in declaration order.
func (s *Section) combinedStorage() string {
	var fields []string
	for _, ps := range s.spec.Params {
		if ps.SettingsFor != "" {
			continue
		}
		fields = append(fields, s.params[ps.Key].value.StorageString())
	}
	return strings.Join(fields, ",")
}

// splitCombinedStorage maps an ordered blob back onto per-parameter storage
// strings by declaration order.
func (s *Section) splitCombinedStorage(blob string) (map[string]string, error) {
	fields := splitN(blob, ',')
	flat := make(map[string]string)
	i := 0
	for _, ps := range s.spec.Params {
		if ps.SettingsFor != "" {
			continue
		}
		if i >= len(fields) {
			return nil, fmt.Errorf("combined storage blob for section %q has %d fields, want %d", s.spec.Key, len(fields), i+1)
		}
		flat[ps.storageKey()] = fields[i]
		i++
	}
	if i != len(fields) {
		return nil, fmt.Errorf("combined storage blob for section %q has %d fields, want %d", s.spec.Key, len(fields), i)
	}
	return flat, nil
}

func splitN(s string, sep byte) []string {
	var fields []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == sep {
			fields = append(fields, s[start:i])
			start = i + 1
		}
	}
	return append(fields, s[start:])
}
