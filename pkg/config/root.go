package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

// Root owns the full section tree for one cluster configuration version.
// It is built either from a declarative document or from a previously
// persisted flat representation, and can serialize back to both.
type Root struct {
	schema   *Schema
	sections map[string][]*Section
	source   []byte

	// Version is the opaque token assigned when the configuration is
	// persisted; empty for configurations that were never stored.
	Version string
}

func newRoot(sch *Schema) *Root {
	return &Root{
		schema:   sch,
		sections: make(map[string][]*Section),
	}
}

// Schema returns the schema this root was built against
func (r *Root) Schema() *Schema { return r.schema }

// Source returns the original declarative input, verbatim
func (r *Root) Source() []byte { return r.source }

// RootSection returns the single cluster-wide root section
func (r *Root) RootSection() *Section {
	list := r.sections[r.schema.rootKey]
	if len(list) == 0 {
		return nil
	}
	return list[0]
}

// Sections returns all instances of a section kind, in attachment order
func (r *Root) Sections(key string) []*Section {
	return r.sections[key]
}

// Section returns the instance of a section kind with the given label.
// For kinds that can repeat under different parents, use ChildrenOf instead.
func (r *Root) Section(key, label string) *Section {
	for _, s := range r.sections[key] {
		if s.label == label {
			return s
		}
	}
	return nil
}

// DefaultSection returns the sole instance of a single-instance section kind,
// or nil when the configuration does not declare one.
func (r *Root) DefaultSection(key string) *Section {
	list := r.sections[key]
	if len(list) == 0 {
		return nil
	}
	return list[0]
}

// ChildrenOf returns the child sections attached through the named settings
// parameter of the given section, in the settings reference order.
func (r *Root) ChildrenOf(parent *Section, settingsKey string) []*Section {
	ps := parent.spec.param(settingsKey)
	if ps == nil || ps.SettingsFor == "" {
		return nil
	}
	var out []*Section
	for _, label := range parent.Value(settingsKey).List() {
		for _, s := range r.sections[ps.SettingsFor] {
			if s.label == label && s.parentKey == parent.spec.Key && s.parentLabel == parent.label {
				out = append(out, s)
				break
			}
		}
	}
	return out
}

// AttachSection adds a child section under parent through the named settings
// parameter, enforcing the per-parent instance cap and label uniqueness.
func (r *Root) AttachSection(parent *Section, settingsKey string, child *Section) error {
	ps := parent.spec.param(settingsKey)
	if ps == nil || ps.SettingsFor != child.spec.Key {
		return fmt.Errorf("section %q has no settings parameter %q for %q", parent.spec.Key, settingsKey, child.spec.Key)
	}
	if err := ValidateLabel(child.spec.Key, child.label); err != nil {
		return err
	}

	siblings := 0
	for _, s := range r.sections[child.spec.Key] {
		if s.parentKey != parent.spec.Key || s.parentLabel != parent.label {
			continue
		}
		if s.label == child.label {
			return &LabelError{Section: child.spec.Key, Label: child.label, Reason: "duplicate label under the same parent"}
		}
		siblings++
	}
	if siblings >= child.spec.maxInstances() {
		return &TooManySectionsError{
			Section: child.spec.Key,
			Parent:  fmt.Sprintf("%s[%s]", parent.spec.Key, parent.label),
			Max:     child.spec.maxInstances(),
		}
	}

	child.parentKey = parent.spec.Key
	child.parentLabel = parent.label
	r.sections[child.spec.Key] = append(r.sections[child.spec.Key], child)

	labels := append(parent.Value(settingsKey).List(), child.label)
	parent.params[settingsKey].value = ListValue(labels...)
	return nil
}

// DetachSection removes the child section with the given label from under
// parent and re-points the settings reference.
func (r *Root) DetachSection(parent *Section, settingsKey string, label string) error {
	ps := parent.spec.param(settingsKey)
	if ps == nil || ps.SettingsFor == "" {
		return fmt.Errorf("section %q has no settings parameter %q", parent.spec.Key, settingsKey)
	}

	list := r.sections[ps.SettingsFor]
	for i, s := range list {
		if s.label == label && s.parentKey == parent.spec.Key && s.parentLabel == parent.label {
			r.sections[ps.SettingsFor] = append(list[:i], list[i+1:]...)
			var labels []string
			for _, l := range parent.Value(settingsKey).List() {
				if l != label {
					labels = append(labels, l)
				}
			}
			parent.params[settingsKey].value = ListValue(labels...)
			return nil
		}
	}
	return fmt.Errorf("no %q section labeled %q under %s[%s]", ps.SettingsFor, label, parent.spec.Key, parent.label)
}

// FromDocument builds a configuration from a declarative YAML document
func FromDocument(sch *Schema, doc []byte) (*Root, error) {
	var top map[string]interface{}
	if err := yaml.Unmarshal(doc, &top); err != nil {
		return nil, fmt.Errorf("failed to parse configuration document: %w", err)
	}
	if top == nil {
		top = map[string]interface{}{}
	}
	r := newRoot(sch)
	r.source = append([]byte(nil), doc...)
	if err := r.build(top); err != nil {
		return nil, err
	}
	return r, nil
}

// FromResolvedJSON rebuilds a configuration from a previously persisted
// resolved JSON document.
func FromResolvedJSON(sch *Schema, data []byte) (*Root, error) {
	var top map[string]interface{}
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("failed to parse resolved configuration: %w", err)
	}
	r := newRoot(sch)
	r.source = append([]byte(nil), data...)
	if err := r.build(top); err != nil {
		return nil, err
	}
	return r, nil
}

// FromStorage reconstructs a configuration from the flat stack-parameter
// representation, optionally using the richer resolved-document blob held in
// the object store. Private derived parameters always come from the flat
// entries.
func FromStorage(sch *Schema, flat map[string]string, blob []byte) (*Root, error) {
	var r *Root
	var err error
	if len(blob) > 0 {
		r, err = FromResolvedJSON(sch, blob)
	} else {
		r, err = fromFlat(sch, flat)
	}
	if err != nil {
		return nil, err
	}

	root := r.RootSection()
	for _, ps := range root.spec.Params {
		if ps.Visibility != Private {
			continue
		}
		if raw, ok := flat[ps.storageKey()]; ok && raw != "" {
			if err := root.params[ps.Key].LoadStorage(raw); err != nil {
				return nil, err
			}
		}
	}
	r.Version = root.Value("ConfigVersion").String()
	return r, nil
}

// build constructs the section tree top-down from a decoded document
func (r *Root) build(top map[string]interface{}) error {
	rootSpec := r.schema.Section(r.schema.rootKey)
	if rootSpec == nil {
		return fmt.Errorf("schema has no root section %q", r.schema.rootKey)
	}
	rootSection := newSection(rootSpec, DefaultLabel)
	r.sections[r.schema.rootKey] = []*Section{rootSection}

	if err := r.buildSection(rootSection, top); err != nil {
		return err
	}
	return r.autocreate(rootSection)
}

// buildSection populates one section from its document fragment and
// recursively builds every child reachable through settings references.
func (r *Root) buildSection(s *Section, fragment map[string]interface{}) error {
	var result *multierror.Error

	// Settings references are replaced by their label lists before scalar
	// population; the nested fragments are kept for recursion.
	type pendingChild struct {
		settingsKey string
		label       string
		fragment    map[string]interface{}
	}
	var children []pendingChild

	scalar := make(map[string]interface{}, len(fragment))
	for k, v := range fragment {
		scalar[k] = v
	}

	for _, ps := range s.spec.Params {
		if ps.SettingsFor == "" {
			continue
		}
		raw, supplied := fragment[ps.Key]
		if !supplied {
			continue
		}
		childSpec := r.schema.Section(ps.SettingsFor)
		fragments, labels, err := childFragments(ps, childSpec, raw)
		if err != nil {
			result = multierror.Append(result, err)
			delete(scalar, ps.Key)
			continue
		}
		for i := range fragments {
			children = append(children, pendingChild{settingsKey: ps.Key, label: labels[i], fragment: fragments[i]})
		}
		scalar[ps.Key] = toInterfaceList(labels)
	}

	if err := s.populate(scalar); err != nil {
		result = multierror.Append(result, err)
	}

	for _, pc := range children {
		childSpec := r.schema.Section(s.spec.param(pc.settingsKey).SettingsFor)
		child := newSection(childSpec, pc.label)

		if err := r.attachBuilt(s, child); err != nil {
			result = multierror.Append(result, err)
			continue
		}
		if err := r.buildSection(child, pc.fragment); err != nil {
			result = multierror.Append(result, err)
		}
	}

	return result.ErrorOrNil()
}

// attachBuilt attaches a child created during document building. The settings
// label list was already populated from the document, so only the structural
// bookkeeping and cap checks run here.
func (r *Root) attachBuilt(parent *Section, child *Section) error {
	if err := ValidateLabel(child.spec.Key, child.label); err != nil {
		return err
	}
	siblings := 0
	for _, s := range r.sections[child.spec.Key] {
		if s.parentKey != parent.spec.Key || s.parentLabel != parent.label {
			continue
		}
		if s.label == child.label {
			return &LabelError{Section: child.spec.Key, Label: child.label, Reason: "duplicate label under the same parent"}
		}
		siblings++
	}
	if siblings >= child.spec.maxInstances() {
		return &TooManySectionsError{
			Section: child.spec.Key,
			Parent:  fmt.Sprintf("%s[%s]", parent.spec.Key, parent.label),
			Max:     child.spec.maxInstances(),
		}
	}
	child.parentKey = parent.spec.Key
	child.parentLabel = parent.label
	r.sections[child.spec.Key] = append(r.sections[child.spec.Key], child)
	return nil
}

// autocreate instantiates autocreated child sections that no settings
// reference pointed at, with defaults and the default label.
func (r *Root) autocreate(parent *Section) error {
	for _, ps := range parent.spec.Params {
		if ps.SettingsFor == "" {
			continue
		}
		childSpec := r.schema.Section(ps.SettingsFor)
		if !childSpec.Autocreate {
			continue
		}
		if len(parent.Value(ps.Key).List()) > 0 {
			continue
		}
		child := newSection(childSpec, DefaultLabel)
		if err := child.populate(map[string]interface{}{}); err != nil {
			return err
		}
		if err := r.attachBuilt(parent, child); err != nil {
			return err
		}
		parent.params[ps.Key].value = ListValue(DefaultLabel)
	}
	return nil
}

// childFragments splits a settings reference's raw document value into
// per-instance fragments and labels. Single-instance kinds take a mapping
// without a Name; repeated kinds take a list of mappings labeled by Name.
func childFragments(ps *ParamSpec, childSpec *SectionSpec, raw interface{}) ([]map[string]interface{}, []string, error) {
	if childSpec.maxInstances() == 1 {
		m, ok := normalizeMap(raw)
		if !ok {
			return nil, nil, &InvalidValueError{Param: ps.Key, Value: raw, Reason: "expected a mapping"}
		}
		return []map[string]interface{}{m}, []string{DefaultLabel}, nil
	}

	items, ok := raw.([]interface{})
	if !ok {
		return nil, nil, &InvalidValueError{Param: ps.Key, Value: raw, Reason: "expected a list of mappings"}
	}
	fragments := make([]map[string]interface{}, 0, len(items))
	labels := make([]string, 0, len(items))
	for _, item := range items {
		m, isMap := normalizeMap(item)
		if !isMap {
			return nil, nil, &InvalidValueError{Param: ps.Key, Value: item, Reason: "expected a mapping"}
		}
		name, _ := m["Name"].(string)
		if name == "" {
			return nil, nil, &LabelError{Section: childSpec.Key, Label: "", Reason: "Name is required"}
		}
		frag := make(map[string]interface{}, len(m))
		for k, v := range m {
			if k != "Name" {
				frag[k] = v
			}
		}
		fragments = append(fragments, frag)
		labels = append(labels, name)
	}
	return fragments, labels, nil
}

func toInterfaceList(labels []string) []interface{} {
	out := make([]interface{}, len(labels))
	for i, l := range labels {
		out[i] = l
	}
	return out
}

// Snapshot returns a deep copy of the configuration, suitable for diffing
// against a mutated or freshly loaded target without aliasing.
func (r *Root) Snapshot() (*Root, error) {
	data, err := r.ResolvedJSON()
	if err != nil {
		return nil, err
	}
	snap, err := FromResolvedJSON(r.schema, data)
	if err != nil {
		return nil, err
	}
	snap.source = append([]byte(nil), r.source...)
	snap.Version = r.Version

	// Private params are not part of the resolved document; carry them over.
	from := r.RootSection()
	to := snap.RootSection()
	for _, ps := range from.spec.Params {
		if ps.Visibility == Private {
			to.params[ps.Key].value = from.params[ps.Key].value
		}
	}
	return snap, nil
}

// resolvedFragment renders a section and its subtree as a native map holding
// every resolved PUBLIC field.
func (r *Root) resolvedFragment(s *Section) map[string]interface{} {
	out := make(map[string]interface{})
	for _, ps := range s.spec.Params {
		if ps.Visibility == Private {
			continue
		}
		p := s.params[ps.Key]
		if ps.SettingsFor != "" {
			children := r.ChildrenOf(s, ps.Key)
			if len(children) == 0 {
				continue
			}
			childSpec := r.schema.Section(ps.SettingsFor)
			if childSpec.maxInstances() == 1 {
				out[ps.Key] = r.resolvedFragment(children[0])
			} else {
				list := make([]interface{}, 0, len(children))
				for _, c := range children {
					frag := r.resolvedFragment(c)
					frag["Name"] = c.label
					list = append(list, frag)
				}
				out[ps.Key] = list
			}
			continue
		}
		if !p.value.IsSet() {
			continue
		}
		out[ps.Key] = p.value.Native()
	}
	return out
}

// ResolvedJSON serializes the fully resolved configuration (defaults
// included, private fields excluded) as JSON for persistence and diffing.
func (r *Root) ResolvedJSON() ([]byte, error) {
	return json.MarshalIndent(r.resolvedFragment(r.RootSection()), "", "  ")
}

// ToDocument serializes the configuration back to YAML, loss-free for every
// PUBLIC field, preserving parameter declaration order.
func (r *Root) ToDocument() ([]byte, error) {
	node := r.documentNode(r.RootSection())
	return yaml.Marshal(node)
}

func (r *Root) documentNode(s *Section) *yaml.Node {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, ps := range s.spec.Params {
		if ps.Visibility == Private {
			continue
		}
		p := s.params[ps.Key]
		if ps.SettingsFor != "" {
			children := r.ChildrenOf(s, ps.Key)
			if len(children) == 0 {
				continue
			}
			childSpec := r.schema.Section(ps.SettingsFor)
			var valueNode *yaml.Node
			if childSpec.maxInstances() == 1 {
				valueNode = r.documentNode(children[0])
			} else {
				valueNode = &yaml.Node{Kind: yaml.SequenceNode}
				for _, c := range children {
					childNode := r.documentNode(c)
					nameNode := scalarNode("Name")
					labelNode := scalarNode(c.label)
					childNode.Content = append([]*yaml.Node{nameNode, labelNode}, childNode.Content...)
					valueNode.Content = append(valueNode.Content, childNode)
				}
			}
			node.Content = append(node.Content, scalarNode(ps.Key), valueNode)
			continue
		}
		if !p.value.IsSet() {
			continue
		}
		valueNode := &yaml.Node{}
		if err := valueNode.Encode(p.value.Native()); err != nil {
			continue
		}
		node.Content = append(node.Content, scalarNode(ps.Key), valueNode)
	}
	return node
}

func scalarNode(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Value: s}
}

// ToFlat mirrors the configuration into the flat storage representation:
// one entry per parameter keyed by its storage path, label lists for settings
// references, and single ordered blobs for combined-storage sections.
// Private derived parameters are included.
func (r *Root) ToFlat() map[string]string {
	flat := make(map[string]string)
	r.flattenSection(r.RootSection(), "", flat)
	return flat
}

func (r *Root) flattenSection(s *Section, prefix string, flat map[string]string) {
	for _, ps := range s.spec.Params {
		p := s.params[ps.Key]
		if ps.SettingsFor != "" {
			children := r.ChildrenOf(s, ps.Key)
			flat[prefix+ps.Key] = p.value.StorageString()
			childSpec := r.schema.Section(ps.SettingsFor)
			for _, c := range children {
				entry := fmt.Sprintf("%s%s[%s]", prefix, ps.Key, c.label)
				if childSpec.CombinedStorage {
					flat[entry] = c.combinedStorage()
				} else {
					r.flattenSection(c, entry+".", flat)
				}
			}
			continue
		}
		if !p.value.IsSet() {
			continue
		}
		key, value := p.Storage()
		flat[prefix+key] = value
	}
}

// fromFlat is the inverse of ToFlat when no resolved-document blob exists
func fromFlat(sch *Schema, flat map[string]string) (*Root, error) {
	r := newRoot(sch)
	rootSpec := sch.Section(sch.rootKey)
	rootSection := newSection(rootSpec, DefaultLabel)
	r.sections[sch.rootKey] = []*Section{rootSection}

	if err := r.unflattenSection(rootSection, "", flat); err != nil {
		return nil, err
	}
	if err := r.autocreate(rootSection); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Root) unflattenSection(s *Section, prefix string, flat map[string]string) error {
	var result *multierror.Error

	scoped := make(map[string]string)
	for _, ps := range s.spec.Params {
		if ps.SettingsFor != "" {
			continue
		}
		if raw, ok := flat[prefix+ps.storageKey()]; ok {
			scoped[ps.storageKey()] = raw
		}
	}
	if err := s.populateStorage(scoped); err != nil {
		result = multierror.Append(result, err)
	}

	for _, ps := range s.spec.Params {
		if ps.SettingsFor == "" {
			continue
		}
		raw, ok := flat[prefix+ps.Key]
		if !ok || raw == "" {
			continue
		}
		labels := strings.Split(raw, ",")
		s.params[ps.Key].value = ListValue(labels...)

		childSpec := r.schema.Section(ps.SettingsFor)
		for _, label := range labels {
			child := newSection(childSpec, label)
			if err := r.attachBuilt(s, child); err != nil {
				result = multierror.Append(result, err)
				continue
			}
			entry := fmt.Sprintf("%s%s[%s]", prefix, ps.Key, label)
			if childSpec.CombinedStorage {
				scopedChild, err := child.splitCombinedStorage(flat[entry])
				if err != nil {
					result = multierror.Append(result, err)
					continue
				}
				if err := child.populateStorage(scopedChild); err != nil {
					result = multierror.Append(result, err)
				}
				continue
			}
			if err := r.unflattenSection(child, entry+".", flat); err != nil {
				result = multierror.Append(result, err)
			}
		}
	}

	return result.ErrorOrNil()
}
