package update

import (
	"fmt"

	"github.com/ridgeline-io/ridgeline/pkg/config"
)

// Diff walks both trees in lock-step by path and returns every change, in
// schema declaration order. Scalar parameters produce one change when the
// resolved values differ; settings parameters are compared as labeled lists,
// producing addition and removal changes for unmatched labels and recursing
// into elements present on both sides.
//
// Each change carries its resolved policy: the candidate set is the
// parameter's declared policy (or the section kind's policy for list element
// changes) plus the section policies crossed on the way down, and the highest
// severity candidate wins. On equal severity the candidate closest to the
// leaf wins.
func Diff(base, target *config.Root) []*Change {
	d := &differ{base: base, target: target}
	d.section(base.RootSection(), target.RootSection(), nil, nil)
	return d.changes
}

type differ struct {
	base    *config.Root
	target  *config.Root
	changes []*Change
}

func (d *differ) section(b, t *config.Section, path []string, crossed []string) {
	for _, p := range b.Params() {
		ps := p.Spec()
		if ps.Visibility == config.Private {
			continue
		}
		if ps.SettingsFor != "" {
			d.children(b, t, ps, path, crossed)
			continue
		}
		oldV, newV := b.Value(ps.Key), t.Value(ps.Key)
		if !oldV.Equal(newV) {
			d.emit(&Change{Path: path, Key: ps.Key, Old: oldV, New: newV}, crossed, ps.Policy)
		}
	}
}

func (d *differ) children(b, t *config.Section, ps *config.ParamSpec, path, crossed []string) {
	oldKids := d.base.ChildrenOf(b, ps.Key)
	newKids := d.target.ChildrenOf(t, ps.Key)

	kindPolicy := ""
	if spec := d.base.Schema().Section(ps.SettingsFor); spec != nil {
		kindPolicy = spec.Policy
	}

	for _, old := range oldKids {
		if findLabel(newKids, old.Label()) == nil {
			d.emit(&Change{
				Path:   path,
				Key:    ps.Key,
				Old:    config.StringValue(old.Label()),
				IsList: true,
			}, crossed, kindPolicy)
		}
	}
	for _, nw := range newKids {
		if findLabel(oldKids, nw.Label()) == nil {
			d.emit(&Change{
				Path:   path,
				Key:    ps.Key,
				New:    config.StringValue(nw.Label()),
				IsList: true,
			}, crossed, kindPolicy)
		}
	}
	for _, old := range oldKids {
		nw := findLabel(newKids, old.Label())
		if nw == nil {
			continue
		}
		childPath := append(append([]string{}, path...), pathSegment(ps.Key, old.Label()))
		childCrossed := crossed
		if kindPolicy != "" {
			childCrossed = append(append([]string{}, crossed...), kindPolicy)
		}
		d.section(old, nw, childPath, childCrossed)
	}
}

// emit resolves the governing policy from the crossed section policies plus
// the leaf policy and records the change.
func (d *differ) emit(c *Change, crossed []string, leaf string) {
	if leaf == "" {
		leaf = config.PolicyUnsupported
	}
	winner := leaf
	for _, name := range crossed {
		if severityOf(name) > severityOf(winner) {
			winner = name
		}
	}
	c.policy = winner
	d.changes = append(d.changes, c)
}

func findLabel(sections []*config.Section, label string) *config.Section {
	for _, s := range sections {
		if s.Label() == label {
			return s
		}
	}
	return nil
}

func pathSegment(key, label string) string {
	if label == config.DefaultLabel {
		return key
	}
	return fmt.Sprintf("%s[%s]", key, label)
}

// sectionAt resolves the section a change path points at, nil when the tree
// does not contain it.
func sectionAt(root *config.Root, path []string) *config.Section {
	cur := root.RootSection()
	for _, seg := range path {
		key, label := splitSegment(seg)
		var next *config.Section
		for _, child := range root.ChildrenOf(cur, key) {
			if child.Label() == label {
				next = child
				break
			}
		}
		if next == nil {
			return nil
		}
		cur = next
	}
	return cur
}

func splitSegment(seg string) (key, label string) {
	for i := 0; i < len(seg); i++ {
		if seg[i] == '[' && seg[len(seg)-1] == ']' {
			return seg[:i], seg[i+1 : len(seg)-1]
		}
	}
	return seg, config.DefaultLabel
}
