package update

import (
	"context"
	"fmt"
	"strings"

	"github.com/ridgeline-io/ridgeline/pkg/config"
	"github.com/ridgeline-io/ridgeline/pkg/fleet"
	"github.com/ridgeline-io/ridgeline/pkg/types"
)

// Change is one differing field or list element between the base and target
// configuration trees. Changes are derived from the fully resolved trees, so
// a field the user left to its default is compared like any other field.
type Change struct {
	// Path locates the owning section, e.g.
	// ["Scheduling", "SlurmQueues[q1]", "ComputeResources[cr1]"]
	Path []string
	// Key is the changed parameter, or the settings parameter for list
	// element additions and removals
	Key string
	// Old and New are the resolved values on each side. For list element
	// changes the present side holds the element label and the absent side
	// is unset.
	Old config.Value
	New config.Value
	// IsList marks a list element addition or removal rather than a scalar
	// replacement
	IsList bool

	policy string
}

// PolicyName returns the resolved update policy governing this change
func (c *Change) PolicyName() string { return c.policy }

// IsAddition reports whether this change adds a list element
func (c *Change) IsAddition() bool { return c.IsList && !c.Old.IsSet() }

// IsRemoval reports whether this change removes a list element
func (c *Change) IsRemoval() bool { return c.IsList && !c.New.IsSet() }

// PathString renders the full path including the changed key, e.g.
// Scheduling/SlurmQueues[q1]/ComputeResources[cr1]/InstanceType
func (c *Change) PathString() string {
	if c.IsList {
		label := c.Old.String()
		if c.IsAddition() {
			label = c.New.String()
		}
		return strings.Join(append(append([]string{}, c.Path...), fmt.Sprintf("%s[%s]", c.Key, label)), "/")
	}
	return strings.Join(append(append([]string{}, c.Path...), c.Key), "/")
}

// ClusterState exposes the live cluster observations condition checkers need.
// Implemented by the lifecycle controller against the cloud collaborators and
// by fakes in tests.
type ClusterState interface {
	Name() string
	FleetStatus(ctx context.Context) (fleet.Status, error)
	HeadNodeState(ctx context.Context) (types.HeadNodeState, error)
	RunningCapacity(ctx context.Context) (int, error)
}

// Patch aggregates one proposed update: both fully resolved trees, the live
// cluster handle, and the ordered change list. A Patch is built fresh for
// every update evaluation and shares no state with other evaluations.
type Patch struct {
	Base    *config.Root
	Target  *config.Root
	Cluster ClusterState
	Changes []*Change

	fleetLoaded bool
	fleetStatus fleet.Status

	capacityLoaded bool
	capacity       int

	headLoaded bool
	headState  types.HeadNodeState
}

// NewPatch diffs base against target and packages the result for evaluation
func NewPatch(base, target *config.Root, cluster ClusterState) *Patch {
	return &Patch{
		Base:    base,
		Target:  target,
		Cluster: cluster,
		Changes: Diff(base, target),
	}
}

// FleetStatus returns the cluster's fleet status, cached for the lifetime of
// the patch so every condition sees one consistent observation.
func (p *Patch) FleetStatus(ctx context.Context) (fleet.Status, error) {
	if p.Cluster == nil {
		return fleet.StatusUnknown, fmt.Errorf("no cluster state available")
	}
	if !p.fleetLoaded {
		status, err := p.Cluster.FleetStatus(ctx)
		if err != nil {
			return fleet.StatusUnknown, err
		}
		p.fleetStatus = status
		p.fleetLoaded = true
	}
	return p.fleetStatus, nil
}

// RunningCapacity returns the number of running compute instances, cached
func (p *Patch) RunningCapacity(ctx context.Context) (int, error) {
	if p.Cluster == nil {
		return 0, fmt.Errorf("no cluster state available")
	}
	if !p.capacityLoaded {
		n, err := p.Cluster.RunningCapacity(ctx)
		if err != nil {
			return 0, err
		}
		p.capacity = n
		p.capacityLoaded = true
	}
	return p.capacity, nil
}

// HeadNodeState returns the head node instance state, cached
func (p *Patch) HeadNodeState(ctx context.Context) (types.HeadNodeState, error) {
	if p.Cluster == nil {
		return types.HeadNodeUnknown, fmt.Errorf("no cluster state available")
	}
	if !p.headLoaded {
		state, err := p.Cluster.HeadNodeState(ctx)
		if err != nil {
			return types.HeadNodeUnknown, err
		}
		p.headState = state
		p.headLoaded = true
	}
	return p.headState, nil
}

// QueueUpdateStrategy returns the strategy declared by the target tree, the
// conservative default when none is declared.
func (p *Patch) QueueUpdateStrategy() string {
	scheduling := p.Target.DefaultSection("scheduling")
	if scheduling == nil {
		return "COMPUTE_FLEET_STOP"
	}
	if s := scheduling.Value("QueueUpdateStrategy").String(); s != "" {
		return s
	}
	return "COMPUTE_FLEET_STOP"
}
