package update

import (
	"context"
	"fmt"

	"github.com/ridgeline-io/ridgeline/pkg/config"
	"github.com/ridgeline-io/ridgeline/pkg/fleet"
	"github.com/ridgeline-io/ridgeline/pkg/types"
)

// ConditionFunc decides whether a change is allowed given the surrounding
// patch context. A returned error means the check could not be performed and
// the change fails with the error text.
type ConditionFunc func(ctx context.Context, c *Change, p *Patch) (bool, error)

// ReasonFunc renders user-facing text for a denied change
type ReasonFunc func(ctx context.Context, c *Change, p *Patch) string

// Policy is a plain data record describing one update rule. Policies hold no
// mutable state; all context flows in through the explicit parameters.
type Policy struct {
	Name     string
	Severity int
	// Operational marks policies whose denial the operator can act on
	// (stop the fleet, set an override). Denials map to ACTION_NEEDED;
	// non-operational denials map to FAILED.
	Operational  bool
	Condition    ConditionFunc
	FailReason   ReasonFunc
	ActionNeeded ReasonFunc
	// PrintAlways surfaces the change to the user even when it is allowed
	PrintAlways bool
}

func staticReason(text string) ReasonFunc {
	return func(context.Context, *Change, *Patch) string { return text }
}

// policies is the catalog, keyed by the names the schema references
var policies = map[string]*Policy{
	config.PolicyIgnored: {
		Name:        config.PolicyIgnored,
		Severity:    -10,
		Operational: true,
		Condition:   condAlways,
		PrintAlways: false,
	},
	config.PolicySupported: {
		Name:        config.PolicySupported,
		Severity:    0,
		Operational: true,
		Condition:   condAlways,
		PrintAlways: true,
	},
	config.PolicyQueueUpdateStrategy: {
		Name:         config.PolicyQueueUpdateStrategy,
		Severity:     5,
		Operational:  true,
		Condition:    condQueueUpdateStrategy,
		FailReason:   staticReason("all compute nodes must be stopped or QueueUpdateStrategy must be set"),
		ActionNeeded: staticReason("stop the compute fleet with the stop command, or set Scheduling/QueueUpdateStrategy to DRAIN or TERMINATE, then retry the update"),
		PrintAlways:  true,
	},
	config.PolicyMaxCountShrink: {
		Name:         config.PolicyMaxCountShrink,
		Severity:     10,
		Operational:  true,
		Condition:    condMaxCountShrink,
		FailReason:   reasonMaxCountShrink,
		ActionNeeded: staticReason("stop the compute fleet with the stop command, or keep MaxCount at or above its current value"),
		PrintAlways:  true,
	},
	config.PolicyComputeFleetStop: {
		Name:         config.PolicyComputeFleetStop,
		Severity:     10,
		Operational:  true,
		Condition:    condFleetStopped,
		FailReason:   reasonFleetRunning,
		ActionNeeded: staticReason("stop the compute fleet with the stop command, then retry the update"),
		PrintAlways:  true,
	},
	config.PolicyManagedPlacementGroup: {
		Name:         config.PolicyManagedPlacementGroup,
		Severity:     20,
		Operational:  true,
		Condition:    condManagedPlacementGroup,
		FailReason:   staticReason("deleting the managed placement group requires all compute nodes to be stopped"),
		ActionNeeded: staticReason("stop the compute fleet with the stop command, then retry the update"),
		PrintAlways:  true,
	},
	config.PolicyHeadNodeStop: {
		Name:         config.PolicyHeadNodeStop,
		Severity:     20,
		Operational:  true,
		Condition:    condHeadNodeStopped,
		FailReason:   reasonHeadNodeRunning,
		ActionNeeded: staticReason("stop the head node, apply the update, then start it again"),
		PrintAlways:  true,
	},
	config.PolicyReadOnly: {
		Name:         config.PolicyReadOnly,
		Severity:     30,
		Condition:    condReadOnly,
		FailReason:   reasonReadOnly,
		ActionNeeded: staticReason("restore the previous value; this field is fixed at cluster creation"),
		PrintAlways:  true,
	},
	config.PolicyUnsupported: {
		Name:         config.PolicyUnsupported,
		Severity:     40,
		Condition:    condNever,
		FailReason:   reasonUnsupported,
		ActionNeeded: staticReason("if the change is required, create a new cluster instead of updating this one"),
		PrintAlways:  true,
	},
}

// PolicyByName returns the policy record for a schema policy reference.
// Unknown names resolve to UNSUPPORTED.
func PolicyByName(name string) *Policy {
	if p, ok := policies[name]; ok {
		return p
	}
	return policies[config.PolicyUnsupported]
}

func severityOf(name string) int {
	return PolicyByName(name).Severity
}

// condAlways allows unconditionally
func condAlways(context.Context, *Change, *Patch) (bool, error) {
	return true, nil
}

// condNever denies unconditionally
func condNever(context.Context, *Change, *Patch) (bool, error) {
	return false, nil
}

// condFleetStopped requires no running compute capacity. Pure additions pass
// regardless of fleet state; only removals and value changes need the stop.
func condFleetStopped(ctx context.Context, c *Change, p *Patch) (bool, error) {
	if c.IsAddition() {
		return true, nil
	}
	status, err := p.FleetStatus(ctx)
	if err != nil {
		return false, err
	}
	return status == fleet.StatusStopped, nil
}

// condQueueUpdateStrategy allows under a stopped fleet, or under a declared
// non-default replacement strategy. For removals the override applies only
// when every element of the old list still appears in the new list, which in
// practice means the override never relaxes an actual removal.
// TODO(product): confirm whether removals should be allowed under DRAIN and
// TERMINATE; the current behavior only relaxes value changes.
func condQueueUpdateStrategy(ctx context.Context, c *Change, p *Patch) (bool, error) {
	if c.IsAddition() {
		return true, nil
	}

	status, err := p.FleetStatus(ctx)
	if err != nil {
		return false, err
	}
	if status == fleet.StatusStopped {
		return true, nil
	}

	if p.QueueUpdateStrategy() == "COMPUTE_FLEET_STOP" {
		return false, nil
	}

	if c.IsRemoval() {
		return oldLabelsRetained(c, p), nil
	}
	return true, nil
}

// oldLabelsRetained reports whether every label of the base-side list still
// appears in the target-side list.
func oldLabelsRetained(c *Change, p *Patch) bool {
	baseOwner := sectionAt(p.Base, c.Path)
	targetOwner := sectionAt(p.Target, c.Path)
	if baseOwner == nil || targetOwner == nil {
		return false
	}
	newLabels := make(map[string]bool)
	for _, label := range targetOwner.Value(c.Key).List() {
		newLabels[label] = true
	}
	for _, label := range baseOwner.Value(c.Key).List() {
		if !newLabels[label] {
			return false
		}
	}
	return true
}

// condManagedPlacementGroup always requires the stopped fleet, even when a
// relaxing queue strategy is declared: tearing down the managed placement
// group cannot be undone without downtime.
func condManagedPlacementGroup(ctx context.Context, c *Change, p *Patch) (bool, error) {
	status, err := p.FleetStatus(ctx)
	if err != nil {
		return false, err
	}
	return status == fleet.StatusStopped, nil
}

// condReadOnly denies every real change; only transitions between unset and
// effectively-empty values pass.
func condReadOnly(_ context.Context, c *Change, _ *Patch) (bool, error) {
	return c.Old.IsEmpty() && c.New.IsEmpty(), nil
}

// condHeadNodeStopped requires the head node instance to be stopped
func condHeadNodeStopped(ctx context.Context, c *Change, p *Patch) (bool, error) {
	state, err := p.HeadNodeState(ctx)
	if err != nil {
		return false, err
	}
	return state == types.HeadNodeStopped, nil
}

// condMaxCountShrink allows growth and no-op holds freely; shrinking needs a
// stopped fleet.
func condMaxCountShrink(ctx context.Context, c *Change, p *Patch) (bool, error) {
	if c.New.Int() >= c.Old.Int() {
		return true, nil
	}
	status, err := p.FleetStatus(ctx)
	if err != nil {
		return false, err
	}
	return status == fleet.StatusStopped, nil
}

func reasonFleetRunning(ctx context.Context, c *Change, p *Patch) string {
	if n, err := p.RunningCapacity(ctx); err == nil && n > 0 {
		return fmt.Sprintf("all compute nodes must be stopped (%d instances currently running)", n)
	}
	return "all compute nodes must be stopped"
}

func reasonMaxCountShrink(ctx context.Context, c *Change, p *Patch) string {
	return fmt.Sprintf("shrinking MaxCount from %d to %d requires all compute nodes to be stopped", c.Old.Int(), c.New.Int())
}

func reasonHeadNodeRunning(_ context.Context, c *Change, _ *Patch) string {
	return fmt.Sprintf("updating %s requires the head node to be stopped", c.PathString())
}

func reasonReadOnly(_ context.Context, c *Change, _ *Patch) string {
	return fmt.Sprintf("%s cannot be changed after cluster creation", c.PathString())
}

func reasonUnsupported(_ context.Context, c *Change, _ *Patch) string {
	return fmt.Sprintf("updating %s is not supported", c.PathString())
}
