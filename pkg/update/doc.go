/*
Package update computes the structural diff between two cluster
configurations and decides, per changed field, whether the change can be
applied to the running cluster.

# Architecture

	base tree ──┐
	            ├──▶ Diff ──▶ []Change ──▶ Engine.Evaluate ──▶ Report
	target tree ┘                │                │
	                             │                ▼
	                     policy resolution   condition checks
	                     (severity wins)     (fleet, head node,
	                                          strategy override)

Diff walks both fully resolved trees in lock-step. Scalar parameters compare
by value; labeled section lists (queues, compute resources, storage) compare
by label, producing addition and removal changes and recursing into elements
present on both sides. Paths read like the document:
Scheduling/SlurmQueues[q1]/ComputeResources[cr1]/MaxCount.

Every parameter and section kind declares the name of its update policy in
the schema. When a change sits under several declared policies (a field
policy nested inside a section policy) the highest severity wins, so the most
conservative requirement always governs.

# Policies

Each policy is a plain data record: name, severity, a condition over
(change, patch), and the fail/remediation text rendered when the condition
denies. The catalog, from most permissive to least:

	IGNORED                  -10  always allowed, never shown
	SUPPORTED                  0  always allowed, shown
	QUEUE_UPDATE_STRATEGY      5  fleet stopped, or a non-default strategy
	MAX_COUNT_SHRINK          10  growth free; shrink needs fleet stopped
	COMPUTE_FLEET_STOP        10  fleet stopped; additions always pass
	MANAGED_PLACEMENT_GROUP   20  fleet stopped, override never relaxes
	HEAD_NODE_STOP            20  head node instance stopped
	READ_ONLY                 30  fixed at creation, denial is final
	UNSUPPORTED               40  denial is final

A denied operational policy yields ACTION_NEEDED (the operator can stop the
fleet or set an override and retry); READ_ONLY and UNSUPPORTED denials yield
FAILED. The update proceeds only when every change SUCCEEDED, unless the
caller forces it; force bypasses ACTION_NEEDED and FAILED verdicts but never
structural validation.

# Evaluation Model

A Patch packages one proposed update: both resolved trees, the live cluster
handle, and the change list. Live observations (fleet status, head node
state, running capacity) are read once per patch and cached, so every
condition in one evaluation sees a consistent snapshot. Patches share no
state; evaluating two proposed updates against the same base concurrently is
safe by construction.

	patch := update.NewPatch(base, target, clusterState)
	report := update.NewEngine().Evaluate(ctx, patch)
	if !report.Allowed() {
	    for _, v := range report.Denied() {
	        fmt.Println(v.Change.PathString(), v.FailReason, v.ActionNeeded)
	    }
	}

# See Also

  - pkg/config  - the section/parameter trees being diffed
  - pkg/cluster - runs the engine inside the update operation
  - pkg/fleet   - the recorded fleet status conditions consult
*/
package update
