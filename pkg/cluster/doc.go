/*
Package cluster implements the lifecycle state machine driving each managed
cluster.

States follow the stack: ABSENT, CREATING, ACTIVE, UPDATING, DELETING,
FAILED. The controller holds no per-cluster state of its own; every
operation reads the current stack observation, builds fresh configuration
snapshots, and issues a blocking sequence of collaborator calls.

# Operations

	Create       validate, upload artifacts, create the stack;
	             a failing stack call rolls the artifacts back
	Update       diff deployed vs target, evaluate update policies,
	             denied changes abort unless forced
	Delete       optionally retain logs; an already-gone stack is success
	Start/Stop   flip the fleet: recorded status (slurm, plugin) or
	             elastic capacity (batch), idempotent, CAS-guarded
	Status/List  external view assembled from stack and fleet records
	ExportLogs   asynchronous log export to the artifact bucket
	WaitStable   bounded, cancellable poll until the stack settles

# Artifacts

Each configuration version is immutable and lives under its own prefix in
the resource bucket:

	clusters/<name>/versions/<version>/cluster-config.yaml
	clusters/<name>/versions/<version>/cluster-config-resolved.json
	clusters/<name>/versions/<version>/template.json

The stack's outputs carry ConfigVersion and ArtifactPrefix, so the deployed
configuration is always recoverable from the stack alone. Update reads the
resolved artifact as its diff base; user YAML is never the base of a diff.

# Concurrency

Two operators may race on the same cluster. Fleet transitions go through the
status store's compare-and-swap and surface *fleet.ConcurrentUpdateError on
contention; stack transitions fail fast when the stack is already
mid-transition. Update evaluations share no mutable state, so validating two
proposed updates against the same base concurrently is safe.
*/
package cluster
