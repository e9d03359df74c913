/*
Package validate implements the configuration validation engine for Ridgeline
clusters.

Validation answers one question before any cloud resource is touched: is this
configuration structurally complete, internally consistent, and deployable in
the target account? The engine collects every finding it can rather than
stopping at the first problem, so a user fixes a bad file in one pass.

# Architecture

A validation pass runs three phases over a parsed configuration tree:

	┌────────────────────────────────────────────────────────┐
	│                    Engine.Validate                     │
	└────────────────┬───────────────────────────────────────┘
	                 │
	                 ▼
	┌────────────────────────────────────────────────────────┐
	│  1. Structural: required parameters, per-parameter     │
	│     and per-section validators (never suppressed)      │
	│  2. Rules: whole-tree catalog of instance types,       │
	│     subnet topology, count bounds, scheduler shape     │
	│  3. Dry-run: single-attempt live probes against        │
	│     the target account (bucket access, template)       │
	└────────────────┬───────────────────────────────────────┘
	                 │
	                 ▼
	           Findings (Info / Warning / Error)

Phases 2 and 3 consult the cloud through two narrow interfaces, CloudFacts and
DryRunner, implemented against EC2 and CloudFormation in pkg/cloud and mocked
in tests.

# Severity and the Failure Level

Every finding carries a severity. The caller decides what fails the operation
by passing a failure level to Check:

	findings := engine.Validate(ctx, root, validate.Options{})
	if err := validate.Check(findings, validate.Error); err != nil {
		return err // *ConfigValidationError listing every finding
	}

Warnings surface in the error message only when the failure level admits them.
Dry-run probes that cannot reach the account degrade to warnings: an
unreachable collaborator is not proof the configuration is wrong.

# Writing Rules

A Rule sees the whole tree and the facts provider, and returns findings:

	func RuleCountBounds(ctx context.Context, root *config.Root, facts CloudFacts) Findings

Rules must not mutate the tree and must not short-circuit each other. Paths in
findings use the document notation, e.g.
Scheduling/SlurmQueues[q1]/ComputeResources[cr1]/MinCount.

# See Also

  - pkg/config  - the section/parameter tree being validated
  - pkg/cloud   - EC2-backed CloudFacts and CloudFormation dry-run
  - pkg/cluster - invokes validation before create and update
*/
package validate
