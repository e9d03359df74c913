package cluster

import (
	"fmt"
	"strings"

	"github.com/ridgeline-io/ridgeline/pkg/update"
)

// NotFoundError reports an operation against a cluster that does not exist
type NotFoundError struct {
	Cluster string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("cluster %q does not exist", e.Cluster)
}

// Kind returns the stable error kind for API responses
func (e *NotFoundError) Kind() string { return "ClusterNotFound" }

// ActionError reports a lifecycle operation that failed against the cloud
// collaborators, after validation passed.
type ActionError struct {
	Cluster string
	Action  string
	Err     error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("failed to %s cluster %q: %v", e.Action, e.Cluster, e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }

// Kind returns the stable error kind for API responses
func (e *ActionError) Kind() string { return "ClusterAction" }

// UpdateError reports an update denied by the policy engine. It carries the
// full per-change report so callers can render every verdict.
type UpdateError struct {
	Cluster string
	Report  *update.Report
}

func (e *UpdateError) Error() string {
	denied := e.Report.Denied()
	var b strings.Builder
	fmt.Fprintf(&b, "update of cluster %q is not allowed: %d of %d changes denied", e.Cluster, len(denied), len(e.Report.Verdicts))
	for _, v := range denied {
		fmt.Fprintf(&b, "\n  %s [%s] %s: %s", v.Change.PathString(), v.Policy, v.Result, v.FailReason)
		if v.ActionNeeded != "" {
			fmt.Fprintf(&b, " (%s)", v.ActionNeeded)
		}
	}
	return b.String()
}

// Kind returns the stable error kind for API responses
func (e *UpdateError) Kind() string { return "ClusterUpdate" }
