package fleet

import "fmt"

// Status is the recorded compute fleet status of a cluster
type Status string

const (
	StatusStopped  Status = "STOPPED"
	StatusStopping Status = "STOPPING"
	StatusStarting Status = "STARTING"
	StatusRunning  Status = "RUNNING"
	StatusUnknown  Status = "UNKNOWN"
)

// Transitional reports whether the status is an intermediate state
func (s Status) Transitional() bool {
	return s == StatusStopping || s == StatusStarting
}

// StatusStore persists the fleet status per cluster. Writes must be
// conditional on the previously read status so that two racing operators
// cannot silently overwrite each other.
type StatusStore interface {
	// Get returns the recorded status for the cluster, StatusUnknown when
	// no record exists.
	Get(cluster string) (Status, error)

	// CompareAndSwap transitions the cluster's status from `from` to `to`.
	// It returns a *ConcurrentUpdateError when the recorded status no longer
	// matches `from`. A missing record matches StatusUnknown.
	CompareAndSwap(cluster string, from, to Status) error

	// Delete removes the cluster's status record
	Delete(cluster string) error
}

// ConcurrentUpdateError reports that a conditional status write lost a race
// with another writer. Callers re-read the status and retry or give up.
type ConcurrentUpdateError struct {
	Cluster  string
	Expected Status
	Actual   Status
}

func (e *ConcurrentUpdateError) Error() string {
	return fmt.Sprintf("concurrent update on cluster %q: fleet status is %s, expected %s", e.Cluster, e.Actual, e.Expected)
}

// Kind returns the stable error kind for API responses
func (e *ConcurrentUpdateError) Kind() string { return "ConcurrentUpdate" }
