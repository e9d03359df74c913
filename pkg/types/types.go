package types

import (
	"time"
)

// ClusterStatus represents the lifecycle state of a cluster
type ClusterStatus string

const (
	ClusterStatusAbsent   ClusterStatus = "ABSENT"
	ClusterStatusCreating ClusterStatus = "CREATING"
	ClusterStatusActive   ClusterStatus = "ACTIVE"
	ClusterStatusUpdating ClusterStatus = "UPDATING"
	ClusterStatusDeleting ClusterStatus = "DELETING"
	ClusterStatusFailed   ClusterStatus = "FAILED"
)

// StackStatus represents the status reported by the stack collaborator
type StackStatus string

const (
	StackStatusCreateInProgress         StackStatus = "CREATE_IN_PROGRESS"
	StackStatusCreateComplete           StackStatus = "CREATE_COMPLETE"
	StackStatusCreateFailed             StackStatus = "CREATE_FAILED"
	StackStatusUpdateInProgress         StackStatus = "UPDATE_IN_PROGRESS"
	StackStatusUpdateCleanupInProgress  StackStatus = "UPDATE_COMPLETE_CLEANUP_IN_PROGRESS"
	StackStatusUpdateComplete           StackStatus = "UPDATE_COMPLETE"
	StackStatusUpdateRollbackInProgress StackStatus = "UPDATE_ROLLBACK_IN_PROGRESS"
	StackStatusUpdateRollbackComplete   StackStatus = "UPDATE_ROLLBACK_COMPLETE"
	StackStatusRollbackInProgress       StackStatus = "ROLLBACK_IN_PROGRESS"
	StackStatusRollbackComplete         StackStatus = "ROLLBACK_COMPLETE"
	StackStatusRollbackFailed           StackStatus = "ROLLBACK_FAILED"
	StackStatusDeleteInProgress         StackStatus = "DELETE_IN_PROGRESS"
	StackStatusDeleteComplete           StackStatus = "DELETE_COMPLETE"
	StackStatusDeleteFailed             StackStatus = "DELETE_FAILED"
)

// InProgress reports whether the stack is mid-transition. Lifecycle operations
// fail fast while the stack is in any of these states.
func (s StackStatus) InProgress() bool {
	switch s {
	case StackStatusCreateInProgress,
		StackStatusUpdateInProgress,
		StackStatusUpdateCleanupInProgress,
		StackStatusUpdateRollbackInProgress,
		StackStatusRollbackInProgress,
		StackStatusDeleteInProgress:
		return true
	}
	return false
}

// ClusterStatusFromStack maps a stack status to the coarser cluster lifecycle state
func ClusterStatusFromStack(s StackStatus) ClusterStatus {
	switch s {
	case StackStatusCreateInProgress:
		return ClusterStatusCreating
	case StackStatusCreateComplete, StackStatusUpdateComplete, StackStatusUpdateRollbackComplete:
		return ClusterStatusActive
	case StackStatusUpdateInProgress, StackStatusUpdateCleanupInProgress, StackStatusUpdateRollbackInProgress:
		return ClusterStatusUpdating
	case StackStatusDeleteInProgress:
		return ClusterStatusDeleting
	case "":
		return ClusterStatusAbsent
	default:
		return ClusterStatusFailed
	}
}

// SchedulerType identifies the workload scheduler driving the compute fleet
type SchedulerType string

const (
	SchedulerSlurm  SchedulerType = "slurm"
	SchedulerBatch  SchedulerType = "batch"
	SchedulerPlugin SchedulerType = "plugin"
)

// SelfManagedFleet reports whether the scheduler manages its own compute
// capacity through the fleet-status flag rather than an elastic fleet.
func (s SchedulerType) SelfManagedFleet() bool {
	return s == SchedulerSlurm || s == SchedulerPlugin
}

// ClusterInfo is the external view of a cluster returned by status and list
type ClusterInfo struct {
	Name          string        `json:"name"`
	Status        ClusterStatus `json:"status"`
	StackStatus   StackStatus   `json:"stackStatus"`
	StatusReason  string        `json:"statusReason,omitempty"`
	FleetStatus   string        `json:"fleetStatus,omitempty"`
	Scheduler     SchedulerType `json:"scheduler,omitempty"`
	ConfigVersion string        `json:"configVersion,omitempty"`
	Region        string        `json:"region,omitempty"`
	CreatedAt     time.Time     `json:"createdAt,omitempty"`
}

// HeadNodeState is the recorded instance state of the head node
type HeadNodeState string

const (
	HeadNodeRunning HeadNodeState = "running"
	HeadNodeStopped HeadNodeState = "stopped"
	HeadNodeUnknown HeadNodeState = "unknown"
)
