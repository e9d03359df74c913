package cloud

import (
	"context"
	"errors"
	"time"

	"github.com/ridgeline-io/ridgeline/pkg/types"
)

// ErrStackNotFound is returned by DescribeStack and DeleteStack when the
// stack does not exist. Delete treats it as successful completion.
var ErrStackNotFound = errors.New("stack not found")

// StackDetail is the observed state of one cluster stack
type StackDetail struct {
	Name         string
	ID           string
	Status       types.StackStatus
	StatusReason string
	Outputs      map[string]string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// StackClient drives the infrastructure-as-code stack behind each cluster.
// Implemented against CloudFormation; faked in tests.
type StackClient interface {
	CreateStack(ctx context.Context, name, templateURL string, params map[string]string, tags map[string]string) (string, error)
	UpdateStack(ctx context.Context, name, templateURL string, params map[string]string) error
	DeleteStack(ctx context.Context, name string) error
	DescribeStack(ctx context.Context, name string) (*StackDetail, error)
	ListStacks(ctx context.Context) ([]*StackDetail, error)
	ValidateTemplate(ctx context.Context, body string) error
}

// ObjectStore persists configuration artifacts next to the stack
type ObjectStore interface {
	Put(ctx context.Context, bucket, key string, body []byte) error
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	Delete(ctx context.Context, bucket, key string) error
	DeletePrefix(ctx context.Context, bucket, prefix string) error
	ProbeBucket(ctx context.Context, bucket string) error
}

// CapacityAdjuster controls the managed elastic fleet's target capacity
type CapacityAdjuster interface {
	RunningCapacity(ctx context.Context, cluster string) (int, error)
	Resume(ctx context.Context, cluster string) error
	Suspend(ctx context.Context, cluster string) error
}

// LogManager manages the cluster's log resources
type LogManager interface {
	RetainOnDelete(ctx context.Context, cluster string) error
	Export(ctx context.Context, cluster, bucket, prefix string) (string, error)
}
