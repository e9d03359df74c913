package cluster

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/ridgeline-io/ridgeline/pkg/cloud"
)

// pollInterval is the fixed delay between stack status polls
const pollInterval = 15 * time.Second

// WaitStable polls the stack until it leaves every transitional status and
// returns the final observation, nil when the stack disappeared (a completed
// delete). The caller bounds the wait through the context; cancellation is
// checked between iterations.
func (c *Controller) WaitStable(ctx context.Context, name string) (*cloud.StackDetail, error) {
	var detail *cloud.StackDetail

	operation := func() error {
		d, err := c.deps.Stacks.DescribeStack(ctx, name)
		if errors.Is(err, cloud.ErrStackNotFound) {
			detail = nil
			return nil
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		if d.Status.InProgress() {
			return fmt.Errorf("stack %s is still %s", name, d.Status)
		}
		detail = d
		return nil
	}

	policy := backoff.WithContext(backoff.NewConstantBackOff(pollInterval), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, &ActionError{Cluster: name, Action: "wait", Err: err}
	}
	return detail, nil
}
