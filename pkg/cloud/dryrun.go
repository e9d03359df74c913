package cloud

import "context"

// DryRun implements validate.DryRunner on top of the stack and object store
// collaborators. Each probe is attempted exactly once.
type DryRun struct {
	stacks StackClient
	store  ObjectStore
}

// NewDryRun builds the dry-run prober
func NewDryRun(stacks StackClient, store ObjectStore) *DryRun {
	return &DryRun{stacks: stacks, store: store}
}

func (d *DryRun) ValidateTemplate(ctx context.Context, templateBody string) error {
	return d.stacks.ValidateTemplate(ctx, templateBody)
}

func (d *DryRun) ProbeBucket(ctx context.Context, bucket string) error {
	return d.store.ProbeBucket(ctx, bucket)
}
