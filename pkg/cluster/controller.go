package cluster

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ridgeline-io/ridgeline/pkg/cloud"
	"github.com/ridgeline-io/ridgeline/pkg/config"
	"github.com/ridgeline-io/ridgeline/pkg/events"
	"github.com/ridgeline-io/ridgeline/pkg/fleet"
	"github.com/ridgeline-io/ridgeline/pkg/log"
	"github.com/ridgeline-io/ridgeline/pkg/metrics"
	"github.com/ridgeline-io/ridgeline/pkg/types"
	"github.com/ridgeline-io/ridgeline/pkg/update"
	"github.com/ridgeline-io/ridgeline/pkg/validate"
)

// FactsProvider extends the validation facts with the head node lookup the
// update policy conditions need.
type FactsProvider interface {
	validate.CloudFacts
	HeadNodeState(ctx context.Context, cluster string) (types.HeadNodeState, error)
}

// Deps are the collaborators the controller drives. Every field is an
// interface so tests substitute fakes.
type Deps struct {
	Stacks   cloud.StackClient
	Store    cloud.ObjectStore
	Fleet    fleet.StatusStore
	Capacity cloud.CapacityAdjuster
	Logs     cloud.LogManager
	Facts    FactsProvider
	Broker   *events.Broker
}

// Options configures the controller
type Options struct {
	// Bucket is the artifact bucket used when the configuration does not
	// name its own ResourceBucket
	Bucket string
	// Region is reported in cluster info
	Region string
}

// Controller implements the cluster lifecycle state machine. Each operation
// is a blocking sequence of collaborator calls on a fresh configuration
// snapshot; the controller itself holds no per-cluster mutable state.
type Controller struct {
	deps      Deps
	opts      Options
	schema    *config.Schema
	validator *validate.Engine
	updater   *update.Engine
}

// NewController creates a lifecycle controller over the given collaborators
func NewController(deps Deps, opts Options) *Controller {
	return &Controller{
		deps:      deps,
		opts:      opts,
		schema:    config.ClusterSchema(),
		validator: validate.NewEngine(deps.Facts, cloud.NewDryRun(deps.Stacks, deps.Store)),
		updater:   update.NewEngine(),
	}
}

// ValidateOptions controls validation behavior for create and update
type ValidateOptions struct {
	SuppressValidators bool
	FailureLevel       validate.Severity
}

// Create provisions a new cluster from the document. Validation findings at
// or above the failure level abort before any artifact is written; a failing
// stack call rolls back the already-uploaded artifacts.
func (c *Controller) Create(ctx context.Context, name string, doc []byte, opts ValidateOptions) (*types.ClusterInfo, error) {
	timer := c.operationTimer("create")
	defer timer()
	logger := log.WithOperation("create")

	if _, err := c.deps.Stacks.DescribeStack(ctx, name); err == nil {
		return nil, &ActionError{Cluster: name, Action: "create", Err: fmt.Errorf("cluster already exists")}
	} else if !errors.Is(err, cloud.ErrStackNotFound) {
		return nil, &ActionError{Cluster: name, Action: "create", Err: err}
	}

	root, err := config.FromDocument(c.schema, doc)
	if err != nil {
		return nil, err
	}

	version := uuid.New().String()
	prefix := artifactPrefix(name, version)
	rootSection := root.RootSection()
	if err := rootSection.SetValue("ConfigVersion", version); err != nil {
		return nil, err
	}
	if err := rootSection.SetValue("ArtifactPrefix", prefix); err != nil {
		return nil, err
	}
	root.Version = version

	template, err := renderTemplate(name, root)
	if err != nil {
		return nil, &ActionError{Cluster: name, Action: "create", Err: err}
	}

	if err := c.validateConfig(ctx, root, template, opts); err != nil {
		return nil, err
	}

	bucket := c.bucketFor(root)
	if err := c.uploadArtifacts(ctx, bucket, prefix, root, template); err != nil {
		return nil, &ActionError{Cluster: name, Action: "create", Err: err}
	}

	c.publish(events.EventClusterCreating, name, "")
	_, err = c.deps.Stacks.CreateStack(ctx, name, templateURL(bucket, prefix), stackParameters(root), map[string]string{
		cloud.TagCluster: name,
	})
	if err != nil {
		// Roll back the artifacts so a retried create starts clean
		if cleanupErr := c.deps.Store.DeletePrefix(ctx, bucket, prefix); cleanupErr != nil {
			logger.Error().Err(cleanupErr).Str("cluster", name).Msg("Failed to clean up artifacts after create failure")
		}
		c.publish(events.EventClusterCreateFailed, name, err.Error())
		return nil, &ActionError{Cluster: name, Action: "create", Err: err}
	}

	if err := c.deps.Fleet.CompareAndSwap(name, fleet.StatusUnknown, fleet.StatusRunning); err != nil {
		var concurrent *fleet.ConcurrentUpdateError
		if !errors.As(err, &concurrent) {
			logger.Warn().Err(err).Str("cluster", name).Msg("Failed to record initial fleet status")
		}
	}

	c.publish(events.EventClusterCreated, name, version)
	logger.Info().Str("cluster", name).Str("version", version).Msg("Cluster creation started")

	return c.Status(ctx, name)
}

// UpdateOptions controls one update request
type UpdateOptions struct {
	ValidateOptions
	// Force applies the update even when changes were denied. Structural
	// validation is never bypassed.
	Force bool
}

// Update applies a new configuration to a running cluster. The update policy
// engine evaluates every change between the currently deployed configuration
// and the target; unless forced, any denied change aborts the update with the
// full report.
func (c *Controller) Update(ctx context.Context, name string, doc []byte, opts UpdateOptions) (*update.Report, error) {
	timer := c.operationTimer("update")
	defer timer()
	logger := log.WithOperation("update")

	detail, err := c.describe(ctx, name, "update")
	if err != nil {
		return nil, err
	}
	if detail.Status.InProgress() {
		return nil, &ActionError{Cluster: name, Action: "update", Err: fmt.Errorf("cluster is %s", detail.Status)}
	}

	base, err := c.loadDeployed(ctx, detail)
	if err != nil {
		return nil, &ActionError{Cluster: name, Action: "update", Err: err}
	}

	target, err := config.FromDocument(c.schema, doc)
	if err != nil {
		return nil, err
	}

	version := uuid.New().String()
	prefix := artifactPrefix(name, version)
	if err := target.RootSection().SetValue("ConfigVersion", version); err != nil {
		return nil, err
	}
	if err := target.RootSection().SetValue("ArtifactPrefix", prefix); err != nil {
		return nil, err
	}
	target.Version = version

	template, err := renderTemplate(name, target)
	if err != nil {
		return nil, &ActionError{Cluster: name, Action: "update", Err: err}
	}

	if err := c.validateConfig(ctx, target, template, opts.ValidateOptions); err != nil {
		return nil, err
	}

	patch := update.NewPatch(base, target, c.liveState(name))
	report := c.updater.Evaluate(ctx, patch)
	for _, v := range report.Verdicts {
		metrics.UpdateChangesTotal.WithLabelValues(v.Policy, string(v.Result)).Inc()
	}
	if !report.Allowed() && !opts.Force {
		c.publish(events.EventClusterUpdateDenied, name, version)
		return report, &UpdateError{Cluster: name, Report: report}
	}

	bucket := c.bucketFor(target)
	if err := c.uploadArtifacts(ctx, bucket, prefix, target, template); err != nil {
		return report, &ActionError{Cluster: name, Action: "update", Err: err}
	}

	c.publish(events.EventClusterUpdating, name, version)
	if err := c.deps.Stacks.UpdateStack(ctx, name, templateURL(bucket, prefix), stackParameters(target)); err != nil {
		if cleanupErr := c.deps.Store.DeletePrefix(ctx, bucket, prefix); cleanupErr != nil {
			logger.Error().Err(cleanupErr).Str("cluster", name).Msg("Failed to clean up artifacts after update failure")
		}
		return report, &ActionError{Cluster: name, Action: "update", Err: err}
	}

	c.publish(events.EventClusterUpdated, name, version)
	logger.Info().Str("cluster", name).Str("version", version).Msg("Cluster update started")
	return report, nil
}

// Delete tears the cluster down. A stack that is already gone counts as
// successful completion. With keepLogs the log resources are detached first
// so they outlive the stack.
func (c *Controller) Delete(ctx context.Context, name string, keepLogs bool) error {
	timer := c.operationTimer("delete")
	defer timer()

	detail, err := c.deps.Stacks.DescribeStack(ctx, name)
	if errors.Is(err, cloud.ErrStackNotFound) {
		return c.forget(ctx, name)
	}
	if err != nil {
		return &ActionError{Cluster: name, Action: "delete", Err: err}
	}
	if detail.Status == types.StackStatusDeleteInProgress {
		return nil
	}
	if detail.Status.InProgress() {
		return &ActionError{Cluster: name, Action: "delete", Err: fmt.Errorf("cluster is %s", detail.Status)}
	}

	if keepLogs {
		if err := c.deps.Logs.RetainOnDelete(ctx, name); err != nil {
			return &ActionError{Cluster: name, Action: "delete", Err: err}
		}
	}

	c.publish(events.EventClusterDeleting, name, "")
	if err := c.deps.Stacks.DeleteStack(ctx, name); err != nil && !errors.Is(err, cloud.ErrStackNotFound) {
		return &ActionError{Cluster: name, Action: "delete", Err: err}
	}

	return c.forget(ctx, name)
}

// forget clears the cluster's local records and artifacts
func (c *Controller) forget(ctx context.Context, name string) error {
	logger := log.WithOperation("delete")
	if err := c.deps.Fleet.Delete(name); err != nil {
		logger.Warn().Err(err).Str("cluster", name).Msg("Failed to delete fleet status record")
	}
	if c.opts.Bucket != "" {
		if err := c.deps.Store.DeletePrefix(ctx, c.opts.Bucket, clusterPrefix(name)); err != nil {
			logger.Warn().Err(err).Str("cluster", name).Msg("Failed to delete cluster artifacts")
		}
	}
	c.publish(events.EventClusterDeleted, name, "")
	return nil
}

// Start brings the compute fleet up. Self-managed schedulers flip the
// recorded fleet status with compare-and-swap; elastic fleets restore their
// capacity. Starting an already running fleet is a no-op. A fleet left at
// STARTING by an earlier failure is picked up again rather than skipped, so
// retrying a failed start completes the transition.
func (c *Controller) Start(ctx context.Context, name string) error {
	timer := c.operationTimer("start")
	defer timer()
	logger := log.WithOperation("start")

	scheduler, err := c.scheduler(ctx, name)
	if err != nil {
		return err
	}

	status, err := c.deps.Fleet.Get(name)
	if err != nil {
		return &ActionError{Cluster: name, Action: "start", Err: err}
	}
	if status == fleet.StatusRunning {
		return nil
	}

	if status != fleet.StatusStarting {
		if err := c.deps.Fleet.CompareAndSwap(name, status, fleet.StatusStarting); err != nil {
			return err
		}
		c.publish(events.EventFleetStarting, name, "")
	}

	if !scheduler.SelfManagedFleet() {
		if err := c.deps.Capacity.Resume(ctx, name); err != nil {
			// Restore the observed status so a retry sees the truth
			if casErr := c.deps.Fleet.CompareAndSwap(name, fleet.StatusStarting, status); casErr != nil {
				logger.Warn().Err(casErr).Str("cluster", name).Msg("Failed to restore fleet status after start failure")
			}
			return &ActionError{Cluster: name, Action: "start", Err: err}
		}
	}

	if err := c.deps.Fleet.CompareAndSwap(name, fleet.StatusStarting, fleet.StatusRunning); err != nil {
		return err
	}
	c.publish(events.EventFleetRunning, name, "")
	return nil
}

// Stop brings the compute fleet down; the mirror of Start
func (c *Controller) Stop(ctx context.Context, name string) error {
	timer := c.operationTimer("stop")
	defer timer()
	logger := log.WithOperation("stop")

	scheduler, err := c.scheduler(ctx, name)
	if err != nil {
		return err
	}

	status, err := c.deps.Fleet.Get(name)
	if err != nil {
		return &ActionError{Cluster: name, Action: "stop", Err: err}
	}
	if status == fleet.StatusStopped {
		return nil
	}

	if status != fleet.StatusStopping {
		if err := c.deps.Fleet.CompareAndSwap(name, status, fleet.StatusStopping); err != nil {
			return err
		}
		c.publish(events.EventFleetStopping, name, "")
	}

	if !scheduler.SelfManagedFleet() {
		if err := c.deps.Capacity.Suspend(ctx, name); err != nil {
			if casErr := c.deps.Fleet.CompareAndSwap(name, fleet.StatusStopping, status); casErr != nil {
				logger.Warn().Err(casErr).Str("cluster", name).Msg("Failed to restore fleet status after stop failure")
			}
			return &ActionError{Cluster: name, Action: "stop", Err: err}
		}
	}

	if err := c.deps.Fleet.CompareAndSwap(name, fleet.StatusStopping, fleet.StatusStopped); err != nil {
		return err
	}
	c.publish(events.EventFleetStopped, name, "")
	return nil
}

// Status returns the cluster's current external view
func (c *Controller) Status(ctx context.Context, name string) (*types.ClusterInfo, error) {
	detail, err := c.describe(ctx, name, "status")
	if err != nil {
		return nil, err
	}
	return c.info(ctx, detail), nil
}

// List returns every managed cluster
func (c *Controller) List(ctx context.Context) ([]*types.ClusterInfo, error) {
	details, err := c.deps.Stacks.ListStacks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list clusters: %w", err)
	}

	infos := make([]*types.ClusterInfo, 0, len(details))
	for _, d := range details {
		infos = append(infos, c.info(ctx, d))
	}
	return infos, nil
}

// DescribeConfig returns the currently deployed configuration document
func (c *Controller) DescribeConfig(ctx context.Context, name string) ([]byte, error) {
	detail, err := c.describe(ctx, name, "describe")
	if err != nil {
		return nil, err
	}
	root, err := c.loadDeployed(ctx, detail)
	if err != nil {
		return nil, &ActionError{Cluster: name, Action: "describe", Err: err}
	}
	return root.ToDocument()
}

// ExportLogs starts an export of the cluster's logs to the bucket and
// returns the task id.
func (c *Controller) ExportLogs(ctx context.Context, name, bucket, prefix string) (string, error) {
	if _, err := c.describe(ctx, name, "export-logs"); err != nil {
		return "", err
	}
	if bucket == "" {
		bucket = c.opts.Bucket
	}
	if prefix == "" {
		prefix = clusterPrefix(name) + "logs"
	}

	taskID, err := c.deps.Logs.Export(ctx, name, bucket, prefix)
	if err != nil {
		return "", &ActionError{Cluster: name, Action: "export-logs", Err: err}
	}
	c.publish(events.EventLogExportStarted, name, taskID)
	return taskID, nil
}

func (c *Controller) describe(ctx context.Context, name, action string) (*cloud.StackDetail, error) {
	detail, err := c.deps.Stacks.DescribeStack(ctx, name)
	if errors.Is(err, cloud.ErrStackNotFound) {
		return nil, &NotFoundError{Cluster: name}
	}
	if err != nil {
		return nil, &ActionError{Cluster: name, Action: action, Err: err}
	}
	return detail, nil
}

func (c *Controller) info(ctx context.Context, detail *cloud.StackDetail) *types.ClusterInfo {
	info := &types.ClusterInfo{
		Name:          detail.Name,
		Status:        types.ClusterStatusFromStack(detail.Status),
		StackStatus:   detail.Status,
		StatusReason:  detail.StatusReason,
		ConfigVersion: detail.Outputs["ConfigVersion"],
		Scheduler:     types.SchedulerType(detail.Outputs["Scheduler"]),
		Region:        c.opts.Region,
		CreatedAt:     detail.CreatedAt,
	}
	if status, err := c.deps.Fleet.Get(detail.Name); err == nil {
		info.FleetStatus = string(status)
	}
	metrics.ClustersTotal.WithLabelValues(string(info.Status)).Inc()
	return info
}

// loadDeployed reconstructs the deployed configuration tree from the
// resolved artifact the stack points at.
func (c *Controller) loadDeployed(ctx context.Context, detail *cloud.StackDetail) (*config.Root, error) {
	prefix := detail.Outputs["ArtifactPrefix"]
	if prefix == "" {
		return nil, fmt.Errorf("stack %s has no artifact reference", detail.Name)
	}
	bucket := detail.Outputs["ResourceBucket"]
	if bucket == "" {
		bucket = c.opts.Bucket
	}

	data, err := c.deps.Store.Get(ctx, bucket, prefix+"/cluster-config-resolved.json")
	if err != nil {
		return nil, err
	}
	root, err := config.FromResolvedJSON(c.schema, data)
	if err != nil {
		return nil, err
	}
	root.Version = detail.Outputs["ConfigVersion"]
	return root, nil
}

// scheduler reads the deployed scheduler type for the cluster
func (c *Controller) scheduler(ctx context.Context, name string) (types.SchedulerType, error) {
	detail, err := c.describe(ctx, name, "fleet")
	if err != nil {
		return "", err
	}
	if s := detail.Outputs["Scheduler"]; s != "" {
		return types.SchedulerType(s), nil
	}
	root, err := c.loadDeployed(ctx, detail)
	if err != nil {
		return "", &ActionError{Cluster: name, Action: "fleet", Err: err}
	}
	scheduling := root.DefaultSection("scheduling")
	if scheduling == nil {
		return "", &ActionError{Cluster: name, Action: "fleet", Err: fmt.Errorf("deployed configuration has no scheduling section")}
	}
	return types.SchedulerType(scheduling.Value("Scheduler").String()), nil
}

func (c *Controller) validateConfig(ctx context.Context, root *config.Root, template string, opts ValidateOptions) error {
	findings := c.validator.Validate(ctx, root, validate.Options{
		FailureLevel:       opts.FailureLevel,
		SuppressValidators: opts.SuppressValidators,
		Template:           template,
	})
	for _, f := range findings {
		metrics.ValidationFindings.WithLabelValues(f.Severity.String()).Inc()
	}
	return validate.Check(findings, opts.FailureLevel)
}

func (c *Controller) bucketFor(root *config.Root) string {
	if b := root.RootSection().Value("ResourceBucket").String(); b != "" {
		return b
	}
	return c.opts.Bucket
}

func (c *Controller) uploadArtifacts(ctx context.Context, bucket, prefix string, root *config.Root, template string) error {
	doc, err := root.ToDocument()
	if err != nil {
		return err
	}
	resolved, err := root.ResolvedJSON()
	if err != nil {
		return err
	}

	if err := c.deps.Store.Put(ctx, bucket, prefix+"/cluster-config.yaml", doc); err != nil {
		return err
	}
	if err := c.deps.Store.Put(ctx, bucket, prefix+"/cluster-config-resolved.json", resolved); err != nil {
		return err
	}
	return c.deps.Store.Put(ctx, bucket, prefix+"/template.json", []byte(template))
}

func (c *Controller) liveState(name string) update.ClusterState {
	return &liveState{name: name, ctrl: c}
}

// Events exposes the lifecycle event broker the controller publishes to.
// Nil when the controller was built without one.
func (c *Controller) Events() *events.Broker {
	return c.deps.Broker
}

func (c *Controller) publish(t events.EventType, cluster, message string) {
	if c.deps.Broker == nil {
		return
	}
	c.deps.Broker.Publish(&events.Event{Type: t, Cluster: cluster, Message: message})
}

func (c *Controller) operationTimer(operation string) func() {
	metrics.OperationsTotal.WithLabelValues(operation).Inc()
	start := time.Now()
	return func() {
		metrics.OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}

// liveState adapts the controller's collaborators to update.ClusterState
type liveState struct {
	name string
	ctrl *Controller
}

func (s *liveState) Name() string { return s.name }

func (s *liveState) FleetStatus(ctx context.Context) (fleet.Status, error) {
	return s.ctrl.deps.Fleet.Get(s.name)
}

func (s *liveState) HeadNodeState(ctx context.Context) (types.HeadNodeState, error) {
	return s.ctrl.deps.Facts.HeadNodeState(ctx, s.name)
}

func (s *liveState) RunningCapacity(ctx context.Context) (int, error) {
	return s.ctrl.deps.Capacity.RunningCapacity(ctx, s.name)
}

func artifactPrefix(name, version string) string {
	return fmt.Sprintf("clusters/%s/versions/%s", name, version)
}

func clusterPrefix(name string) string {
	return fmt.Sprintf("clusters/%s/", name)
}

func templateURL(bucket, prefix string) string {
	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s/template.json", bucket, prefix)
}
