package cloud

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/autoscaling"
	asgtypes "github.com/aws/aws-sdk-go-v2/service/autoscaling/types"
	"github.com/rs/zerolog"

	"github.com/ridgeline-io/ridgeline/pkg/log"
)

// tagResumeCapacity remembers the desired capacity of a suspended group so
// Resume can restore it.
const tagResumeCapacity = "ridgeline:resume-capacity"

// ASGAdjuster implements CapacityAdjuster against the cluster's auto scaling
// groups. Schedulers with a managed elastic fleet (batch) start and stop by
// adjusting group capacity instead of flipping the recorded fleet status.
type ASGAdjuster struct {
	client *autoscaling.Client
	log    zerolog.Logger
}

// NewASGAdjuster wraps an SDK Auto Scaling client
func NewASGAdjuster(client *autoscaling.Client) *ASGAdjuster {
	return &ASGAdjuster{
		client: client,
		log:    log.WithComponent("autoscaling"),
	}
}

func (a *ASGAdjuster) RunningCapacity(ctx context.Context, cluster string) (int, error) {
	groups, err := a.clusterGroups(ctx, cluster)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, g := range groups {
		for _, instance := range g.Instances {
			if instance.LifecycleState == asgtypes.LifecycleStateInService {
				total++
			}
		}
	}
	return total, nil
}

// Resume restores each group's remembered capacity, falling back to MaxSize
// when no capacity was recorded. Idempotent: a group already at its target
// is left alone.
func (a *ASGAdjuster) Resume(ctx context.Context, cluster string) error {
	groups, err := a.clusterGroups(ctx, cluster)
	if err != nil {
		return err
	}

	for _, g := range groups {
		target := resumeCapacity(g)
		if aws.ToInt32(g.DesiredCapacity) == target {
			continue
		}
		_, err := a.client.SetDesiredCapacity(ctx, &autoscaling.SetDesiredCapacityInput{
			AutoScalingGroupName: g.AutoScalingGroupName,
			DesiredCapacity:      aws.Int32(target),
			HonorCooldown:        aws.Bool(false),
		})
		if err != nil {
			return fmt.Errorf("failed to resume group %s: %w", aws.ToString(g.AutoScalingGroupName), err)
		}
		a.log.Info().Str("cluster", cluster).
			Str("group", aws.ToString(g.AutoScalingGroupName)).
			Int32("capacity", target).
			Msg("Resumed fleet capacity")
	}
	return nil
}

// Suspend records the current desired capacity on each group and scales it
// to zero. Idempotent: a group already at zero is left alone.
func (a *ASGAdjuster) Suspend(ctx context.Context, cluster string) error {
	groups, err := a.clusterGroups(ctx, cluster)
	if err != nil {
		return err
	}

	for _, g := range groups {
		desired := aws.ToInt32(g.DesiredCapacity)
		if desired == 0 {
			continue
		}

		name := aws.ToString(g.AutoScalingGroupName)
		_, err := a.client.CreateOrUpdateTags(ctx, &autoscaling.CreateOrUpdateTagsInput{
			Tags: []asgtypes.Tag{{
				ResourceId:        g.AutoScalingGroupName,
				ResourceType:      aws.String("auto-scaling-group"),
				Key:               aws.String(tagResumeCapacity),
				Value:             aws.String(strconv.Itoa(int(desired))),
				PropagateAtLaunch: aws.Bool(false),
			}},
		})
		if err != nil {
			return fmt.Errorf("failed to record capacity for group %s: %w", name, err)
		}

		_, err = a.client.SetDesiredCapacity(ctx, &autoscaling.SetDesiredCapacityInput{
			AutoScalingGroupName: g.AutoScalingGroupName,
			DesiredCapacity:      aws.Int32(0),
			HonorCooldown:        aws.Bool(false),
		})
		if err != nil {
			return fmt.Errorf("failed to suspend group %s: %w", name, err)
		}
		a.log.Info().Str("cluster", cluster).Str("group", name).Msg("Suspended fleet capacity")
	}
	return nil
}

func (a *ASGAdjuster) clusterGroups(ctx context.Context, cluster string) ([]asgtypes.AutoScalingGroup, error) {
	var groups []asgtypes.AutoScalingGroup

	paginator := autoscaling.NewDescribeAutoScalingGroupsPaginator(a.client, &autoscaling.DescribeAutoScalingGroupsInput{
		Filters: []asgtypes.Filter{
			{Name: aws.String("tag:" + TagCluster), Values: []string{cluster}},
		},
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list auto scaling groups for cluster %s: %w", cluster, err)
		}
		groups = append(groups, page.AutoScalingGroups...)
	}
	return groups, nil
}

func resumeCapacity(g asgtypes.AutoScalingGroup) int32 {
	for _, t := range g.Tags {
		if aws.ToString(t.Key) == tagResumeCapacity {
			if n, err := strconv.Atoi(aws.ToString(t.Value)); err == nil {
				return int32(n)
			}
		}
	}
	return aws.ToInt32(g.MaxSize)
}
