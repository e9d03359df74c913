package cloud

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/rs/zerolog"

	"github.com/ridgeline-io/ridgeline/pkg/log"
)

// logGroupName is the CloudWatch log group each cluster writes to
func logGroupName(cluster string) string {
	return "/ridgeline/clusters/" + cluster
}

// CWLogManager implements LogManager against CloudWatch Logs
type CWLogManager struct {
	client *cloudwatchlogs.Client
	log    zerolog.Logger
}

// NewCWLogManager wraps an SDK CloudWatch Logs client
func NewCWLogManager(client *cloudwatchlogs.Client) *CWLogManager {
	return &CWLogManager{
		client: client,
		log:    log.WithComponent("cloudwatchlogs"),
	}
}

// RetainOnDelete strips the cluster tag from the log group so stack deletion
// leaves it behind, and pins a retention policy so it does not linger
// forever.
func (m *CWLogManager) RetainOnDelete(ctx context.Context, cluster string) error {
	group := logGroupName(cluster)

	arn, err := m.groupARN(ctx, group)
	if err != nil {
		return err
	}

	_, err = m.client.UntagResource(ctx, &cloudwatchlogs.UntagResourceInput{
		ResourceArn: aws.String(arn),
		TagKeys:     []string{TagCluster},
	})
	if err != nil {
		return fmt.Errorf("failed to detach log group %s: %w", group, err)
	}

	_, err = m.client.PutRetentionPolicy(ctx, &cloudwatchlogs.PutRetentionPolicyInput{
		LogGroupName:    aws.String(group),
		RetentionInDays: aws.Int32(180),
	})
	if err != nil {
		return fmt.Errorf("failed to set retention on log group %s: %w", group, err)
	}

	m.log.Info().Str("cluster", cluster).Str("group", group).Msg("Log group marked to outlive the stack")
	return nil
}

// Export starts an export task copying the cluster's logs to the bucket and
// returns the task id. The task runs asynchronously in the account.
func (m *CWLogManager) Export(ctx context.Context, cluster, bucket, prefix string) (string, error) {
	group := logGroupName(cluster)
	now := time.Now()

	out, err := m.client.CreateExportTask(ctx, &cloudwatchlogs.CreateExportTaskInput{
		LogGroupName:      aws.String(group),
		Destination:       aws.String(bucket),
		DestinationPrefix: aws.String(prefix),
		From:              aws.Int64(0),
		To:                aws.Int64(now.UnixMilli()),
		TaskName:          aws.String(fmt.Sprintf("%s-export-%d", cluster, now.Unix())),
	})
	if err != nil {
		return "", fmt.Errorf("failed to export logs for cluster %s: %w", cluster, err)
	}

	taskID := aws.ToString(out.TaskId)
	m.log.Info().Str("cluster", cluster).Str("task_id", taskID).Msg("Log export started")
	return taskID, nil
}

func (m *CWLogManager) groupARN(ctx context.Context, group string) (string, error) {
	out, err := m.client.DescribeLogGroups(ctx, &cloudwatchlogs.DescribeLogGroupsInput{
		LogGroupNamePrefix: aws.String(group),
	})
	if err != nil {
		return "", fmt.Errorf("failed to describe log group %s: %w", group, err)
	}
	for _, g := range out.LogGroups {
		if aws.ToString(g.LogGroupName) == group {
			return aws.ToString(g.Arn), nil
		}
	}
	return "", fmt.Errorf("log group %s not found", group)
}
