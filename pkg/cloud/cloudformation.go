package cloud

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	cfntypes "github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/rs/zerolog"

	"github.com/ridgeline-io/ridgeline/pkg/log"
	"github.com/ridgeline-io/ridgeline/pkg/types"
)

// tagManagedBy marks stacks owned by this tool; ListStacks filters on it
const tagManagedBy = "ridgeline:managed"

// CFNStackClient implements StackClient against CloudFormation
type CFNStackClient struct {
	client *cloudformation.Client
	log    zerolog.Logger
}

// NewCFNStackClient wraps an SDK CloudFormation client
func NewCFNStackClient(client *cloudformation.Client) *CFNStackClient {
	return &CFNStackClient{
		client: client,
		log:    log.WithComponent("cloudformation"),
	}
}

func (c *CFNStackClient) CreateStack(ctx context.Context, name, templateURL string, params map[string]string, tags map[string]string) (string, error) {
	input := &cloudformation.CreateStackInput{
		StackName:    aws.String(name),
		TemplateURL:  aws.String(templateURL),
		Parameters:   toParameters(params),
		Capabilities: []cfntypes.Capability{cfntypes.CapabilityCapabilityIam, cfntypes.CapabilityCapabilityNamedIam},
		Tags:         toTags(tags),
	}

	out, err := c.client.CreateStack(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to create stack %s: %w", name, err)
	}

	c.log.Info().Str("stack", name).Str("stack_id", aws.ToString(out.StackId)).Msg("Stack creation started")
	return aws.ToString(out.StackId), nil
}

func (c *CFNStackClient) UpdateStack(ctx context.Context, name, templateURL string, params map[string]string) error {
	input := &cloudformation.UpdateStackInput{
		StackName:    aws.String(name),
		TemplateURL:  aws.String(templateURL),
		Parameters:   toParameters(params),
		Capabilities: []cfntypes.Capability{cfntypes.CapabilityCapabilityIam, cfntypes.CapabilityCapabilityNamedIam},
	}

	if _, err := c.client.UpdateStack(ctx, input); err != nil {
		if isNotFound(err) {
			return ErrStackNotFound
		}
		return fmt.Errorf("failed to update stack %s: %w", name, err)
	}

	c.log.Info().Str("stack", name).Msg("Stack update started")
	return nil
}

func (c *CFNStackClient) DeleteStack(ctx context.Context, name string) error {
	input := &cloudformation.DeleteStackInput{StackName: aws.String(name)}

	if _, err := c.client.DeleteStack(ctx, input); err != nil {
		if isNotFound(err) {
			return ErrStackNotFound
		}
		return fmt.Errorf("failed to delete stack %s: %w", name, err)
	}

	c.log.Info().Str("stack", name).Msg("Stack deletion started")
	return nil
}

func (c *CFNStackClient) DescribeStack(ctx context.Context, name string) (*StackDetail, error) {
	input := &cloudformation.DescribeStacksInput{StackName: aws.String(name)}

	out, err := c.client.DescribeStacks(ctx, input)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrStackNotFound
		}
		return nil, fmt.Errorf("failed to describe stack %s: %w", name, err)
	}
	if len(out.Stacks) == 0 {
		return nil, ErrStackNotFound
	}

	return fromStack(out.Stacks[0]), nil
}

func (c *CFNStackClient) ListStacks(ctx context.Context) ([]*StackDetail, error) {
	var details []*StackDetail

	paginator := cloudformation.NewDescribeStacksPaginator(c.client, &cloudformation.DescribeStacksInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list stacks: %w", err)
		}
		for _, stack := range page.Stacks {
			if !hasTag(stack.Tags, tagManagedBy) {
				continue
			}
			details = append(details, fromStack(stack))
		}
	}

	return details, nil
}

func (c *CFNStackClient) ValidateTemplate(ctx context.Context, body string) error {
	input := &cloudformation.ValidateTemplateInput{TemplateBody: aws.String(body)}
	if _, err := c.client.ValidateTemplate(ctx, input); err != nil {
		return fmt.Errorf("template validation failed: %w", err)
	}
	return nil
}

func fromStack(stack cfntypes.Stack) *StackDetail {
	detail := &StackDetail{
		Name:         aws.ToString(stack.StackName),
		ID:           aws.ToString(stack.StackId),
		Status:       types.StackStatus(stack.StackStatus),
		StatusReason: aws.ToString(stack.StackStatusReason),
		Outputs:      make(map[string]string),
	}
	if stack.CreationTime != nil {
		detail.CreatedAt = *stack.CreationTime
	}
	if stack.LastUpdatedTime != nil {
		detail.UpdatedAt = *stack.LastUpdatedTime
	}
	for _, o := range stack.Outputs {
		detail.Outputs[aws.ToString(o.OutputKey)] = aws.ToString(o.OutputValue)
	}
	return detail
}

func toParameters(params map[string]string) []cfntypes.Parameter {
	out := make([]cfntypes.Parameter, 0, len(params))
	for k, v := range params {
		out = append(out, cfntypes.Parameter{
			ParameterKey:   aws.String(k),
			ParameterValue: aws.String(v),
		})
	}
	return out
}

func toTags(tags map[string]string) []cfntypes.Tag {
	out := []cfntypes.Tag{{Key: aws.String(tagManagedBy), Value: aws.String("true")}}
	for k, v := range tags {
		out = append(out, cfntypes.Tag{Key: aws.String(k), Value: aws.String(v)})
	}
	return out
}

func hasTag(tags []cfntypes.Tag, key string) bool {
	for _, t := range tags {
		if aws.ToString(t.Key) == key {
			return true
		}
	}
	return false
}

// isNotFound recognizes the ValidationError CloudFormation returns for a
// missing stack; the SDK has no typed error for it.
func isNotFound(err error) bool {
	var apiErr interface{ ErrorCode() string }
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "ValidationError" {
		return strings.Contains(err.Error(), "does not exist")
	}
	return false
}
