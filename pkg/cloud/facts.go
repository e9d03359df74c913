package cloud

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/ridgeline-io/ridgeline/pkg/types"
	"github.com/ridgeline-io/ridgeline/pkg/validate"
)

// Resource tag keys shared by every cluster resource
const (
	TagCluster  = "ridgeline:cluster"
	TagNodeType = "ridgeline:node-type"

	nodeTypeHeadNode = "HeadNode"
	nodeTypeCompute  = "Compute"
)

// EC2Facts implements validate.CloudFacts and the head node state lookup
// against EC2.
type EC2Facts struct {
	client *ec2.Client
}

// NewEC2Facts wraps an SDK EC2 client
func NewEC2Facts(client *ec2.Client) *EC2Facts {
	return &EC2Facts{client: client}
}

func (f *EC2Facts) InstanceTypeInfo(ctx context.Context, instanceType string) (validate.InstanceTypeInfo, error) {
	out, err := f.client.DescribeInstanceTypes(ctx, &ec2.DescribeInstanceTypesInput{
		InstanceTypes: []ec2types.InstanceType{ec2types.InstanceType(instanceType)},
	})
	if err != nil {
		return validate.InstanceTypeInfo{}, fmt.Errorf("failed to describe instance type %s: %w", instanceType, err)
	}
	if len(out.InstanceTypes) == 0 {
		return validate.InstanceTypeInfo{}, fmt.Errorf("instance type %s not found", instanceType)
	}

	it := out.InstanceTypes[0]
	info := validate.InstanceTypeInfo{}
	if it.VCpuInfo != nil {
		info.VCPUs = int(aws.ToInt32(it.VCpuInfo.DefaultVCpus))
	}
	if it.MemoryInfo != nil {
		info.MemoryMiB = aws.ToInt64(it.MemoryInfo.SizeInMiB)
	}
	if it.ProcessorInfo != nil && len(it.ProcessorInfo.SupportedArchitectures) > 0 {
		info.Architecture = string(it.ProcessorInfo.SupportedArchitectures[0])
	}
	if it.NetworkInfo != nil {
		info.EfaSupported = aws.ToBool(it.NetworkInfo.EfaSupported)
	}
	return info, nil
}

func (f *EC2Facts) SubnetInfo(ctx context.Context, subnetID string) (validate.SubnetInfo, error) {
	out, err := f.client.DescribeSubnets(ctx, &ec2.DescribeSubnetsInput{
		SubnetIds: []string{subnetID},
	})
	if err != nil {
		return validate.SubnetInfo{}, fmt.Errorf("failed to describe subnet %s: %w", subnetID, err)
	}
	if len(out.Subnets) == 0 {
		return validate.SubnetInfo{}, fmt.Errorf("subnet %s not found", subnetID)
	}

	subnet := out.Subnets[0]
	return validate.SubnetInfo{
		VpcID:            aws.ToString(subnet.VpcId),
		AvailabilityZone: aws.ToString(subnet.AvailabilityZone),
	}, nil
}

func (f *EC2Facts) SecurityGroupExists(ctx context.Context, groupID string) (bool, error) {
	out, err := f.client.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{
		GroupIds: []string{groupID},
	})
	if err != nil {
		return false, fmt.Errorf("failed to describe security group %s: %w", groupID, err)
	}
	return len(out.SecurityGroups) > 0, nil
}

// HeadNodeState returns the head node's instance state for the cluster,
// HeadNodeUnknown when no head node instance is found.
func (f *EC2Facts) HeadNodeState(ctx context.Context, cluster string) (types.HeadNodeState, error) {
	out, err := f.client.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("tag:" + TagCluster), Values: []string{cluster}},
			{Name: aws.String("tag:" + TagNodeType), Values: []string{nodeTypeHeadNode}},
			{Name: aws.String("instance-state-name"), Values: []string{"pending", "running", "stopping", "stopped"}},
		},
	})
	if err != nil {
		return types.HeadNodeUnknown, fmt.Errorf("failed to describe head node for cluster %s: %w", cluster, err)
	}

	for _, reservation := range out.Reservations {
		for _, instance := range reservation.Instances {
			if instance.State == nil {
				continue
			}
			switch instance.State.Name {
			case ec2types.InstanceStateNameRunning, ec2types.InstanceStateNamePending:
				return types.HeadNodeRunning, nil
			case ec2types.InstanceStateNameStopped, ec2types.InstanceStateNameStopping:
				return types.HeadNodeStopped, nil
			}
		}
	}
	return types.HeadNodeUnknown, nil
}
