package validate

import (
	"context"
	"fmt"

	"github.com/ridgeline-io/ridgeline/pkg/config"
)

// DefaultRules returns the whole-tree rule catalog. Each rule is independent
// and produces its own findings; the engine runs all of them.
func DefaultRules() []Rule {
	return []Rule{
		RuleRequiredSections,
		RuleCountBounds,
		RuleSpotPrice,
		RuleQueueScheduler,
		RuleInstanceTypes,
		RuleSubnetTopology,
		RuleSecurityGroups,
	}
}

// RuleRequiredSections checks that the sections every cluster needs are
// present; they are not autocreated and have no defaults.
func RuleRequiredSections(_ context.Context, root *config.Root, _ CloudFacts) Findings {
	var findings Findings
	for _, required := range []struct{ key, path string }{
		{"head_node", "HeadNode"},
		{"scheduling", "Scheduling"},
	} {
		if root.DefaultSection(required.key) == nil {
			findings = append(findings, Finding{
				Severity: Error,
				Source:   "required",
				Path:     required.path,
				Message:  fmt.Sprintf("section %s is required", required.path),
			})
		}
	}
	return findings
}

// RuleCountBounds checks MinCount <= MaxCount for every compute resource
func RuleCountBounds(_ context.Context, root *config.Root, _ CloudFacts) Findings {
	var findings Findings
	forEachComputeResource(root, func(queue, cr *config.Section) {
		min := cr.Value("MinCount").Int()
		max := cr.Value("MaxCount").Int()
		if min > max {
			findings = append(findings, Finding{
				Severity: Error,
				Source:   "count-bounds",
				Path:     crPath(queue, cr) + "/MinCount",
				Message:  fmt.Sprintf("MinCount %d exceeds MaxCount %d", min, max),
			})
		}
		if max < 0 {
			findings = append(findings, Finding{
				Severity: Error,
				Source:   "count-bounds",
				Path:     crPath(queue, cr) + "/MaxCount",
				Message:  fmt.Sprintf("MaxCount must not be negative, got %d", max),
			})
		}
	})
	return findings
}

// RuleSpotPrice warns when a spot price is set on an on-demand queue
func RuleSpotPrice(_ context.Context, root *config.Root, _ CloudFacts) Findings {
	var findings Findings
	forEachComputeResource(root, func(queue, cr *config.Section) {
		if cr.Value("SpotPrice").IsSet() && queue.Value("CapacityType").String() != "SPOT" {
			findings = append(findings, Finding{
				Severity: Warning,
				Source:   "spot-price",
				Path:     crPath(queue, cr) + "/SpotPrice",
				Message:  fmt.Sprintf("SpotPrice is ignored because queue %q uses ONDEMAND capacity", queue.Label()),
			})
		}
	})
	return findings
}

// RuleQueueScheduler checks that queues are only declared for the slurm scheduler
func RuleQueueScheduler(_ context.Context, root *config.Root, _ CloudFacts) Findings {
	scheduling := root.DefaultSection("scheduling")
	if scheduling == nil {
		return nil
	}
	scheduler := scheduling.Value("Scheduler").String()
	queues := root.ChildrenOf(scheduling, "SlurmQueues")
	if scheduler != "slurm" && len(queues) > 0 {
		return Findings{{
			Severity: Error,
			Source:   "queue-scheduler",
			Path:     "Scheduling/SlurmQueues",
			Message:  fmt.Sprintf("SlurmQueues cannot be used with the %q scheduler", scheduler),
		}}
	}
	if scheduler == "slurm" && len(queues) == 0 {
		return Findings{{
			Severity: Error,
			Source:   "queue-scheduler",
			Path:     "Scheduling/SlurmQueues",
			Message:  "at least one queue is required for the slurm scheduler",
		}}
	}
	return nil
}

// RuleInstanceTypes verifies every referenced instance type exists in the
// target region and that architectures are consistent across the cluster.
func RuleInstanceTypes(ctx context.Context, root *config.Root, facts CloudFacts) Findings {
	if facts == nil {
		return nil
	}
	var findings Findings
	architectures := make(map[string]string)

	check := func(path, instanceType string) {
		if instanceType == "" {
			return
		}
		info, err := facts.InstanceTypeInfo(ctx, instanceType)
		if err != nil {
			findings = append(findings, Finding{
				Severity: Error,
				Source:   "instance-type",
				Path:     path,
				Message:  fmt.Sprintf("instance type %q is not available: %v", instanceType, err),
			})
			return
		}
		architectures[path] = info.Architecture
	}

	if head := root.DefaultSection("head_node"); head != nil {
		check("HeadNode/InstanceType", head.Value("InstanceType").String())
	}
	forEachComputeResource(root, func(queue, cr *config.Section) {
		check(crPath(queue, cr)+"/InstanceType", cr.Value("InstanceType").String())
	})

	headArch := architectures["HeadNode/InstanceType"]
	if headArch != "" {
		for path, arch := range architectures {
			if arch != headArch {
				findings = append(findings, Finding{
					Severity: Error,
					Source:   "instance-type",
					Path:     path,
					Message:  fmt.Sprintf("architecture %q does not match the head node architecture %q", arch, headArch),
				})
			}
		}
	}
	return findings
}

// RuleSubnetTopology verifies the head node subnet and every queue subnet
// belong to the same VPC.
func RuleSubnetTopology(ctx context.Context, root *config.Root, facts CloudFacts) Findings {
	if facts == nil {
		return nil
	}
	var findings Findings

	head := root.DefaultSection("head_node")
	if head == nil {
		return nil
	}
	headSubnet := head.Value("SubnetId").String()
	if headSubnet == "" {
		return nil
	}
	headInfo, err := facts.SubnetInfo(ctx, headSubnet)
	if err != nil {
		return Findings{{
			Severity: Error,
			Source:   "subnet",
			Path:     "HeadNode/SubnetId",
			Message:  fmt.Sprintf("subnet %q not found: %v", headSubnet, err),
		}}
	}

	forEachQueue(root, func(queue *config.Section) {
		for _, subnetID := range queue.Value("SubnetIds").List() {
			info, err := facts.SubnetInfo(ctx, subnetID)
			if err != nil {
				findings = append(findings, Finding{
					Severity: Error,
					Source:   "subnet",
					Path:     queuePath(queue) + "/SubnetIds",
					Message:  fmt.Sprintf("subnet %q not found: %v", subnetID, err),
				})
				continue
			}
			if info.VpcID != headInfo.VpcID {
				findings = append(findings, Finding{
					Severity: Error,
					Source:   "subnet",
					Path:     queuePath(queue) + "/SubnetIds",
					Message:  fmt.Sprintf("subnet %q is in VPC %q but the head node is in VPC %q", subnetID, info.VpcID, headInfo.VpcID),
				})
			}
		}
	})
	return findings
}

// RuleSecurityGroups verifies every additional security group exists
func RuleSecurityGroups(ctx context.Context, root *config.Root, facts CloudFacts) Findings {
	if facts == nil {
		return nil
	}
	network := root.DefaultSection("network")
	if network == nil {
		return nil
	}
	var findings Findings
	for _, sg := range network.Value("AdditionalSecurityGroups").List() {
		exists, err := facts.SecurityGroupExists(ctx, sg)
		if err != nil {
			findings = append(findings, Finding{
				Severity: Warning,
				Source:   "security-group",
				Path:     "Networking/AdditionalSecurityGroups",
				Message:  fmt.Sprintf("could not verify security group %q: %v", sg, err),
			})
			continue
		}
		if !exists {
			findings = append(findings, Finding{
				Severity: Error,
				Source:   "security-group",
				Path:     "Networking/AdditionalSecurityGroups",
				Message:  fmt.Sprintf("security group %q does not exist", sg),
			})
		}
	}
	return findings
}

func forEachQueue(root *config.Root, fn func(queue *config.Section)) {
	scheduling := root.DefaultSection("scheduling")
	if scheduling == nil {
		return
	}
	for _, queue := range root.ChildrenOf(scheduling, "SlurmQueues") {
		fn(queue)
	}
}

func forEachComputeResource(root *config.Root, fn func(queue, cr *config.Section)) {
	forEachQueue(root, func(queue *config.Section) {
		for _, cr := range root.ChildrenOf(queue, "ComputeResources") {
			fn(queue, cr)
		}
	})
}

func queuePath(queue *config.Section) string {
	return fmt.Sprintf("Scheduling/SlurmQueues[%s]", queue.Label())
}

func crPath(queue, cr *config.Section) string {
	return fmt.Sprintf("%s/ComputeResources[%s]", queuePath(queue), cr.Label())
}
