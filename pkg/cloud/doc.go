/*
Package cloud holds every AWS collaborator behind narrow interfaces.

The lifecycle controller and the validation engine never import SDK types;
they depend on the interfaces declared here (StackClient, ObjectStore,
CapacityAdjuster, LogManager, plus validate.CloudFacts and validate.DryRunner)
and tests substitute fakes. One implementation exists per service:

	StackClient       CFNStackClient   CloudFormation
	ObjectStore       S3Store          S3
	CapacityAdjuster  ASGAdjuster      Auto Scaling
	LogManager        CWLogManager     CloudWatch Logs
	CloudFacts        EC2Facts         EC2
	DryRunner         DryRun           composed from the above

Building the clients:

	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil { ... }
	stacks := cloud.NewCFNStackClient(cloudformation.NewFromConfig(cfg))
	store := cloud.NewS3Store(s3.NewFromConfig(cfg))

Every cluster resource carries the ridgeline:cluster tag; lookups filter on
it rather than on resource naming conventions. DeleteStack and DescribeStack
translate the service's "does not exist" ValidationError to ErrStackNotFound
so callers can treat deleting an already-gone stack as success.
*/
package cloud
