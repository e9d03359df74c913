package main

import (
	"context"
	"fmt"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/autoscaling"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/cobra"

	"github.com/ridgeline-io/ridgeline/pkg/cloud"
	"github.com/ridgeline-io/ridgeline/pkg/cluster"
	"github.com/ridgeline-io/ridgeline/pkg/events"
	"github.com/ridgeline-io/ridgeline/pkg/fleet"
	"github.com/ridgeline-io/ridgeline/pkg/log"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var (
	flagRegion   string
	flagBucket   string
	flagDataDir  string
	flagLogLevel string
	flagJSONLog  bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ridgeline",
	Short: "Ridgeline - HPC cluster lifecycle orchestrator",
	Long: `Ridgeline provisions and manages HPC clusters on AWS from a
declarative YAML specification: it validates the configuration, drives the
CloudFormation stack behind each cluster, and decides which configuration
changes can be applied to a live cluster.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log.Init(log.Config{
			Level:      log.Level(flagLogLevel),
			JSONOutput: flagJSONLog,
			Output:     os.Stderr,
		})
	},
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Ridgeline version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().StringVar(&flagRegion, "region", os.Getenv("AWS_REGION"), "AWS region")
	rootCmd.PersistentFlags().StringVar(&flagBucket, "bucket", os.Getenv("RIDGELINE_BUCKET"), "artifact bucket")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", defaultDataDir(), "local state directory")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&flagJSONLog, "log-json", false, "log in JSON format")

	rootCmd.AddCommand(clusterCmd)
	rootCmd.AddCommand(serveCmd)
}

func defaultDataDir() string {
	if dir := os.Getenv("RIDGELINE_DATA_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ridgeline"
	}
	return home + "/.ridgeline"
}

// buildController wires the AWS collaborators and the local stores into a
// lifecycle controller. The returned closer releases the local database.
func buildController(ctx context.Context) (*cluster.Controller, func(), error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if flagRegion != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(flagRegion))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	if err := os.MkdirAll(flagDataDir, 0700); err != nil {
		return nil, nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	fleetStore, err := fleet.NewBoltStore(flagDataDir)
	if err != nil {
		return nil, nil, err
	}

	broker := events.NewBroker()
	broker.Start()

	ec2Facts := cloud.NewEC2Facts(ec2.NewFromConfig(cfg))
	ctrl := cluster.NewController(cluster.Deps{
		Stacks:   cloud.NewCFNStackClient(cloudformation.NewFromConfig(cfg)),
		Store:    cloud.NewS3Store(s3.NewFromConfig(cfg)),
		Fleet:    fleetStore,
		Capacity: cloud.NewASGAdjuster(autoscaling.NewFromConfig(cfg)),
		Logs:     cloud.NewCWLogManager(cloudwatchlogs.NewFromConfig(cfg)),
		Facts:    ec2Facts,
		Broker:   broker,
	}, cluster.Options{
		Bucket: flagBucket,
		Region: cfg.Region,
	})

	closer := func() {
		broker.Stop()
		if err := fleetStore.Close(); err != nil {
			log.Warn("Failed to close local database: " + err.Error())
		}
	}
	return ctrl, closer, nil
}
