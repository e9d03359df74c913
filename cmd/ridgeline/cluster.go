package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/ridgeline-io/ridgeline/pkg/cluster"
	"github.com/ridgeline-io/ridgeline/pkg/update"
	"github.com/ridgeline-io/ridgeline/pkg/validate"
)

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Manage cluster lifecycles",
}

func init() {
	clusterCmd.AddCommand(clusterCreateCmd)
	clusterCmd.AddCommand(clusterUpdateCmd)
	clusterCmd.AddCommand(clusterDeleteCmd)
	clusterCmd.AddCommand(clusterStartCmd)
	clusterCmd.AddCommand(clusterStopCmd)
	clusterCmd.AddCommand(clusterStatusCmd)
	clusterCmd.AddCommand(clusterListCmd)
	clusterCmd.AddCommand(clusterDescribeCmd)
	clusterCmd.AddCommand(clusterExportLogsCmd)

	for _, cmd := range []*cobra.Command{clusterCreateCmd, clusterUpdateCmd} {
		cmd.Flags().String("config", "", "path to the cluster configuration file")
		cmd.Flags().Bool("suppress-validators", false, "skip the validator catalog and dry-run checks")
		cmd.Flags().String("validation-level", "error", "severity at which validation findings fail the operation")
		cmd.Flags().Bool("wait", false, "block until the stack settles")
		_ = cmd.MarkFlagRequired("config")
	}
	clusterUpdateCmd.Flags().Bool("force", false, "apply the update even when changes were denied")

	clusterDeleteCmd.Flags().Bool("keep-logs", false, "retain log resources after deletion")
	clusterDeleteCmd.Flags().Bool("wait", false, "block until the stack is gone")

	clusterExportLogsCmd.Flags().String("bucket", "", "destination bucket (defaults to the artifact bucket)")
	clusterExportLogsCmd.Flags().String("prefix", "", "destination key prefix")
}

func validateOptions(cmd *cobra.Command) (cluster.ValidateOptions, error) {
	levelName, _ := cmd.Flags().GetString("validation-level")
	level, err := validate.ParseSeverity(levelName)
	if err != nil {
		return cluster.ValidateOptions{}, err
	}
	suppress, _ := cmd.Flags().GetBool("suppress-validators")
	return cluster.ValidateOptions{
		SuppressValidators: suppress,
		FailureLevel:       level,
	}, nil
}

var clusterCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a cluster from a configuration file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		opts, err := validateOptions(cmd)
		if err != nil {
			return err
		}
		configPath, _ := cmd.Flags().GetString("config")
		doc, err := os.ReadFile(configPath)
		if err != nil {
			return fmt.Errorf("failed to read configuration: %w", err)
		}

		ctrl, closer, err := buildController(cmd.Context())
		if err != nil {
			return err
		}
		defer closer()

		info, err := ctrl.Create(cmd.Context(), name, doc, opts)
		if err != nil {
			return err
		}
		fmt.Printf("Cluster %s creation started (version %s)\n", info.Name, info.ConfigVersion)

		if wait, _ := cmd.Flags().GetBool("wait"); wait {
			return waitAndReport(cmd, ctrl, name)
		}
		return nil
	},
}

var clusterUpdateCmd = &cobra.Command{
	Use:   "update <name>",
	Short: "Apply a new configuration to a running cluster",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		vopts, err := validateOptions(cmd)
		if err != nil {
			return err
		}
		force, _ := cmd.Flags().GetBool("force")
		configPath, _ := cmd.Flags().GetString("config")
		doc, err := os.ReadFile(configPath)
		if err != nil {
			return fmt.Errorf("failed to read configuration: %w", err)
		}

		ctrl, closer, err := buildController(cmd.Context())
		if err != nil {
			return err
		}
		defer closer()

		report, err := ctrl.Update(cmd.Context(), name, doc, cluster.UpdateOptions{
			ValidateOptions: vopts,
			Force:           force,
		})
		if report != nil {
			printReport(report)
		}
		if err != nil {
			var updateErr *cluster.UpdateError
			if errors.As(err, &updateErr) {
				return fmt.Errorf("update denied; stop the fleet or rerun with --force to override")
			}
			return err
		}

		fmt.Printf("Cluster %s update started\n", name)
		if wait, _ := cmd.Flags().GetBool("wait"); wait {
			return waitAndReport(cmd, ctrl, name)
		}
		return nil
	},
}

var clusterDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a cluster",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		keepLogs, _ := cmd.Flags().GetBool("keep-logs")

		ctrl, closer, err := buildController(cmd.Context())
		if err != nil {
			return err
		}
		defer closer()

		if err := ctrl.Delete(cmd.Context(), name, keepLogs); err != nil {
			return err
		}
		fmt.Printf("Cluster %s deletion started\n", name)

		if wait, _ := cmd.Flags().GetBool("wait"); wait {
			detail, err := ctrl.WaitStable(cmd.Context(), name)
			if err != nil {
				return err
			}
			if detail == nil {
				fmt.Printf("Cluster %s deleted\n", name)
			} else {
				fmt.Printf("Cluster %s is %s\n", name, detail.Status)
			}
		}
		return nil
	},
}

var clusterStartCmd = &cobra.Command{
	Use:   "start <name>",
	Short: "Start the compute fleet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctrl, closer, err := buildController(cmd.Context())
		if err != nil {
			return err
		}
		defer closer()

		if err := ctrl.Start(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Compute fleet of cluster %s started\n", args[0])
		return nil
	},
}

var clusterStopCmd = &cobra.Command{
	Use:   "stop <name>",
	Short: "Stop the compute fleet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctrl, closer, err := buildController(cmd.Context())
		if err != nil {
			return err
		}
		defer closer()

		if err := ctrl.Stop(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Compute fleet of cluster %s stopped\n", args[0])
		return nil
	},
}

var clusterStatusCmd = &cobra.Command{
	Use:   "status <name>",
	Short: "Show the cluster's current state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctrl, closer, err := buildController(cmd.Context())
		if err != nil {
			return err
		}
		defer closer()

		info, err := ctrl.Status(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendRows([]table.Row{
			{"Name", info.Name},
			{"Status", info.Status},
			{"Stack status", info.StackStatus},
			{"Fleet status", info.FleetStatus},
			{"Scheduler", info.Scheduler},
			{"Config version", info.ConfigVersion},
			{"Region", info.Region},
			{"Created", info.CreatedAt.Format(time.RFC3339)},
		})
		t.Render()
		return nil
	},
}

var clusterListCmd = &cobra.Command{
	Use:   "list",
	Short: "List managed clusters",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctrl, closer, err := buildController(cmd.Context())
		if err != nil {
			return err
		}
		defer closer()

		infos, err := ctrl.List(cmd.Context())
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Name", "Status", "Fleet", "Scheduler", "Created"})
		for _, info := range infos {
			t.AppendRow(table.Row{
				info.Name, info.Status, info.FleetStatus, info.Scheduler,
				info.CreatedAt.Format(time.RFC3339),
			})
		}
		t.Render()
		return nil
	},
}

var clusterDescribeCmd = &cobra.Command{
	Use:   "describe <name>",
	Short: "Print the deployed configuration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctrl, closer, err := buildController(cmd.Context())
		if err != nil {
			return err
		}
		defer closer()

		doc, err := ctrl.DescribeConfig(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Print(string(doc))
		return nil
	},
}

var clusterExportLogsCmd = &cobra.Command{
	Use:   "export-logs <name>",
	Short: "Export the cluster's logs to an object store bucket",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bucket, _ := cmd.Flags().GetString("bucket")
		prefix, _ := cmd.Flags().GetString("prefix")

		ctrl, closer, err := buildController(cmd.Context())
		if err != nil {
			return err
		}
		defer closer()

		taskID, err := ctrl.ExportLogs(cmd.Context(), args[0], bucket, prefix)
		if err != nil {
			return err
		}
		fmt.Printf("Log export started (task %s)\n", taskID)
		return nil
	},
}

func waitAndReport(cmd *cobra.Command, ctrl *cluster.Controller, name string) error {
	detail, err := ctrl.WaitStable(cmd.Context(), name)
	if err != nil {
		return err
	}
	if detail == nil {
		fmt.Printf("Cluster %s no longer exists\n", name)
		return nil
	}
	fmt.Printf("Cluster %s is %s\n", name, detail.Status)
	return nil
}

func printReport(report *update.Report) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Change", "Policy", "Result", "Reason", "Action needed"})
	shown := 0
	for _, v := range report.Verdicts {
		if !v.Display {
			continue
		}
		t.AppendRow(table.Row{v.Change.PathString(), v.Policy, v.Result, v.FailReason, v.ActionNeeded})
		shown++
	}
	if shown > 0 {
		t.Render()
	}
}
