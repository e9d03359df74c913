package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ridgeline-io/ridgeline/pkg/api"
	"github.com/ridgeline-io/ridgeline/pkg/events"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Long: `Run the thin HTTP front over the lifecycle controller. The server
exposes the cluster operations under /v1/clusters, recent lifecycle events
under /v1/events, liveness and readiness endpoints at /health and /ready,
and Prometheus metrics at /metrics.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("listen")
		retain, _ := cmd.Flags().GetInt("event-buffer")

		ctrl, closer, err := buildController(cmd.Context())
		if err != nil {
			return err
		}
		defer closer()

		recorder := events.NewRecorder(ctrl.Events(), retain)
		defer recorder.Stop()
		sink := events.NewLogSink(ctrl.Events())
		defer sink.Stop()

		api.Version = Version
		server := api.NewServer(ctrl, recorder)
		fmt.Printf("Ridgeline API listening on %s\n", addr)
		return server.Start(addr)
	},
}

func init() {
	serveCmd.Flags().String("listen", ":8080", "address to listen on")
	serveCmd.Flags().Int("event-buffer", 256, "number of lifecycle events retained for /v1/events")
}
