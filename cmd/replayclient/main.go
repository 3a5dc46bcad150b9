// Command replayclient streams classifier frames to the ingress service and
// tails the events it publishes.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"metronome-ingress-service/internal/observability/logging"
)

var serverAddr string

var rootCmd = &cobra.Command{
	Use:   "replayclient",
	Short: "Drive the metronome ingress service with classifier frames.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg := logging.DefaultConfig()
		cfg.Format = "console"
		logging.Init(cfg)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", "localhost:50051", "gRPC server address")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
