package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const usage = `A per-node daemon that gossips free CPU capacity, detects control-plane
outages, and optimistically rebinds pods that were lost from this node
while the API server was unreachable.

EXAMPLES:
  Run the agent:
    edge-healer serve

  Print build info:
    edge-healer version`

var rootCmd = &cobra.Command{
	Use:   "edge-healer",
	Short: "Decentralized pod restore agent",
	Long:  usage,
}

func init() {
	rootCmd.AddCommand(serveCmd, versionCmd)
}

// Execute runs the CLI's root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
