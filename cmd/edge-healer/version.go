package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// buildVersion is overridable at link time via -ldflags.
var buildVersion = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "print the build version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(buildVersion)
	},
}
