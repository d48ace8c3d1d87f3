package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version is stamped at build time via -ldflags; "dev" otherwise.
var version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "print the probbbc version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("probbbc " + version)
	},
}
