package main

import (
	"fmt"

	"github.com/mrpasztoradam/goadsym"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of goadsym",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(goadsym.GetBuildInfo().String())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
