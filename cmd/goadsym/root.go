package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "goadsym",
	Short: "goadsym is a symbol access gateway for ADS controllers",
	Long: `goadsym exposes symbol-handle variable access on an ADS controller
over HTTP, WebSocket and MQTT.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "config.yaml", "Path to the gateway configuration file")
}
