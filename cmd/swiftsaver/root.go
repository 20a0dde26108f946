package main

import (
	"os"

	"github.com/spf13/cobra"
)

var configPath string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "swiftsaver",
		Short:         "SwiftSaver downloads videos from social platforms",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	defaultConfig := "config.yaml"
	if v := os.Getenv("SWIFTSAVER_CONFIG"); v != "" {
		defaultConfig = v
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfig, "Path to configuration file")

	cmd.AddCommand(
		newServeCmd(),
		newResolveCmd(),
		newGetCmd(),
		newLibraryCmd(),
	)
	return cmd
}
