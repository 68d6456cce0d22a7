package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	envOnly    bool
	envFiles   []string
}

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "mlssync",
		Short:         "Incremental MLS replication into a relational store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	defaultPath := os.Getenv("MLSSYNC_CONFIG")
	if defaultPath == "" {
		defaultPath = "config/config.yaml"
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", defaultPath, "path to the YAML config file")
	root.PersistentFlags().BoolVar(&opts.envOnly, "env-only", os.Getenv("MLSSYNC_ENV_ONLY") == "1", "skip the config file and read MLSSYNC_* variables only")
	root.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", nil, ".env files loaded before the config (default .env)")

	root.AddCommand(
		newServeCommand(opts),
		newSyncCommand(opts),
		newCursorsCommand(opts),
	)
	return root
}
