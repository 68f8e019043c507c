// myBrAIn: persistent project memory for coding agents.
//
// An MCP server (stdio transport) that keeps project rules and context in a
// local vector store, refuses contradicting rules, and watches the active
// project for drift in the background.
//
// Usage:
//
//	mybrain serve                   # Start MCP server (stdio transport)
//	mybrain status                  # Show the observer status file
//	mybrain export --workbase PATH  # Dump memories as JSON
//	mybrain import FILE             # Load memories from a JSON dump
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/HendryAvila/mybrain/internal/config"
	"github.com/HendryAvila/mybrain/internal/logger"
	mbserver "github.com/HendryAvila/mybrain/internal/server"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// options holds the persistent flags shared by every subcommand.
type options struct {
	cfgFile string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "mybrain",
		Short: "Persistent project memory for coding agents",
		Long: `myBrAIn remembers project rules, context and constraints across agent
sessions. It runs as an MCP server over stdio, rejects rules that contradict
stored ones, and watches the active project for architectural drift.`,
		Version:       mbserver.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate("mybrain v{{.Version}}\n")
	root.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (default is ~/.mybrain/config.yaml)")

	root.AddCommand(
		newServeCmd(opts),
		newStatusCmd(opts),
		newExportCmd(opts),
		newImportCmd(opts),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "mybrain v%s\n", mbserver.Version)
		},
	}
}

// setup loads the configuration and builds the stderr logger.
func setup(opts *options) (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load(opts.cfgFile)
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		File:   cfg.Log.File,
		Pretty: cfg.Log.Pretty,
	})
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}
