package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/spf13/cobra"

	"github.com/HendryAvila/mybrain/internal/config"
	"github.com/HendryAvila/mybrain/internal/observer"
)

func newStatusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the drift observer status",
		Long: `Print the status file the drift observer of a running server keeps in
the data directory: its state, last run, counters and recent log lines.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.cfgFile)
			if err != nil {
				return err
			}
			return runStatus(cfg.StatusFile(), cmd.OutOrStdout())
		},
	}
}

func runStatus(path string, w io.Writer) error {
	st, err := observer.ReadState(path)
	if errors.Is(err, fs.ErrNotExist) {
		_, err = fmt.Fprintf(w, "Observer has not run yet (no status file at %s).\n", path)
		return err
	}
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(st)
}
