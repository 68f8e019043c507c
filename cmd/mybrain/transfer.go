package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/HendryAvila/mybrain/internal/memory"
	"github.com/HendryAvila/mybrain/internal/memtools"
	mbserver "github.com/HendryAvila/mybrain/internal/server"
	"github.com/HendryAvila/mybrain/internal/workbase"
)

func newExportCmd(opts *options) *cobra.Command {
	var ref, out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export memories as JSON",
		Long: `Write the stored memories as a JSON array of {id, document, metadata}.
With --workbase only that workbase is exported; it takes a project path or a
workbase id.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return runExport(cmd.Context(), opts, ref, w)
		},
	}
	cmd.Flags().StringVar(&ref, "workbase", "", "project path or workbase id to export (default: all)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default: stdout)")
	return cmd
}

func runExport(ctx context.Context, opts *options, ref string, w io.Writer) error {
	store, done, err := openStore(ctx, opts)
	if err != nil {
		return err
	}
	defer done()

	var filter memory.Filter
	if ref != "" {
		filter = memory.Workbase(memtools.ResolveWorkbase(ref).ID)
	}
	data, err := store.ExportJSON(ctx, filter)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func newImportCmd(opts *options) *cobra.Command {
	var ref string
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import memories from a JSON export",
		Long: `Load memories written by export. Use - to read stdin. With --workbase
every record is moved into that workbase and its id re-derived, which is how
rules are carried from one project to another.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				data []byte
				err  error
			)
			if args[0] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return err
			}
			return runImport(cmd.Context(), opts, data, ref, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&ref, "workbase", "", "project path or workbase id to import into")
	return cmd
}

func runImport(ctx context.Context, opts *options, data []byte, ref string, w io.Writer) error {
	store, done, err := openStore(ctx, opts)
	if err != nil {
		return err
	}
	defer done()

	res, err := store.Import(ctx, data, targetWorkbase(ref))
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func targetWorkbase(ref string) *workbase.Workbase {
	if ref == "" {
		return nil
	}
	wb := memtools.ResolveWorkbase(ref)
	return &wb
}

// openStore opens the configured store for a one-shot command.
func openStore(ctx context.Context, opts *options) (*memory.Store, func(), error) {
	cfg, lg, err := setup(opts)
	if err != nil {
		return nil, nil, err
	}
	store, err := mbserver.OpenStore(ctx, cfg, lg.Zerolog())
	if err != nil {
		lg.Close()
		return nil, nil, err
	}
	return store, func() {
		_ = store.Close()
		_ = lg.Close()
	}, nil
}
