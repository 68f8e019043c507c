package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	mbserver "github.com/HendryAvila/mybrain/internal/server"
)

func newServeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server on stdio",
		Long: `Start the MCP server on stdin/stdout. The drift observer runs in the
background for as long as the server does, unless observer.enabled is false.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func runServe(parent context.Context, opts *options) error {
	cfg, lg, err := setup(opts)
	if err != nil {
		return err
	}
	defer lg.Close()
	log := lg.Zerolog()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := mbserver.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	defer app.Close()

	var wg sync.WaitGroup
	if app.Observer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.Observer.Run(ctx)
		}()
	}

	log.Info().
		Str("version", mbserver.Version).
		Str("data_dir", cfg.DataDir).
		Bool("observer", app.Observer != nil).
		Msg("myBrAIn serving on stdio")

	err = server.ServeStdio(app.MCP)

	// The observer must stop before the store closes under it.
	stop()
	wg.Wait()
	return err
}
