package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	deskApp "librarydesk/internal/app"
	"librarydesk/internal/backendsim"
	"librarydesk/internal/config"
	"librarydesk/internal/etl"
	"librarydesk/internal/logging"
	"librarydesk/internal/service"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type rootOptions struct {
	configPath string
	cfg        *config.Config
	logger     *zap.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "librarydesk",
		Short:         "Catalog console for the library backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
			if err != nil {
				return err
			}
			opts.cfg = cfg
			opts.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.logger != nil {
				_ = opts.logger.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDesktop(opts.cfg, opts.logger)
		},
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (default librarydesk.yaml)")

	root.AddCommand(
		newMCPCmd(opts),
		newImportCmd(opts),
		newExportCmd(opts),
		newStatsCmd(opts),
		newBackendSimCmd(opts),
	)
	return root
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// loadedCore builds the core and loads the catalog; the caller closes it.
func loadedCore(ctx context.Context, opts *rootOptions) (*deskApp.Core, error) {
	core, err := deskApp.NewCore(opts.cfg, opts.logger, nil)
	if err != nil {
		return nil, err
	}
	if err := core.Library.Load(ctx); err != nil {
		core.Close(context.Background())
		return nil, err
	}
	return core, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

func newMCPCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the catalog as an MCP server on stdin/stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()
			return deskApp.ServeMCP(ctx, opts.cfg, opts.logger)
		},
	}
}

func newImportCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Import books from a CSV or JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()
			core, err := loadedCore(ctx, opts)
			if err != nil {
				return err
			}
			defer core.Close(context.Background())

			report, err := core.Imports.ImportFile(ctx, args[0], service.TriggerManual)
			if err != nil {
				return err
			}
			return printJSON(cmd, report)
		},
	}
}

func newExportCmd(opts *rootOptions) *cobra.Command {
	var entity, target string
	cmd := &cobra.Command{
		Use:   "export [FILE]",
		Short: "Export the catalog to a CSV/JSON file or to a configured database",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (len(args) == 0) == (target == "") {
				return fmt.Errorf("give either FILE or --target")
			}
			ctx, cancel := signalContext()
			defer cancel()
			core, err := loadedCore(ctx, opts)
			if err != nil {
				return err
			}
			defer core.Close(context.Background())

			if target != "" {
				run, err := core.Exports.ExportToTarget(ctx, target, service.TriggerManual)
				if err != nil {
					return err
				}
				return printJSON(cmd, run)
			}
			n, err := core.Exports.ExportFile(ctx, args[0], etl.Entity(entity))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d %s to %s\n", n, entity, args[0])
			return nil
		},
	}
	cmd.Flags().StringVarP(&entity, "entity", "e", string(etl.EntityBooks), "books, authors or categories")
	cmd.Flags().StringVarP(&target, "target", "t", "", "export database name instead of a file")
	return cmd
}

func newStatsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print catalog statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()
			core, err := loadedCore(ctx, opts)
			if err != nil {
				return err
			}
			defer core.Close(context.Background())
			return printJSON(cmd, core.Library.Stats())
		},
	}
}

func newBackendSimCmd(opts *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "backend-sim",
		Short: "Run an in-memory stand-in for the library backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()
			return backendsim.New(opts.logger).ListenAndServe(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8000", "listen address")
	return cmd
}
