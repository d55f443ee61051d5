package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/openvox/voxharvest/internal/config"
	"github.com/openvox/voxharvest/internal/manifest"
	"github.com/openvox/voxharvest/internal/pipeline"
	"github.com/openvox/voxharvest/internal/status"
	"github.com/openvox/voxharvest/pkg/logging"
)

// commandContext carries the loaded configuration into subcommands.
type commandContext struct {
	configPath string
	cfg        *config.Config
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	root := &cobra.Command{
		Use:   "voxharvest",
		Short: "Build paired speech and noise audio corpora",
		Long: "voxharvest scrapes a public audiobook catalog for clean speech,\n" +
			"samples a media archive for noise recordings, and post-processes\n" +
			"both corpora into a normalized training dataset.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations["skipConfigLoad"] == "true" {
				return nil
			}
			cfg, err := config.Load(ctx.configPath)
			if err != nil {
				return err
			}
			if err := logging.SetupLogger(&cfg.Logging); err != nil {
				return fmt.Errorf("set up logging: %w", err)
			}
			ctx.cfg = cfg
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&ctx.configPath, "config", "c", "voxharvest.toml", "Path to the configuration file")

	root.AddCommand(newScanCommand(ctx))
	root.AddCommand(newSpeechCommand(ctx))
	root.AddCommand(newNoiseCommand(ctx))
	root.AddCommand(newGenerateCommand(ctx))
	root.AddCommand(newPreprocessCommand(ctx))
	root.AddCommand(newConfigCommand(ctx))
	return root
}

// runPipeline builds a pipeline with its manifest and optional status
// server, then hands it to run under a signal-aware context.
func runPipeline(ctx *commandContext, run func(context.Context, *pipeline.Pipeline) error) error {
	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store *manifest.Store
	if ctx.cfg.Manifest.Path != "" {
		var err error
		store, err = manifest.Open(runCtx, ctx.cfg.Manifest.Path)
		if err != nil {
			return fmt.Errorf("open manifest: %w", err)
		}
		defer store.Close()
	}

	p := pipeline.New(ctx.cfg, store)

	if ctx.cfg.Status.Bind != "" {
		srv := status.New(p.Progress())
		go func() {
			if err := srv.Listen(ctx.cfg.Status.Bind); err != nil {
				fmt.Fprintf(os.Stderr, "status server: %v\n", err)
			}
		}()
		defer srv.Shutdown()
	}

	return run(runCtx, p)
}
