package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/openvox/voxharvest/internal/preprocess"
)

func newPreprocessCommand(ctx *commandContext) *cobra.Command {
	var cleanDir, dirtyDir string

	cmd := &cobra.Command{
		Use:   "preprocess",
		Short: "Normalize and augment the downloaded corpora with ffmpeg",
		Long: "preprocess merges every download to mono at the configured sample\n" +
			"rate, mixes clean/noise pairs into extra noise examples, and\n" +
			"normalizes volume. Requires ffmpeg and ffmpeg-normalize on PATH.",
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if cleanDir == "" {
				cleanDir = ctx.cfg.Dataset.CleanDir
			}
			if dirtyDir == "" {
				dirtyDir = ctx.cfg.Noise.NoiseDir
			}
			return preprocess.New(ctx.cfg.Preprocess).Run(runCtx, cleanDir, dirtyDir)
		},
	}

	cmd.Flags().StringVar(&cleanDir, "clean-dir", "", "Clean-speech input directory (defaults to dataset.clean_dir)")
	cmd.Flags().StringVar(&dirtyDir, "dirty-dir", "", "Noise input directory (defaults to noise.noise_dir)")
	return cmd
}
