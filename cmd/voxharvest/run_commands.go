package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openvox/voxharvest/internal/pipeline"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Scan the audiobook catalog without downloading anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(ctx, func(runCtx context.Context, p *pipeline.Pipeline) error {
				books := p.Scan(runCtx)
				chapters := 0
				for _, book := range books {
					chapters += len(book.Chapters)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Found %d books with %d chapters.\n", len(books), chapters)
				return nil
			})
		},
	}
}

func newSpeechCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "speech",
		Short: "Build the clean-speech corpus from the audiobook catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(ctx, func(runCtx context.Context, p *pipeline.Pipeline) error {
				return p.RunSpeech(runCtx)
			})
		},
	}
}

func newNoiseCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "noise",
		Short: "Build the noise corpus from the media archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(ctx, func(runCtx context.Context, p *pipeline.Pipeline) error {
				return p.RunNoise(runCtx)
			})
		},
	}
}

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "generate",
		Short: "Build both corpora in one run",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(ctx, func(runCtx context.Context, p *pipeline.Pipeline) error {
				return p.Run(runCtx)
			})
		},
	}
}
