package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/izavyalov-dev/jarforge/builders"
	"github.com/izavyalov-dev/jarforge/internal/observability"
)

// newBuilderCmd runs one build in-process. This is the command the build
// containers execute.
func newBuilderCmd() *cobra.Command {
	var (
		pairs     []string
		outputDir string
		workspace string
	)
	cmd := &cobra.Command{
		Use:   "builder <kind>",
		Short: "Build a single artifact in the current process",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return usageError(fmt.Errorf("builder takes exactly one kind, got %d arguments", len(args)))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := args[0]
			logger := observability.WithKind(observability.NewLogger("builder"), kind)

			b, err := builders.Default(nil).Get(kind)
			if err != nil {
				return usageError(err)
			}
			parsed, err := builders.ParseArgs(pairs)
			if err != nil {
				return usageError(err)
			}
			logger = observability.WithVersion(logger, parsed.Version())

			bctx := builders.BuildContext{Workspace: workspace, OutputDir: outputDir}
			logger.Info("build started", "event", "builder_started", "args", parsed.Pairs())
			if err := b.Build(cmd.Context(), bctx, parsed); err != nil {
				logger.Error("build failed", "event", "builder_failed", "error", err)
				if errors.Is(err, builders.ErrMissingArg) {
					return usageError(err)
				}
				return &exitError{code: exitFailure, err: err}
			}
			logger.Info("build finished", "event", "builder_finished")
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&pairs, "builderArg", nil, "Builder argument as key=value (repeatable)")
	cmd.Flags().StringVar(&outputDir, "output", "/output", "Directory the artifact is written to")
	cmd.Flags().StringVar(&workspace, "workspace", "/tmp", "Scratch directory for the build")
	return cmd
}
