package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/izavyalov-dev/jarforge/engine"
	"github.com/izavyalov-dev/jarforge/orchestrator"
)

type pinger interface {
	Ping(ctx context.Context) (engine.PingInfo, error)
}

func newPingCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the container engine answers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig(cmd)
			if err != nil {
				return err
			}
			info, err := newEngineClient(cfg).Ping(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "socket:             %s\n", cfg.Engine.Socket)
			fmt.Fprintf(out, "server:             %s\n", info.Server)
			fmt.Fprintf(out, "api version:        %s\n", info.APIVersion)
			fmt.Fprintf(out, "libpod api version: %s\n", info.LibpodAPIVersion)
			if info.BuildahVersion != "" {
				fmt.Fprintf(out, "buildah version:    %s\n", info.BuildahVersion)
			}
			return nil
		},
	}
}

func newPruneCmd(root *rootOptions) *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove stopped build containers left behind by earlier runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig(cmd)
			if err != nil {
				return err
			}
			if olderThan < 0 {
				return usageError(fmt.Errorf("--older-than must not be negative"))
			}
			filters := engine.PruneBefore(time.Now().Add(-olderThan), orchestrator.OwnerLabel())
			pruned, err := newEngineClient(cfg).PruneContainers(cmd.Context(), filters)
			if err != nil {
				return err
			}
			var reclaimed int64
			for _, p := range pruned {
				reclaimed += p.Size
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pruned %d containers, reclaimed %d bytes\n", len(pruned), reclaimed)
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Only prune containers created at least this long ago")
	return cmd
}
