package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/izavyalov-dev/jarforge/internal/config"
	"github.com/izavyalov-dev/jarforge/internal/observability"
)

// Exit codes.
const (
	exitFailure = 1
	exitUsage   = 2
)

// exitError carries the process exit code for err.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func usageError(err error) error {
	return &exitError{code: exitUsage, err: err}
}

type rootOptions struct {
	configPath string
	logLevel   string
	socket     string
	devMode    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "jarforge",
		Short:         "Build server jars in throwaway containers",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			observability.SetLevel(opts.logLevel)
		},
	}
	cmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError(err)
	})

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", config.DefaultFile, "Path to jarforge.yaml")
	flags.StringVar(&opts.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flags.StringVar(&opts.socket, "socket", "", "Container engine socket (overrides config and JARFORGE_SOCKET)")
	flags.BoolVar(&opts.devMode, "dev", false, "Run builders with 'go run' from the mounted source tree")

	cmd.AddCommand(
		newRunCmd(opts),
		newBuilderCmd(),
		newPingCmd(opts),
		newPruneCmd(opts),
		newHistoryCmd(opts),
	)
	return cmd
}

// loadConfig resolves defaults, file, environment and flags, in that order.
func (o *rootOptions) loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.Config{}, usageError(err)
	}
	cfg.ApplyEnv(os.Getenv)
	if o.socket != "" {
		cfg.Engine.Socket = o.socket
	}
	if cmd.Flags().Changed("dev") {
		cfg.DevMode = o.devMode
	}
	if !cmd.Flags().Changed("log-level") && cfg.LogLevel != "" {
		observability.SetLevel(cfg.LogLevel)
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, usageError(fmt.Errorf("invalid config: %w", err))
	}
	return cfg, nil
}

func main() {
	err := newRootCmd().Execute()
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "jarforge: %v\n", err)

	var exitErr *exitError
	if errors.As(err, &exitErr) {
		os.Exit(exitErr.code)
	}
	os.Exit(exitFailure)
}
