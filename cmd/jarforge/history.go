package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newHistoryCmd(root *rootOptions) *cobra.Command {
	var (
		kind  string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded builds (requires a database)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return usageError(errors.New("databaseURL or DATABASE_URL required"))
			}
			store, closeDB, err := openStore(cmd.Context(), cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer closeDB()

			builds, err := store.ListBuilds(cmd.Context(), kind, limit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CREATED\tKIND\tVERSION\tSTATE\tEXIT\tLOG")
			for _, b := range builds {
				exit := "-"
				if b.ExitCode != nil {
					exit = fmt.Sprint(*b.ExitCode)
				}
				logURI := "-"
				if b.LogURI != nil {
					logURI = *b.LogURI
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					b.CreatedAt.Local().Format(time.DateTime), b.Kind, b.Version, b.State, exit, logURI)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "Only list builds of this kind")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of builds to list")
	return cmd
}
