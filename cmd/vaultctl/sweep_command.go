package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newSweepCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Remove expired cache artifacts",
		Long: `Remove artifacts whose expiration time has passed. With --older-than,
remove everything created before the given age regardless of expiration.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.open(cmd.Context()); err != nil {
				return err
			}
			defer ctx.close()

			var removed int
			var err error
			if olderThan > 0 {
				removed, err = ctx.store.SweepOlderThan(cmd.Context(), time.Now().Add(-olderThan))
			} else {
				removed, err = ctx.store.SweepExpired(cmd.Context(), time.Now())
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d artifacts\n", removed)
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Remove artifacts older than this age (e.g. 720h)")
	return cmd
}
