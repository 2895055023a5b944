package main

import (
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"storyapi/internal/repository/postgres"
	"storyapi/internal/service"
	"storyapi/internal/storage"
)

func newSweepCommand(ctx *commandContext) *cobra.Command {
	var batchSize int

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired stories and their media once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.config()
			if batchSize <= 0 {
				batchSize = cfg.Stories.SweepBatchSize
			}

			db, err := ctx.openDatabase(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			store, err := storage.New(cmd.Context(), cfg.Storage)
			if err != nil {
				return fmt.Errorf("initialize object storage: %w", err)
			}

			clock := clockwork.NewRealClock()
			repo := postgres.NewStoryPostgres(db, clock)
			sweeper := service.NewSweeper(repo, store, clock, batchSize, ctx.log(), nil)

			n, err := sweeper.Sweep(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d expired stories\n", n)
			return nil
		},
	}

	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "Stories deleted per batch (defaults to STORY_SWEEP_BATCH_SIZE)")
	return cmd
}
