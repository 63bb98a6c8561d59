package cli

import (
	"fmt"
	"time"

	"github.com/quizroom/quizroom-backend/internal/cache"
	"github.com/quizroom/quizroom-backend/internal/service"
	"github.com/spf13/cobra"
)

// NewSweepCmd force-finishes every attempt whose deadline has passed.
func NewSweepCmd() *cobra.Command {
	var batch int

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Close attempts whose time limit has run out",
		RunE: func(cmd *cobra.Command, args []string) error {
			if batch < 1 {
				return fmt.Errorf("--batch must be positive, got %d", batch)
			}
			ctx := cmd.Context()
			d, err := connect(ctx, true)
			if err != nil {
				return err
			}
			defer d.Close()

			var tracker service.DeadlineTracker
			if d.rdb != nil {
				tracker = cache.NewDeadlineIndex(d.rdb)
			}
			attempts := service.NewAttemptService(d.pool, tracker, d.log)

			total := 0
			for {
				closed, err := attempts.ForceFinishExpired(ctx, time.Now(), batch)
				total += closed
				if err != nil {
					return fmt.Errorf("sweep stopped after %d attempt(s): %w", total, err)
				}
				if closed < batch {
					break
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Closed %d expired attempt(s)\n", total)
			return nil
		},
	}

	cmd.Flags().IntVar(&batch, "batch", 200, "attempts closed per pass")
	return cmd
}
