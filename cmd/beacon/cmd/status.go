package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/instantcocoa/beacon/internal/output"
)

// statusReport is what `beacon status` prints.
type statusReport struct {
	Pending      int   `json:"pending" yaml:"pending"`
	Processed    int   `json:"processed" yaml:"processed"`
	DeadLettered int   `json:"dead_lettered" yaml:"dead_lettered"`
	DeadLetters  int   `json:"dead_letters" yaml:"dead_letters"`
	Delivered    int64 `json:"delivered_total,omitempty" yaml:"delivered_total,omitempty"`
	Exhausted    int64 `json:"dead_lettered_total,omitempty" yaml:"dead_lettered_total,omitempty"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show queue depth and dead-letter counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := setup(ctx)
		if err != nil {
			return err
		}
		defer rt.close()

		stats, err := rt.queueStore.Stats(ctx)
		if err != nil {
			return fmt.Errorf("failed to read queue stats: %w", err)
		}
		letters, err := rt.letters.Count(ctx)
		if err != nil {
			return fmt.Errorf("failed to count dead letters: %w", err)
		}

		report := statusReport{
			Pending:      stats.Pending,
			Processed:    stats.Processed,
			DeadLettered: stats.DeadLettered,
			DeadLetters:  letters,
		}
		if rt.redis != nil {
			// Best effort: counters are advisory, missing keys read as zero.
			report.Delivered, _ = rt.redis.Counter(ctx, "worker:delivered")
			report.Exhausted, _ = rt.redis.Counter(ctx, "worker:dead_lettered")
		}

		w := output.NewWriter(format)
		if output.Format(format) == output.FormatJSON || output.Format(format) == output.FormatYAML {
			return w.Print(report)
		}
		return w.Print(output.Table{
			Headers: []string{"PENDING", "PROCESSED", "DEAD-LETTERED", "DEAD LETTERS"},
			Rows: [][]string{{
				fmt.Sprintf("%d", report.Pending),
				fmt.Sprintf("%d", report.Processed),
				fmt.Sprintf("%d", report.DeadLettered),
				fmt.Sprintf("%d", report.DeadLetters),
			}},
		})
	},
}
