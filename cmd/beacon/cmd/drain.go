package cmd

import (
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/instantcocoa/beacon/internal/output"
	"github.com/instantcocoa/beacon/queue"
)

var drainCmd = &cobra.Command{
	Use:   "drain",
	Short: "Process one delivery batch immediately",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := setup(ctx)
		if err != nil {
			return err
		}
		defer rt.close()

		worker := queue.NewWorker(rt.queueStore, rt.letters, rt.exporter(), rt.sink,
			rt.logger, rt.workerConfig(uuid.NewString()))

		res, err := worker.ProcessBatch(ctx)
		if err != nil {
			return err
		}

		output.Info("claimed %d, delivered %d, failed %d, dead-lettered %d",
			res.Claimed, res.Delivered, res.Failed, res.DeadLettered)
		return nil
	},
}
