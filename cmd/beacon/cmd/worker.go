package cmd

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/instantcocoa/beacon/queue"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the delivery worker until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWorker(cmd.Context())
	},
}

func runWorker(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := setup(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	worker := queue.NewWorker(rt.queueStore, rt.letters, rt.exporter(), rt.sink,
		rt.logger, rt.workerConfig(uuid.NewString()))

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
