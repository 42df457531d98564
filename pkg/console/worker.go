package console

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/payvide/payworker/pkg/root"
	"github.com/payvide/payworker/pkg/telemetry"
	"github.com/payvide/payworker/pkg/worker"
)

var (
	queueName   string
	concurrency int
)

var workerCmd = &cobra.Command{
	Use:     "queue:work",
	Aliases: []string{"worker"},
	Short:   "Start the payment queue worker",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		app, err := buildApp(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to build application")
		}
		defer app.DB.Close()

		tp, err := telemetry.InitTracer("payworker")
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize tracer")
		}
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				log.Error().Err(err).Msg("error shutting down tracer")
			}
		}()

		if queueName == "" {
			queueName = app.Cfg.Queue.Default
		}
		if concurrency <= 0 {
			concurrency = app.Cfg.Queue.Concurrency
		}

		w := worker.NewWorker(app.Driver, app.FailedProvider, queueName, concurrency, tp.Tracer("worker"))

		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-c
			log.Info().Msg("shutting down worker...")
			cancel()
		}()

		log.Info().Str("queue", queueName).Int("workers", concurrency).Msg("starting worker pool")
		w.Run(ctx)
		log.Info().Msg("worker pool stopped")
	},
}

func init() {
	workerCmd.Flags().StringVar(&queueName, "queue", "", "Name of the queue to process (defaults to QUEUE_DEFAULT)")
	workerCmd.Flags().IntVar(&concurrency, "workers", 0, "Number of concurrent workers (defaults to QUEUE_CONCURRENCY)")

	root.GetRoot().AddCommand(workerCmd)
}
