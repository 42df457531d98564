package console

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/payvide/payworker/pkg/payment"
	"github.com/payvide/payworker/pkg/queue"
	redisdriver "github.com/payvide/payworker/pkg/driver/redis"
	"github.com/payvide/payworker/pkg/root"
	"github.com/payvide/payworker/pkg/schedule"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule:run",
	Short: "Run the recurring maintenance tasks",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		app, err := buildApp(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to build application")
		}
		defer app.DB.Close()

		var lockProvider schedule.LockProvider
		switch app.Cfg.Cache.Store {
		case "redis":
			rdb := redisdriver.NewRedisDriver(app.Cfg.Redis)
			lockProvider = schedule.NewRedisLockProvider(rdb.Client)
		default:
			// The database is always there; advisory locks keep the
			// sweep on one server without extra infrastructure.
			lockProvider = schedule.NewDatabaseLockProvider(app.DB, app.Cfg.Database.Connection)
		}

		kernel := schedule.GetGlobalKernel()
		kernel.SetLockProvider(lockProvider)

		// Maintenance runs go through the queue so the worker pool
		// applies retries and failure logging uniformly.
		enqueue := func(operation string) func() {
			return func() {
				_, err := app.Publisher.Dispatch(context.Background(), app.Cfg.Queue.Default,
					operation, map[string]any{}, queue.WithPriority(queue.PriorityLow))
				if err != nil {
					log.Error().Err(err).Str("operation", operation).Msg("error enqueueing scheduled job")
				}
			}
		}

		// Every 5 minutes: move stale pending payments to timed_out.
		kernel.Register("0 */5 * * * *", enqueue(payment.OpTimeoutSweep),
			schedule.WithoutOverlapping(), schedule.OnOneServer("payment-timeout-sweep"))

		// Daily at 03:30: archive terminal rows past retention.
		kernel.Register("0 30 3 * * *", enqueue(payment.OpArchive),
			schedule.WithoutOverlapping(), schedule.OnOneServer("payment-archive"))

		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-c
			log.Info().Msg("shutting down scheduler...")
			cancel()
		}()

		kernel.Run(ctx)
	},
}

func init() {
	root.GetRoot().AddCommand(scheduleCmd)
}
