package schedule

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Kernel manages recurring maintenance tasks, typically the payment
// timeout sweep and the archive run.
type Kernel struct {
	cron         *cron.Cron
	lockProvider LockProvider
}

// JobOption configures a scheduled job
type JobOption func(*jobConfig)

type jobConfig struct {
	withoutOverlapping bool
	onOneServer        bool
	name               string
}

// NewKernel creates a scheduler with second-level cron precision.
func NewKernel(lockProvider LockProvider) *Kernel {
	return &Kernel{
		cron:         cron.New(cron.WithSeconds()),
		lockProvider: lockProvider,
	}
}

// SetLockProvider sets the distributed lock provider
func (k *Kernel) SetLockProvider(provider LockProvider) {
	k.lockProvider = provider
}

// WithoutOverlapping skips a tick while the previous run of the same
// job is still in flight on this process.
func WithoutOverlapping() JobOption {
	return func(c *jobConfig) {
		c.withoutOverlapping = true
	}
}

// OnOneServer takes a distributed lock per tick so only one instance
// in the fleet runs the job. Both sweep and archive are idempotent,
// but there is no point running them N times.
func OnOneServer(name string) JobOption {
	return func(c *jobConfig) {
		c.onOneServer = true
		c.name = name
	}
}

// Register adds a function on a cron schedule ("s m h dom mon dow").
func (k *Kernel) Register(spec string, cmd func(), opts ...JobOption) {
	cfg := &jobConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	var job cron.Job = cron.FuncJob(cmd)

	if cfg.withoutOverlapping {
		job = cron.SkipIfStillRunning(cron.DefaultLogger)(job)
	}

	if cfg.onOneServer {
		if k.lockProvider == nil {
			log.Warn().Str("job", cfg.name).Msg("ignoring OnOneServer: no lock provider configured")
		} else {
			job = k.lockWrapped(cfg.name, job)
		}
	}

	if _, err := k.cron.AddJob(spec, job); err != nil {
		log.Error().Err(err).Str("spec", spec).Msg("failed to register cron job")
		return
	}
	log.Info().Str("job", cfg.name).Str("spec", spec).Msg("registered cron job")
}

func (k *Kernel) lockWrapped(name string, inner cron.Job) cron.Job {
	return cron.FuncJob(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		// The lock window only needs to cover the tick; SETNX keeps
		// a second server from starting the same instance.
		acquired, err := k.lockProvider.GetLock(ctx, name, time.Minute)
		if err != nil {
			log.Error().Err(err).Str("job", name).Msg("error acquiring schedule lock")
			return
		}
		if !acquired {
			return
		}
		defer func() {
			_ = k.lockProvider.ReleaseLock(context.Background(), name)
		}()

		inner.Run()
	})
}

// Run starts the scheduler and blocks until the context is cancelled,
// then waits for active jobs to finish.
func (k *Kernel) Run(ctx context.Context) {
	log.Info().Msg("starting task scheduler")
	k.cron.Start()

	<-ctx.Done()

	log.Info().Msg("stopping task scheduler")
	stopped := k.cron.Stop()
	<-stopped.Done()
}
