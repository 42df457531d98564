package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/payvide/payworker/pkg/errs"
	"github.com/payvide/payworker/pkg/queue"
)

// Worker manages a fixed pool of concurrent slots consuming one queue.
// Slots operate independently: a handler blocking on I/O never stalls
// the other slots.
type Worker struct {
	Driver         queue.Driver
	FailedProvider queue.FailedJobProvider
	QueueName      string
	Concurrency    int
	Tracer         trace.Tracer
	wg             sync.WaitGroup
}

// NewWorker creates a new worker instance. tracer may be nil.
func NewWorker(driver queue.Driver, failedProvider queue.FailedJobProvider, queueName string, concurrency int, tracer trace.Tracer) *Worker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Worker{
		Driver:         driver,
		FailedProvider: failedProvider,
		QueueName:      queueName,
		Concurrency:    concurrency,
		Tracer:         tracer,
	}
}

// Run starts the worker pool and blocks until the context is cancelled
// and all slots have drained.
func (w *Worker) Run(ctx context.Context) {
	for i := 0; i < w.Concurrency; i++ {
		w.wg.Add(1)
		go w.processLoop(ctx, i)
	}
	w.wg.Wait()
}

func (w *Worker) processLoop(ctx context.Context, slot int) {
	defer w.wg.Done()
	log.Debug().Int("slot", slot).Str("queue", w.QueueName).Msg("worker slot started")

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := w.Driver.Pop(ctx, w.QueueName)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			log.Error().Err(err).Int("slot", slot).Msg("error popping job")
			// Avoid a tight loop on a broken driver connection
			time.Sleep(time.Second)
			continue
		}

		w.handleJob(ctx, job)
	}
}

func (w *Worker) handleJob(ctx context.Context, job *queue.Job) {
	var env queue.Envelope
	if err := json.Unmarshal(job.Body, &env); err != nil {
		log.Error().Err(err).Str("queue", w.QueueName).Msg("unparseable job body, dead-lettering")
		w.deadLetter(ctx, job.Body, "unparseable job body: "+err.Error())
		_ = w.Driver.Ack(ctx, job)
		return
	}
	job.Envelope = &env

	handler, err := queue.GetHandler(env.Operation)
	if err != nil {
		log.Error().Str("operation", env.Operation).Msg("no handler registered, dead-lettering")
		w.deadLetter(ctx, job.Body, "no handler for operation "+env.Operation)
		_ = w.Driver.Ack(ctx, job)
		return
	}

	// This invocation counts against the budget whatever happens next.
	env.Attempts++

	jobCtx := ctx
	var cancel context.CancelFunc
	if env.TimeoutSec > 0 {
		jobCtx, cancel = context.WithTimeout(ctx, time.Duration(env.TimeoutSec)*time.Second)
	} else {
		jobCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	if w.Tracer != nil {
		var span trace.Span
		jobCtx, span = w.Tracer.Start(jobCtx, "job."+env.Operation,
			trace.WithAttributes(
				attribute.String("queue.name", w.QueueName),
				attribute.String("job.uuid", env.ID),
				attribute.Int("job.attempt", env.Attempts),
			))
		defer span.End()
	}

	logger := log.With().
		Str("queue", w.QueueName).
		Str("operation", env.Operation).
		Str("uuid", env.ID).
		Int("attempt", env.Attempts).
		Logger()

	err = handler(logger.WithContext(jobCtx), job)
	if err == nil {
		if ackErr := w.Driver.Ack(ctx, job); ackErr != nil {
			logger.Error().Err(ackErr).Msg("error acknowledging job")
		}
		return
	}

	w.handleFailure(ctx, job, env, err, logger)
}

// handleFailure routes a failed attempt. Business-rule violations are
// terminal: retrying a signature mismatch or a state conflict cannot
// change the outcome, so those go straight to the failed log. Only
// transient failures re-enter the queue, with exponential backoff,
// until the attempt budget runs out.
func (w *Worker) handleFailure(ctx context.Context, job *queue.Job, env queue.Envelope, err error, logger zerolog.Logger) {
	_ = w.Driver.Ack(ctx, job)

	if !errs.Retryable(err) {
		logger.Warn().Err(err).Msg("job failed on business rule, not retrying")
		w.deadLetter(ctx, mustMarshal(env), err.Error())
		return
	}

	if env.Attempts >= env.MaxAttempts {
		dead := &errs.QueueDeliveryError{Operation: env.Operation, Attempts: env.Attempts, Err: err}
		logger.Error().Err(err).Msg("job exhausted retries, dead-lettering")
		w.deadLetter(ctx, mustMarshal(env), dead.Error())
		return
	}

	delay := env.BackoffDelay()
	logger.Warn().Err(err).Dur("delay", delay).Msg("job failed, scheduling retry")

	if pushErr := w.Driver.Push(ctx, w.QueueName, mustMarshal(env), env.Priority, delay); pushErr != nil {
		logger.Error().Err(pushErr).Msg("error re-queueing job for retry")
		w.deadLetter(ctx, mustMarshal(env), "requeue failed: "+pushErr.Error())
	}
}

func (w *Worker) deadLetter(ctx context.Context, payload []byte, exception string) {
	if w.FailedProvider == nil {
		log.Error().Str("queue", w.QueueName).Msg("no failed job provider configured, job lost")
		return
	}
	if err := w.FailedProvider.Log(ctx, "queue", w.QueueName, payload, exception); err != nil {
		log.Error().Err(err).Msg("error logging failed job")
	}
}

func mustMarshal(env queue.Envelope) []byte {
	body, err := json.Marshal(env)
	if err != nil {
		// Envelope came from JSON; re-marshalling cannot fail.
		panic(err)
	}
	return body
}
