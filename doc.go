// Package payworker is an asynchronous payment processing pipeline:
// priority job queues feeding a worker pool that drives a payment state
// machine with encrypted PII at rest.
//
// Jobs are published as JSON envelopes onto named queues (memory,
// Redis, database or SQS backed) with four priority tiers, scheduled
// delivery and exponential retry backoff. Workers route each envelope
// to a registered handler; business-rule failures dead-letter
// immediately while transient failures retry until the attempt budget
// runs out.
//
// Key subpackages:
//
//	github.com/payvide/payworker/pkg/queue     - Envelopes, priorities, registry, publisher
//	github.com/payvide/payworker/pkg/worker    - Worker pool with retry and dead-letter routing
//	github.com/payvide/payworker/pkg/payment   - Payment state machine, history ledger, refunds
//	github.com/payvide/payworker/pkg/gateway   - Signed requests and callback verification
//	github.com/payvide/payworker/pkg/crypto    - Field-level AES-CBC encryption with legacy fallback
//	github.com/payvide/payworker/pkg/token     - HMAC-signed redirect outcome tokens
//	github.com/payvide/payworker/pkg/driver    - Queue drivers (memory, redis, database, sqs)
//	github.com/payvide/payworker/pkg/schedule  - Cron kernel with distributed locks
//
// Example usage:
//
//	package main
//
//	import (
//		"context"
//
//		"github.com/payvide/payworker/pkg/config"
//		"github.com/payvide/payworker/pkg/driver/redis"
//		"github.com/payvide/payworker/pkg/queue"
//		"github.com/payvide/payworker/pkg/worker"
//	)
//
//	func MyHandler(ctx context.Context, job *queue.Job) error {
//		// Process job...
//		return nil
//	}
//
//	func main() {
//		queue.Register("payment:create", MyHandler)
//		driver := redis.NewRedisDriver(config.RedisConfig{Addr: "localhost:6379"})
//		w := worker.NewWorker(driver, nil, "payments", 5, nil)
//		w.Run(context.Background())
//	}
package payworker
