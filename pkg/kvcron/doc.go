// Package kvcron runs cron-style jobs on a transactional key-value store with
// a delayed queue.
//
// Each scheduled firing of a job is an occurrence. Enqueue writes a record for
// it under the key prefix, bumps the enqueued counter and queues a message
// delayed until the next time the schedule fires, all in one commit. When the
// queue delivers the message, Process runs the job's handler and either
// reschedules the occurrence or deletes its record when its executions are
// used up. The record is the only source of truth for whether an occurrence
// is live: a delivery that finds no record, or a record already rescheduled
// past it, does nothing. Queue redelivery therefore never runs a firing twice
// unless the store failed after the handler ran.
//
// # Usage
//
//	store := kv.NewMemory()
//	m, err := kvcron.NewManager(store,
//	    kvcron.WithJob("cleanup", func(ctx context.Context) error {
//	        return repo.DeleteExpired(ctx)
//	    }),
//	)
//	if err != nil {
//	    return err
//	}
//
//	res, err := m.Enqueue(ctx, "cleanup", schedule.Cron("*/15 * * * *"))
//	if err != nil {
//	    return err
//	}
//
//	go m.Run(ctx) // consume deliveries until ctx is done
//
//	// later
//	_ = m.Abort(ctx, res.Nonce)
//
// # Keys
//
// Under the prefix P (default "kv_cron") a manager uses:
//
//	P/jobs/<nonce>       occurrence record {"amount":n,"epoch":"..."}
//	P/enqueued_count     number of committed enqueues, less aborts
//	P/processed_count    number of deliveries that ran a handler
//
// The counters are for observation only; see Manager.Stats.
package kvcron
