// Package worker runs queued items through a fixed set of goroutines.
//
// Submit never blocks: when the queue is full the item is dropped and
// ErrQueueFull returned, so callers on latency-sensitive paths (a relay
// dispatch loop, for one) can hand work off without stalling. Stop closes the
// queue and waits for queued items to finish, up to a timeout.
//
// A pool can be started again after Stop; each run gets a fresh queue.
//
//	pool, err := worker.NewPool(1, 1024, publish, worker.WithMetrics[*Event](registry, "natsbridge"))
//	if err != nil {
//	    return err
//	}
//	_ = pool.Start(ctx)
//	defer pool.Stop(5 * time.Second)
//	if err := pool.Submit(ev); err != nil {
//	    // dropped
//	}
package worker
