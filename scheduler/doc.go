// Package scheduler drives operation.Executor over a set of candidates.
//
// Sequential mode runs one worker without locking and serves as the oracle
// for the partitioned mode. Partitioned mode splits the seeds into one bucket
// per worker; each worker owns a priority queue, keeps the candidates its
// commits spawn, and re-queues deferred candidates at a lower priority until
// their retry budget is spent.
//
//	s := scheduler.New(topo, table, func(o *scheduler.Options) {
//		o.Policy = scheduler.Partitioned
//		o.NumThreads = 8
//	})
//	stats, err := s.Run(ctx, seeds)
package scheduler
