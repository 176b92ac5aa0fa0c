package scheduler

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/meshkit/internal/queue"
	"github.com/hupe1980/meshkit/mesh"
	"github.com/hupe1980/meshkit/operation"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Stats summarises one Run.
type Stats struct {
	Successes   int64
	Attempts    int64
	Rejections  int64
	Stale       int64
	Deferrals   int64
	Unsupported int64
	// Exhausted counts candidates dropped after MaxRetries deferrals.
	Exhausted int64

	Workers  int
	Policy   ExecutionPolicy
	Stopped  bool
	Duration time.Duration
}

func (s *Stats) add(o Stats) {
	s.Successes += o.Successes
	s.Attempts += o.Attempts
	s.Rejections += o.Rejections
	s.Stale += o.Stale
	s.Deferrals += o.Deferrals
	s.Unsupported += o.Unsupported
	s.Exhausted += o.Exhausted
}

// Scheduler runs passes of candidate operations over one topology.
type Scheduler struct {
	topo   mesh.Topology
	table  operation.Table
	exec   *operation.Executor
	opts   Options
	logger *slog.Logger
}

// New creates a scheduler.
func New(topo mesh.Topology, table operation.Table, optFns ...func(o *Options)) *Scheduler {
	opts := DefaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = DefaultOptions().Logger
	}
	if opts.Metrics == nil {
		opts.Metrics = NoopMetrics{}
	}
	if opts.StopCheckEvery <= 0 {
		opts.StopCheckEvery = 1
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	exec := operation.New(topo, table, func(o *operation.Options) {
		o.Logger = opts.Logger
		o.Recorder = opts.Recorder
	})
	return &Scheduler{
		topo:   topo,
		table:  table,
		exec:   exec,
		opts:   opts,
		logger: opts.Logger,
	}
}

// Options returns the effective options.
func (s *Scheduler) Options() Options { return s.opts }

// Run executes seeds and every candidate they spawn until all queues drain,
// the Stop criterion fires, or ctx is cancelled.
//
// Seed priorities are recomputed from the Priority hook of their kind when
// it is set. A broken invariant in any worker stops all workers and is
// returned; the edit that hit it is rolled back.
func (s *Scheduler) Run(ctx context.Context, seeds []operation.Candidate) (Stats, error) {
	start := time.Now()
	n, locking := s.opts.workers()

	p := &pass{s: s}
	p.progress.Interval = s.opts.ProgressInterval

	buckets, err := s.partition(seeds, n)
	if err == nil {
		if !locking {
			err = p.work(ctx, 0, buckets[0], false)
		} else {
			g, gctx := errgroup.WithContext(ctx)
			for w := range n {
				g.Go(func() error { return p.work(gctx, w, buckets[w], true) })
			}
			err = g.Wait()
		}
	}

	stats := p.total
	stats.Successes = p.successes.Load()
	stats.Workers = n
	stats.Policy = Sequential
	if locking {
		stats.Policy = Partitioned
	}
	stats.Stopped = p.stopped.Load()
	stats.Duration = time.Since(start)

	if err != nil {
		s.logger.Error("pass aborted",
			slog.String("policy", stats.Policy.String()),
			slog.Int64("successes", stats.Successes),
			slog.Any("error", err),
		)
		return stats, err
	}
	s.logger.Info("pass finished",
		slog.String("policy", stats.Policy.String()),
		slog.Int("workers", n),
		slog.Int64("successes", stats.Successes),
		slog.Int64("attempts", stats.Attempts),
		slog.Int64("rejections", stats.Rejections),
		slog.Int64("deferrals", stats.Deferrals),
		slog.Int64("exhausted", stats.Exhausted),
		slog.Bool("stopped", stats.Stopped),
		slog.Duration("duration", stats.Duration),
	)
	return stats, nil
}

// partition evaluates seed priorities and assigns seeds to workers.
func (s *Scheduler) partition(seeds []operation.Candidate, n int) (buckets [][]operation.Candidate, err error) {
	defer func() { err = mesh.Recover(recover(), err) }()

	part := s.opts.Partition
	if part == nil {
		part = blockPartition(s.topo.Base().Size(s.topo.TopType()))
	}
	c := mesh.NewWorkerContext(s.topo.Base(), -1, false)
	buckets = make([][]operation.Candidate, n)
	for _, cand := range seeds {
		if hk, ok := s.table[cand.Kind]; ok && hk.Priority != nil {
			if _, ok := s.topo.Resolve(c, cand.Handle); ok {
				cand.Priority = hk.Priority(c, cand.Handle)
			}
		}
		w := min(max(part(cand.Handle.Cell, n), 0), n-1)
		buckets[w] = append(buckets[w], cand)
	}
	return buckets, nil
}

// pass is the shared state of one Run.
type pass struct {
	s *Scheduler

	successes atomic.Int64
	stopped   atomic.Bool
	progress  rate.Sometimes

	mu    sync.Mutex
	total Stats
}

func (p *pass) work(ctx context.Context, id int, seeds []operation.Candidate, locking bool) (err error) {
	var st Stats
	defer func() {
		err = mesh.Recover(recover(), err)
		p.mu.Lock()
		p.total.add(st)
		p.mu.Unlock()
	}()

	opts := p.s.opts
	c := mesh.NewWorkerContext(p.s.topo.Base(), id, locking)
	q := queue.New[operation.Candidate](len(seeds))
	for _, cand := range seeds {
		q.Push(cand, cand.Priority)
	}

	for q.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		if p.stopped.Load() {
			return nil
		}
		item, _ := q.Pop()
		cand := item.Value

		begin := time.Now()
		rep, err := p.s.exec.Execute(c, cand)
		opts.Metrics.ObserveOperation(cand.Kind, rep.Outcome, time.Since(begin))
		if err != nil {
			return err
		}
		st.Attempts++

		switch rep.Outcome {
		case operation.Committed:
			st.Successes++
			total := p.successes.Add(1)
			for _, next := range rep.Spawned {
				q.Push(next, next.Priority)
			}
			if opts.Stop != nil && total%int64(opts.StopCheckEvery) == 0 && opts.Stop(p.s.topo) {
				p.stopped.Store(true)
			}
		case operation.Rejected:
			st.Rejections++
		case operation.Stale:
			st.Stale++
		case operation.Unsupported:
			st.Unsupported++
		case operation.Deferred:
			st.Deferrals++
			if cand.Retries >= opts.MaxRetries {
				st.Exhausted++
				break
			}
			cand.Retries++
			cand.Priority -= opts.RetryPenalty
			q.Push(cand, cand.Priority)
			runtime.Gosched()
		}

		opts.Metrics.ObserveQueueDepth(id, q.Len())
		if opts.ProgressInterval > 0 {
			p.progress.Do(func() {
				p.s.logger.Info("pass progress",
					slog.Int("worker", id),
					slog.Int64("successes", p.successes.Load()),
					slog.Int("queued", q.Len()),
				)
			})
		}
	}
	return nil
}
