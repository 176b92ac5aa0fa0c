package operation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hupe1980/meshkit/mesh"
	"github.com/hupe1980/meshkit/model"
	"github.com/hupe1980/meshkit/simplex"
)

// ErrOutdated is the reason of a candidate its ShouldProcess hook dropped.
var ErrOutdated = errors.New("operation: candidate outdated")

// Options configures an Executor.
type Options struct {
	// Logger receives rejection details at debug level and aborted
	// operations at error level.
	Logger *slog.Logger
	// Recorder, if set, observes every commit.
	Recorder Recorder
}

// DefaultOptions returns executor options that log nothing and record nothing.
func DefaultOptions() Options {
	return Options{Logger: slog.New(slog.DiscardHandler)}
}

// Report is the result of one Execute call.
type Report struct {
	Outcome Outcome
	State   State
	// Result is the handle returned by the edit, valid once Applied.
	Result simplex.Handle
	// Spawned holds the renewed candidates of a committed operation.
	Spawned []Candidate
	// Reason is the error behind a Rejected, Stale or Unsupported outcome, if any.
	Reason error
}

// Executor runs candidates against one topology. It holds no per-worker
// state and may be shared by all workers.
type Executor struct {
	topo   mesh.Topology
	table  Table
	rec    Recorder
	logger *slog.Logger
}

// New creates an executor.
func New(topo mesh.Topology, table Table, optFns ...func(o *Options)) *Executor {
	opts := DefaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = DefaultOptions().Logger
	}
	return &Executor{
		topo:   topo,
		table:  table,
		rec:    opts.Recorder,
		logger: opts.Logger,
	}
}

// Topology returns the mesh the executor edits.
func (e *Executor) Topology() mesh.Topology { return e.topo }

// Table returns the hook table.
func (e *Executor) Table() Table { return e.table }

// Execute runs cand on c. c must have no open scope. Locks taken by Execute
// are released before it returns.
//
// The returned error is non-nil only for a broken invariant or a failing
// Recorder; the mesh is left as it was before the call in the first case.
func (e *Executor) Execute(c *mesh.WorkerContext, cand Candidate) (rep Report, err error) {
	rep = Report{Outcome: Rejected, State: StateProposed}
	hooks, ok := e.table[cand.Kind]
	if !ok {
		rep.Outcome = Unsupported
		return rep, nil
	}
	m := e.topo.Base()

	defer func() {
		if r := recover(); r != nil {
			e.abort(c)
			rep.Outcome, rep.State = Rejected, StateRolledBack
			err = mesh.Recover(r, err)
			e.logger.Error("operation aborted",
				slog.String("kind", cand.Kind.String()),
				slog.Int("worker", c.ID),
				slog.Any("error", err),
			)
			return
		}
		if rep.Outcome != Committed && e.logger.Enabled(context.Background(), slog.LevelDebug) {
			e.logger.Debug("operation not committed",
				slog.String("kind", cand.Kind.String()),
				slog.String("outcome", rep.Outcome.String()),
				slog.String("state", rep.State.String()),
				slog.Int("worker", c.ID),
				slog.Any("reason", rep.Reason),
			)
		}
	}()

	// Proposed -> Locked.
	var (
		region  []model.ElementID
		dropped bool
	)
	m.ReadCommitted(func() {
		if _, ok := e.topo.Resolve(c, cand.Handle); !ok {
			err = mesh.ErrStaleHandle
			return
		}
		if hooks.ShouldProcess != nil && !hooks.ShouldProcess(c, cand) {
			dropped = true
			return
		}
		region, err = e.region(c, hooks, cand)
	})
	if dropped {
		rep.Reason = ErrOutdated
		return rep, nil
	}
	if err != nil {
		return e.classify(rep, err)
	}
	if !c.TryLock(region) {
		rep.Outcome = Deferred
		return rep, nil
	}
	defer c.Release()
	rep.State = StateLocked

	// Another worker may have committed between the region read and the lock.
	if _, ok := e.topo.Resolve(c, cand.Handle); !ok {
		rep.Outcome = Stale
		return rep, nil
	}
	again, err := e.region(c, hooks, cand)
	if err != nil {
		return e.classify(rep, err)
	}
	if !c.Covers(again) {
		rep.Outcome = Deferred
		return rep, nil
	}

	// Locked -> Validated.
	c.Stack().Push()
	if hooks.Before != nil && !hooks.Before(c, cand.Handle) {
		m.Undo(c)
		return rep, nil
	}
	rep.State = StateValidated

	// Validated -> Applied.
	out, err := e.apply(c, cand)
	if err != nil {
		m.Undo(c)
		return e.classify(rep, err)
	}
	rep.State = StateApplied
	rep.Result = out

	if hooks.Update != nil {
		if uerr := hooks.Update(c, out); uerr != nil {
			m.Undo(c)
			rep.State = StateRolledBack
			return e.classify(rep, uerr)
		}
	}
	if hooks.After != nil && !hooks.After(c, out) {
		m.Undo(c)
		rep.State = StateRolledBack
		return rep, nil
	}

	// Applied -> Committed. Renewal reads the applied state before it is published.
	if hooks.Renew != nil {
		for _, s := range hooks.Renew(c, out) {
			s.Priority = e.table.Priority(c, s.Kind, s.Handle)
			s.Retries = 0
			rep.Spawned = append(rep.Spawned, s)
		}
	}
	var recErr error
	m.Commit(c, func(ed mesh.Edit) {
		if e.rec != nil {
			recErr = e.rec.Record(Record{Worker: c.ID, Kind: cand.Kind, Handle: cand.Handle, Result: out, Edit: ed})
		}
	})
	rep.State, rep.Outcome = StateCommitted, Committed
	if recErr != nil {
		return rep, fmt.Errorf("operation: record %s: %w", cand.Kind, recErr)
	}
	return rep, nil
}

func (e *Executor) region(c *mesh.WorkerContext, hooks Hooks, cand Candidate) ([]model.ElementID, error) {
	if hooks.LockRegion != nil {
		return hooks.LockRegion(c, cand.Handle)
	}
	return e.topo.Region(c, cand.Kind.Region(), cand.Handle)
}

func (e *Executor) apply(c *mesh.WorkerContext, cand Candidate) (simplex.Handle, error) {
	switch cand.Kind {
	case EdgeSplit:
		return e.topo.SplitEdge(c, cand.Handle)
	case EdgeCollapse:
		return e.topo.CollapseEdge(c, cand.Handle)
	case EdgeSwap:
		return e.topo.SwapEdge(c, cand.Handle)
	case FaceSwap:
		return e.topo.SwapFace(c, cand.Handle)
	case VertexSmooth:
		if _, ok := e.topo.Resolve(c, cand.Handle); !ok {
			return simplex.Null, mesh.ErrStaleHandle
		}
		return cand.Handle, nil
	default:
		return simplex.Null, mesh.ErrUnsupported
	}
}

// classify maps expected edit errors to outcomes. Any other error is returned.
func (e *Executor) classify(rep Report, err error) (Report, error) {
	switch {
	case errors.Is(err, mesh.ErrStaleHandle):
		rep.Outcome = Stale
	case errors.Is(err, mesh.ErrUnsupported):
		rep.Outcome = Unsupported
	case errors.Is(err, mesh.ErrNotApplicable):
		rep.Outcome = Rejected
	default:
		rep.Outcome = Rejected
		return rep, err
	}
	rep.Reason = err
	return rep, nil
}

// abort discards every open scope of c and releases its locks.
func (e *Executor) abort(c *mesh.WorkerContext) {
	st := c.Stack()
	for st.Depth() > 1 {
		st.Pop(false)
	}
	if st.Depth() == 1 {
		e.topo.Base().Undo(c)
	}
	c.Release()
}
