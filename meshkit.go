package meshkit

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/hupe1980/meshkit/mesh"
	"github.com/hupe1980/meshkit/model"
	"github.com/hupe1980/meshkit/operation"
	"github.com/hupe1980/meshkit/scheduler"
)

// Run executes one pass: seeds and every candidate they spawn are processed
// until the queues drain, the stop criterion fires, or ctx is cancelled.
// An aborted pass returns *ErrInvariantViolation; the mesh keeps every edit
// committed before the violation.
func Run(ctx context.Context, topo mesh.Topology, table operation.Table, seeds []operation.Candidate, optFns ...Option) (scheduler.Stats, error) {
	o := applyOptions(optFns)
	if o.config != nil {
		if err := o.config.Validate(); err != nil {
			return scheduler.Stats{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	st, err := scheduler.New(topo, table, o.schedulerOptions()...).Run(ctx, seeds)
	err = translateError(err)
	o.logger.LogPass(ctx, st, err)
	return st, err
}

// Apply executes a single candidate outside a pass. It takes region locks, so
// it may run concurrently with other Apply calls on the same mesh.
func Apply(ctx context.Context, topo mesh.Topology, table operation.Table, cand operation.Candidate, optFns ...Option) (operation.Report, error) {
	if err := ctx.Err(); err != nil {
		return operation.Report{}, err
	}
	o := applyOptions(optFns)
	exec := operation.New(topo, table, func(eo *operation.Options) {
		eo.Logger = o.logger.Logger
		eo.Recorder = o.recorder
	})

	begin := time.Now()
	rep, err := exec.Execute(mesh.NewWorkerContext(topo.Base(), 0, true), cand)
	o.metrics.ObserveOperation(cand.Kind, rep.Outcome, time.Since(begin))
	err = translateError(err)
	o.logger.LogOperation(ctx, cand.Kind, rep, err)
	return rep, err
}

// Consolidate compacts the mesh between passes. Every outstanding handle
// becomes stale.
func Consolidate(ctx context.Context, topo mesh.Topology, optFns ...Option) error {
	o := applyOptions(optFns)
	err := translateError(topo.Consolidate())
	o.logger.LogConsolidate(ctx, topo.Count(model.Vertex), topo.Count(topo.TopType()), err)
	return err
}

// Seeds returns one candidate per kind for every live simplex of type pt.
func Seeds(topo mesh.Topology, pt model.PrimitiveType, kinds ...operation.Kind) []operation.Candidate {
	handles := topo.Handles(pt)
	out := make([]operation.Candidate, 0, len(handles)*len(kinds))
	for _, h := range handles {
		for _, k := range kinds {
			out = append(out, operation.Candidate{Kind: k, Handle: h})
		}
	}
	return out
}

// LoadConfig reads a YAML scheduler configuration.
func LoadConfig(r io.Reader) (scheduler.Config, error) {
	cfg, err := scheduler.LoadConfig(r)
	if err != nil {
		return scheduler.Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return cfg, nil
}
