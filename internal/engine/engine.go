// Package engine schedules warehouse waves: a constrained solve with a
// guaranteed fallback, plus a deliberately naive baseline for comparison.
package engine

import (
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"wavesched/internal/config"
	"wavesched/internal/duration"
	"wavesched/internal/geometry"
	"wavesched/internal/model"
)

// Engine runs scheduling for one wave at a time. Instances are cheap; run
// concurrent waves on separate invocations over their own snapshots. The
// geometry service is the only shared state and is safe for concurrent use.
type Engine struct {
	cfg config.Scheduler
	geo *geometry.Service
	rng int64 // fixed solver seed for reproducible runs; 0 means time-based
}

// New builds an Engine. geo may be nil when every request carries its bins.
func New(cfg config.Scheduler, geo *geometry.Service) *Engine {
	return &Engine{cfg: cfg, geo: geo}
}

// WithSeed pins the solver's random seed, for reproducible runs and tests.
func (e *Engine) WithSeed(seed int64) *Engine {
	e.rng = seed
	return e
}

// prepare assembles the per-invocation SKU snapshot, geometry and duration
// model, and refreshes order aggregates from the snapshot.
func (e *Engine) prepare(req *model.WaveRequest) *duration.Model {
	skus := make(map[string]model.SKU, len(req.SKUs))
	for _, s := range req.SKUs {
		skus[s.ID] = s
	}
	if len(skus) > 0 {
		for i := range req.Orders {
			req.Orders[i].ComputeAggregates(skus)
		}
	}
	geo := e.geo
	if len(req.Bins) > 0 {
		geo = geometry.New(e.cfg.Geometry, req.Bins)
	}
	return duration.NewModel(e.cfg.Durations, geo, skus)
}

// ScheduleWave attempts the constrained solve and falls back to the list
// scheduler on construction errors, infeasibility, or timeout without an
// incumbent. A wave request never fails outright due to solver issues.
func (e *Engine) ScheduleWave(req model.WaveRequest) (model.WaveResult, SolveMetrics) {
	durs := e.prepare(&req)

	budget := time.Duration(req.TimeLimitSec) * time.Second
	if budget <= 0 {
		budget = time.Duration(e.cfg.Horizon.TimeLimitSec) * time.Second
	}

	var met SolveMetrics
	m, err := BuildModel(e.cfg, req, durs)
	if err != nil {
		if errors.Is(err, ErrNoOrders) {
			return model.WaveResult{
				WaveID:  uuid.New().String(),
				Status:  model.StatusOptimal,
				Metrics: model.OptimizationMetrics{SolverStatus: string(model.StatusOptimal)},
			}, met
		}
		log.Printf("engine: model construction failed (%v), using fallback", err)
		return e.fallbackResult(req, durs), met
	}

	ob := newObjective(e.cfg.Objective, req.ObjectiveWeights)
	res := solve(m, ob, budget, e.rng)
	met = res.Metrics
	switch res.Status {
	case model.StatusOptimal, model.StatusFeasible:
		metrics := computeMetrics(e.cfg.Objective, req, res.Schedules, res.Status)
		metrics.ObjectiveValue = res.Objective.Total()
		return model.WaveResult{
			WaveID:    uuid.New().String(),
			Status:    res.Status,
			Schedules: res.Schedules,
			Metrics:   metrics,
		}, met
	default:
		log.Printf("engine: solve ended %s, using fallback", res.Status)
		return e.fallbackResult(req, durs), met
	}
}

func (e *Engine) fallbackResult(req model.WaveRequest, durs *duration.Model) model.WaveResult {
	schedules := NewFallbackScheduler(durs).Schedule(req)
	return model.WaveResult{
		WaveID:    uuid.New().String(),
		Status:    model.StatusFallback,
		Schedules: schedules,
		Metrics:   computeMetrics(e.cfg.Objective, req, schedules, model.StatusFallback),
	}
}

// BaselineWave produces the comparison schedule. It is an independent path,
// not a fallback, and additionally reports the reassignment event log.
func (e *Engine) BaselineWave(req model.WaveRequest) model.WaveResult {
	durs := e.prepare(&req)
	skus := make(map[string]model.SKU, len(req.SKUs))
	for _, s := range req.SKUs {
		skus[s.ID] = s
	}
	seq := NewBaselineSequencer(e.cfg.Baseline, durs, skus)
	schedules, events := seq.Run(req)
	return model.WaveResult{
		WaveID:        uuid.New().String(),
		Status:        model.StatusBaseline,
		Schedules:     schedules,
		Metrics:       computeMetrics(e.cfg.Objective, req, schedules, model.StatusBaseline),
		Reassignments: events,
	}
}
