// Package duration derives per-stage durations from order aggregates and
// walking-time estimates.
package duration

import (
	"wavesched/internal/config"
	"wavesched/internal/geometry"
	"wavesched/internal/model"
)

// Result is a duration computation outcome. Degraded means the value was
// produced under the documented degraded policy (missing bin data) and is
// still usable; it is never an error.
type Result struct {
	Minutes  float64
	Degraded bool
}

// Model computes stage durations for orders. Pure over order aggregates and
// the geometry service; no randomness in the production path.
type Model struct {
	cfg  config.Durations
	geo  *geometry.Service
	skus map[string]model.SKU
}

// NewModel builds a duration model over one wave's SKU snapshot.
func NewModel(cfg config.Durations, geo *geometry.Service, skus map[string]model.SKU) *Model {
	return &Model{cfg: cfg, geo: geo, skus: skus}
}

// Duration returns the duration of one stage for one order. Every stage gets
// at least MinStageMin so degenerate orders keep the horizon well-defined.
func (m *Model) Duration(o model.Order, st model.StageType) Result {
	var r Result
	switch st {
	case model.StagePick:
		walk := 0.0
		if m.geo != nil {
			walk, r.Degraded = m.geo.TotalWalkingTime(o, m.skus)
		}
		r.Minutes = o.TotalPickTimeMin + walk
	case model.StagePack:
		r.Minutes = o.TotalPackTimeMin
	case model.StageConsolidate:
		r.Minutes = m.cfg.ConsolidateBaseMin + m.cfg.ConsolidatePerItemMin*float64(len(o.Items))
	case model.StageLabel:
		r.Minutes = m.cfg.LabelBaseMin + m.cfg.LabelPerItemMin*float64(len(o.Items))
	case model.StageStage:
		r.Minutes = m.cfg.StageBaseMin + m.cfg.StagePerCuftMin*o.TotalVolumeCuft
	case model.StageShip:
		r.Minutes = m.cfg.ShipBaseMin + m.cfg.ShipPer100LbsMin*o.TotalWeightLbs/100
	}
	if r.Minutes < m.cfg.MinStageMin {
		r.Minutes = m.cfg.MinStageMin
	}
	return r
}

// All returns durations for every stage in precedence order.
func (m *Model) All(o model.Order) [model.NumStages]Result {
	var out [model.NumStages]Result
	for i, st := range model.Stages {
		out[i] = m.Duration(o, st)
	}
	return out
}
