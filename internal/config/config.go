// Package config holds the named tuning constants for the scheduling engine.
// Every heuristic weight and penalty lives here as explicit configuration so
// operators can tune them without touching constraint code.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Geometry configures the walking-time estimator.
type Geometry struct {
	WeightX               float64 `yaml:"weightX"`
	WeightY               float64 `yaml:"weightY"`
	WeightZ               float64 `yaml:"weightZ"` // vertical movement weight, > weightX/Y
	WalkingSpeedFeetMin   float64 `yaml:"walkingSpeedFeetMin"`
	ZoneChangePenaltyMin  float64 `yaml:"zoneChangePenaltyMin"`
	LevelChangePenaltyMin float64 `yaml:"levelChangePenaltyMin"`
}

// Durations configures the per-stage duration model. Each non-pick/pack stage
// has a base duration plus its own complexity scaling rule over order
/// aggregates: consolidate and label scale with item count, stage with volume,
// ship with weight.
type Durations struct {
	ConsolidateBaseMin    float64 `yaml:"consolidateBaseMin"`
	ConsolidatePerItemMin float64 `yaml:"consolidatePerItemMin"`
	LabelBaseMin          float64 `yaml:"labelBaseMin"`
	LabelPerItemMin       float64 `yaml:"labelPerItemMin"`
	StageBaseMin          float64 `yaml:"stageBaseMin"`
	StagePerCuftMin       float64 `yaml:"stagePerCuftMin"`
	ShipBaseMin           float64 `yaml:"shipBaseMin"`
	ShipPer100LbsMin      float64 `yaml:"shipPer100LbsMin"`
	MinStageMin           float64 `yaml:"minStageMin"` // floor for any stage
}

// Objective holds the weighted objective terms. DeadlineBasePenalty dominates
// by construction so deadline compliance wins among feasible alternatives.
type Objective struct {
	DeadlineBasePenalty   float64 `yaml:"deadlineBasePenalty"`
	LaborWeight           float64 `yaml:"laborWeight"`
	EquipmentWeight       float64 `yaml:"equipmentWeight"`
	UtilizationWeight     float64 `yaml:"utilizationWeight"`
	OvertimeMultiplier    float64 `yaml:"overtimeMultiplier"`
	PremiumCustomerFactor float64 `yaml:"premiumCustomerFactor"`
}

// Horizon configures the slotted planning horizon.
type Horizon struct {
	SlotMinutes  int `yaml:"slotMinutes"`
	HorizonHours int `yaml:"horizonHours"`
	TimeLimitSec int `yaml:"timeLimitSec"`
}

// Baseline configures the comparison sequencer's rebalancing thresholds.
type Baseline struct {
	PackQueueThreshold        int `yaml:"packQueueThreshold"`
	ShipQueueThreshold        int `yaml:"shipQueueThreshold"`
	ConsolidateQueueThreshold int `yaml:"consolidateQueueThreshold"`
	LightLoadAssignments      int `yaml:"lightLoadAssignments"`
}

// Scheduler is the full engine configuration.
type Scheduler struct {
	Geometry  Geometry  `yaml:"geometry"`
	Durations Durations `yaml:"durations"`
	Objective Objective `yaml:"objective"`
	Horizon   Horizon   `yaml:"horizon"`
	Baseline  Baseline  `yaml:"baseline"`
}

// Default returns the documented default tuning. These values are heuristic
// configuration, not validated business rules.
func Default() Scheduler {
	return Scheduler{
		Geometry: Geometry{
			WeightX:               1.0,
			WeightY:               1.0,
			WeightZ:               3.0,
			WalkingSpeedFeetMin:   250,
			ZoneChangePenaltyMin:  0.5,
			LevelChangePenaltyMin: 0.75,
		},
		Durations: Durations{
			ConsolidateBaseMin:    5,
			ConsolidatePerItemMin: 0.5,
			LabelBaseMin:          2,
			LabelPerItemMin:       0.25,
			StageBaseMin:          4,
			StagePerCuftMin:       0.05,
			ShipBaseMin:           6,
			ShipPer100LbsMin:      1.0,
			MinStageMin:           1,
		},
		Objective: Objective{
			DeadlineBasePenalty:   1000,
			LaborWeight:           1.0,
			EquipmentWeight:       1.0,
			UtilizationWeight:     0.1,
			OvertimeMultiplier:    1.5,
			PremiumCustomerFactor: 2.0,
		},
		Horizon: Horizon{
			SlotMinutes:  15,
			HorizonHours: 24,
			TimeLimitSec: 30,
		},
		Baseline: Baseline{
			PackQueueThreshold:        5,
			ShipQueueThreshold:        3,
			ConsolidateQueueThreshold: 8,
			LightLoadAssignments:      3,
		},
	}
}

// Load reads a YAML scheduler config, overlaying the defaults. An empty path
// returns the defaults unchanged.
func Load(path string) (Scheduler, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read scheduler config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse scheduler config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// FromEnv loads the config from SCHEDULER_CONFIG if set, defaults otherwise.
func FromEnv() (Scheduler, error) {
	return Load(os.Getenv("SCHEDULER_CONFIG"))
}

// Validate rejects configurations the engine cannot run with.
func (c Scheduler) Validate() error {
	if c.Geometry.WalkingSpeedFeetMin <= 0 {
		return fmt.Errorf("geometry.walkingSpeedFeetMin must be > 0")
	}
	if c.Horizon.SlotMinutes <= 0 {
		return fmt.Errorf("horizon.slotMinutes must be > 0")
	}
	if c.Horizon.HorizonHours <= 0 {
		return fmt.Errorf("horizon.horizonHours must be > 0")
	}
	if c.Objective.OvertimeMultiplier < 1 {
		return fmt.Errorf("objective.overtimeMultiplier must be >= 1")
	}
	if c.Durations.MinStageMin <= 0 {
		return fmt.Errorf("durations.minStageMin must be > 0")
	}
	return nil
}
