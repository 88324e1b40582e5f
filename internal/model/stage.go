package model

import (
	"encoding/json"
	"fmt"
)

// StageType is the fixed ordered enumeration of processing stages. The
// declaration order IS the precedence order.
type StageType int

const (
	StagePick StageType = iota
	StageConsolidate
	StagePack
	StageLabel
	StageStage
	StageShip
)

// Stages lists all stage types in precedence order.
var Stages = []StageType{StagePick, StageConsolidate, StagePack, StageLabel, StageStage, StageShip}

// NumStages is the number of processing stages per order.
const NumStages = 6

var stageNames = map[StageType]string{
	StagePick:        "pick",
	StageConsolidate: "consolidate",
	StagePack:        "pack",
	StageLabel:       "label",
	StageStage:       "stage",
	StageShip:        "ship",
}

func (s StageType) String() string {
	if n, ok := stageNames[s]; ok {
		return n
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// ParseStageType maps a normalized stage name back to the enum.
func ParseStageType(s string) (StageType, error) {
	for st, n := range stageNames {
		if n == s {
			return st, nil
		}
	}
	return 0, fmt.Errorf("unknown stage type: %s", s)
}

func (s StageType) MarshalJSON() ([]byte, error) { return json.Marshal(s.String()) }

func (s *StageType) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}
	st, err := ParseStageType(name)
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// Skill is the closed enumeration of worker skills.
type Skill string

const (
	SkillPicking       Skill = "picking"
	SkillPacking       Skill = "packing"
	SkillShipping      Skill = "shipping"
	SkillLabeling      Skill = "labeling"
	SkillConsolidation Skill = "consolidation"
	SkillStaging       Skill = "staging"
)

// EquipmentType is the closed enumeration of equipment kinds.
type EquipmentType string

const (
	EquipPackingStation EquipmentType = "packing_station"
	EquipDockDoor       EquipmentType = "dock_door"
	EquipPickCart       EquipmentType = "pick_cart"
	EquipConveyor       EquipmentType = "conveyor"
	EquipLabelPrinter   EquipmentType = "label_printer"
)

// stageSkill is the fixed stage -> required skill mapping. Unmapped stages
// are a startup error, not a silent runtime fallback.
var stageSkill = map[StageType]Skill{
	StagePick:        SkillPicking,
	StageConsolidate: SkillConsolidation,
	StagePack:        SkillPacking,
	StageLabel:       SkillLabeling,
	StageStage:       SkillStaging,
	StageShip:        SkillShipping,
}

// stageEquipment maps each stage to the equipment type it occupies, if any.
// CONSOLIDATE and STAGE need no dedicated equipment.
var stageEquipment = map[StageType]EquipmentType{
	StagePick:  EquipPickCart,
	StagePack:  EquipPackingStation,
	StageLabel: EquipLabelPrinter,
	StageShip:  EquipDockDoor,
}

// RequiredSkill returns the skill a worker must hold for the stage.
func (s StageType) RequiredSkill() Skill { return stageSkill[s] }

// RequiredEquipment returns the equipment type the stage occupies and whether
// the stage needs equipment at all.
func (s StageType) RequiredEquipment() (EquipmentType, bool) {
	t, ok := stageEquipment[s]
	return t, ok
}

// ValidateStageTables checks the closed mapping tables at startup so an
// unmapped stage is caught before any scheduling runs.
func ValidateStageTables() error {
	for _, st := range Stages {
		if _, ok := stageSkill[st]; !ok {
			return fmt.Errorf("stage %s has no skill mapping", st)
		}
		if _, ok := stageNames[st]; !ok {
			return fmt.Errorf("stage %d has no name", int(st))
		}
	}
	return nil
}

// SolveStatus reports which path produced a schedule.
type SolveStatus string

const (
	StatusOptimal    SolveStatus = "OPTIMAL"
	StatusFeasible   SolveStatus = "FEASIBLE"
	StatusInfeasible SolveStatus = "INFEASIBLE"
	StatusTimeout    SolveStatus = "TIMEOUT"
	StatusFallback   SolveStatus = "FALLBACK"
	// StatusBaseline marks comparison runs from the baseline sequencer; it
	// never appears on the production scheduling path.
	StatusBaseline SolveStatus = "BASELINE"
)
