package engine

import (
	"errors"
	"fmt"
	"log"
	"time"

	"wavesched/internal/config"
	"wavesched/internal/duration"
	"wavesched/internal/model"
)

// Model construction errors are fatal for the constrained-solve path and
// trigger immediate fallback. They never represent per-order data problems.
var (
	ErrNoOrders    = errors.New("no orders in wave")
	ErrNoWorkers   = errors.New("no workers in wave")
	ErrNoEquipment = errors.New("no equipment of required type")
)

// Task is one (order, stage) decision: a start slot, a worker drawn from
// EligibleWorkers, and an equipment unit drawn from EligibleEquipment when
// NeedsEquipment is set.
type Task struct {
	OrderIdx int
	Stage    model.StageType

	DurationMin float64
	Slots       int // duration rounded up to whole slots
	Degraded    bool

	EligibleWorkers   []int // indices into Model.Workers
	SkillFallback     bool  // true when no worker anywhere holds the mapped skill
	NeedsEquipment    bool
	EquipmentType     model.EquipmentType
	EligibleEquipment []int // indices into Model.Equipment
}

// Model is the constrained scheduling model for one wave over a slotted
// horizon. It holds decision-variable domains and constraint inputs; the
// solver owns the variable values.
type Model struct {
	Cfg config.Scheduler

	Orders    []model.Order
	Workers   []model.Worker
	Equipment []model.Equipment

	Reference    time.Time
	SlotMinutes  int
	HorizonSlots int

	Tasks        [][]Task // [order][stage], stage order = precedence order
	DeadlineSlot []int    // per order, clamped into the horizon
	AtRisk       []bool   // per order, deadline fell outside the horizon
}

// slotsFor rounds a duration in minutes up to whole slots, minimum one slot.
func slotsFor(minutes float64, slotMin int) int {
	s := int((minutes + float64(slotMin) - 1e-9) / float64(slotMin))
	if s < 1 {
		s = 1
	}
	return s
}

// BuildModel constructs decision-variable domains and constraint inputs for a
// wave. Structural problems (no workers, no equipment of a required type)
// are returned as errors; per-order data problems degrade, never fail.
func BuildModel(cfg config.Scheduler, req model.WaveRequest, durs *duration.Model) (*Model, error) {
	if len(req.Orders) == 0 {
		return nil, ErrNoOrders
	}
	if len(req.Workers) == 0 {
		return nil, ErrNoWorkers
	}

	slotMin := req.SlotMinutes
	if slotMin <= 0 {
		slotMin = cfg.Horizon.SlotMinutes
	}
	horizonHours := req.HorizonHours
	if horizonHours <= 0 {
		horizonHours = cfg.Horizon.HorizonHours
	}
	m := &Model{
		Cfg:          cfg,
		Orders:       req.Orders,
		Workers:      req.Workers,
		Equipment:    req.Equipment,
		Reference:    req.ReferenceStart,
		SlotMinutes:  slotMin,
		HorizonSlots: horizonHours * 60 / slotMin,
		DeadlineSlot: make([]int, len(req.Orders)),
		AtRisk:       make([]bool, len(req.Orders)),
	}

	// Equipment pools by type, verified once per required type.
	equipByType := map[model.EquipmentType][]int{}
	for i, eq := range req.Equipment {
		equipByType[eq.Type] = append(equipByType[eq.Type], i)
	}

	// Worker eligibility per stage, with the explicit any-worker fallback when
	// a skill exists on no worker at all.
	eligible := map[model.StageType][]int{}
	fallback := map[model.StageType]bool{}
	for _, st := range model.Stages {
		skill := st.RequiredSkill()
		var qualified []int
		for i, w := range req.Workers {
			if w.HasSkill(skill) {
				qualified = append(qualified, i)
			}
		}
		if len(qualified) == 0 {
			all := make([]int, len(req.Workers))
			for i := range req.Workers {
				all[i] = i
			}
			qualified = all
			fallback[st] = true
			log.Printf("engine: no worker holds skill %q, stage %s open to any worker", skill, st)
		}
		eligible[st] = qualified
	}

	m.Tasks = make([][]Task, len(req.Orders))
	for oi, o := range req.Orders {
		m.Tasks[oi] = make([]Task, model.NumStages)
		for si, st := range model.Stages {
			r := durs.Duration(o, st)
			t := Task{
				OrderIdx:        oi,
				Stage:           st,
				DurationMin:     r.Minutes,
				Slots:           slotsFor(r.Minutes, slotMin),
				Degraded:        r.Degraded,
				EligibleWorkers: eligible[st],
				SkillFallback:   fallback[st],
			}
			if eqType, needs := st.RequiredEquipment(); needs {
				pool := equipByType[eqType]
				if len(pool) == 0 {
					return nil, fmt.Errorf("stage %s needs %s: %w", st, eqType, ErrNoEquipment)
				}
				t.NeedsEquipment = true
				t.EquipmentType = eqType
				t.EligibleEquipment = pool
			}
			m.Tasks[oi][si] = t
		}

		// Deadline as a horizon-relative slot, clamped. Out-of-horizon
		// deadlines flag the order at-risk instead of rejecting the model.
		dl := int(o.ShippingDeadline.Sub(req.ReferenceStart).Minutes()) / slotMin
		switch {
		case dl < 0:
			m.DeadlineSlot[oi] = 0
			m.AtRisk[oi] = true
		case dl >= m.HorizonSlots:
			m.DeadlineSlot[oi] = m.HorizonSlots - 1
			m.AtRisk[oi] = true
		default:
			m.DeadlineSlot[oi] = dl
		}
	}
	return m, nil
}

// SlotTime converts a slot index back to a wall-clock timestamp.
func (m *Model) SlotTime(slot int) time.Time {
	return m.Reference.Add(time.Duration(slot*m.SlotMinutes) * time.Minute)
}
