package engine

import (
	"wavesched/internal/config"
	"wavesched/internal/model"
)

// assignment is one solved (order, stage) decision. Equipment is -1 when the
// stage needs none.
type assignment struct {
	StartSlot int
	Worker    int
	Equipment int
}

// solution holds one value per task, indexed like Model.Tasks.
type solution struct {
	A    [][]assignment
	Cost float64
}

func (s solution) clone() solution {
	out := solution{A: make([][]assignment, len(s.A)), Cost: s.Cost}
	for i := range s.A {
		out.A[i] = append([]assignment(nil), s.A[i]...)
	}
	return out
}

// CostBreakdown are the named objective terms. Deadline carries the largest
// weight by construction so deadline compliance dominates cost trade-offs.
type CostBreakdown struct {
	DeadlinePenalty float64 `json:"deadlinePenalty"`
	LaborCost       float64 `json:"laborCost"`
	EquipmentCost   float64 `json:"equipmentCost"`
	Utilization     float64 `json:"utilization"`
}

// Total collapses the breakdown into the scalar the solver minimizes.
func (c CostBreakdown) Total() float64 {
	return c.DeadlinePenalty + c.LaborCost + c.EquipmentCost + c.Utilization
}

// priorityWeight increases for higher-priority (lower-numbered) orders.
func priorityWeight(priority int) float64 {
	if priority < 1 {
		priority = 1
	}
	if priority > 5 {
		priority = 5
	}
	return float64(6 - priority)
}

// objective evaluates the weighted multi-term objective for a solution.
// Overrides replace individual configured weights by name.
type objective struct {
	cfg config.Objective

	basePenalty       float64
	laborWeight       float64
	equipmentWeight   float64
	utilizationWeight float64
}

var objectiveWeightNames = []string{"deadline", "labor", "equipment", "utilization"}

func newObjective(cfg config.Objective, overrides map[string]float64) objective {
	o := objective{
		cfg:               cfg,
		basePenalty:       cfg.DeadlineBasePenalty,
		laborWeight:       cfg.LaborWeight,
		equipmentWeight:   cfg.EquipmentWeight,
		utilizationWeight: cfg.UtilizationWeight,
	}
	for name, v := range overrides {
		switch name {
		case "deadline":
			o.basePenalty = v
		case "labor":
			o.laborWeight = v
		case "equipment":
			o.equipmentWeight = v
		case "utilization":
			o.utilizationWeight = v
		}
	}
	return o
}

// evaluate computes the cost breakdown of a full solution against the model.
func (ob objective) evaluate(m *Model, s solution) CostBreakdown {
	var c CostBreakdown

	workerMin := make([]float64, len(m.Workers))
	equipUsed := make([]bool, len(m.Equipment))

	for oi := range m.Tasks {
		for si, t := range m.Tasks[oi] {
			a := s.A[oi][si]
			// Efficiency scales the billed effort of an assignment; slot
			// occupancy stays nominal so constraints are assignment-independent.
			workerMin[a.Worker] += t.DurationMin / m.Workers[a.Worker].Efficiency()
			if t.NeedsEquipment && a.Equipment >= 0 {
				eq := m.Equipment[a.Equipment]
				c.EquipmentCost += ob.equipmentWeight * (t.DurationMin / eq.Efficiency() / 60) * eq.HourlyCost
				equipUsed[a.Equipment] = true
			}
		}

		// Soft deadline: a missed indicator feeds the objective instead of
		// forbidding the assignment, so deadlines never make a wave unsolvable.
		ship := s.A[oi][model.NumStages-1]
		shipEnd := ship.StartSlot + m.Tasks[oi][model.NumStages-1].Slots
		if shipEnd > m.DeadlineSlot[oi] {
			o := m.Orders[oi]
			w := priorityWeight(o.Priority)
			if o.Premium {
				w *= ob.cfg.PremiumCustomerFactor
			}
			c.DeadlinePenalty += w * ob.basePenalty
		}
	}

	for wi, min := range workerMin {
		w := m.Workers[wi]
		hours := min / 60
		regular := hours
		if w.MaxHoursPerDay > 0 && hours > w.MaxHoursPerDay {
			regular = w.MaxHoursPerDay
			overtime := hours - w.MaxHoursPerDay
			c.LaborCost += ob.laborWeight * overtime * w.HourlyRate * ob.cfg.OvertimeMultiplier
		}
		c.LaborCost += ob.laborWeight * regular * w.HourlyRate
	}

	// Small term against gratuitous equipment claims; must not compete with
	// the cost and deadline terms.
	for _, used := range equipUsed {
		if used {
			c.Utilization += ob.utilizationWeight
		}
	}
	return c
}
