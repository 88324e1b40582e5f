package engine

import (
	"wavesched/internal/config"
	"wavesched/internal/model"
)

// computeMetrics aggregates one run's schedules. Derivable at any time from
// the schedule list; nothing here is independent state.
func computeMetrics(cfg config.Objective, req model.WaveRequest, schedules []model.OrderSchedule, status model.SolveStatus) model.OptimizationMetrics {
	m := model.OptimizationMetrics{
		TotalOrders:  len(schedules),
		SolverStatus: string(status),
	}
	workerByID := make(map[string]model.Worker, len(req.Workers))
	for _, w := range req.Workers {
		workerByID[w.ID] = w
	}
	equipByID := make(map[string]model.Equipment, len(req.Equipment))
	for _, eq := range req.Equipment {
		equipByID[eq.ID] = eq
	}
	orderByID := make(map[string]model.Order, len(req.Orders))
	for _, o := range req.Orders {
		orderByID[o.ID] = o
	}

	workerMin := map[string]float64{}
	for _, os := range schedules {
		if os.OnTime {
			m.OnTimeOrders++
		} else if o, ok := orderByID[os.OrderID]; ok {
			w := priorityWeight(o.Priority)
			if o.Premium {
				w *= cfg.PremiumCustomerFactor
			}
			m.DeadlinePenalty += w * cfg.DeadlineBasePenalty
		}
		if span := os.CompletionTime.Sub(req.ReferenceStart).Minutes(); span > m.MakespanMin {
			m.MakespanMin = span
		}
		for _, ss := range os.Stages {
			if ss.WorkerID != "" {
				workerMin[ss.WorkerID] += ss.DurationMin
			}
			if eq, ok := equipByID[ss.EquipmentID]; ok {
				m.TotalEquipmentCost += (ss.DurationMin / 60) * eq.HourlyCost
			}
		}
	}
	for id, min := range workerMin {
		w, ok := workerByID[id]
		if !ok {
			continue
		}
		hours := min / 60
		if w.MaxHoursPerDay > 0 && hours > w.MaxHoursPerDay {
			m.TotalLaborCost += w.MaxHoursPerDay * w.HourlyRate
			m.TotalLaborCost += (hours - w.MaxHoursPerDay) * w.HourlyRate * cfg.OvertimeMultiplier
		} else {
			m.TotalLaborCost += hours * w.HourlyRate
		}
	}
	if m.TotalOrders > 0 {
		m.OnTimePct = 100 * float64(m.OnTimeOrders) / float64(m.TotalOrders)
	}
	return m
}
