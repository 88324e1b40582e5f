package engine

import (
	"math"
	"math/rand"
	"sort"
	"time"

	"wavesched/internal/model"
)

// SolveMetrics reports search behavior for one solve, for comparison tooling.
type SolveMetrics struct {
	RemovalSelects [2]int // random, late-orders
	InsertSelects  [2]int // earliest-start, cheapest-labor
	Iterations     int
	Improvements   int
	AcceptedWorse  int
	BestCost       float64
	FinalCost      float64
	Snapshots      []WeightSnapshot
}

// WeightSnapshot records adaptive operator weights over the search.
type WeightSnapshot struct {
	Iteration int
	Removal   [2]float64
	Insertion [2]float64
}

// SolveResult is the SolverDriver outcome. Status is a first-class value the
// caller must branch on; INFEASIBLE and TIMEOUT are not errors.
type SolveResult struct {
	Status    model.SolveStatus
	Schedules []model.OrderSchedule
	Objective CostBreakdown
	Metrics   SolveMetrics
}

// convergenceStreak is how many non-improving iterations count as converged.
const convergenceStreak = 300

// solve runs a time-boxed local search over the constrained model: greedy
// seed, then removal/reinsertion moves with simulated-annealing acceptance
// and adaptive operator weights. It always returns within the budget.
func solve(m *Model, ob objective, timeBudget time.Duration, seed int64) SolveResult {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	deadline := time.Now().Add(timeBudget)

	curr, ok := greedySeed(m)
	if !ok {
		// The horizon cannot host every task under the hard constraints.
		return SolveResult{Status: model.StatusInfeasible}
	}
	// On an exhausted budget the loop below never runs and the seed itself is
	// returned as FEASIBLE; a feasible incumbent is never discarded for time.
	curr.Cost = ob.evaluate(m, curr).Total()
	best := curr.clone()

	remW := [2]float64{1, 1}
	insW := [2]float64{1, 1}
	temp := 1.0
	cool := 0.995
	met := SolveMetrics{BestCost: best.Cost}
	streak := 0
	snapshotEvery := 50

	for time.Now().Before(deadline) && streak < convergenceStreak {
		met.Iterations++
		k := 1 + rng.Intn(3)
		op := selectOp(remW[:], rng)
		met.RemovalSelects[op]++
		ip := selectOp(insW[:], rng)
		met.InsertSelects[ip]++

		var removed []int
		switch op {
		case 0:
			removed = pickRandomOrders(m, k, rng)
		case 1:
			removed = pickLateOrders(m, curr, k)
		}
		cand, ok := reinsertOrders(m, curr, removed, ip == 1)
		if !ok {
			streak++
			continue
		}
		cand.Cost = ob.evaluate(m, cand).Total()

		delta := cand.Cost - best.Cost
		if delta < 0 || rng.Float64() < math.Exp(-delta/(temp+1e-9)) {
			curr = cand
			if cand.Cost < best.Cost {
				best = cand.clone()
				remW[op] += 0.1
				insW[ip] += 0.1
				met.Improvements++
				met.BestCost = best.Cost
				streak = 0
			} else {
				remW[op] += 0.01
				insW[ip] += 0.01
				met.AcceptedWorse++
				streak++
			}
		} else {
			remW[op] = math.Max(0.01, remW[op]*0.999)
			insW[ip] = math.Max(0.01, insW[ip]*0.999)
			streak++
		}
		temp *= cool
		if met.Iterations%snapshotEvery == 0 {
			met.Snapshots = append(met.Snapshots, WeightSnapshot{
				Iteration: met.Iterations, Removal: remW, Insertion: insW,
			})
		}
	}
	met.FinalCost = best.Cost

	breakdown := ob.evaluate(m, best)
	status := model.StatusFeasible
	// Converged with every deadline met: the dominant term cannot improve and
	// the search has stalled, which is as optimal as local search certifies.
	if streak >= convergenceStreak && breakdown.DeadlinePenalty == 0 {
		status = model.StatusOptimal
	}
	return SolveResult{
		Status:    status,
		Schedules: extract(m, best),
		Objective: breakdown,
		Metrics:   met,
	}
}

// occupancy tracks per-slot resource usage while placing tasks.
type occupancy struct {
	worker [][]bool // [worker][slot]
	equip  [][]int  // [equipment unit][slot] concurrent uses
	useMin []float64 // cumulative minutes per equipment unit
}

func newOccupancy(m *Model) *occupancy {
	oc := &occupancy{
		worker: make([][]bool, len(m.Workers)),
		equip:  make([][]int, len(m.Equipment)),
		useMin: make([]float64, len(m.Equipment)),
	}
	for i := range oc.worker {
		oc.worker[i] = make([]bool, m.HorizonSlots)
	}
	for i := range oc.equip {
		oc.equip[i] = make([]int, m.HorizonSlots)
	}
	return oc
}

func (oc *occupancy) workerFree(w, start, slots int) bool {
	for s := start; s < start+slots; s++ {
		if oc.worker[w][s] {
			return false
		}
	}
	return true
}

func (oc *occupancy) equipFree(m *Model, unit, start, slots int) bool {
	cap := m.Equipment[unit].Capacity
	if cap < 1 {
		cap = 1
	}
	for s := start; s < start+slots; s++ {
		if oc.equip[unit][s] >= cap {
			return false
		}
	}
	return true
}

func (oc *occupancy) add(t Task, a assignment) {
	for s := a.StartSlot; s < a.StartSlot+t.Slots; s++ {
		oc.worker[a.Worker][s] = true
		if t.NeedsEquipment && a.Equipment >= 0 {
			oc.equip[a.Equipment][s]++
		}
	}
	if t.NeedsEquipment && a.Equipment >= 0 {
		oc.useMin[a.Equipment] += t.DurationMin
	}
}

// placeTask finds the earliest feasible placement for a task at or after
// prevEnd. preferCheap trades start time for a lower-rate worker.
func placeTask(oc *occupancy, m *Model, t Task, prevEnd int, preferCheap bool) (assignment, bool) {
	bestA := assignment{Equipment: -1}
	bestStart := -1
	bestRate := math.MaxFloat64

	for _, w := range t.EligibleWorkers {
		for start := prevEnd; start+t.Slots <= m.HorizonSlots; start++ {
			if !oc.workerFree(w, start, t.Slots) {
				continue
			}
			unit := -1
			if t.NeedsEquipment {
				// Prefer the already-busiest feasible unit so the solution
				// claims as few distinct units as possible.
				bestUse := -1.0
				for _, e := range t.EligibleEquipment {
					if oc.equipFree(m, e, start, t.Slots) && oc.useMin[e] > bestUse {
						unit = e
						bestUse = oc.useMin[e]
					}
				}
				if unit == -1 {
					continue
				}
			}
			rate := m.Workers[w].HourlyRate
			better := false
			if bestStart == -1 {
				better = true
			} else if preferCheap {
				better = rate < bestRate || (rate == bestRate && start < bestStart)
			} else {
				better = start < bestStart || (start == bestStart && rate < bestRate)
			}
			if better {
				bestA = assignment{StartSlot: start, Worker: w, Equipment: unit}
				bestStart = start
				bestRate = rate
			}
			break // earliest start for this worker found
		}
	}
	if bestStart == -1 {
		return assignment{}, false
	}
	return bestA, true
}

// placeOrder assigns all six stages of one order in precedence order.
func placeOrder(oc *occupancy, m *Model, oi int, preferCheap bool) ([]assignment, bool) {
	out := make([]assignment, model.NumStages)
	prevEnd := 0
	for si := range m.Tasks[oi] {
		t := m.Tasks[oi][si]
		a, ok := placeTask(oc, m, t, prevEnd, preferCheap)
		if !ok {
			return nil, false
		}
		oc.add(t, a)
		out[si] = a
		prevEnd = a.StartSlot + t.Slots
	}
	return out, true
}

// greedySeed builds the initial feasible solution: orders by (priority,
// deadline), each placed at its earliest feasible slots.
func greedySeed(m *Model) (solution, bool) {
	order := make([]int, len(m.Orders))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		oa, ob := m.Orders[order[a]], m.Orders[order[b]]
		if oa.Priority != ob.Priority {
			return oa.Priority < ob.Priority
		}
		return oa.ShippingDeadline.Before(ob.ShippingDeadline)
	})

	oc := newOccupancy(m)
	sol := solution{A: make([][]assignment, len(m.Orders))}
	for _, oi := range order {
		a, ok := placeOrder(oc, m, oi, false)
		if !ok {
			return solution{}, false
		}
		sol.A[oi] = a
	}
	return sol, true
}

func pickRandomOrders(m *Model, k int, rng *rand.Rand) []int {
	if k > len(m.Orders) {
		k = len(m.Orders)
	}
	perm := rng.Perm(len(m.Orders))
	return perm[:k]
}

// pickLateOrders selects the orders whose ship stage finishes latest relative
// to their deadline slot; the domain analogue of relatedness removal.
func pickLateOrders(m *Model, s solution, k int) []int {
	type lateness struct {
		oi   int
		over int
	}
	all := make([]lateness, len(m.Orders))
	for oi := range m.Orders {
		ship := s.A[oi][model.NumStages-1]
		end := ship.StartSlot + m.Tasks[oi][model.NumStages-1].Slots
		all[oi] = lateness{oi: oi, over: end - m.DeadlineSlot[oi]}
	}
	sort.Slice(all, func(a, b int) bool { return all[a].over > all[b].over })
	if k > len(all) {
		k = len(all)
	}
	out := make([]int, k)
	for i := 0; i < k; i++ {
		out[i] = all[i].oi
	}
	return out
}

// reinsertOrders rebuilds occupancy without the removed orders and places
// them again, late-deadline-first, optionally preferring cheaper labor.
func reinsertOrders(m *Model, s solution, removed []int, preferCheap bool) (solution, bool) {
	rm := map[int]bool{}
	for _, oi := range removed {
		rm[oi] = true
	}
	oc := newOccupancy(m)
	out := solution{A: make([][]assignment, len(m.Orders))}
	for oi := range m.Tasks {
		if rm[oi] {
			continue
		}
		out.A[oi] = append([]assignment(nil), s.A[oi]...)
		for si, t := range m.Tasks[oi] {
			oc.add(t, s.A[oi][si])
		}
	}
	sort.Slice(removed, func(a, b int) bool {
		return m.DeadlineSlot[removed[a]] < m.DeadlineSlot[removed[b]]
	})
	for _, oi := range removed {
		a, ok := placeOrder(oc, m, oi, preferCheap)
		if !ok {
			return solution{}, false
		}
		out.A[oi] = a
	}
	return out, true
}

func selectOp(weights []float64, rng *rand.Rand) int {
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	if sum <= 0 {
		return 0
	}
	r := rng.Float64() * sum
	acc := 0.0
	for i, w := range weights {
		acc += w
		if r <= acc {
			return i
		}
	}
	return len(weights) - 1
}

// extract converts solved slots back into wall-clock stage schedules.
func extract(m *Model, s solution) []model.OrderSchedule {
	out := make([]model.OrderSchedule, len(m.Orders))
	for oi, o := range m.Orders {
		os := model.OrderSchedule{OrderID: o.ID, AtRisk: m.AtRisk[oi]}
		for si, t := range m.Tasks[oi] {
			a := s.A[oi][si]
			ss := model.StageSchedule{
				OrderID:     o.ID,
				Stage:       t.Stage,
				Start:       m.SlotTime(a.StartSlot),
				DurationMin: t.DurationMin,
				WorkerID:    m.Workers[a.Worker].ID,
			}
			if t.NeedsEquipment && a.Equipment >= 0 {
				ss.EquipmentID = m.Equipment[a.Equipment].ID
			}
			os.Stages = append(os.Stages, ss)
		}
		// Completion aligns to the occupied slot boundary, matching what the
		// capacity constraints reserved.
		ship := s.A[oi][model.NumStages-1]
		os.CompletionTime = m.SlotTime(ship.StartSlot + m.Tasks[oi][model.NumStages-1].Slots)
		os.OnTime = !os.CompletionTime.After(o.ShippingDeadline)
		if !os.OnTime {
			os.DeadlineViolationMin = os.CompletionTime.Sub(o.ShippingDeadline).Minutes()
		}
		out[oi] = os
	}
	return out
}
