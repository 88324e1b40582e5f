package engine

import (
	"sort"
	"time"

	"wavesched/internal/config"
	"wavesched/internal/duration"
	"wavesched/internal/model"
)

// BaselineSequencer reproduces a deliberately suboptimal, realistic incumbent
// policy: zone batching, least-loaded assignment, and reactive queue-triggered
// rebalancing. Its output exists strictly to quantify the optimized schedule's
// value, never for production assignment.
type BaselineSequencer struct {
	cfg  config.Baseline
	durs *duration.Model
	skus map[string]model.SKU
}

// NewBaselineSequencer builds the comparison sequencer for one wave.
func NewBaselineSequencer(cfg config.Baseline, durs *duration.Model, skus map[string]model.SKU) *BaselineSequencer {
	return &BaselineSequencer{cfg: cfg, durs: durs, skus: skus}
}

// zoneEfficiency favors orders whose items sit in faster-access (lower) zones.
func (b *BaselineSequencer) zoneEfficiency(o model.Order) float64 {
	sum, n := 0.0, 0
	for _, it := range o.Items {
		sku, ok := b.skus[it.SKUID]
		if !ok || sku.Zone <= 0 {
			continue
		}
		sum += float64(sku.Zone)
		n++
	}
	if n == 0 {
		return 0
	}
	return 1 / (sum / float64(n))
}

// dominantZone is the majority zone of an order's items, used for batching.
func (b *BaselineSequencer) dominantZone(o model.Order) int {
	counts := map[int]int{}
	for _, it := range o.Items {
		if sku, ok := b.skus[it.SKUID]; ok && sku.Zone > 0 {
			counts[sku.Zone] += it.Quantity
		}
	}
	zone, best := 0, 0
	for z, c := range counts {
		if c > best || (c == best && (zone == 0 || z < zone)) {
			zone, best = z, c
		}
	}
	return zone
}

// Run sequences the wave on a single linear timeline: zone batches processed
// in zone order, orders walked stage by stage with a wall-clock pointer.
func (b *BaselineSequencer) Run(req model.WaveRequest) ([]model.OrderSchedule, []model.ReassignmentEvent) {
	orders := append([]model.Order(nil), req.Orders...)
	sort.SliceStable(orders, func(i, j int) bool {
		if !orders[i].ShippingDeadline.Equal(orders[j].ShippingDeadline) {
			return orders[i].ShippingDeadline.Before(orders[j].ShippingDeadline)
		}
		if orders[i].Priority != orders[j].Priority {
			return orders[i].Priority < orders[j].Priority
		}
		return b.zoneEfficiency(orders[i]) > b.zoneEfficiency(orders[j])
	})

	// Simple wave batching: all of zone A before zone B before zone C.
	batches := map[int][]model.Order{}
	var zones []int
	for _, o := range orders {
		z := b.dominantZone(o)
		if _, seen := batches[z]; !seen {
			zones = append(zones, z)
		}
		batches[z] = append(batches[z], o)
	}
	sort.Ints(zones)

	workerLoad := make([]float64, len(req.Workers))
	// Last stage each worker was assigned; idle workers count as pick-floor.
	lastStage := make([]model.StageType, len(req.Workers))
	equipLoad := make([]float64, len(req.Equipment))
	var schedules []model.OrderSchedule
	var events []model.ReassignmentEvent

	clock := req.ReferenceStart
	for _, z := range zones {
		batch := batches[z]
		// Assignments handed out in the current batch, for the
		// lightly-loaded test during rebalancing.
		batchAssignments := make([]int, len(req.Workers))

		for done, o := range batch {
			os := model.OrderSchedule{OrderID: o.ID}
			for _, st := range model.Stages {
				dur := b.durs.Duration(o, st)

				wi := b.pickLeastLoaded(req.Workers, workerLoad, st)
				ss := model.StageSchedule{
					OrderID:     o.ID,
					Stage:       st,
					Start:       clock,
					DurationMin: dur.Minutes,
				}
				if wi >= 0 {
					ss.WorkerID = req.Workers[wi].ID
					workerLoad[wi] += dur.Minutes
					lastStage[wi] = st
					batchAssignments[wi]++
				}
				if eqType, needs := st.RequiredEquipment(); needs {
					if ei := leastUsedEquipment(req.Equipment, equipLoad, eqType); ei >= 0 {
						ss.EquipmentID = req.Equipment[ei].ID
						equipLoad[ei] += dur.Minutes
					}
				}
				os.Stages = append(os.Stages, ss)
				clock = clock.Add(time.Duration(dur.Minutes * float64(time.Minute)))
			}
			os.CompletionTime = clock
			os.OnTime = !clock.After(o.ShippingDeadline)
			if !os.OnTime {
				os.DeadlineViolationMin = clock.Sub(o.ShippingDeadline).Minutes()
			}
			schedules = append(schedules, os)

			events = append(events, b.adjustAllocation(req.Workers, batchAssignments, lastStage, len(batch)-done-1, clock)...)
		}
	}
	return schedules, events
}

// adjustAllocation is the reactive rebalancing step: when a stage's pending
// queue exceeds its threshold and a lightly-loaded worker holds the matching
// skill, a reassignment event records that worker moving to the bottleneck.
// This models imperfect human-driven rebalancing, not optimal assignment.
func (b *BaselineSequencer) adjustAllocation(ws []model.Worker, batchAssignments []int, lastStage []model.StageType, remainingOrders int, now time.Time) []model.ReassignmentEvent {
	thresholds := map[model.StageType]int{
		model.StagePack:        b.cfg.PackQueueThreshold,
		model.StageShip:        b.cfg.ShipQueueThreshold,
		model.StageConsolidate: b.cfg.ConsolidateQueueThreshold,
	}
	var events []model.ReassignmentEvent
	for _, st := range model.Stages {
		th, tracked := thresholds[st]
		if !tracked {
			continue
		}
		// Every remaining order still owes one instance of this stage.
		queue := remainingOrders
		if queue <= th {
			continue
		}
		skill := st.RequiredSkill()
		for wi, w := range ws {
			if batchAssignments[wi] >= b.cfg.LightLoadAssignments || !w.HasSkill(skill) {
				continue
			}
			events = append(events, model.ReassignmentEvent{
				TS:          now,
				WorkerID:    w.ID,
				FromStage:   lastStage[wi],
				ToStage:     st,
				QueueLength: queue,
			})
			break
		}
	}
	return events
}

func (b *BaselineSequencer) pickLeastLoaded(ws []model.Worker, load []float64, st model.StageType) int {
	skill := st.RequiredSkill()
	best, bestAny := -1, -1
	for i, w := range ws {
		if bestAny == -1 || load[i] < load[bestAny] {
			bestAny = i
		}
		if !w.HasSkill(skill) {
			continue
		}
		if best == -1 || load[i] < load[best] {
			best = i
		}
	}
	if best >= 0 {
		return best
	}
	return bestAny
}

func leastUsedEquipment(eqs []model.Equipment, load []float64, t model.EquipmentType) int {
	best := -1
	for i, eq := range eqs {
		if eq.Type != t {
			continue
		}
		if best == -1 || load[i] < load[best] {
			best = i
		}
	}
	return best
}
