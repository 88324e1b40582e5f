package engine

import (
	"sort"
	"time"

	"wavesched/internal/duration"
	"wavesched/internal/model"
)

// FallbackScheduler is the guaranteed-success path used when the constrained
// solve fails: deterministic greedy earliest-deadline-first list scheduling.
// It never fails on non-empty input and runs roughly linear in orders x stages.
type FallbackScheduler struct {
	durs *duration.Model
}

// NewFallbackScheduler builds the fallback over one wave's duration model.
func NewFallbackScheduler(durs *duration.Model) *FallbackScheduler {
	return &FallbackScheduler{durs: durs}
}

// resourceTracker holds the per-run mutable next-free state. Owned by one
// invocation; nothing is shared across waves.
type resourceTracker struct {
	workerFree time.Time
	loadMin    float64
}

// equipTracker models one equipment unit with Capacity concurrent channels.
type equipTracker struct {
	channelFree []time.Time
	loadMin     float64
}

func (e *equipTracker) earliest() (int, time.Time) {
	best := 0
	for i, t := range e.channelFree {
		if t.Before(e.channelFree[best]) {
			best = i
		}
	}
	return best, e.channelFree[best]
}

// Schedule produces a complete schedule for every order and stage. Reaching a
// state where it cannot is a programming-invariant violation, not a runtime
// condition: every stage always has some worker (least-loaded overall when
// none qualify) and stages without equipment simply skip that resource.
func (f *FallbackScheduler) Schedule(req model.WaveRequest) []model.OrderSchedule {
	orders := append([]model.Order(nil), req.Orders...)
	sort.SliceStable(orders, func(a, b int) bool {
		if orders[a].Priority != orders[b].Priority {
			return orders[a].Priority < orders[b].Priority
		}
		return orders[a].ShippingDeadline.Before(orders[b].ShippingDeadline)
	})

	workers := make([]resourceTracker, len(req.Workers))
	for i := range workers {
		workers[i].workerFree = req.ReferenceStart
	}
	equip := make([]*equipTracker, len(req.Equipment))
	for i, eq := range req.Equipment {
		cap := eq.Capacity
		if cap < 1 {
			cap = 1
		}
		et := &equipTracker{channelFree: make([]time.Time, cap)}
		for c := range et.channelFree {
			et.channelFree[c] = req.ReferenceStart
		}
		equip[i] = et
	}

	out := make([]model.OrderSchedule, 0, len(orders))
	for _, o := range orders {
		os := model.OrderSchedule{OrderID: o.ID}
		prevEnd := req.ReferenceStart
		for _, st := range model.Stages {
			dur := f.durs.Duration(o, st)

			wi := f.pickWorker(req.Workers, workers, st)
			start := prevEnd
			if wi >= 0 && workers[wi].workerFree.After(start) {
				start = workers[wi].workerFree
			}

			ei, ch := -1, -1
			if eqType, needs := st.RequiredEquipment(); needs {
				ei, ch = pickEquipment(req.Equipment, equip, eqType)
				if ei >= 0 {
					if free := equip[ei].channelFree[ch]; free.After(start) {
						start = free
					}
				}
			}

			// The continuous clock applies resource efficiency to the real
			// stage duration; an efficiency-2 worker halves it.
			minutes := dur.Minutes
			if wi >= 0 {
				minutes /= req.Workers[wi].Efficiency()
			}
			if ei >= 0 {
				minutes /= req.Equipment[ei].Efficiency()
			}
			end := start.Add(time.Duration(minutes * float64(time.Minute)))
			ss := model.StageSchedule{
				OrderID:     o.ID,
				Stage:       st,
				Start:       start,
				DurationMin: minutes,
			}
			if wi >= 0 {
				ss.WorkerID = req.Workers[wi].ID
				workers[wi].workerFree = end
				workers[wi].loadMin += minutes
			}
			if ei >= 0 {
				ss.EquipmentID = req.Equipment[ei].ID
				equip[ei].channelFree[ch] = end
				equip[ei].loadMin += minutes
			}
			os.Stages = append(os.Stages, ss)
			prevEnd = end
		}
		os.CompletionTime = prevEnd
		os.OnTime = !prevEnd.After(o.ShippingDeadline)
		if !os.OnTime {
			os.DeadlineViolationMin = prevEnd.Sub(o.ShippingDeadline).Minutes()
		}
		out = append(out, os)
	}
	return out
}

// pickWorker returns the least-loaded worker qualified for the stage, or the
// globally least-loaded worker when none qualify. -1 only when there are no
// workers at all.
func (f *FallbackScheduler) pickWorker(ws []model.Worker, track []resourceTracker, st model.StageType) int {
	skill := st.RequiredSkill()
	best, bestAny := -1, -1
	for i, w := range ws {
		if bestAny == -1 || track[i].loadMin < track[bestAny].loadMin {
			bestAny = i
		}
		if !w.HasSkill(skill) {
			continue
		}
		if best == -1 || track[i].loadMin < track[best].loadMin {
			best = i
		}
	}
	if best >= 0 {
		return best
	}
	return bestAny
}

// pickEquipment returns the least-utilized unit of the required type and its
// earliest-free channel. (-1, -1) when no unit of the type exists.
func pickEquipment(eqs []model.Equipment, track []*equipTracker, t model.EquipmentType) (int, int) {
	best := -1
	for i, eq := range eqs {
		if eq.Type != t {
			continue
		}
		if best == -1 || track[i].loadMin < track[best].loadMin {
			best = i
		}
	}
	if best == -1 {
		return -1, -1
	}
	ch, _ := track[best].earliest()
	return best, ch
}
