package engine

import (
	"fmt"
	"testing"
	"time"

	"wavesched/internal/config"
	"wavesched/internal/duration"
	"wavesched/internal/model"
)

func baselineSKUs() map[string]model.SKU {
	return map[string]model.SKU{
		"a1": {ID: "a1", Zone: 1, PickTimeMin: 1, PackTimeMin: 1},
		"b1": {ID: "b1", Zone: 2, PickTimeMin: 1, PackTimeMin: 1},
		"c1": {ID: "c1", Zone: 3, PickTimeMin: 1, PackTimeMin: 1},
	}
}

func orderInZone(id, skuID string, deadline time.Time) model.Order {
	o := simpleOrder(id, 3, deadline)
	o.Items = []model.OrderItem{{SKUID: skuID, Quantity: 1}}
	return o
}

func TestBaselineLinearTimeline(t *testing.T) {
	// The baseline runs on a single clock pointer, so no two stages anywhere
	// in the wave may overlap, even with plenty of workers available.
	skus := baselineSKUs()
	req := model.WaveRequest{
		Orders: []model.Order{
			orderInZone("o1", "a1", ref.Add(8*time.Hour)),
			orderInZone("o2", "b1", ref.Add(8*time.Hour)),
		},
		Workers: []model.Worker{
			{ID: "w1", Skills: allSkills(), HourlyRate: 12},
			{ID: "w2", Skills: allSkills(), HourlyRate: 12},
		},
		Equipment:      fullEquipment(),
		SKUs:           mapToSlice(skus),
		ReferenceStart: ref,
	}
	cfg := config.Default()
	durs := duration.NewModel(cfg.Durations, nil, skus)
	schedules, _ := NewBaselineSequencer(cfg.Baseline, durs, skus).Run(req)

	var all []model.StageSchedule
	for _, os := range schedules {
		all = append(all, os.Stages...)
	}
	for i := 0; i < len(all); i++ {
		for j := i + 1; j < len(all); j++ {
			a, b := all[i], all[j]
			if a.Start.Before(b.End()) && b.Start.Before(a.End()) {
				t.Fatalf("baseline overlap: %s/%s with %s/%s", a.OrderID, a.Stage, b.OrderID, b.Stage)
			}
		}
	}
}

func TestBaselineZoneBatching(t *testing.T) {
	// Same deadlines: all zone-1 orders must complete before any zone-3 order
	// starts, regardless of interleaved input order.
	skus := baselineSKUs()
	deadline := ref.Add(8 * time.Hour)
	req := model.WaveRequest{
		Orders: []model.Order{
			orderInZone("far1", "c1", deadline),
			orderInZone("near1", "a1", deadline),
			orderInZone("far2", "c1", deadline),
			orderInZone("near2", "a1", deadline),
		},
		Workers:        []model.Worker{{ID: "w1", Skills: allSkills(), HourlyRate: 12}},
		Equipment:      fullEquipment(),
		SKUs:           mapToSlice(skus),
		ReferenceStart: ref,
	}
	cfg := config.Default()
	durs := duration.NewModel(cfg.Durations, nil, skus)
	schedules, _ := NewBaselineSequencer(cfg.Baseline, durs, skus).Run(req)

	pos := map[string]int{}
	for i, os := range schedules {
		pos[os.OrderID] = i
	}
	for _, near := range []string{"near1", "near2"} {
		for _, far := range []string{"far1", "far2"} {
			if pos[near] > pos[far] {
				t.Fatalf("zone-1 order %s sequenced after zone-3 order %s", near, far)
			}
		}
	}
}

func TestBaselineSlowerThanOptimized(t *testing.T) {
	// With parallel capacity available the optimized schedule should beat the
	// single-timeline baseline on makespan.
	skus := baselineSKUs()
	var orders []model.Order
	for i := 0; i < 8; i++ {
		orders = append(orders, orderInZone(fmt.Sprintf("o%d", i), "a1", ref.Add(12*time.Hour)))
	}
	req := model.WaveRequest{
		Orders: orders,
		Workers: []model.Worker{
			{ID: "w1", Skills: allSkills(), HourlyRate: 12},
			{ID: "w2", Skills: allSkills(), HourlyRate: 12},
			{ID: "w3", Skills: allSkills(), HourlyRate: 12},
		},
		Equipment: []model.Equipment{
			{ID: "cart1", Type: model.EquipPickCart, Capacity: 3, HourlyCost: 2},
			{ID: "station1", Type: model.EquipPackingStation, Capacity: 3, HourlyCost: 5},
			{ID: "printer1", Type: model.EquipLabelPrinter, Capacity: 3, HourlyCost: 1},
			{ID: "dock1", Type: model.EquipDockDoor, Capacity: 3, HourlyCost: 3},
		},
		SKUs:           mapToSlice(skus),
		ReferenceStart: ref,
		// Minute slots keep the slotted schedule as fine-grained as the
		// baseline's continuous clock, so makespans are comparable.
		SlotMinutes:  1,
		TimeLimitSec: 2,
	}
	eng := New(config.Default(), nil).WithSeed(7)
	opt, _ := eng.ScheduleWave(req)
	base := eng.BaselineWave(req)
	if base.Metrics.MakespanMin < opt.Metrics.MakespanMin {
		t.Fatalf("baseline makespan %.1f beat optimized %.1f", base.Metrics.MakespanMin, opt.Metrics.MakespanMin)
	}
}

func TestBaselineReassignmentEvents(t *testing.T) {
	// A deep pack queue with an idle packing-qualified worker must surface at
	// least one reassignment event toward the pack stage.
	skus := baselineSKUs()
	var orders []model.Order
	for i := 0; i < 10; i++ {
		orders = append(orders, orderInZone(fmt.Sprintf("o%d", i), "a1", ref.Add(12*time.Hour)))
	}
	req := model.WaveRequest{
		Orders: orders,
		Workers: []model.Worker{
			{ID: "busy", Skills: allSkills(), HourlyRate: 12},
			{ID: "idle", Skills: []model.Skill{model.SkillPacking}, HourlyRate: 12},
		},
		Equipment:      fullEquipment(),
		SKUs:           mapToSlice(skus),
		ReferenceStart: ref,
	}
	cfg := config.Default()
	durs := duration.NewModel(cfg.Durations, nil, skus)
	_, events := NewBaselineSequencer(cfg.Baseline, durs, skus).Run(req)
	found := false
	for _, ev := range events {
		if ev.ToStage == model.StagePack {
			found = true
			if ev.QueueLength <= cfg.Baseline.PackQueueThreshold {
				t.Fatalf("event queue length %d not above threshold %d", ev.QueueLength, cfg.Baseline.PackQueueThreshold)
			}
			// The packing-only worker is pulled from their current station.
			if ev.WorkerID == "idle" && ev.FromStage != model.StagePack {
				t.Fatalf("event FromStage = %s, want the worker's last stage", ev.FromStage)
			}
		}
	}
	if !found {
		t.Fatal("expected a reassignment event toward pack")
	}
}

func mapToSlice(skus map[string]model.SKU) []model.SKU {
	out := make([]model.SKU, 0, len(skus))
	for _, s := range skus {
		out = append(out, s)
	}
	return out
}
