package engine

import (
	"fmt"
	"testing"
	"time"

	"wavesched/internal/config"
	"wavesched/internal/duration"
	"wavesched/internal/model"
)

func newDurations() *duration.Model {
	return duration.NewModel(config.Default().Durations, nil, nil)
}

func TestFallbackTotality(t *testing.T) {
	// A single worker with no matching skills and no equipment at all must
	// still produce a complete schedule for every order and stage.
	var orders []model.Order
	for i := 0; i < 5; i++ {
		orders = append(orders, simpleOrder(fmt.Sprintf("o%d", i), 1+i%5, ref.Add(time.Duration(i)*time.Hour)))
	}
	req := model.WaveRequest{
		Orders:         orders,
		Workers:        []model.Worker{{ID: "w1", Skills: nil, HourlyRate: 12}},
		ReferenceStart: ref,
	}
	schedules := NewFallbackScheduler(newDurations()).Schedule(req)
	checkInvariants(t, req, schedules)
	for _, os := range schedules {
		for _, ss := range os.Stages {
			if ss.WorkerID != "w1" {
				t.Fatalf("stage %s of %s unassigned", ss.Stage, os.OrderID)
			}
		}
	}
}

func TestFallbackDeadlineFirstOrdering(t *testing.T) {
	late := simpleOrder("late", 2, ref.Add(12*time.Hour))
	urgent := simpleOrder("urgent", 2, ref.Add(1*time.Hour))
	req := model.WaveRequest{
		Orders:         []model.Order{late, urgent},
		Workers:        []model.Worker{{ID: "w1", Skills: allSkills(), HourlyRate: 12}},
		Equipment:      fullEquipment(),
		ReferenceStart: ref,
	}
	schedules := NewFallbackScheduler(newDurations()).Schedule(req)
	checkInvariants(t, req, schedules)
	if schedules[0].OrderID != "urgent" {
		t.Fatalf("first scheduled order = %s, want urgent (earliest deadline)", schedules[0].OrderID)
	}
	if schedules[0].CompletionTime.After(schedules[1].CompletionTime) {
		t.Fatal("urgent order completes after the late one")
	}
}

func TestFallbackPrefersQualifiedLeastLoaded(t *testing.T) {
	picker := model.Worker{ID: "picker", Skills: []model.Skill{model.SkillPicking}, HourlyRate: 15}
	packer := model.Worker{ID: "packer", Skills: []model.Skill{model.SkillPacking}, HourlyRate: 15}
	req := model.WaveRequest{
		Orders:         []model.Order{simpleOrder("o1", 1, ref.Add(4 * time.Hour))},
		Workers:        []model.Worker{picker, packer},
		Equipment:      fullEquipment(),
		ReferenceStart: ref,
	}
	schedules := NewFallbackScheduler(newDurations()).Schedule(req)
	checkSkillEligibility(t, req, schedules)
	for _, ss := range schedules[0].Stages {
		switch ss.Stage {
		case model.StagePick:
			if ss.WorkerID != "picker" {
				t.Fatalf("pick assigned to %s", ss.WorkerID)
			}
		case model.StagePack:
			if ss.WorkerID != "packer" {
				t.Fatalf("pack assigned to %s", ss.WorkerID)
			}
		}
	}
}

func TestFallbackAppliesWorkerEfficiency(t *testing.T) {
	// An efficiency-2 worker finishes every stage in half the nominal time.
	mk := func(eff float64) []model.OrderSchedule {
		req := model.WaveRequest{
			Orders:         []model.Order{simpleOrder("o1", 3, ref.Add(8 * time.Hour))},
			Workers:        []model.Worker{{ID: "w1", Skills: allSkills(), HourlyRate: 12, EfficiencyFactor: eff}},
			ReferenceStart: ref,
		}
		return NewFallbackScheduler(newDurations()).Schedule(req)
	}
	nominal := mk(0) // unset factor means 1
	fast := mk(2)
	for i := range nominal[0].Stages {
		n, f := nominal[0].Stages[i], fast[0].Stages[i]
		if f.DurationMin*2 != n.DurationMin {
			t.Fatalf("stage %s: efficiency-2 duration %.2f, nominal %.2f", f.Stage, f.DurationMin, n.DurationMin)
		}
	}
	if !fast[0].CompletionTime.Before(nominal[0].CompletionTime) {
		t.Fatal("efficient worker should complete the order sooner")
	}
}

func TestFallbackEquipmentCapacityChannels(t *testing.T) {
	// A capacity-2 packing station may host two concurrent packs but never three.
	var orders []model.Order
	for i := 0; i < 6; i++ {
		o := simpleOrder(fmt.Sprintf("o%d", i), 2, ref.Add(8*time.Hour))
		o.TotalPackTimeMin = 30
		orders = append(orders, o)
	}
	req := model.WaveRequest{
		Orders: orders,
		Workers: []model.Worker{
			{ID: "w1", Skills: allSkills(), HourlyRate: 12},
			{ID: "w2", Skills: allSkills(), HourlyRate: 12},
			{ID: "w3", Skills: allSkills(), HourlyRate: 12},
		},
		Equipment: []model.Equipment{
			{ID: "cart1", Type: model.EquipPickCart, Capacity: 4},
			{ID: "station1", Type: model.EquipPackingStation, Capacity: 2},
			{ID: "printer1", Type: model.EquipLabelPrinter, Capacity: 4},
			{ID: "dock1", Type: model.EquipDockDoor, Capacity: 4},
		},
		ReferenceStart: ref,
	}
	schedules := NewFallbackScheduler(newDurations()).Schedule(req)
	checkInvariants(t, req, schedules)
}
