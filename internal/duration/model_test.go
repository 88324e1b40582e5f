package duration

import (
	"testing"

	"wavesched/internal/config"
	"wavesched/internal/geometry"
	"wavesched/internal/model"
)

func testModel() (*Model, map[string]model.SKU) {
	cfg := config.Default()
	bins := []model.Bin{
		{ID: "b1", X: 0, Y: 0, Zone: 1, Level: 1},
		{ID: "b2", X: 250, Y: 0, Zone: 1, Level: 1},
	}
	skus := map[string]model.SKU{
		"s1": {ID: "s1", PickTimeMin: 2, PackTimeMin: 1, WeightLbs: 10, VolumeCuft: 2, BinID: "b1"},
		"s2": {ID: "s2", PickTimeMin: 3, PackTimeMin: 2, WeightLbs: 50, VolumeCuft: 5, BinID: "b2"},
	}
	geo := geometry.New(cfg.Geometry, bins)
	return NewModel(cfg.Durations, geo, skus), skus
}

func TestPickIncludesWalkingTime(t *testing.T) {
	m, skus := testModel()
	o := model.Order{ID: "o1", Items: []model.OrderItem{
		{SKUID: "s1", Quantity: 1},
		{SKUID: "s2", Quantity: 1},
	}}
	o.ComputeAggregates(skus)

	r := m.Duration(o, model.StagePick)
	if r.Degraded {
		t.Fatal("unexpected degraded result")
	}
	// 250 ft at 250 ft/min = 1 minute of walking on top of 5 pick minutes
	want := o.TotalPickTimeMin + 1
	if diff := r.Minutes - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("pick = %v, want %v", r.Minutes, want)
	}
}

func TestPackUsesAggregate(t *testing.T) {
	m, skus := testModel()
	o := model.Order{ID: "o1", Items: []model.OrderItem{{SKUID: "s2", Quantity: 3}}}
	o.ComputeAggregates(skus)
	r := m.Duration(o, model.StagePack)
	if r.Minutes != o.TotalPackTimeMin {
		t.Fatalf("pack = %v, want %v", r.Minutes, o.TotalPackTimeMin)
	}
}

func TestComplexityScaling(t *testing.T) {
	m, skus := testModel()
	small := model.Order{ID: "s", Items: []model.OrderItem{{SKUID: "s1", Quantity: 1}}}
	small.ComputeAggregates(skus)
	big := model.Order{ID: "b", Items: []model.OrderItem{
		{SKUID: "s1", Quantity: 10}, {SKUID: "s2", Quantity: 10},
	}}
	big.ComputeAggregates(skus)

	for _, st := range []model.StageType{model.StageConsolidate, model.StageStage, model.StageShip} {
		if m.Duration(big, st).Minutes <= m.Duration(small, st).Minutes {
			t.Fatalf("stage %s: big order not longer than small", st)
		}
	}
}

func TestDegenerateOrderMinimumDuration(t *testing.T) {
	m, _ := testModel()
	empty := model.Order{ID: "empty"}
	for _, st := range model.Stages {
		r := m.Duration(empty, st)
		if r.Minutes < 1 {
			t.Fatalf("stage %s of empty order = %v, want >= 1", st, r.Minutes)
		}
	}
}

func TestMissingBinDegradesPick(t *testing.T) {
	m, skus := testModel()
	skus["s3"] = model.SKU{ID: "s3", PickTimeMin: 1} // no bin
	o := model.Order{ID: "o", Items: []model.OrderItem{
		{SKUID: "s1", Quantity: 1}, {SKUID: "s3", Quantity: 1},
	}}
	o.ComputeAggregates(skus)
	r := m.Duration(o, model.StagePick)
	if !r.Degraded {
		t.Fatal("expected degraded pick duration")
	}
	if r.Minutes < o.TotalPickTimeMin {
		t.Fatalf("pick = %v, want at least the aggregate %v", r.Minutes, o.TotalPickTimeMin)
	}
}
