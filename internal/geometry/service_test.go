package geometry

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"wavesched/internal/config"
	"wavesched/internal/metrics"
	"wavesched/internal/model"
)

func testBins() []model.Bin {
	return []model.Bin{
		{ID: "b1", X: 0, Y: 0, Z: 0, Zone: 1, Level: 1},
		{ID: "b2", X: 100, Y: 50, Z: 0, Zone: 1, Level: 1},
		{ID: "b3", X: 200, Y: 0, Z: 10, Zone: 2, Level: 2},
	}
}

func TestDistanceWeightedManhattan(t *testing.T) {
	cfg := config.Default().Geometry
	s := New(cfg, testBins())

	feet, min, ok := s.Distance("b1", "b2")
	if !ok {
		t.Fatal("expected known pair")
	}
	wantFeet := 100*cfg.WeightX + 50*cfg.WeightY
	if feet != wantFeet {
		t.Fatalf("feet = %v, want %v", feet, wantFeet)
	}
	if min != wantFeet/cfg.WalkingSpeedFeetMin {
		t.Fatalf("minutes = %v", min)
	}

	// same zone/level: no penalties; different zone and level add both once
	_, min13, _ := s.Distance("b1", "b3")
	base := (200*cfg.WeightX + 10*cfg.WeightZ) / cfg.WalkingSpeedFeetMin
	want := base + cfg.ZoneChangePenaltyMin + cfg.LevelChangePenaltyMin
	if diff := min13 - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("cross zone/level minutes = %v, want %v", min13, want)
	}
}

func TestDistanceSelfAndNonNegative(t *testing.T) {
	s := New(config.Default().Geometry, testBins())
	feet, min, ok := s.Distance("b1", "b1")
	if !ok || feet != 0 || min != 0 {
		t.Fatalf("self distance = (%v,%v,%v), want zeros", feet, min, ok)
	}
	for _, a := range []string{"b1", "b2", "b3"} {
		for _, b := range []string{"b1", "b2", "b3"} {
			f, m, _ := s.Distance(a, b)
			if f < 0 || m < 0 {
				t.Fatalf("negative distance %s->%s: %v, %v", a, b, f, m)
			}
		}
	}
}

func TestMissingBinDegradesToZero(t *testing.T) {
	s := New(config.Default().Geometry, testBins())
	_, min, ok := s.Distance("b1", "nope")
	if ok || min != 0 {
		t.Fatalf("missing bin: got (%v, %v), want degraded zero", min, ok)
	}
	if s.MissingBins() != 1 {
		t.Fatalf("missing bins = %d, want 1", s.MissingBins())
	}
}

func TestMissingBinFeedsDegradedCounter(t *testing.T) {
	s := New(config.Default().Geometry, testBins())
	before := testutil.ToFloat64(metrics.DegradedWalks)
	if _, _, ok := s.Distance("b1", "ghost"); ok {
		t.Fatal("expected degraded lookup")
	}
	if got := testutil.ToFloat64(metrics.DegradedWalks); got != before+1 {
		t.Fatalf("degraded walk counter = %v, want %v", got, before+1)
	}
}

func TestTotalWalkingTime(t *testing.T) {
	s := New(config.Default().Geometry, testBins())
	skus := map[string]model.SKU{
		"s1": {ID: "s1", BinID: "b1"},
		"s2": {ID: "s2", BinID: "b2"},
		"s3": {ID: "s3", BinID: "b3"},
		"s4": {ID: "s4"}, // no bin
	}
	order := model.Order{
		ID:        "o1",
		CreatedAt: time.Now(),
		Items: []model.OrderItem{
			{SKUID: "s1", Quantity: 1},
			{SKUID: "s2", Quantity: 2},
			{SKUID: "s3", Quantity: 1},
		},
	}
	total, degraded := s.TotalWalkingTime(order, skus)
	if degraded {
		t.Fatal("unexpected degraded flag")
	}
	_, t12, _ := s.Distance("b1", "b2")
	_, t23, _ := s.Distance("b2", "b3")
	if diff := total - (t12 + t23); diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("total = %v, want %v", total, t12+t23)
	}

	// one-bin order walks zero
	one := model.Order{ID: "o2", Items: []model.OrderItem{{SKUID: "s1", Quantity: 3}}}
	if got, _ := s.TotalWalkingTime(one, skus); got != 0 {
		t.Fatalf("single-bin order walking time = %v, want 0", got)
	}

	// missing bin data marks degraded but never fails
	bad := model.Order{ID: "o3", Items: []model.OrderItem{
		{SKUID: "s1", Quantity: 1}, {SKUID: "s4", Quantity: 1},
	}}
	got, degraded := s.TotalWalkingTime(bad, skus)
	if got != 0 || !degraded {
		t.Fatalf("degraded order: got (%v, %v)", got, degraded)
	}
}

func TestRecomputeAllIdempotentAndInvalidates(t *testing.T) {
	s := New(config.Default().Geometry, testBins())
	s.RecomputeAll(nil)
	m1 := s.Matrix()
	if len(m1) != 9 {
		t.Fatalf("matrix size = %d, want 9", len(m1))
	}
	s.RecomputeAll(nil)
	m2 := s.Matrix()
	if len(m1) != len(m2) {
		t.Fatalf("recompute not idempotent: %d vs %d", len(m1), len(m2))
	}
	for i := range m1 {
		if m1[i] != m2[i] {
			t.Fatalf("entry %d changed across idempotent recompute: %+v vs %+v", i, m1[i], m2[i])
		}
	}

	// coordinate change must invalidate stale entries
	moved := testBins()
	moved[1].X = 500
	s.RecomputeAll(moved)
	_, minAfter, _ := s.Distance("b1", "b2")
	var before float64
	for _, e := range m1 {
		if e.FromBin == "b1" && e.ToBin == "b2" {
			before = e.TimeMin
		}
	}
	if minAfter == before {
		t.Fatalf("stale cache entry survived recompute: %v", minAfter)
	}
}
