// Package geometry estimates walking distance and time between warehouse bins.
package geometry

import (
	"log"
	"math"
	"sort"
	"sync"

	"wavesched/internal/config"
	"wavesched/internal/metrics"
	"wavesched/internal/model"
)

type pairKey struct{ From, To string }

// Service computes weighted-Manhattan walking distances over a bin snapshot.
// Pairwise results are cached; RecomputeAll rebuilds the full matrix and swaps
// it in atomically so concurrent readers never observe a partial matrix.
// A Service may be shared across concurrent scheduling runs.
type Service struct {
	cfg config.Geometry

	mu      sync.RWMutex
	bins    map[string]model.Bin
	cache   map[pairKey]model.WalkingTimeEntry
	missing map[string]bool // bin ids reported missing, to log each once
}

// New builds a Service over the supplied bin snapshot.
func New(cfg config.Geometry, bins []model.Bin) *Service {
	s := &Service{
		cfg:     cfg,
		bins:    map[string]model.Bin{},
		cache:   map[pairKey]model.WalkingTimeEntry{},
		missing: map[string]bool{},
	}
	for _, b := range bins {
		s.bins[b.ID] = b
	}
	return s
}

// compute is the pure distance function: per-axis weighted Manhattan distance,
// time at walking speed plus one-shot zone and level change penalties.
func (s *Service) compute(from, to model.Bin) (feet, minutes float64) {
	feet = math.Abs(from.X-to.X)*s.cfg.WeightX +
		math.Abs(from.Y-to.Y)*s.cfg.WeightY +
		math.Abs(from.Z-to.Z)*s.cfg.WeightZ
	minutes = feet / s.cfg.WalkingSpeedFeetMin
	if from.Zone != to.Zone {
		minutes += s.cfg.ZoneChangePenaltyMin
	}
	if from.Level != to.Level {
		minutes += s.cfg.LevelChangePenaltyMin
	}
	return feet, minutes
}

// Distance returns the walking distance in feet and time in minutes between
// two bins. Missing bin data yields (0, 0, false): degraded, never fatal.
func (s *Service) Distance(fromID, toID string) (feet, minutes float64, ok bool) {
	k := pairKey{fromID, toID}
	s.mu.RLock()
	if e, hit := s.cache[k]; hit {
		s.mu.RUnlock()
		return e.DistanceFeet, e.TimeMin, true
	}
	from, okFrom := s.bins[fromID]
	to, okTo := s.bins[toID]
	s.mu.RUnlock()

	if !okFrom || !okTo {
		s.noteMissing(fromID, okFrom)
		s.noteMissing(toID, okTo)
		metrics.IncDegradedWalk()
		return 0, 0, false
	}
	feet, minutes = s.compute(from, to)
	s.mu.Lock()
	s.cache[k] = model.WalkingTimeEntry{FromBin: fromID, ToBin: toID, DistanceFeet: feet, TimeMin: minutes}
	s.mu.Unlock()
	return feet, minutes, true
}

func (s *Service) noteMissing(id string, found bool) {
	if found || id == "" {
		return
	}
	s.mu.Lock()
	first := !s.missing[id]
	s.missing[id] = true
	s.mu.Unlock()
	if first {
		log.Printf("geometry: no bin data for %q, walking time degraded to 0", id)
	}
}

// MissingBins returns how many distinct bin ids were requested but unknown.
func (s *Service) MissingBins() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.missing)
}

// TotalWalkingTime sums pairwise walking times along the order's bin
// visitation sequence (items in pick order, mapped to bins via SKU data).
// Orders touching at most one known bin walk zero minutes. Legs with missing
// bin data count as zero and mark the result degraded.
func (s *Service) TotalWalkingTime(order model.Order, skus map[string]model.SKU) (minutes float64, degraded bool) {
	seq := make([]string, 0, len(order.Items))
	for _, it := range order.Items {
		sku, ok := skus[it.SKUID]
		if !ok || sku.BinID == "" {
			degraded = true
			metrics.IncDegradedWalk()
			continue
		}
		seq = append(seq, sku.BinID)
	}
	if len(seq) <= 1 {
		return 0, degraded
	}
	for i := 0; i < len(seq)-1; i++ {
		_, t, ok := s.Distance(seq[i], seq[i+1])
		if !ok {
			degraded = true
			continue
		}
		minutes += t
	}
	return minutes, degraded
}

// RecomputeAll replaces the bin snapshot (nil keeps the current bins), clears
// the cache and recomputes the full NxN matrix. O(N^2); intended for bulk
// precomputation and export. The new matrix is swapped in whole.
func (s *Service) RecomputeAll(bins []model.Bin) {
	s.mu.RLock()
	next := make(map[string]model.Bin, len(s.bins))
	if bins == nil {
		for id, b := range s.bins {
			next[id] = b
		}
	}
	s.mu.RUnlock()
	for _, b := range bins {
		next[b.ID] = b
	}

	matrix := make(map[pairKey]model.WalkingTimeEntry, len(next)*len(next))
	for fromID, from := range next {
		for toID, to := range next {
			feet, min := s.compute(from, to)
			matrix[pairKey{fromID, toID}] = model.WalkingTimeEntry{
				FromBin: fromID, ToBin: toID, DistanceFeet: feet, TimeMin: min,
			}
		}
	}

	s.mu.Lock()
	s.bins = next
	s.cache = matrix
	s.mu.Unlock()
}

// Matrix exports the cached entries ordered by (from, to) for bulk persistence.
func (s *Service) Matrix() []model.WalkingTimeEntry {
	s.mu.RLock()
	out := make([]model.WalkingTimeEntry, 0, len(s.cache))
	for _, e := range s.cache {
		out = append(out, e)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].FromBin != out[j].FromBin {
			return out[i].FromBin < out[j].FromBin
		}
		return out[i].ToBin < out[j].ToBin
	})
	return out
}
