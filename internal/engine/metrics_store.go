package engine

import "sync"

type runKey struct {
	Tenant string
	WaveID string
	Path   string
}

// RunMetricsStore keeps recent solve metrics in memory per (tenant, wave,
// path) so comparison endpoints can report optimizer-vs-baseline behavior.
type RunMetricsStore struct {
	mu    sync.Mutex
	store map[runKey]SolveMetrics
}

func NewRunMetricsStore() *RunMetricsStore {
	return &RunMetricsStore{store: map[runKey]SolveMetrics{}}
}

func (s *RunMetricsStore) Record(tenant, waveID, path string, m SolveMetrics) {
	s.mu.Lock()
	s.store[runKey{Tenant: tenant, WaveID: waveID, Path: path}] = m
	s.mu.Unlock()
}

// Get returns metrics per path for one wave.
func (s *RunMetricsStore) Get(tenant, waveID string) map[string]SolveMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]SolveMetrics{}
	for k, v := range s.store {
		if k.Tenant == tenant && k.WaveID == waveID {
			out[k.Path] = v
		}
	}
	return out
}
