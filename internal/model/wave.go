package model

import "time"

// WaveRecord is the persisted form of one scheduling run: request summary
// plus the full result, kept per tenant for later retrieval and comparison.
type WaveRecord struct {
	ID          string     `json:"id"`
	TenantID    string     `json:"tenantId"`
	Algo        string     `json:"algo"` // "optimizer" or "baseline"
	CreatedAt   time.Time  `json:"createdAt"`
	OrderCount  int        `json:"orderCount"`
	WorkerCount int        `json:"workerCount"`
	Result      WaveResult `json:"result"`
}

// WaveSummary is the list-view projection of a wave record.
type WaveSummary struct {
	ID           string    `json:"id"`
	Algo         string    `json:"algo"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
	OrderCount   int       `json:"orderCount"`
	OnTimePct    float64   `json:"onTimePct"`
	MakespanMin  float64   `json:"makespanMin"`
	ObjectiveVal float64   `json:"objectiveValue"`
}

// Summary projects a record into its list view.
func (w WaveRecord) Summary() WaveSummary {
	return WaveSummary{
		ID:           w.ID,
		Algo:         w.Algo,
		Status:       string(w.Result.Status),
		CreatedAt:    w.CreatedAt,
		OrderCount:   w.OrderCount,
		OnTimePct:    w.Result.Metrics.OnTimePct,
		MakespanMin:  w.Result.Metrics.MakespanMin,
		ObjectiveVal: w.Result.Metrics.ObjectiveValue,
	}
}

// Subscription is a registered webhook receiver.
type Subscription struct {
	ID       string   `json:"id"`
	TenantID string   `json:"tenantId"`
	URL      string   `json:"url"`
	Events   []string `json:"events"`
	Secret   string   `json:"-"`
}

// SubscriptionRequest creates a Subscription.
type SubscriptionRequest struct {
	TenantID string   `json:"-"`
	URL      string   `json:"url"`
	Events   []string `json:"events"`
	Secret   string   `json:"secret"`
}
