package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"wavesched/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
	mu       sync.Mutex
	waves    map[string]model.WaveRecord // id -> record
	wavesTen map[string][]string         // tenant -> wave ids, insertion order
	matrix   map[string][]model.WalkingTimeEntry
	subs     map[string][]model.Subscription
	// Webhooks queue state
	deliveries         map[string]*memDelivery
	deliveriesByTenant map[string][]string
	dlq                []map[string]any
	runMx    map[string]map[string][]map[string]any // tenant -> waveID -> items
	runWts   map[string]map[string][]map[string]any
	schedCfg map[string]map[string]any // tenant -> config
}

func NewMemory() *Memory {
	return &Memory{
		waves:              map[string]model.WaveRecord{},
		wavesTen:           map[string][]string{},
		matrix:             map[string][]model.WalkingTimeEntry{},
		subs:               map[string][]model.Subscription{},
		deliveries:         map[string]*memDelivery{},
		deliveriesByTenant: map[string][]string{},
		dlq:                []map[string]any{},
		runMx:              map[string]map[string][]map[string]any{},
		runWts:             map[string]map[string][]map[string]any{},
		schedCfg:           map[string]map[string]any{},
	}
}

// memDelivery augments WebhookDelivery with scheduling/metrics
type memDelivery struct {
	WebhookDelivery
	NextAttemptAt time.Time
	LastError     string
	ResponseCode  int
	LatencyMs     int
	DeliveredAt   *time.Time
}

func (m *Memory) SaveWave(ctx context.Context, rec model.WaveRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, seen := m.waves[rec.ID]; !seen {
		m.wavesTen[rec.TenantID] = append(m.wavesTen[rec.TenantID], rec.ID)
	}
	m.waves[rec.ID] = rec
	return nil
}

func (m *Memory) GetWave(ctx context.Context, tenantID, waveID string) (model.WaveRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.waves[waveID]
	if !ok || rec.TenantID != tenantID {
		return model.WaveRecord{}, ErrNotFound
	}
	return rec, nil
}

func (m *Memory) ListWaves(ctx context.Context, tenantID, status, cursor string, limit int) ([]model.WaveSummary, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := m.wavesTen[tenantID]
	start := 0
	if cursor != "" {
		for i, id := range ids {
			if id == cursor {
				start = i + 1
				break
			}
		}
	}
	if limit <= 0 {
		limit = 100
	}
	out := []model.WaveSummary{}
	var next string
	for i := start; i < len(ids) && len(out) < limit; i++ {
		rec := m.waves[ids[i]]
		if status == "" || string(rec.Result.Status) == status {
			out = append(out, rec.Summary())
		}
		next = ids[i]
	}
	if len(out) < limit {
		next = ""
	}
	return out, next, nil
}

func (m *Memory) GetWaveSchedules(ctx context.Context, tenantID, waveID string) ([]model.OrderSchedule, error) {
	rec, err := m.GetWave(ctx, tenantID, waveID)
	if err != nil {
		return nil, err
	}
	return rec.Result.Schedules, nil
}

func (m *Memory) SaveWalkingMatrix(ctx context.Context, tenantID string, entries []model.WalkingTimeEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.matrix[tenantID] = append([]model.WalkingTimeEntry(nil), entries...)
	return nil
}

func (m *Memory) ListWalkingMatrix(ctx context.Context, tenantID, cursor string, limit int) ([]model.WalkingTimeEntry, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.matrix[tenantID]
	start := 0
	if cursor != "" {
		for i := range list {
			if list[i].FromBin+"/"+list[i].ToBin == cursor {
				start = i + 1
				break
			}
		}
	}
	if limit <= 0 {
		limit = 1000
	}
	end := start + limit
	if end > len(list) {
		end = len(list)
	}
	items := append([]model.WalkingTimeEntry(nil), list[start:end]...)
	next := ""
	if end < len(list) && end > 0 {
		next = list[end-1].FromBin + "/" + list[end-1].ToBin
	}
	return items, next, nil
}

func (m *Memory) SaveRunMetrics(ctx context.Context, tenantID, waveID, algo string, metrics map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.runMx[tenantID] == nil {
		m.runMx[tenantID] = map[string][]map[string]any{}
	}
	items := m.runMx[tenantID][waveID]
	found := false
	for i := range items {
		if items[i]["algo"] == algo {
			items[i] = metrics
			items[i]["algo"] = algo
			found = true
			break
		}
	}
	if !found {
		metrics["algo"] = algo
		items = append(items, metrics)
	}
	m.runMx[tenantID][waveID] = items
	return nil
}

func (m *Memory) ListRunMetrics(ctx context.Context, tenantID, waveID, algo string) ([]map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := m.runMx[tenantID][waveID]
	if algo == "" {
		return append([]map[string]any(nil), items...), nil
	}
	out := []map[string]any{}
	for _, it := range items {
		if it["algo"] == algo {
			out = append(out, it)
		}
	}
	return out, nil
}

func (m *Memory) SaveRunWeights(ctx context.Context, tenantID, waveID, algo string, snaps []map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.runWts[tenantID] == nil {
		m.runWts[tenantID] = map[string][]map[string]any{}
	}
	for i := range snaps {
		snaps[i]["algo"] = algo
	}
	m.runWts[tenantID][waveID] = append(m.runWts[tenantID][waveID], snaps...)
	return nil
}

func (m *Memory) ListRunWeights(ctx context.Context, tenantID, waveID, algo string) ([]map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := m.runWts[tenantID][waveID]
	if algo == "" {
		return append([]map[string]any(nil), items...), nil
	}
	out := []map[string]any{}
	for _, it := range items {
		if it["algo"] == algo {
			out = append(out, it)
		}
	}
	return out, nil
}

func (m *Memory) GetSchedulerConfig(ctx context.Context, tenantID string) (map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cfg, ok := m.schedCfg[tenantID]; ok {
		return cfg, nil
	}
	return nil, nil
}

func (m *Memory) SaveSchedulerConfig(ctx context.Context, tenantID string, cfg map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schedCfg[tenantID] = cfg
	return nil
}

func (m *Memory) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := model.Subscription{ID: uuid.New().String(), TenantID: req.TenantID, URL: req.URL, Events: req.Events, Secret: req.Secret}
	m.subs[req.TenantID] = append(m.subs[req.TenantID], s)
	return s, nil
}

func (m *Memory) GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Subscription
	for _, s := range m.subs[tenantID] {
		for _, e := range s.Events {
			if e == eventType {
				out = append(out, s)
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.subs[tenantID]
	start := 0
	if cursor != "" {
		for i := range list {
			if list[i].ID == cursor {
				start = i + 1
				break
			}
		}
	}
	if limit <= 0 {
		limit = 100
	}
	end := start + limit
	if end > len(list) {
		end = len(list)
	}
	items := append([]model.Subscription(nil), list[start:end]...)
	next := ""
	if end < len(list) {
		next = list[end-1].ID
	}
	return items, next, nil
}

func (m *Memory) DeleteSubscription(ctx context.Context, tenantID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	arr := m.subs[tenantID]
	out := make([]model.Subscription, 0, len(arr))
	for _, s := range arr {
		if s.ID != id {
			out = append(out, s)
		}
	}
	m.subs[tenantID] = out
	return nil
}

// Webhook deliveries

func (m *Memory) EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New().String()
	d := &memDelivery{WebhookDelivery: WebhookDelivery{ID: id, TenantID: tenantID, SubscriptionID: subscriptionID, EventType: eventType, URL: url, Secret: secret, Payload: payload, Status: "pending"}, NextAttemptAt: time.Now()}
	m.deliveries[id] = d
	m.deliveriesByTenant[tenantID] = append(m.deliveriesByTenant[tenantID], id)
	return id, nil
}

func (m *Memory) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	out := []WebhookDelivery{}
	for _, id := range m.iterDeliveryIDs() {
		d := m.deliveries[id]
		if d == nil {
			continue
		}
		if (d.Status == "pending" || d.Status == "retry") && !d.NextAttemptAt.After(now) {
			out = append(out, d.WebhookDelivery)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.deliveries[id]
	if d == nil {
		return nil
	}
	d.Attempts++
	d.ResponseCode = responseCode
	d.LatencyMs = latencyMs
	if success {
		d.Status = "delivered"
		now := time.Now()
		d.DeliveredAt = &now
	} else {
		d.Status = "retry"
		d.LastError = lastError
		if nextAttemptAt != nil {
			d.NextAttemptAt = *nextAttemptAt
		} else {
			d.NextAttemptAt = time.Now().Add(1 * time.Minute)
		}
	}
	return nil
}

func (m *Memory) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.deliveries[id]
	if d != nil {
		d.Status = "failed"
	}
	row := map[string]any{"id": id, "lastError": lastError, "responseCode": responseCode, "latencyMs": latencyMs, "failedAt": time.Now()}
	if d != nil {
		row["tenantId"] = d.TenantID
		row["eventType"] = d.EventType
	}
	m.dlq = append(m.dlq, row)
	return nil
}

func (m *Memory) ListWebhookDeliveries(ctx context.Context, tenantID, status, cursor string, limit int) ([]map[string]any, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []map[string]any{}
	for _, id := range m.deliveriesByTenant[tenantID] {
		d := m.deliveries[id]
		if d == nil {
			continue
		}
		if status == "" || d.Status == status {
			item := map[string]any{"id": d.ID, "eventType": d.EventType, "status": d.Status, "attempts": d.Attempts, "url": d.URL}
			if !d.NextAttemptAt.IsZero() {
				item["nextAttemptAt"] = d.NextAttemptAt
			}
			if d.LastError != "" {
				item["lastError"] = d.LastError
			}
			out = append(out, item)
		}
	}
	return out, "", nil
}

func (m *Memory) RetryWebhookDelivery(ctx context.Context, tenantID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.deliveries[id]
	if d != nil && d.TenantID == tenantID {
		d.Status = "pending"
		d.NextAttemptAt = time.Now()
	}
	return nil
}

func (m *Memory) ListWebhookDLQ(ctx context.Context, tenantID, eventType string, olderThan time.Time, cursor string, limit int) ([]map[string]any, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []map[string]any{}
	for _, row := range m.dlq {
		if t, ok := row["tenantId"].(string); ok && t != tenantID {
			continue
		}
		if eventType != "" {
			if e, ok := row["eventType"].(string); !ok || e != eventType {
				continue
			}
		}
		if !olderThan.IsZero() {
			if at, ok := row["failedAt"].(time.Time); ok && at.After(olderThan) {
				continue
			}
		}
		out = append(out, row)
	}
	return out, "", nil
}

func (m *Memory) RequeueWebhookDLQ(ctx context.Context, tenantID, id string) error {
	return m.RetryWebhookDelivery(ctx, tenantID, id)
}

func (m *Memory) RequeueWebhookDLQBulk(ctx context.Context, tenantID string, ids []string) error {
	for _, id := range ids {
		if err := m.RetryWebhookDelivery(ctx, tenantID, id); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) WaveStats(ctx context.Context, tenantID string, since time.Time) (map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	waves, onTime, total := 0, 0, 0
	byStatus := map[string]int{}
	for _, id := range m.wavesTen[tenantID] {
		rec := m.waves[id]
		if !since.IsZero() && rec.CreatedAt.Before(since) {
			continue
		}
		waves++
		total += rec.Result.Metrics.TotalOrders
		onTime += rec.Result.Metrics.OnTimeOrders
		byStatus[string(rec.Result.Status)]++
	}
	pct := 0.0
	if total > 0 {
		pct = 100 * float64(onTime) / float64(total)
	}
	return map[string]any{"waves": waves, "orders": total, "onTimeOrders": onTime, "onTimePct": pct, "byStatus": byStatus}, nil
}

// helper: iterate delivery IDs by tenant order
func (m *Memory) iterDeliveryIDs() []string {
	ids := []string{}
	for _, lst := range m.deliveriesByTenant {
		ids = append(ids, lst...)
	}
	return ids
}
