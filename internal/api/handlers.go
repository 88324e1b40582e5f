package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"wavesched/internal/config"
	"wavesched/internal/engine"
	"wavesched/internal/metrics"
	"wavesched/internal/model"
	"wavesched/internal/webhooks"
)

// WaveScheduleHandler handles POST /v1/waves/schedule
func (s *Server) WaveScheduleHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p := s.getPrincipal(r)
	if !p.CanSchedule() {
		writeProblem(w, 403, "Forbidden", "supervisor or admin required", r.URL.Path)
		return
	}
	var req model.WaveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := validateWaveRequest(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid wave request", err.Error(), r.URL.Path)
		return
	}
	if req.TenantID == "" {
		req.TenantID = p.Tenant
	}

	start := time.Now()
	result, met := s.Engine.ScheduleWave(req)
	metrics.ObserveSolve(string(result.Status), time.Since(start))

	rec := model.WaveRecord{
		ID:          result.WaveID,
		TenantID:    req.TenantID,
		Algo:        "optimizer",
		CreatedAt:   time.Now().UTC(),
		OrderCount:  len(req.Orders),
		WorkerCount: len(req.Workers),
		Result:      result,
	}
	if err := s.Store.SaveWave(r.Context(), rec); err != nil {
		writeProblem(w, http.StatusInternalServerError, "Save wave failed", err.Error(), r.URL.Path)
		return
	}
	s.saveSolveMetrics(r.Context(), req.TenantID, result.WaveID, "optimizer", met)

	evtType := webhooks.EventWaveScheduled
	if result.Status == model.StatusFallback {
		evtType = webhooks.EventWaveFallback
		metrics.IncFallback()
	}
	data := map[string]any{
		"waveId":      result.WaveID,
		"status":      string(result.Status),
		"orderCount":  len(req.Orders),
		"onTimePct":   result.Metrics.OnTimePct,
		"makespanMin": result.Metrics.MakespanMin,
	}
	s.Pub.Emit(r.Context(), req.TenantID, evtType, data)
	s.Broker.Publish(req.TenantID, Event{Type: evtType, Data: data})

	writeJSON(w, http.StatusOK, result)
}

// WaveBaselineHandler handles POST /v1/waves/baseline
func (s *Server) WaveBaselineHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p := s.getPrincipal(r)
	if !p.CanSchedule() {
		writeProblem(w, 403, "Forbidden", "supervisor or admin required", r.URL.Path)
		return
	}
	var req model.WaveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := validateWaveRequest(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid wave request", err.Error(), r.URL.Path)
		return
	}
	if req.TenantID == "" {
		req.TenantID = p.Tenant
	}

	result := s.Engine.BaselineWave(req)
	rec := model.WaveRecord{
		ID:          result.WaveID,
		TenantID:    req.TenantID,
		Algo:        "baseline",
		CreatedAt:   time.Now().UTC(),
		OrderCount:  len(req.Orders),
		WorkerCount: len(req.Workers),
		Result:      result,
	}
	if err := s.Store.SaveWave(r.Context(), rec); err != nil {
		writeProblem(w, http.StatusInternalServerError, "Save wave failed", err.Error(), r.URL.Path)
		return
	}

	data := map[string]any{
		"waveId":        result.WaveID,
		"status":        string(result.Status),
		"orderCount":    len(req.Orders),
		"onTimePct":     result.Metrics.OnTimePct,
		"makespanMin":   result.Metrics.MakespanMin,
		"reassignments": len(result.Reassignments),
	}
	s.Pub.Emit(r.Context(), req.TenantID, webhooks.EventWaveBaseline, data)
	s.Broker.Publish(req.TenantID, Event{Type: webhooks.EventWaveBaseline, Data: data})

	writeJSON(w, http.StatusOK, result)
}

// WavesIndexHandler handles GET /v1/waves
func (s *Server) WavesIndexHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/waves" {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	_, tenant := s.withTenant(r)
	status := r.URL.Query().Get("status")
	cursor := r.URL.Query().Get("cursor")
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		fmt.Sscanf(v, "%d", &limit)
	}
	items, next, err := s.Store.ListWaves(r.Context(), tenant, status, cursor, limit)
	if err != nil {
		writeProblem(w, 500, "List waves failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, 200, map[string]any{"items": items, "nextCursor": next})
}

// WaveByIDHandler handles GET /v1/waves/{id}, /{id}/schedules, /{id}/metrics
// and the SSE stream at /v1/waves/events/stream.
func (s *Server) WaveByIDHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/waves/")
	if rest == r.URL.Path || rest == "" {
		writeProblem(w, http.StatusNotFound, "Not Found", "missing id", r.URL.Path)
		return
	}
	parts := strings.Split(rest, "/")
	if parts[0] == "events" && len(parts) > 1 && parts[1] == "stream" {
		s.waveEventsStream(w, r)
		return
	}
	id := parts[0]
	_, tenant := s.withTenant(r)

	if len(parts) > 1 && parts[1] == "schedules" {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		schedules, err := s.Store.GetWaveSchedules(r.Context(), tenant, id)
		if err != nil {
			writeProblem(w, http.StatusNotFound, "Wave not found", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"waveId": id, "schedules": schedules})
		return
	}
	if len(parts) > 1 && parts[1] == "metrics" {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		s.waveMetrics(w, r, tenant, id)
		return
	}

	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	rec, err := s.Store.GetWave(r.Context(), tenant, id)
	if err != nil {
		writeProblem(w, http.StatusNotFound, "Wave not found", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// waveMetrics reports solver run metrics per algo for one wave. Prefers DB
// rows; falls back to the in-process run store for waves solved by this
// replica before the rows landed.
func (s *Server) waveMetrics(w http.ResponseWriter, r *http.Request, tenant, id string) {
	algo := r.URL.Query().Get("algo")
	includeWeights := false
	if v := r.URL.Query().Get("includeWeights"); strings.EqualFold(v, "true") || v == "1" {
		includeWeights = true
	}
	items, err := s.Store.ListRunMetrics(r.Context(), tenant, id, algo)
	if err != nil || len(items) == 0 {
		ms := s.Runs.Get(tenant, id)
		i2 := []map[string]any{}
		for a, m := range ms {
			if algo != "" && a != algo {
				continue
			}
			i2 = append(i2, map[string]any{
				"algo":           a,
				"iterations":     m.Iterations,
				"improvements":   m.Improvements,
				"acceptedWorse":  m.AcceptedWorse,
				"bestCost":       m.BestCost,
				"finalCost":      m.FinalCost,
				"removalSelects": []int{m.RemovalSelects[0], m.RemovalSelects[1]},
				"insertSelects":  []int{m.InsertSelects[0], m.InsertSelects[1]},
			})
		}
		items = i2
	}
	if includeWeights {
		for i := range items {
			a, _ := items[i]["algo"].(string)
			if a == "" {
				continue
			}
			snaps, err := s.Store.ListRunWeights(r.Context(), tenant, id, a)
			if err == nil && len(snaps) > 0 {
				items[i]["weights"] = snaps
			}
		}
	}
	writeJSON(w, 200, map[string]any{"waveId": id, "items": items})
}

// waveEventsStream serves SSE for all wave events of the caller's tenant.
func (s *Server) waveEventsStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	pr := s.getPrincipal(r)
	if !pr.CanSchedule() {
		writeProblem(w, 403, "Forbidden", "supervisor or admin required", r.URL.Path)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeProblem(w, 500, "Streaming unsupported", "", r.URL.Path)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	ch := s.Broker.Subscribe(pr.Tenant)
	defer s.Broker.Unsubscribe(pr.Tenant, ch)
	fmt.Fprintf(w, "event: heartbeat\n")
	fmt.Fprintf(w, "data: {\"tenantId\":\"%s\",\"ts\":\"%s\"}\n\n", pr.Tenant, time.Now().Format(time.RFC3339))
	flusher.Flush()
	notify := r.Context().Done()
	for {
		select {
		case <-notify:
			return
		case evt := <-ch:
			b, _ := json.Marshal(evt.Data)
			fmt.Fprintf(w, "event: %s\n", evt.Type)
			fmt.Fprintf(w, "data: %s\n\n", string(b))
			flusher.Flush()
		case <-time.After(15 * time.Second):
			fmt.Fprintf(w, "event: heartbeat\n")
			fmt.Fprintf(w, "data: {\"tenantId\":\"%s\",\"ts\":\"%s\"}\n\n", pr.Tenant, time.Now().Format(time.RFC3339))
			flusher.Flush()
		}
	}
}

// WalkingMatrixRecomputeHandler handles POST /v1/walking-matrix/recompute
func (s *Server) WalkingMatrixRecomputeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p := s.getPrincipal(r)
	if !p.CanSchedule() {
		writeProblem(w, 403, "Forbidden", "supervisor or admin required", r.URL.Path)
		return
	}
	var req struct {
		Bins []model.Bin `json:"bins"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Bins) == 0 {
		writeProblem(w, http.StatusBadRequest, "Missing bins", "at least one bin required", r.URL.Path)
		return
	}
	seen := map[string]bool{}
	for _, b := range req.Bins {
		if b.ID == "" {
			writeProblem(w, http.StatusBadRequest, "Invalid bin", "bin id required", r.URL.Path)
			return
		}
		if seen[b.ID] {
			writeProblem(w, http.StatusBadRequest, "Invalid bin", "duplicate bin id "+b.ID, r.URL.Path)
			return
		}
		seen[b.ID] = true
	}

	s.Geo.RecomputeAll(req.Bins)
	entries := s.Geo.Matrix()
	metrics.SetWalkingMatrixSize(len(entries))
	if err := s.Store.SaveWalkingMatrix(r.Context(), p.Tenant, entries); err != nil {
		writeProblem(w, http.StatusInternalServerError, "Save matrix failed", err.Error(), r.URL.Path)
		return
	}
	data := map[string]any{"bins": len(req.Bins), "entries": len(entries), "ts": time.Now().UTC().Format(time.RFC3339)}
	s.Pub.Emit(r.Context(), p.Tenant, webhooks.EventMatrixRecomputed, data)
	s.Broker.Publish(p.Tenant, Event{Type: webhooks.EventMatrixRecomputed, Data: data})
	writeJSON(w, http.StatusOK, data)
}

// WalkingMatrixHandler handles GET /v1/walking-matrix
func (s *Server) WalkingMatrixHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/walking-matrix" {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	_, tenant := s.withTenant(r)
	cursor := r.URL.Query().Get("cursor")
	limit := 500
	if v := r.URL.Query().Get("limit"); v != "" {
		fmt.Sscanf(v, "%d", &limit)
	}
	items, next, err := s.Store.ListWalkingMatrix(r.Context(), tenant, cursor, limit)
	if err != nil {
		writeProblem(w, 500, "List matrix failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, 200, map[string]any{"items": items, "nextCursor": next})
}

// SchedulerConfigHandler returns the effective scheduler configuration:
// process defaults overlaid with any tenant overrides.
func (s *Server) SchedulerConfigHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/scheduler/config" || r.Method != http.MethodGet {
		writeProblem(w, 404, "Not Found", "", r.URL.Path)
		return
	}
	defaults := configToMap(s.Cfg)
	p := s.getPrincipal(r)
	cfg, _ := s.Store.GetSchedulerConfig(r.Context(), p.Tenant)
	if cfg != nil {
		for k, v := range cfg {
			defaults[k] = v
		}
	}
	writeJSON(w, 200, map[string]any{"defaults": defaults})
}

// AdminSchedulerConfigHandler gets/sets the per-tenant scheduler overrides.
func (s *Server) AdminSchedulerConfigHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/admin/scheduler/config" {
		writeProblem(w, 404, "Not Found", "", r.URL.Path)
		return
	}
	p := s.getPrincipal(r)
	if !p.IsAdmin() {
		writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path)
		return
	}
	switch r.Method {
	case http.MethodGet:
		cfg, _ := s.Store.GetSchedulerConfig(r.Context(), p.Tenant)
		if cfg == nil {
			cfg = map[string]any{}
		}
		writeJSON(w, 200, map[string]any{"config": cfg})
	case http.MethodPut:
		var body struct {
			Config map[string]any `json:"config"`
		}
		if !decodeBody(w, r, &body) {
			return
		}
		if body.Config == nil {
			writeProblem(w, 400, "Missing config", "", r.URL.Path)
			return
		}
		if err := s.Store.SaveSchedulerConfig(r.Context(), p.Tenant, body.Config); err != nil {
			writeProblem(w, 500, "Save failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, 200, map[string]bool{"ok": true})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// SubscriptionsHandler handles POST/GET /v1/subscriptions
func (s *Server) SubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		p := s.getPrincipal(r)
		if !p.IsAdmin() {
			writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path)
			return
		}
		var req model.SubscriptionRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.URL == "" || len(req.Events) == 0 {
			writeProblem(w, http.StatusBadRequest, "Invalid subscription", "url and events required", r.URL.Path)
			return
		}
		req.TenantID = p.Tenant
		sub, err := s.Store.CreateSubscription(r.Context(), req)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Create subscription failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusCreated, sub)
	case http.MethodGet:
		p := s.getPrincipal(r)
		if !p.IsAdmin() {
			writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path)
			return
		}
		cursor := r.URL.Query().Get("cursor")
		limit := 100
		if v := r.URL.Query().Get("limit"); v != "" {
			fmt.Sscanf(v, "%d", &limit)
		}
		items, next, err := s.Store.ListSubscriptions(r.Context(), p.Tenant, cursor, limit)
		if err != nil {
			writeProblem(w, 500, "List subscriptions failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, 200, map[string]any{"items": items, "nextCursor": next})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// SubscriptionByIDHandler handles DELETE /v1/subscriptions/{id}
func (s *Server) SubscriptionByIDHandler(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.URL.Path, "/v1/subscriptions/") {
		writeProblem(w, 404, "Not Found", "", r.URL.Path)
		return
	}
	if r.Method != http.MethodDelete {
		w.WriteHeader(405)
		return
	}
	p := s.getPrincipal(r)
	if !p.IsAdmin() {
		writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/v1/subscriptions/")
	if err := s.Store.DeleteSubscription(r.Context(), p.Tenant, id); err != nil {
		writeProblem(w, 500, "Delete subscription failed", err.Error(), r.URL.Path)
		return
	}
	w.WriteHeader(204)
}

// WebhookDeliveriesHandler handles GET /v1/admin/webhook-deliveries
func (s *Server) WebhookDeliveriesHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/admin/webhook-deliveries" {
		writeProblem(w, 404, "Not Found", "", r.URL.Path)
		return
	}
	p := s.getPrincipal(r)
	if !p.IsAdmin() {
		writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(405)
		return
	}
	status := r.URL.Query().Get("status")
	cursor := r.URL.Query().Get("cursor")
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		fmt.Sscanf(v, "%d", &limit)
	}
	items, next, err := s.Store.ListWebhookDeliveries(r.Context(), p.Tenant, status, cursor, limit)
	if err != nil {
		writeProblem(w, 500, "List deliveries failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, 200, map[string]any{"items": items, "nextCursor": next})
}

// WebhookDeliveryRetryHandler handles POST /v1/admin/webhook-deliveries/{id}/retry
func (s *Server) WebhookDeliveryRetryHandler(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.URL.Path, "/v1/admin/webhook-deliveries/") || !strings.HasSuffix(r.URL.Path, "/retry") {
		writeProblem(w, 404, "Not Found", "", r.URL.Path)
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(405)
		return
	}
	p := s.getPrincipal(r)
	if !p.IsAdmin() {
		writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path)
		return
	}
	id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/v1/admin/webhook-deliveries/"), "/retry")
	if err := s.Store.RetryWebhookDelivery(r.Context(), p.Tenant, id); err != nil {
		writeProblem(w, 500, "Retry delivery failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, 202, map[string]int{"accepted": 1})
}

// WebhookDLQHandler handles list, single requeue, and bulk requeue under
// /v1/admin/webhook-dlq.
func (s *Server) WebhookDLQHandler(w http.ResponseWriter, r *http.Request) {
	p := s.getPrincipal(r)
	if !p.IsAdmin() {
		writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path)
		return
	}
	if r.URL.Path == "/v1/admin/webhook-dlq" && r.Method == http.MethodGet {
		cursor := r.URL.Query().Get("cursor")
		limit := 100
		if v := r.URL.Query().Get("limit"); v != "" {
			fmt.Sscanf(v, "%d", &limit)
		}
		eventType := r.URL.Query().Get("eventType")
		olderThanHours := 0
		if v := r.URL.Query().Get("olderThanHours"); v != "" {
			fmt.Sscanf(v, "%d", &olderThanHours)
		}
		var older time.Time
		if olderThanHours > 0 {
			older = time.Now().Add(-time.Duration(olderThanHours) * time.Hour)
		}
		items, next, err := s.Store.ListWebhookDLQ(r.Context(), p.Tenant, eventType, older, cursor, limit)
		if err != nil {
			writeProblem(w, 500, "List DLQ failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, 200, map[string]any{"items": items, "nextCursor": next})
		return
	}
	if r.URL.Path == "/v1/admin/webhook-dlq" && r.Method == http.MethodPost {
		var req struct {
			IDs []string `json:"ids"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		if len(req.IDs) == 0 {
			writeProblem(w, 400, "Missing ids", "", r.URL.Path)
			return
		}
		if err := s.Store.RequeueWebhookDLQBulk(r.Context(), p.Tenant, req.IDs); err != nil {
			writeProblem(w, 500, "Bulk requeue failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, 202, map[string]int{"accepted": len(req.IDs)})
		return
	}
	if strings.HasPrefix(r.URL.Path, "/v1/admin/webhook-dlq/") && strings.HasSuffix(r.URL.Path, "/requeue") && r.Method == http.MethodPost {
		id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/v1/admin/webhook-dlq/"), "/requeue")
		if err := s.Store.RequeueWebhookDLQ(r.Context(), p.Tenant, id); err != nil {
			writeProblem(w, 500, "Requeue failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, 202, map[string]int{"accepted": 1})
		return
	}
	writeProblem(w, 404, "Not Found", "", r.URL.Path)
}

// WaveStatsHandler handles GET /v1/admin/waves/stats
func (s *Server) WaveStatsHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/admin/waves/stats" || r.Method != http.MethodGet {
		writeProblem(w, 404, "Not Found", "", r.URL.Path)
		return
	}
	p := s.getPrincipal(r)
	if !p.IsAdmin() {
		writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path)
		return
	}
	sinceHours := 24
	if v := r.URL.Query().Get("sinceHours"); v != "" {
		fmt.Sscanf(v, "%d", &sinceHours)
	}
	since := time.Now().Add(-time.Duration(sinceHours) * time.Hour)
	stats, err := s.Store.WaveStats(r.Context(), p.Tenant, since)
	if err != nil {
		writeProblem(w, 500, "Stats failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, 200, stats)
}

// Health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	// Check DB connectivity when using Postgres store
	type pinger interface{ Ping(ctx context.Context) error }
	if pg, ok := s.Store.(pinger); ok {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		if err := pg.Ping(ctx); err != nil {
			writeProblem(w, 503, "Not Ready", err.Error(), r.URL.Path)
			return
		}
	}
	writeJSON(w, 200, map[string]string{"status": "ready"})
}

// saveSolveMetrics records solver behavior both in the process-local run
// store and durably, including operator weight snapshots.
func (s *Server) saveSolveMetrics(ctx context.Context, tenant, waveID, algo string, m engine.SolveMetrics) {
	s.Runs.Record(tenant, waveID, algo, m)
	row := map[string]any{
		"iterations":     m.Iterations,
		"improvements":   m.Improvements,
		"acceptedWorse":  m.AcceptedWorse,
		"bestCost":       m.BestCost,
		"finalCost":      m.FinalCost,
		"removalSelects": []int{m.RemovalSelects[0], m.RemovalSelects[1]},
		"insertSelects":  []int{m.InsertSelects[0], m.InsertSelects[1]},
	}
	_ = s.Store.SaveRunMetrics(ctx, tenant, waveID, algo, row)
	if len(m.Snapshots) > 0 {
		snaps := make([]map[string]any, 0, len(m.Snapshots))
		for _, sn := range m.Snapshots {
			snaps = append(snaps, map[string]any{
				"iteration": sn.Iteration,
				"removal":   []float64{sn.Removal[0], sn.Removal[1]},
				"insertion": []float64{sn.Insertion[0], sn.Insertion[1]},
			})
		}
		_ = s.Store.SaveRunWeights(ctx, tenant, waveID, algo, snaps)
	}
}

// configToMap flattens the scheduler config into the loose shape used by
// tenant overrides so the two can be merged key for key.
func configToMap(c config.Scheduler) map[string]any {
	return map[string]any{
		"geometry": map[string]any{
			"weightX":               c.Geometry.WeightX,
			"weightY":               c.Geometry.WeightY,
			"weightZ":               c.Geometry.WeightZ,
			"walkingSpeedFeetMin":   c.Geometry.WalkingSpeedFeetMin,
			"zoneChangePenaltyMin":  c.Geometry.ZoneChangePenaltyMin,
			"levelChangePenaltyMin": c.Geometry.LevelChangePenaltyMin,
		},
		"durations": map[string]any{
			"consolidateBaseMin":    c.Durations.ConsolidateBaseMin,
			"consolidatePerItemMin": c.Durations.ConsolidatePerItemMin,
			"labelBaseMin":          c.Durations.LabelBaseMin,
			"labelPerItemMin":       c.Durations.LabelPerItemMin,
			"stageBaseMin":          c.Durations.StageBaseMin,
			"stagePerCuftMin":       c.Durations.StagePerCuftMin,
			"shipBaseMin":           c.Durations.ShipBaseMin,
			"shipPer100LbsMin":      c.Durations.ShipPer100LbsMin,
			"minStageMin":           c.Durations.MinStageMin,
		},
		"objective": map[string]any{
			"deadlineBasePenalty":   c.Objective.DeadlineBasePenalty,
			"laborWeight":           c.Objective.LaborWeight,
			"equipmentWeight":       c.Objective.EquipmentWeight,
			"utilizationWeight":     c.Objective.UtilizationWeight,
			"overtimeMultiplier":    c.Objective.OvertimeMultiplier,
			"premiumCustomerFactor": c.Objective.PremiumCustomerFactor,
		},
		"horizon": map[string]any{
			"slotMinutes":  c.Horizon.SlotMinutes,
			"horizonHours": c.Horizon.HorizonHours,
			"timeLimitSec": c.Horizon.TimeLimitSec,
		},
		"baseline": map[string]any{
			"packQueueThreshold":        c.Baseline.PackQueueThreshold,
			"shipQueueThreshold":        c.Baseline.ShipQueueThreshold,
			"consolidateQueueThreshold": c.Baseline.ConsolidateQueueThreshold,
			"lightLoadAssignments":      c.Baseline.LightLoadAssignments,
		},
	}
}
