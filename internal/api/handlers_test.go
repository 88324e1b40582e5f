package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"wavesched/internal/model"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")
	s, err := NewServer()
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return s
}

func testWaveRequest(orders int) model.WaveRequest {
	start := time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC)
	req := model.WaveRequest{
		ReferenceStart: start,
		TimeLimitSec:   1,
		SKUs: []model.SKU{
			{ID: "sku-a", Zone: 1, PickTimeMin: 2, PackTimeMin: 1, VolumeCuft: 0.5, WeightLbs: 3},
			{ID: "sku-b", Zone: 2, PickTimeMin: 3, PackTimeMin: 1.5, VolumeCuft: 1, WeightLbs: 8},
		},
		Workers: []model.Worker{
			{ID: "w1", Name: "Ada", HourlyRate: 22, MaxHoursPerDay: 8, Skills: []model.Skill{
				model.SkillPicking, model.SkillConsolidation, model.SkillPacking,
				model.SkillLabeling, model.SkillStaging, model.SkillShipping,
			}},
			{ID: "w2", Name: "Lin", HourlyRate: 20, MaxHoursPerDay: 8, Skills: []model.Skill{
				model.SkillPicking, model.SkillConsolidation, model.SkillPacking,
				model.SkillLabeling, model.SkillStaging, model.SkillShipping,
			}},
		},
		Equipment: []model.Equipment{
			{ID: "cart-1", Type: model.EquipPickCart, Capacity: 2, HourlyCost: 2},
			{ID: "pack-1", Type: model.EquipPackingStation, Capacity: 2, HourlyCost: 3},
			{ID: "print-1", Type: model.EquipLabelPrinter, Capacity: 2, HourlyCost: 1},
			{ID: "dock-1", Type: model.EquipDockDoor, Capacity: 2, HourlyCost: 4},
		},
	}
	for i := 0; i < orders; i++ {
		req.Orders = append(req.Orders, model.Order{
			ID:               "o" + string(rune('1'+i)),
			CustomerID:       "c1",
			Priority:         3,
			CreatedAt:        start,
			ShippingDeadline: start.Add(12 * time.Hour),
			Items:            []model.OrderItem{{SKUID: "sku-a", Quantity: 2}, {SKUID: "sku-b", Quantity: 1}},
		})
	}
	return req
}

func postJSON(t *testing.T, h http.HandlerFunc, path string, body any, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	h(rr, req)
	return rr
}

func TestHealthReady(t *testing.T) {
	s := newTestServer(t)
	rr := httptest.NewRecorder()
	s.HealthHandler(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != 200 {
		t.Fatalf("health: got %d", rr.Code)
	}
	rr = httptest.NewRecorder()
	s.ReadyHandler(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != 200 {
		t.Fatalf("ready: got %d", rr.Code)
	}
}

func TestScheduleWaveAndFetch(t *testing.T) {
	s := newTestServer(t)
	hdr := map[string]string{"X-Tenant-Id": "t_test", "X-Role": "supervisor"}
	rr := postJSON(t, s.WaveScheduleHandler, "/v1/waves/schedule", testWaveRequest(3), hdr)
	if rr.Code != 200 {
		t.Fatalf("schedule: %d body=%s", rr.Code, rr.Body.String())
	}
	var res model.WaveResult
	if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.WaveID == "" {
		t.Fatal("missing waveId")
	}
	if len(res.Schedules) != 3 {
		t.Fatalf("want 3 schedules, got %d", len(res.Schedules))
	}

	// GET /v1/waves/{id}
	rr = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/waves/"+res.WaveID, nil)
	req.Header.Set("X-Tenant-Id", "t_test")
	s.WaveByIDHandler(rr, req)
	if rr.Code != 200 {
		t.Fatalf("get wave: %d", rr.Code)
	}
	var rec model.WaveRecord
	if err := json.Unmarshal(rr.Body.Bytes(), &rec); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if rec.Algo != "optimizer" || rec.OrderCount != 3 {
		t.Fatalf("unexpected record: %+v", rec)
	}

	// GET /v1/waves/{id}/schedules
	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/v1/waves/"+res.WaveID+"/schedules", nil)
	req.Header.Set("X-Tenant-Id", "t_test")
	s.WaveByIDHandler(rr, req)
	if rr.Code != 200 {
		t.Fatalf("get schedules: %d", rr.Code)
	}

	// GET /v1/waves list
	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/v1/waves?limit=10", nil)
	req.Header.Set("X-Tenant-Id", "t_test")
	s.WavesIndexHandler(rr, req)
	if rr.Code != 200 {
		t.Fatalf("list waves: %d", rr.Code)
	}
	var list struct {
		Items []model.WaveSummary `json:"items"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Items) != 1 {
		t.Fatalf("want 1 wave, got %d", len(list.Items))
	}

	// Run metrics should exist for the optimizer path
	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/v1/waves/"+res.WaveID+"/metrics", nil)
	req.Header.Set("X-Tenant-Id", "t_test")
	s.WaveByIDHandler(rr, req)
	if rr.Code != 200 {
		t.Fatalf("wave metrics: %d", rr.Code)
	}
}

func TestScheduleRejectsWorkerRole(t *testing.T) {
	s := newTestServer(t)
	hdr := map[string]string{"X-Tenant-Id": "t_test", "X-Role": "worker"}
	rr := postJSON(t, s.WaveScheduleHandler, "/v1/waves/schedule", testWaveRequest(1), hdr)
	if rr.Code != 403 {
		t.Fatalf("want 403, got %d", rr.Code)
	}
}

func TestScheduleRejectsInvalidRequest(t *testing.T) {
	s := newTestServer(t)
	hdr := map[string]string{"X-Tenant-Id": "t_test", "X-Role": "admin"}
	req := testWaveRequest(1)
	req.Orders[0].Priority = 9
	rr := postJSON(t, s.WaveScheduleHandler, "/v1/waves/schedule", req, hdr)
	if rr.Code != 400 {
		t.Fatalf("want 400, got %d", rr.Code)
	}
	var p Problem
	if err := json.Unmarshal(rr.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode problem: %v", err)
	}
	if p.Status != 400 || p.Title == "" {
		t.Fatalf("bad problem doc: %+v", p)
	}
}

func TestBaselineWave(t *testing.T) {
	s := newTestServer(t)
	hdr := map[string]string{"X-Tenant-Id": "t_test", "X-Role": "admin"}
	rr := postJSON(t, s.WaveBaselineHandler, "/v1/waves/baseline", testWaveRequest(2), hdr)
	if rr.Code != 200 {
		t.Fatalf("baseline: %d body=%s", rr.Code, rr.Body.String())
	}
	var res model.WaveResult
	if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Status != model.StatusBaseline {
		t.Fatalf("want BASELINE, got %s", res.Status)
	}
	// Baseline waves filter out of the optimizer listing by status
	rr2 := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/waves?status=BASELINE", nil)
	req.Header.Set("X-Tenant-Id", "t_test")
	s.WavesIndexHandler(rr2, req)
	var list struct {
		Items []model.WaveSummary `json:"items"`
	}
	_ = json.Unmarshal(rr2.Body.Bytes(), &list)
	if len(list.Items) != 1 || list.Items[0].Algo != "baseline" {
		t.Fatalf("baseline listing: %+v", list.Items)
	}
}

func TestScheduleEnqueuesWebhook(t *testing.T) {
	s := newTestServer(t)
	hdr := map[string]string{"X-Tenant-Id": "t_test", "X-Role": "admin"}

	sub := map[string]any{"url": "https://example.invalid/webhook", "events": []string{"wave.scheduled", "wave.fallback"}, "secret": "shh"}
	rr := postJSON(t, s.SubscriptionsHandler, "/v1/subscriptions", sub, hdr)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create sub: %d", rr.Code)
	}

	rr = postJSON(t, s.WaveScheduleHandler, "/v1/waves/schedule", testWaveRequest(1), hdr)
	if rr.Code != 200 {
		t.Fatalf("schedule: %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/admin/webhook-deliveries?limit=5", nil)
	req.Header.Set("X-Tenant-Id", "t_test")
	req.Header.Set("X-Role", "admin")
	s.WebhookDeliveriesHandler(rr, req)
	if rr.Code != 200 {
		t.Fatalf("deliveries: %d", rr.Code)
	}
	var dres struct {
		Items []map[string]any `json:"items"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &dres); err != nil {
		t.Fatalf("decode deliveries: %v", err)
	}
	if len(dres.Items) == 0 {
		t.Fatalf("expected at least one delivery")
	}
}

func TestSchedulerConfigOverlay(t *testing.T) {
	s := newTestServer(t)
	hdr := map[string]string{"X-Tenant-Id": "t_test", "X-Role": "admin"}

	// Defaults only at first
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/scheduler/config", nil)
	req.Header.Set("X-Tenant-Id", "t_test")
	s.SchedulerConfigHandler(rr, req)
	if rr.Code != 200 {
		t.Fatalf("config: %d", rr.Code)
	}
	var res struct {
		Defaults map[string]any `json:"defaults"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := res.Defaults["geometry"]; !ok {
		t.Fatalf("missing geometry defaults: %v", res.Defaults)
	}

	// PUT tenant override via admin endpoint
	put := map[string]any{"config": map[string]any{"horizon": map[string]any{"slotMinutes": 10}}}
	b, _ := json.Marshal(put)
	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPut, "/v1/admin/scheduler/config", bytes.NewReader(b))
	req.Header.Set("X-Tenant-Id", "t_test")
	req.Header.Set("X-Role", "admin")
	s.AdminSchedulerConfigHandler(rr, req)
	if rr.Code != 200 {
		t.Fatalf("put config: %d", rr.Code)
	}

	// Effective config now shows the override
	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/v1/scheduler/config", nil)
	req.Header.Set("X-Tenant-Id", "t_test")
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	s.SchedulerConfigHandler(rr, req)
	_ = json.Unmarshal(rr.Body.Bytes(), &res)
	h, _ := res.Defaults["horizon"].(map[string]any)
	if h == nil || h["slotMinutes"] != float64(10) {
		t.Fatalf("override not applied: %v", res.Defaults["horizon"])
	}
}

func TestWalkingMatrixRecomputeAndList(t *testing.T) {
	s := newTestServer(t)
	hdr := map[string]string{"X-Tenant-Id": "t_test", "X-Role": "supervisor"}
	body := map[string]any{"bins": []model.Bin{
		{ID: "A1", X: 0, Y: 0, Zone: 1, Level: 0},
		{ID: "B1", X: 100, Y: 50, Zone: 1, Level: 0},
		{ID: "C1", X: 300, Y: 20, Zone: 2, Level: 1},
	}}
	rr := postJSON(t, s.WalkingMatrixRecomputeHandler, "/v1/walking-matrix/recompute", body, hdr)
	if rr.Code != 200 {
		t.Fatalf("recompute: %d body=%s", rr.Code, rr.Body.String())
	}
	var res map[string]any
	_ = json.Unmarshal(rr.Body.Bytes(), &res)
	if res["entries"] != float64(9) {
		t.Fatalf("want 9 matrix entries for 3 bins, got %v", res["entries"])
	}

	rr = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/walking-matrix?limit=4", nil)
	req.Header.Set("X-Tenant-Id", "t_test")
	s.WalkingMatrixHandler(rr, req)
	if rr.Code != 200 {
		t.Fatalf("list matrix: %d", rr.Code)
	}
	var list struct {
		Items      []model.WalkingTimeEntry `json:"items"`
		NextCursor string                   `json:"nextCursor"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list.Items) != 4 || list.NextCursor == "" {
		t.Fatalf("paging: items=%d next=%q", len(list.Items), list.NextCursor)
	}
}

func TestWalkingMatrixRecomputeRejectsDuplicates(t *testing.T) {
	s := newTestServer(t)
	hdr := map[string]string{"X-Tenant-Id": "t_test", "X-Role": "admin"}
	body := map[string]any{"bins": []model.Bin{{ID: "A1"}, {ID: "A1"}}}
	rr := postJSON(t, s.WalkingMatrixRecomputeHandler, "/v1/walking-matrix/recompute", body, hdr)
	if rr.Code != 400 {
		t.Fatalf("want 400, got %d", rr.Code)
	}
}

func TestWaveStats(t *testing.T) {
	s := newTestServer(t)
	hdr := map[string]string{"X-Tenant-Id": "t_test", "X-Role": "admin"}
	rr := postJSON(t, s.WaveScheduleHandler, "/v1/waves/schedule", testWaveRequest(2), hdr)
	if rr.Code != 200 {
		t.Fatalf("schedule: %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/admin/waves/stats", nil)
	req.Header.Set("X-Tenant-Id", "t_test")
	req.Header.Set("X-Role", "admin")
	s.WaveStatsHandler(rr, req)
	if rr.Code != 200 {
		t.Fatalf("stats: %d", rr.Code)
	}
	var stats map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats["waves"] != float64(1) {
		t.Fatalf("want 1 wave in stats, got %v", stats["waves"])
	}
}

// sseRecorder is a minimal ResponseWriter that implements http.Flusher
// and captures writes for SSE tests.
type sseRecorder struct {
	hdr  http.Header
	buf  bytes.Buffer
	code int
}

func (r *sseRecorder) Header() http.Header {
	if r.hdr == nil {
		r.hdr = http.Header{}
	}
	return r.hdr
}
func (r *sseRecorder) WriteHeader(c int)           { r.code = c }
func (r *sseRecorder) Write(p []byte) (int, error) { return r.buf.Write(p) }
func (r *sseRecorder) Flush()                      {}

func TestWaveEventsSSE(t *testing.T) {
	s := newTestServer(t)

	sseReq := httptest.NewRequest(http.MethodGet, "/v1/waves/events/stream", nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	sseReq = sseReq.WithContext(ctx)
	sseReq.Header.Set("X-Tenant-Id", "t_test")
	sseReq.Header.Set("X-Role", "admin")

	rec := &sseRecorder{}
	done := make(chan struct{})
	go func() {
		s.WaveByIDHandler(rec, sseReq)
		close(done)
	}()

	// Give handler time to subscribe and send heartbeat
	time.Sleep(50 * time.Millisecond)
	s.Broker.Publish("t_test", Event{Type: "wave.scheduled", Data: map[string]any{"waveId": "w1"}})

	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		if bytes.Contains(rec.buf.Bytes(), []byte("event: wave.scheduled")) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if !bytes.Contains(rec.buf.Bytes(), []byte("event: wave.scheduled")) {
		t.Fatalf("SSE did not contain expected event. Body: %s", rec.buf.String())
	}
	cancel()
	select {
	case <-done:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("handler did not exit after cancel")
	}
}
