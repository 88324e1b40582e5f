package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"wavesched/internal/model"
)

type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// MigrateDir applies every .sql file in dir in lexical order. Files are
// expected to be idempotent (CREATE TABLE IF NOT EXISTS style).
func (p *Postgres) MigrateDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	names := []string{}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, name := range names {
		body, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		if _, err := p.db.Exec(string(body)); err != nil {
			return fmt.Errorf("migrate %s: %w", name, err)
		}
	}
	return nil
}

// SaveWave upserts the full record. Result is stored as JSONB; list and
// stats queries read the duplicated summary columns instead of the blob.
func (p *Postgres) SaveWave(ctx context.Context, rec model.WaveRecord) error {
	body, err := json.Marshal(rec.Result)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `INSERT INTO waves (id, tenant_id, algo, status, order_count, worker_count, on_time_pct, makespan_min, objective_value, result, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
        ON CONFLICT (id) DO UPDATE SET status=$4, on_time_pct=$7, makespan_min=$8, objective_value=$9, result=$10`,
		rec.ID, rec.TenantID, rec.Algo, string(rec.Result.Status), rec.OrderCount, rec.WorkerCount,
		rec.Result.Metrics.OnTimePct, rec.Result.Metrics.MakespanMin, rec.Result.Metrics.ObjectiveValue, body, rec.CreatedAt)
	return err
}

func (p *Postgres) GetWave(ctx context.Context, tenantID, waveID string) (model.WaveRecord, error) {
	var rec model.WaveRecord
	var body []byte
	row := p.db.QueryRowContext(ctx, `SELECT id::text, algo, order_count, worker_count, result, created_at FROM waves WHERE tenant_id=$1 AND id=$2`, tenantID, waveID)
	if err := row.Scan(&rec.ID, &rec.Algo, &rec.OrderCount, &rec.WorkerCount, &body, &rec.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, ErrNotFound
		}
		return rec, err
	}
	rec.TenantID = tenantID
	if err := json.Unmarshal(body, &rec.Result); err != nil {
		return rec, err
	}
	return rec, nil
}

func (p *Postgres) ListWaves(ctx context.Context, tenantID, status, cursor string, limit int) ([]model.WaveSummary, string, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	base := `SELECT id::text, algo, status, created_at, order_count, on_time_pct, makespan_min, objective_value FROM waves WHERE tenant_id=$1`
	args := []any{tenantID}
	idx := 2
	if status != "" {
		base += ` AND status=$` + fmt.Sprint(idx)
		args = append(args, status)
		idx++
	}
	if cursor != "" {
		base += ` AND id::text > $` + fmt.Sprint(idx)
		args = append(args, cursor)
		idx++
	}
	base += ` ORDER BY id LIMIT $` + fmt.Sprint(idx)
	args = append(args, limit)
	rows, err := p.db.QueryContext(ctx, base, args...)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []model.WaveSummary{}
	var last string
	for rows.Next() {
		var s model.WaveSummary
		if err := rows.Scan(&s.ID, &s.Algo, &s.Status, &s.CreatedAt, &s.OrderCount, &s.OnTimePct, &s.MakespanMin, &s.ObjectiveVal); err != nil {
			return nil, "", err
		}
		out = append(out, s)
		last = s.ID
	}
	next := ""
	if len(out) == limit {
		next = last
	}
	return out, next, nil
}

func (p *Postgres) GetWaveSchedules(ctx context.Context, tenantID, waveID string) ([]model.OrderSchedule, error) {
	rec, err := p.GetWave(ctx, tenantID, waveID)
	if err != nil {
		return nil, err
	}
	return rec.Result.Schedules, nil
}

// SaveWalkingMatrix replaces the tenant's matrix in one transaction.
func (p *Postgres) SaveWalkingMatrix(ctx context.Context, tenantID string, entries []model.WalkingTimeEntry) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `DELETE FROM walking_matrix WHERE tenant_id=$1`, tenantID); err != nil {
		return err
	}
	for _, e := range entries {
		if _, err := tx.ExecContext(ctx, `INSERT INTO walking_matrix (tenant_id, from_bin, to_bin, distance_feet, time_min) VALUES ($1,$2,$3,$4,$5)`,
			tenantID, e.FromBin, e.ToBin, e.DistanceFeet, e.TimeMin); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (p *Postgres) ListWalkingMatrix(ctx context.Context, tenantID, cursor string, limit int) ([]model.WalkingTimeEntry, string, error) {
	if limit <= 0 || limit > 10000 {
		limit = 1000
	}
	var rows *sql.Rows
	var err error
	if cursor != "" {
		rows, err = p.db.QueryContext(ctx, `SELECT from_bin, to_bin, distance_feet, time_min FROM walking_matrix WHERE tenant_id=$1 AND from_bin || '/' || to_bin > $2 ORDER BY from_bin, to_bin LIMIT $3`, tenantID, cursor, limit)
	} else {
		rows, err = p.db.QueryContext(ctx, `SELECT from_bin, to_bin, distance_feet, time_min FROM walking_matrix WHERE tenant_id=$1 ORDER BY from_bin, to_bin LIMIT $2`, tenantID, limit)
	}
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []model.WalkingTimeEntry{}
	var last string
	for rows.Next() {
		var e model.WalkingTimeEntry
		if err := rows.Scan(&e.FromBin, &e.ToBin, &e.DistanceFeet, &e.TimeMin); err != nil {
			return nil, "", err
		}
		out = append(out, e)
		last = e.FromBin + "/" + e.ToBin
	}
	next := ""
	if len(out) == limit {
		next = last
	}
	return out, next, nil
}

func (p *Postgres) SaveRunMetrics(ctx context.Context, tenantID, waveID, algo string, metrics map[string]any) error {
	id := uuid.New().String()
	body, err := json.Marshal(metrics)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `INSERT INTO run_metrics (id, tenant_id, wave_id, algo, metrics)
        VALUES ($1,$2,$3,$4,$5)
        ON CONFLICT (tenant_id, wave_id, algo) DO UPDATE SET metrics=$5, created_at=now()`,
		id, tenantID, waveID, algo, body)
	return err
}

func (p *Postgres) ListRunMetrics(ctx context.Context, tenantID, waveID, algo string) ([]map[string]any, error) {
	base := `SELECT algo, metrics FROM run_metrics WHERE tenant_id=$1 AND wave_id=$2`
	args := []any{tenantID, waveID}
	if algo != "" {
		base += ` AND algo=$3`
		args = append(args, algo)
	}
	rows, err := p.db.QueryContext(ctx, base, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []map[string]any{}
	for rows.Next() {
		var a string
		var body []byte
		if err := rows.Scan(&a, &body); err != nil {
			return nil, err
		}
		item := map[string]any{}
		if err := json.Unmarshal(body, &item); err != nil {
			return nil, err
		}
		item["algo"] = a
		out = append(out, item)
	}
	return out, nil
}

func (p *Postgres) SaveRunWeights(ctx context.Context, tenantID, waveID, algo string, snaps []map[string]any) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, s := range snaps {
		id := uuid.New().String()
		rem, _ := json.Marshal(s["removal"])
		ins, _ := json.Marshal(s["insertion"])
		if _, err := tx.ExecContext(ctx, `INSERT INTO run_metrics_weights (id, tenant_id, wave_id, algo, iteration, removal_weights, insertion_weights)
            VALUES ($1,$2,$3,$4,$5,$6,$7)`, id, tenantID, waveID, algo, s["iteration"], rem, ins); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (p *Postgres) ListRunWeights(ctx context.Context, tenantID, waveID, algo string) ([]map[string]any, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT iteration, removal_weights, insertion_weights FROM run_metrics_weights WHERE tenant_id=$1 AND wave_id=$2 AND algo=$3 ORDER BY iteration`, tenantID, waveID, algo)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []map[string]any{}
	for rows.Next() {
		var iter int
		var rem, ins any
		if err := rows.Scan(&iter, &rem, &ins); err != nil {
			return nil, err
		}
		out = append(out, map[string]any{"iteration": iter, "removal": rem, "insertion": ins})
	}
	return out, nil
}

func (p *Postgres) GetSchedulerConfig(ctx context.Context, tenantID string) (map[string]any, error) {
	row := p.db.QueryRowContext(ctx, `SELECT config FROM scheduler_config WHERE tenant_id=$1`, tenantID)
	var js []byte
	if err := row.Scan(&js); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	var cfg map[string]any
	if err := json.Unmarshal(js, &cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (p *Postgres) SaveSchedulerConfig(ctx context.Context, tenantID string, cfg map[string]any) error {
	body, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `INSERT INTO scheduler_config (tenant_id, config, updated_at) VALUES ($1, $2, now())
        ON CONFLICT (tenant_id) DO UPDATE SET config=$2, updated_at=now()`, tenantID, body)
	return err
}

func (p *Postgres) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
	id := uuid.New().String()
	ev, _ := json.Marshal(req.Events)
	_, err := p.db.ExecContext(ctx, `INSERT INTO subscriptions (id, tenant_id, url, events, secret) VALUES ($1,$2,$3,$4,$5)`, id, req.TenantID, req.URL, ev, req.Secret)
	if err != nil {
		return model.Subscription{}, err
	}
	return model.Subscription{ID: id, TenantID: req.TenantID, URL: req.URL, Events: req.Events, Secret: req.Secret}, nil
}

func (p *Postgres) GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id::text, url, secret, events FROM subscriptions WHERE tenant_id=$1 AND events @> $2::jsonb`, tenantID, fmt.Sprintf("[%q]", eventType))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Subscription{}
	for rows.Next() {
		var s model.Subscription
		var events []byte
		if err := rows.Scan(&s.ID, &s.URL, &s.Secret, &events); err != nil {
			return nil, err
		}
		s.TenantID = tenantID
		_ = json.Unmarshal(events, &s.Events)
		out = append(out, s)
	}
	return out, nil
}

func (p *Postgres) ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var rows *sql.Rows
	var err error
	if cursor != "" {
		rows, err = p.db.QueryContext(ctx, `SELECT id::text, url, secret, events FROM subscriptions WHERE tenant_id=$1 AND id::text > $2 ORDER BY id LIMIT $3`, tenantID, cursor, limit)
	} else {
		rows, err = p.db.QueryContext(ctx, `SELECT id::text, url, secret, events FROM subscriptions WHERE tenant_id=$1 ORDER BY id LIMIT $2`, tenantID, limit)
	}
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	var out []model.Subscription
	var last string
	for rows.Next() {
		var s model.Subscription
		var ev []byte
		if err := rows.Scan(&s.ID, &s.URL, &s.Secret, &ev); err != nil {
			return nil, "", err
		}
		s.TenantID = tenantID
		_ = json.Unmarshal(ev, &s.Events)
		out = append(out, s)
		last = s.ID
	}
	next := ""
	if len(out) == limit {
		next = last
	}
	return out, next, nil
}

func (p *Postgres) DeleteSubscription(ctx context.Context, tenantID, id string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE tenant_id=$1 AND id=$2`, tenantID, id)
	return err
}

// Webhook deliveries

func (p *Postgres) EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
	id := uuid.New().String()
	dk := computeDedupKey(payload)
	_, err := p.db.ExecContext(ctx, `INSERT INTO webhook_deliveries (id, tenant_id, subscription_id, event_type, url, secret, payload, status, attempts, next_attempt_at, dedup_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,'pending',0,now(),$8)
        ON CONFLICT (tenant_id, event_type, url, dedup_key) DO NOTHING`, id, tenantID, nullIfEmpty(subscriptionID), eventType, url, nullIfEmpty(secret), payload, dk)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (p *Postgres) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id::text, tenant_id::text, COALESCE(subscription_id::text,''), event_type, url, COALESCE(secret,''), payload, status, attempts
        FROM webhook_deliveries WHERE status IN ('pending','retry') AND next_attempt_at <= now() ORDER BY next_attempt_at ASC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []WebhookDelivery{}
	for rows.Next() {
		var d WebhookDelivery
		if err := rows.Scan(&d.ID, &d.TenantID, &d.SubscriptionID, &d.EventType, &d.URL, &d.Secret, &d.Payload, &d.Status, &d.Attempts); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func (p *Postgres) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	if !success {
		if nextAttemptAt == nil {
			t := time.Now().Add(1 * time.Minute)
			nextAttemptAt = &t
		}
		_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='retry', last_error=$2, next_attempt_at=$3, updated_at=now(), response_code=$4, latency_ms=$5 WHERE id=$1`,
			id, nullIfEmpty(lastError), *nextAttemptAt, responseCode, latencyMs)
		return err
	}
	_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status='delivered', delivered_at=now(), updated_at=now(), response_code=$2, latency_ms=$3 WHERE id=$1`, id, responseCode, latencyMs)
	return err
}

func (p *Postgres) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status='failed', last_error=$2, updated_at=now(), response_code=$3, latency_ms=$4 WHERE id=$1`, id, nullIfEmpty(lastError), responseCode, latencyMs)
	if err != nil {
		return err
	}
	// move to DLQ
	_, err = p.db.ExecContext(ctx, `INSERT INTO webhook_dlq (id, tenant_id, delivery_id, event_type, url, secret, payload, attempts, last_error)
        SELECT gen_random_uuid(), tenant_id, id, event_type, url, secret, payload, attempts+1, $2 FROM webhook_deliveries WHERE id=$1`, id, nullIfEmpty(lastError))
	return err
}

func (p *Postgres) ListWebhookDeliveries(ctx context.Context, tenantID, status, cursor string, limit int) ([]map[string]any, string, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	base := `SELECT id::text, event_type, status, attempts, next_attempt_at, COALESCE(last_error,''), url FROM webhook_deliveries WHERE tenant_id=$1`
	args := []any{tenantID}
	idx := 2
	if status != "" {
		base += ` AND status=$` + fmt.Sprint(idx)
		args = append(args, status)
		idx++
	}
	if cursor != "" {
		base += ` AND id::text > $` + fmt.Sprint(idx)
		args = append(args, cursor)
		idx++
	}
	base += ` ORDER BY id LIMIT $` + fmt.Sprint(idx)
	args = append(args, limit)
	rows, err := p.db.QueryContext(ctx, base, args...)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []map[string]any{}
	var last string
	for rows.Next() {
		var id, typ, st, lastErr, url string
		var attempts int
		var nextAt sql.NullTime
		if err := rows.Scan(&id, &typ, &st, &attempts, &nextAt, &lastErr, &url); err != nil {
			return nil, "", err
		}
		m := map[string]any{"id": id, "eventType": typ, "status": st, "attempts": attempts, "url": url}
		if nextAt.Valid {
			m["nextAttemptAt"] = nextAt.Time
		}
		if lastErr != "" {
			m["lastError"] = lastErr
		}
		out = append(out, m)
		last = id
	}
	next := ""
	if len(out) == limit {
		next = last
	}
	return out, next, nil
}

func (p *Postgres) RetryWebhookDelivery(ctx context.Context, tenantID, id string) error {
	_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status='pending', next_attempt_at=now() WHERE tenant_id=$1 AND id=$2`, tenantID, id)
	return err
}

func (p *Postgres) ListWebhookDLQ(ctx context.Context, tenantID, eventType string, olderThan time.Time, cursor string, limit int) ([]map[string]any, string, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	base := `SELECT id::text, delivery_id::text, event_type, url, COALESCE(last_error,''), attempts, created_at FROM webhook_dlq WHERE tenant_id=$1`
	args := []any{tenantID}
	idx := 2
	if eventType != "" {
		base += ` AND event_type=$` + fmt.Sprint(idx)
		args = append(args, eventType)
		idx++
	}
	if !olderThan.IsZero() {
		base += ` AND created_at < $` + fmt.Sprint(idx)
		args = append(args, olderThan)
		idx++
	}
	if cursor != "" {
		base += ` AND id::text > $` + fmt.Sprint(idx)
		args = append(args, cursor)
		idx++
	}
	base += ` ORDER BY id LIMIT $` + fmt.Sprint(idx)
	args = append(args, limit)
	rows, err := p.db.QueryContext(ctx, base, args...)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []map[string]any{}
	var last string
	for rows.Next() {
		var id, delID, et, url, errStr string
		var attempts int
		var created time.Time
		if err := rows.Scan(&id, &delID, &et, &url, &errStr, &attempts, &created); err != nil {
			return nil, "", err
		}
		out = append(out, map[string]any{"id": id, "deliveryId": delID, "eventType": et, "url": url, "lastError": errStr, "attempts": attempts, "createdAt": created})
		last = id
	}
	next := ""
	if len(out) == limit {
		next = last
	}
	return out, next, nil
}

func (p *Postgres) RequeueWebhookDLQ(ctx context.Context, tenantID, id string) error {
	var delID, et, url, secret string
	var payload []byte
	err := p.db.QueryRowContext(ctx, `SELECT COALESCE(delivery_id::text,''), event_type, url, COALESCE(secret,''), payload FROM webhook_dlq WHERE tenant_id=$1 AND id=$2`, tenantID, id).Scan(&delID, &et, &url, &secret, &payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if _, err := p.EnqueueWebhook(ctx, tenantID, delID, et, url, secret, payload); err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `DELETE FROM webhook_dlq WHERE tenant_id=$1 AND id=$2`, tenantID, id)
	return err
}

func (p *Postgres) RequeueWebhookDLQBulk(ctx context.Context, tenantID string, ids []string) error {
	for _, id := range ids {
		if err := p.RequeueWebhookDLQ(ctx, tenantID, id); err != nil {
			return err
		}
	}
	return nil
}

func (p *Postgres) WaveStats(ctx context.Context, tenantID string, since time.Time) (map[string]any, error) {
	base := `SELECT COUNT(*) AS waves, COALESCE(SUM(order_count),0) AS orders,
        COALESCE(SUM(CASE WHEN status IN ('OPTIMAL','FEASIBLE') THEN 1 ELSE 0 END),0) AS solved,
        COALESCE(SUM(CASE WHEN status='FALLBACK' THEN 1 ELSE 0 END),0) AS fallback,
        COALESCE(AVG(on_time_pct),0) AS on_time_pct,
        COALESCE(AVG(makespan_min),0) AS makespan_min
        FROM waves WHERE tenant_id=$1`
	args := []any{tenantID}
	if !since.IsZero() {
		base += ` AND created_at >= $2`
		args = append(args, since)
	}
	row := p.db.QueryRowContext(ctx, base, args...)
	var waves, orders, solved, fallback int
	var onTimePct, makespan float64
	if err := row.Scan(&waves, &orders, &solved, &fallback, &onTimePct, &makespan); err != nil {
		return nil, err
	}
	return map[string]any{
		"waves":          waves,
		"orders":         orders,
		"solved":         solved,
		"fallback":       fallback,
		"onTimePct":      onTimePct,
		"avgMakespanMin": makespan,
	}, nil
}

func computeDedupKey(payload []byte) string {
	// try to parse JSON and use id
	var m map[string]any
	if json.Unmarshal(payload, &m) == nil {
		if v, ok := m["id"].(string); ok && v != "" {
			return v
		}
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:8])
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
