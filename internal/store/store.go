package store

import (
	"context"
	"errors"
	"time"

	"wavesched/internal/model"
)

// Store is the persistence interface used by the API server.
type Store interface {
	// Waves
	SaveWave(ctx context.Context, rec model.WaveRecord) error
	GetWave(ctx context.Context, tenantID, waveID string) (model.WaveRecord, error)
	ListWaves(ctx context.Context, tenantID, status, cursor string, limit int) (items []model.WaveSummary, nextCursor string, err error)
	GetWaveSchedules(ctx context.Context, tenantID, waveID string) ([]model.OrderSchedule, error)

	// Walking-time matrix
	SaveWalkingMatrix(ctx context.Context, tenantID string, entries []model.WalkingTimeEntry) error
	ListWalkingMatrix(ctx context.Context, tenantID, cursor string, limit int) ([]model.WalkingTimeEntry, string, error)

	// Solver run metrics per wave
	SaveRunMetrics(ctx context.Context, tenantID, waveID, algo string, metrics map[string]any) error
	ListRunMetrics(ctx context.Context, tenantID, waveID, algo string) ([]map[string]any, error)
	SaveRunWeights(ctx context.Context, tenantID, waveID, algo string, snaps []map[string]any) error
	ListRunWeights(ctx context.Context, tenantID, waveID, algo string) ([]map[string]any, error)

	// Scheduler config per tenant
	GetSchedulerConfig(ctx context.Context, tenantID string) (map[string]any, error)
	SaveSchedulerConfig(ctx context.Context, tenantID string, cfg map[string]any) error

	// Subscriptions
	CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error)
	GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error)
	ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error)
	DeleteSubscription(ctx context.Context, tenantID, id string) error

	// Webhook deliveries
	EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error)
	FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error)
	MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error
	FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error
	ListWebhookDeliveries(ctx context.Context, tenantID, status, cursor string, limit int) ([]map[string]any, string, error)
	RetryWebhookDelivery(ctx context.Context, tenantID, id string) error

	// Dead-letter queue
	ListWebhookDLQ(ctx context.Context, tenantID, eventType string, olderThan time.Time, cursor string, limit int) ([]map[string]any, string, error)
	RequeueWebhookDLQ(ctx context.Context, tenantID, id string) error
	RequeueWebhookDLQBulk(ctx context.Context, tenantID string, ids []string) error

	// Aggregates
	WaveStats(ctx context.Context, tenantID string, since time.Time) (map[string]any, error)
}

var ErrNotFound = errors.New("not found")
