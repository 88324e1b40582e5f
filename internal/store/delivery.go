package store

// WebhookDelivery is one queued outbound event delivery. Secret is the
// subscription's HMAC key at enqueue time; rotating a subscription secret
// does not affect already-queued deliveries.
type WebhookDelivery struct {
	ID             string
	TenantID       string
	SubscriptionID string
	EventType      string
	URL            string
	Secret         string
	Payload        []byte
	Status         string
	Attempts       int
}
