package integrations

// OrderSourceAdapter defines the minimal interface for upstream WMS/OMS
// integrations that feed orders into waves.
type OrderSourceAdapter interface {
	Name() string
	Authenticate(cfg map[string]any) (AuthState, error)
	FetchOrders(since string, cursor string) (OrderBatch, error)
	AckOrders(ids []string) error
	MapStatus(ext ExternalStatus) InternalEvent
	Webhooks() WebhookInfo
}

type AuthState struct {
	Method string
	Token  string
}

type OrderBatch struct {
	Orders []Order
	Cursor string
}

// Order is the import-side shape before enrichment against the SKU catalog.
type Order struct {
	ExternalRef string
	CustomerRef string
	Priority    int
	Deadline    string
	Items       []Item
}

type Item struct {
	SKURef   string
	Quantity int
}

type ExternalStatus struct {
	Code string
}

type InternalEvent struct {
	Type    string
	Payload map[string]any
}

type WebhookInfo struct {
	Events []string
	Verify func(sig string, body []byte) bool
}
