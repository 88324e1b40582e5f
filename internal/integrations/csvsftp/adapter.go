package csvsftp

import (
	"encoding/csv"
	"strconv"
	"strings"

	"wavesched/internal/integrations"
)

// Adapter parses CSV order drops fetched over SFTP. Expected columns:
// externalRef, customerRef, priority, deadline, skuRef, quantity; one row
// per order line, rows for the same order contiguous.
type Adapter struct{}

func (a Adapter) Name() string { return "csv-sftp" }

func (a Adapter) Authenticate(cfg map[string]any) (integrations.AuthState, error) {
	return integrations.AuthState{Method: "sftp", Token: "keyref://example"}, nil
}

func (a Adapter) FetchOrders(since string, cursor string) (integrations.OrderBatch, error) {
	// Placeholder: real impl lists files by mtime > since and parses each.
	return integrations.OrderBatch{}, nil
}

// ParseCSV decodes one order drop into import-side orders.
func (a Adapter) ParseCSV(data string) ([]integrations.Order, error) {
	r := csv.NewReader(strings.NewReader(data))
	rows, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	var out []integrations.Order
	byRef := map[string]int{}
	for i, row := range rows {
		if i == 0 && strings.EqualFold(row[0], "externalRef") {
			continue
		}
		if len(row) < 6 {
			continue
		}
		ref := row[0]
		idx, ok := byRef[ref]
		if !ok {
			prio, _ := strconv.Atoi(row[2])
			out = append(out, integrations.Order{
				ExternalRef: ref,
				CustomerRef: row[1],
				Priority:    prio,
				Deadline:    row[3],
			})
			idx = len(out) - 1
			byRef[ref] = idx
		}
		qty, _ := strconv.Atoi(row[5])
		out[idx].Items = append(out[idx].Items, integrations.Item{SKURef: row[4], Quantity: qty})
	}
	return out, nil
}

func (a Adapter) AckOrders(ids []string) error { return nil }

func (a Adapter) MapStatus(ext integrations.ExternalStatus) integrations.InternalEvent {
	typ := "created"
	if strings.EqualFold(ext.Code, "SHIPPED") {
		typ = "shipped"
	}
	return integrations.InternalEvent{Type: typ, Payload: map[string]any{"code": ext.Code}}
}

func (a Adapter) Webhooks() integrations.WebhookInfo {
	return integrations.WebhookInfo{Events: []string{}, Verify: func(sig string, body []byte) bool { return true }}
}
