// Package main runs a demo WebSocket client for wave events.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func waveBody(prefix string) []byte {
	start := time.Now().UTC().Truncate(time.Hour)
	wave := map[string]any{
		"referenceStart": start.Format(time.RFC3339),
		"timeLimitSec":   2,
		"orders": []map[string]any{{
			"id":               prefix + "-o1",
			"customerId":       "c1",
			"priority":         3,
			"createdAt":        start.Format(time.RFC3339),
			"shippingDeadline": start.Add(8 * time.Hour).Format(time.RFC3339),
			"items":            []map[string]any{{"skuId": "sku-a", "quantity": 2}},
		}},
		"skus": []map[string]any{{
			"id": "sku-a", "zone": 1, "pickTimeMin": 2, "packTimeMin": 1, "volumeCuft": 0.5, "weightLbs": 3,
		}},
		"workers": []map[string]any{{
			"id": "w1", "name": "Ada", "hourlyRate": 22, "maxHoursPerDay": 8,
			"skills": []string{"picking", "consolidation", "packing", "labeling", "staging", "shipping"},
		}},
		"equipment": []map[string]any{
			{"id": "cart-1", "type": "pick_cart", "capacity": 2, "hourlyCost": 2},
			{"id": "pack-1", "type": "packing_station", "capacity": 2, "hourlyCost": 3},
			{"id": "print-1", "type": "label_printer", "capacity": 2, "hourlyCost": 1},
			{"id": "dock-1", "type": "dock_door", "capacity": 2, "hourlyCost": 4},
		},
	}
	b, _ := json.Marshal(wave)
	return b
}

func schedule(base, prefix string) {
	req, _ := http.NewRequest(http.MethodPost, base+"/v1/waves/schedule", bytes.NewReader(waveBody(prefix)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-Id", "t_demo")
	req.Header.Set("X-Role", "admin")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	var res struct {
		WaveID string `json:"waveId"`
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		log.Fatal(err)
	}
	log.Printf("wave %s scheduled: %s", res.WaveID, res.Status)
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	// Connect WS
	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/waves/events/ws"}
	hdr := http.Header{}
	hdr.Set("X-Tenant-Id", "t_demo")
	hdr.Set("X-Role", "admin")
	c, _, err := websocket.DefaultDialer.Dial(u.String(), hdr)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	// connection_init
	if err := c.WriteJSON(wsMessage{Type: "connection_init"}); err != nil {
		log.Fatal(err)
	}
	// subscribe to wave events
	pl, _ := json.Marshal(map[string]any{"events": []string{"wave.scheduled", "wave.fallback"}})
	if err := c.WriteJSON(wsMessage{Type: "subscribe", ID: "1", Payload: pl}); err != nil {
		log.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var m wsMessage
			if err := c.ReadJSON(&m); err != nil {
				log.Printf("read: %v", err)
				return
			}
			log.Printf("WS <- %s: %s", m.Type, string(m.Payload))
		}
	}()

	// Trigger a wave event
	time.Sleep(500 * time.Millisecond)
	schedule(base, "demo")

	// Wait briefly to receive a few messages
	select {
	case <-time.After(2 * time.Second):
	case <-done:
	}
}
