package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestWaveEventsWSSubscribeAndReceive(t *testing.T) {
	s := newTestServer(t)
	ts := httptest.NewServer(http.HandlerFunc(s.WaveEventsWSHandler))
	defer ts.Close()

	hdr := http.Header{"X-Tenant-Id": {"t_ws"}, "X-Role": {"admin"}}
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), hdr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer func() { _ = conn.Close() }()

	if err := conn.WriteJSON(wsMessage{Type: "connection_init"}); err != nil {
		t.Fatalf("init: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ack wsMessage
	if err := conn.ReadJSON(&ack); err != nil || ack.Type != "connection_ack" {
		t.Fatalf("ack = %+v, err %v", ack, err)
	}

	sub := wsMessage{Type: "subscribe", ID: "1", Payload: json.RawMessage(`{"events":["wave.scheduled"]}`)}
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	// Let the server register the subscription before publishing.
	time.Sleep(50 * time.Millisecond)
	s.Broker.Publish("t_ws", Event{Type: "wave.fallback", Data: map[string]any{"waveId": "skip"}})
	s.Broker.Publish("t_ws", Event{Type: "wave.scheduled", Data: map[string]any{"waveId": "wv1"}})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		if msg.Type != "next" {
			continue
		}
		var body struct {
			Type string         `json:"type"`
			Data map[string]any `json:"data"`
		}
		if err := json.Unmarshal(msg.Payload, &body); err != nil {
			t.Fatalf("payload: %v", err)
		}
		if body.Type != "wave.scheduled" || body.Data["waveId"] != "wv1" {
			t.Fatalf("unexpected event %+v; the filter should drop wave.fallback", body)
		}
		break
	}
}
