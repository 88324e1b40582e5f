package api

import (
	"testing"
	"time"
)

func TestBrokerPublishSubscribe(t *testing.T) {
	b := NewBroker()
	topic := "t_demo"
	ch := b.Subscribe(topic)
	defer func() { recover() }() // ignore close panic if already closed

	evt := Event{Type: "wave.scheduled", Data: map[string]any{"waveId": "w1"}}
	b.Publish(topic, evt)

	select {
	case got := <-ch:
		if got.Type != evt.Type {
			t.Fatalf("got type %s, want %s", got.Type, evt.Type)
		}
		if got.Data["waveId"].(string) != "w1" {
			t.Fatalf("bad payload: %+v", got.Data)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout waiting for event")
	}

	b.Unsubscribe(topic, ch)
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("channel should be closed after unsubscribe")
		}
	case <-time.After(50 * time.Millisecond):
		// acceptable if already drained and closed
	}
}

func TestBrokerTopicIsolation(t *testing.T) {
	b := NewBroker()
	chA := b.Subscribe("tenant-a")
	chB := b.Subscribe("tenant-b")
	defer b.Unsubscribe("tenant-a", chA)
	defer b.Unsubscribe("tenant-b", chB)

	b.Publish("tenant-a", Event{Type: "wave.baseline", Data: map[string]any{}})

	select {
	case <-chA:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("subscriber on published topic got nothing")
	}
	select {
	case <-chB:
		t.Fatal("event leaked across topics")
	case <-time.After(50 * time.Millisecond):
	}
}
