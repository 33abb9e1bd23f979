package events

import (
	"encoding/json"
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	h := NewHub(10)

	ch, cancel := h.Subscribe()
	defer cancel()

	h.Publish(TypeEventReceived, RecordData{EventID: "e1", Source: "apim", EventType: "AssetRequest", Status: "received"})

	select {
	case ev := <-ch:
		if ev.Type != TypeEventReceived {
			t.Errorf("expected type %q, got %q", TypeEventReceived, ev.Type)
		}
		var data RecordData
		if err := json.Unmarshal(ev.Data, &data); err != nil {
			t.Fatalf("unmarshal data: %v", err)
		}
		if data.EventID != "e1" || data.Source != "apim" {
			t.Errorf("unexpected payload: %+v", data)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestSubscribeCancel(t *testing.T) {
	h := NewHub(10)

	ch, cancel := h.Subscribe()
	cancel()

	if _, ok := <-ch; ok {
		t.Error("expected channel closed after cancel")
	}

	// Publishing after cancel must not panic.
	h.Publish(TypeEventProcessed, nil)
}

func TestSnapshotSince(t *testing.T) {
	h := NewHub(10)

	for i := 0; i < 5; i++ {
		h.Publish(TypeEventReceived, nil)
	}

	all := h.SnapshotSince(0)
	if len(all) != 5 {
		t.Fatalf("expected 5 events, got %d", len(all))
	}

	tail := h.SnapshotSince(all[2].ID)
	if len(tail) != 2 {
		t.Fatalf("expected 2 events after id %d, got %d", all[2].ID, len(tail))
	}
	if tail[0].ID != all[3].ID {
		t.Errorf("expected snapshot to start at id %d, got %d", all[3].ID, tail[0].ID)
	}
}

func TestRingOverwrite(t *testing.T) {
	h := NewHub(3)

	for i := 0; i < 5; i++ {
		h.Publish(TypeEventIgnored, nil)
	}

	all := h.SnapshotSince(0)
	if len(all) != 3 {
		t.Fatalf("expected ring capped at 3, got %d", len(all))
	}
	if all[0].ID != 3 || all[2].ID != 5 {
		t.Errorf("expected ids 3..5 after overwrite, got %d..%d", all[0].ID, all[2].ID)
	}
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	h := NewHub(10)

	// Never drained: the buffered channel fills and further sends drop.
	_, cancel := h.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 300; i++ {
			h.Publish(TypeEventReceived, nil)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on slow subscriber")
	}
}
