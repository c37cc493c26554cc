package progress

import (
	"testing"
)

func TestPublishReachesOnlyOwner(t *testing.T) {
	hub := NewHub(4)
	mine := hub.Subscribe("u1", "")
	defer mine.Close()
	other := hub.Subscribe("u2", "")
	defer other.Close()

	if n := hub.Publish("u1", Event{DocumentID: "d1", Status: StageStarting}); n != 1 {
		t.Fatalf("expected 1 delivery, got %d", n)
	}
	ev := <-mine.C
	if ev.DocumentID != "d1" || ev.Status != StageStarting {
		t.Fatalf("unexpected event %+v", ev)
	}
	select {
	case ev := <-other.C:
		t.Fatalf("other user received %+v", ev)
	default:
	}
}

func TestDocumentFilter(t *testing.T) {
	hub := NewHub(4)
	sub := hub.Subscribe("u1", "d2")
	defer sub.Close()

	hub.Publish("u1", Event{DocumentID: "d1", Status: StageStarting})
	hub.Publish("u1", Event{DocumentID: "d2", Status: StageMovingFile})

	ev := <-sub.C
	if ev.DocumentID != "d2" {
		t.Fatalf("expected only d2 events, got %+v", ev)
	}
	select {
	case ev := <-sub.C:
		t.Fatalf("unexpected extra event %+v", ev)
	default:
	}
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	hub := NewHub(1)
	sub := hub.Subscribe("u1", "")
	defer sub.Close()

	hub.Publish("u1", Event{DocumentID: "d1", Status: StageStarting})
	if n := hub.Publish("u1", Event{DocumentID: "d1", Status: StageMovingFile}); n != 0 {
		t.Fatalf("expected drop on full buffer, got %d deliveries", n)
	}
	if ev := <-sub.C; ev.Status != StageStarting {
		t.Fatalf("expected first event retained, got %+v", ev)
	}
}

func TestCloseUnregistersAndIsIdempotent(t *testing.T) {
	hub := NewHub(1)
	sub := hub.Subscribe("u1", "")
	if hub.Subscribers("u1") != 1 {
		t.Fatalf("expected 1 subscriber")
	}
	sub.Close()
	sub.Close()
	if hub.Subscribers("u1") != 0 {
		t.Fatalf("expected 0 subscribers after close")
	}
	if _, ok := <-sub.C; ok {
		t.Fatalf("expected closed channel")
	}
	if n := hub.Publish("u1", Event{DocumentID: "d1", Status: StageDone}); n != 0 {
		t.Fatalf("expected no deliveries after close, got %d", n)
	}
}

func TestHubCloseEndsOpenAndLaterSubscriptions(t *testing.T) {
	hub := NewHub(1)
	a := hub.Subscribe("u1", "")
	b := hub.Subscribe("u2", "d1")
	hub.Close()
	hub.Close()

	for _, sub := range []*Subscription{a, b} {
		if _, ok := <-sub.C; ok {
			t.Fatalf("expected closed channel")
		}
		sub.Close()
	}
	if hub.Subscribers("u1") != 0 || hub.Subscribers("u2") != 0 {
		t.Fatalf("expected no subscribers after hub close")
	}

	late := hub.Subscribe("u1", "")
	if _, ok := <-late.C; ok {
		t.Fatalf("subscription after close should start closed")
	}
	late.Close()
	if n := hub.Publish("u1", Event{DocumentID: "d1", Status: StageDone}); n != 0 {
		t.Fatalf("expected no deliveries, got %d", n)
	}
}
