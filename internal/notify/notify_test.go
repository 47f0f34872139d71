package notify

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestSubscribeReceivesNotifications(t *testing.T) {
	logger := zerolog.Nop()
	hub := NewHub(&logger)

	ch, cancel := hub.Subscribe()
	defer cancel()

	hub.Info("queued while offline")

	select {
	case n := <-ch:
		if n.Level != LevelInfo {
			t.Errorf("expected info, got %s", n.Level)
		}
		if n.Message != "queued while offline" {
			t.Errorf("unexpected message: %q", n.Message)
		}
	default:
		t.Fatal("expected a notification")
	}
}

func TestUndoRunsOnce(t *testing.T) {
	logger := zerolog.Nop()
	hub := NewHub(&logger)

	ch, cancel := hub.Subscribe()
	defer cancel()

	ran := 0
	hub.Success("tersimpan", func() { ran++ })

	n := <-ch
	if !n.CanUndo {
		t.Fatal("expected undo affordance")
	}

	if err := hub.Undo(n.ID); err != nil {
		t.Fatalf("undo: %v", err)
	}
	if ran != 1 {
		t.Fatalf("expected undo to run once, ran %d", ran)
	}

	// Second attempt fails
	if err := hub.Undo(n.ID); err == nil {
		t.Fatal("expected error on second undo")
	}
}

func TestUndoUnknownID(t *testing.T) {
	logger := zerolog.Nop()
	hub := NewHub(&logger)
	if err := hub.Undo("nope"); err == nil {
		t.Fatal("expected error for unknown undo ID")
	}
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	logger := zerolog.Nop()
	hub := NewHub(&logger)

	_, cancel := hub.Subscribe() // never read
	defer cancel()

	// Overflow the buffer; publish must not block
	for i := 0; i < 100; i++ {
		hub.Info("tick")
	}
}

func TestCancelledSubscriberStopsReceiving(t *testing.T) {
	logger := zerolog.Nop()
	hub := NewHub(&logger)

	ch, cancel := hub.Subscribe()
	cancel()

	hub.Info("after cancel")
	select {
	case <-ch:
		t.Fatal("expected no delivery after cancel")
	default:
	}
}
