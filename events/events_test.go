package events

import (
	"context"
	"testing"

	"habit-progression-engine/logger"
)

func TestNopPublisher(t *testing.T) {
	p := Nop()
	if err := p.Publish(context.Background(), Event{Type: ProgressUpdated, UserID: "u1"}); err != nil {
		t.Errorf("Publish: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestRedisPublisherNeedsAddress(t *testing.T) {
	if _, err := NewRedisPublisher(logger.Nop(), "", "progression"); err == nil {
		t.Fatal("expected error for empty address")
	}
}
