package testutil

import (
	"context"
	"sync"

	"github.com/pointdeck/estimation-server-go/internal/sse"
)

type PublishedEvent struct {
	SessionID string
	Event     sse.Event
}

// RecordingPublisher captures room events instead of pushing them through
// redis, so tests can assert on what would have been broadcast.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []PublishedEvent
}

func NewRecordingPublisher() *RecordingPublisher {
	return &RecordingPublisher{}
}

func (p *RecordingPublisher) Publish(ctx context.Context, sessionID string, event sse.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, PublishedEvent{SessionID: sessionID, Event: event})
	return nil
}

func (p *RecordingPublisher) Events() []PublishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]PublishedEvent(nil), p.events...)
}

// CountByType returns how many captured events carry the given type.
func (p *RecordingPublisher) CountByType(eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	count := 0
	for _, e := range p.events {
		if e.Event.Type == eventType {
			count++
		}
	}
	return count
}
