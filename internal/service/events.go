package service

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/pointdeck/estimation-server-go/internal/sse"
)

// Room event types pushed to subscribed clients.
const (
	EventParticipantJoined = "participant_joined"
	EventParticipantLeft   = "participant_left"
	EventStoryAdded        = "story_added"
	EventTaskAdded         = "task_added"
	EventVotingStarted     = "voting_started"
	EventVoteCast          = "vote_cast"
	EventVotingEnded       = "voting_ended"
	EventEstimateSet       = "estimate_set"
)

// Publisher delivers an event to a session's room. *sse.Broker implements
// it; tests substitute a recorder.
type Publisher interface {
	Publish(ctx context.Context, sessionID string, event sse.Event) error
}

// publish is fire-and-forget: delivery failures are logged and never affect
// the outcome of the operation that produced the event.
func publish(ctx context.Context, pub Publisher, sessionID, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("event", eventType).Msg("failed to marshal room event")
		return
	}

	if err := pub.Publish(ctx, sessionID, sse.Event{Type: eventType, Data: data}); err != nil {
		log.Warn().
			Err(err).
			Str("sessionId", sessionID).
			Str("event", eventType).
			Msg("failed to publish room event")
	}
}
