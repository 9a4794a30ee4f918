package audit

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type EventType string

const (
	EventSessionCreate    EventType = "session_create"
	EventParticipantJoin  EventType = "participant_join"
	EventParticipantLeave EventType = "participant_leave"
	EventStoryAdd         EventType = "story_add"
	EventTaskAdd          EventType = "task_add"
	EventVotingStart      EventType = "voting_start"
	EventVotingEnd        EventType = "voting_end"
	EventVotingAutoClose  EventType = "voting_autoclose"
	EventRevote           EventType = "revote"
	EventEstimateSet      EventType = "estimate_set"
)

type Event struct {
	Type          EventType
	SessionID     string
	ParticipantID string
	Details       map[string]any
}

// Log writes a structured audit record for a room-changing action.
func Log(ctx context.Context, event Event) {
	logger := log.With().
		Str("audit", "room").
		Str("event_type", string(event.Type)).
		Time("timestamp", time.Now()).
		Logger()

	if event.SessionID != "" {
		logger = logger.With().Str("session_id", event.SessionID).Logger()
	}
	if event.ParticipantID != "" {
		logger = logger.With().Str("participant_id", event.ParticipantID).Logger()
	}

	logEvent := logger.Info()
	for k, v := range event.Details {
		logEvent = addField(logEvent, k, v)
	}
	logEvent.Msg("room audit event")
}

func addField(e *zerolog.Event, key string, value any) *zerolog.Event {
	switch v := value.(type) {
	case string:
		return e.Str(key, v)
	case int:
		return e.Int(key, v)
	case int64:
		return e.Int64(key, v)
	case bool:
		return e.Bool(key, v)
	default:
		return e.Interface(key, v)
	}
}
