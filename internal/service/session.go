package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/pointdeck/estimation-server-go/internal/audit"
	apperrors "github.com/pointdeck/estimation-server-go/internal/errors"
	"github.com/pointdeck/estimation-server-go/internal/model"
	"github.com/pointdeck/estimation-server-go/internal/repository"
)

type CreateSessionResult struct {
	Session *model.Session     `json:"session"`
	Admin   *model.Participant `json:"admin"`
}

type SessionService struct {
	sessionRepo         repository.SessionRepository
	participantRepo     repository.ParticipantRepository
	broker              Publisher
	defaultTimerSeconds int
}

func NewSessionService(
	sessionRepo repository.SessionRepository,
	participantRepo repository.ParticipantRepository,
	broker Publisher,
	defaultTimerSeconds int,
) *SessionService {
	return &SessionService{
		sessionRepo:         sessionRepo,
		participantRepo:     participantRepo,
		broker:              broker,
		defaultTimerSeconds: defaultTimerSeconds,
	}
}

// CreateSession opens a new estimation room and registers its admin.
func (s *SessionService) CreateSession(ctx context.Context, name, adminName string) (*CreateSessionResult, error) {
	name = strings.TrimSpace(name)
	adminName = strings.TrimSpace(adminName)
	if name == "" {
		return nil, apperrors.MissingRequired("session name")
	}
	if adminName == "" {
		return nil, apperrors.MissingRequired("admin name")
	}

	session, err := s.sessionRepo.Create(ctx, model.CreateSessionParams{
		ID:                 uuid.NewString(),
		Name:               name,
		VotingTimerSeconds: s.defaultTimerSeconds,
	})
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	admin, err := s.participantRepo.Create(ctx, model.CreateParticipantParams{
		ID:        uuid.NewString(),
		SessionID: session.ID,
		Name:      adminName,
		Role:      model.RoleAdmin,
	})
	if err != nil {
		return nil, fmt.Errorf("create admin participant: %w", err)
	}

	log.Info().
		Str("sessionId", session.ID).
		Str("name", session.Name).
		Msg("session created")

	audit.Log(ctx, audit.Event{
		Type:          audit.EventSessionCreate,
		SessionID:     session.ID,
		ParticipantID: admin.ID,
	})

	return &CreateSessionResult{Session: session, Admin: admin}, nil
}

// JoinSession registers a participant by name, reusing the existing record
// when the name was seen before (rejoin flips the online flag back on).
func (s *SessionService) JoinSession(ctx context.Context, sessionID, name string) (*model.Participant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.MissingRequired("participant name")
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	if session == nil || !session.IsActive {
		return nil, apperrors.NotFound("Session")
	}

	participant, err := s.participantRepo.FindBySessionAndName(ctx, sessionID, name)
	if err != nil {
		return nil, fmt.Errorf("find participant: %w", err)
	}

	if participant != nil {
		if !participant.IsOnline {
			if err := s.participantRepo.SetOnline(ctx, participant.ID, true); err != nil {
				return nil, fmt.Errorf("mark participant online: %w", err)
			}
			participant.IsOnline = true
		}
	} else {
		participant, err = s.participantRepo.Create(ctx, model.CreateParticipantParams{
			ID:        uuid.NewString(),
			SessionID: sessionID,
			Name:      name,
			Role:      model.RoleParticipant,
		})
		if err != nil {
			return nil, fmt.Errorf("create participant: %w", err)
		}
	}

	audit.Log(ctx, audit.Event{
		Type:          audit.EventParticipantJoin,
		SessionID:     sessionID,
		ParticipantID: participant.ID,
	})

	publish(ctx, s.broker, sessionID, EventParticipantJoined, map[string]any{
		"id":   participant.ID,
		"name": participant.Name,
		"role": participant.Role,
	})

	return participant, nil
}

// LeaveSession marks the participant offline. The record survives so the
// same name can rejoin with its votes intact.
func (s *SessionService) LeaveSession(ctx context.Context, participant *model.Participant) error {
	if err := s.participantRepo.SetOnline(ctx, participant.ID, false); err != nil {
		return fmt.Errorf("mark participant offline: %w", err)
	}

	audit.Log(ctx, audit.Event{
		Type:          audit.EventParticipantLeave,
		SessionID:     participant.SessionID,
		ParticipantID: participant.ID,
	})

	publish(ctx, s.broker, participant.SessionID, EventParticipantLeft, map[string]any{
		"id":   participant.ID,
		"name": participant.Name,
	})

	return nil
}

// ResolveParticipant maps a (session, participant) pair from the identity
// layer to a participant record, or NotFound when either side is stale.
func (s *SessionService) ResolveParticipant(ctx context.Context, sessionID, participantID string) (*model.Participant, error) {
	participant, err := s.participantRepo.FindByID(ctx, participantID)
	if err != nil {
		return nil, fmt.Errorf("find participant: %w", err)
	}
	if participant == nil || participant.SessionID != sessionID {
		return nil, apperrors.NotFound("Participant")
	}
	return participant, nil
}
