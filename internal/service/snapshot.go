package service

import (
	"context"
	"fmt"
	"time"

	"github.com/pointdeck/estimation-server-go/internal/consensus"
	apperrors "github.com/pointdeck/estimation-server-go/internal/errors"
	"github.com/pointdeck/estimation-server-go/internal/model"
	"github.com/pointdeck/estimation-server-go/internal/repository"
)

type ParticipantState struct {
	ID   string     `json:"id"`
	Name string     `json:"name"`
	Role model.Role `json:"role"`
}

type TaskState struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	VoteCount   int    `json:"voteCount"`
	AllVoted    bool   `json:"allVoted"`
	HasVoted    bool   `json:"hasVoted"`
}

type StoryState struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	AllVoted    bool        `json:"allVoted"`
	Tasks       []TaskState `json:"tasks"`
}

// SessionState is a point-in-time view of the room, shaped for both polling
// reads and post-mutation broadcasts.
type SessionState struct {
	SessionID          string             `json:"sessionId"`
	Name               string             `json:"name"`
	Participants       []ParticipantState `json:"participants"`
	VotingInProgress   bool               `json:"votingInProgress"`
	CurrentStory       *StoryState        `json:"currentStory,omitempty"`
	VotingStartedAt    *time.Time         `json:"votingStartedAt,omitempty"`
	VotingTimerSeconds int                `json:"votingTimerSeconds"`
}

// SnapshotService assembles read-only session state. It shares the round
// controller's read path but never mutates anything, so it is safe to call
// arbitrarily often.
type SnapshotService struct {
	sessionRepo     repository.SessionRepository
	participantRepo repository.ParticipantRepository
	storyRepo       repository.UserStoryRepository
	taskRepo        repository.TaskRepository
	voteRepo        repository.VoteRepository
}

func NewSnapshotService(
	sessionRepo repository.SessionRepository,
	participantRepo repository.ParticipantRepository,
	storyRepo repository.UserStoryRepository,
	taskRepo repository.TaskRepository,
	voteRepo repository.VoteRepository,
) *SnapshotService {
	return &SnapshotService{
		sessionRepo:     sessionRepo,
		participantRepo: participantRepo,
		storyRepo:       storyRepo,
		taskRepo:        taskRepo,
		voteRepo:        voteRepo,
	}
}

// GetState returns the current round snapshot. callerParticipantID may be
// empty; when set, each task reports whether that participant has voted.
func (s *SnapshotService) GetState(ctx context.Context, sessionID, callerParticipantID string) (*SessionState, error) {
	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	if session == nil {
		return nil, apperrors.NotFound("Session")
	}

	participants, err := s.participantRepo.FindOnlineBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("find participants: %w", err)
	}

	state := &SessionState{
		SessionID:          session.ID,
		Name:               session.Name,
		Participants:       make([]ParticipantState, 0, len(participants)),
		VotingInProgress:   session.VotingInProgress,
		VotingStartedAt:    session.VotingStartedAt,
		VotingTimerSeconds: session.VotingTimerSeconds,
	}
	for _, p := range participants {
		state.Participants = append(state.Participants, ParticipantState{
			ID:   p.ID,
			Name: p.Name,
			Role: p.Role,
		})
	}

	if !session.VotingInProgress || session.CurrentStoryID == nil {
		return state, nil
	}

	story, err := s.storyRepo.FindByID(ctx, *session.CurrentStoryID)
	if err != nil {
		return nil, fmt.Errorf("find story: %w", err)
	}
	if story == nil {
		// Round points at a story that was deleted out from under it;
		// report the session as between rounds.
		state.VotingInProgress = false
		return state, nil
	}

	tasks, err := s.taskRepo.FindByStory(ctx, story.ID)
	if err != nil {
		return nil, fmt.Errorf("find tasks: %w", err)
	}

	online := len(participants)
	storyState := &StoryState{
		ID:          story.ID,
		Title:       story.Title,
		Description: story.Description,
		AllVoted:    true,
		Tasks:       make([]TaskState, 0, len(tasks)),
	}

	for _, t := range tasks {
		if t.Estimated() {
			continue
		}
		count, err := s.voteRepo.CountByTask(ctx, t.ID)
		if err != nil {
			return nil, fmt.Errorf("count votes: %w", err)
		}

		hasVoted := false
		if callerParticipantID != "" {
			hasVoted, err = s.voteRepo.HasVoted(ctx, t.ID, callerParticipantID)
			if err != nil {
				return nil, fmt.Errorf("check vote: %w", err)
			}
		}

		taskState := TaskState{
			ID:          t.ID,
			Title:       t.Title,
			Description: t.Description,
			VoteCount:   count,
			AllVoted:    consensus.AllVoted(count, online),
			HasVoted:    hasVoted,
		}
		if !taskState.AllVoted {
			storyState.AllVoted = false
		}
		storyState.Tasks = append(storyState.Tasks, taskState)
	}

	state.CurrentStory = storyState
	return state, nil
}
