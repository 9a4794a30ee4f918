package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/pointdeck/estimation-server-go/internal/audit"
	"github.com/pointdeck/estimation-server-go/internal/consensus"
	"github.com/pointdeck/estimation-server-go/internal/database"
	apperrors "github.com/pointdeck/estimation-server-go/internal/errors"
	"github.com/pointdeck/estimation-server-go/internal/model"
	"github.com/pointdeck/estimation-server-go/internal/repository"
)

// TaskResult is the revealed outcome for one task after a round closes.
type TaskResult struct {
	TaskID  string           `json:"taskId"`
	Title   string           `json:"title"`
	Votes   []model.TaskVote `json:"votes"`
	Average float64          `json:"average"`
}

type CastVoteResult struct {
	TaskID      string       `json:"taskId"`
	VoteCount   int          `json:"voteCount"`
	AllVoted    bool         `json:"allVoted"`
	RoundClosed bool         `json:"roundClosed"`
	Results     []TaskResult `json:"results,omitempty"`
}

type SetEstimateResult struct {
	TaskID     string         `json:"taskId"`
	Estimate   model.Estimate `json:"estimate"`
	StoryTotal int            `json:"storyTotal"`
}

// RoundService owns the session-level voting state machine: which story is
// under vote, whether a round is open, and how it closes. Every mutating
// call holds the session's lock so the read-evaluate-close sequence in
// CastVote runs at most once per round even under concurrent last votes.
type RoundService struct {
	db              database.TxRunner
	sessionRepo     repository.SessionRepository
	participantRepo repository.ParticipantRepository
	storyRepo       repository.UserStoryRepository
	taskRepo        repository.TaskRepository
	voteRepo        repository.VoteRepository
	broker          Publisher
	locks           *sessionLocks
}

func NewRoundService(
	db database.TxRunner,
	sessionRepo repository.SessionRepository,
	participantRepo repository.ParticipantRepository,
	storyRepo repository.UserStoryRepository,
	taskRepo repository.TaskRepository,
	voteRepo repository.VoteRepository,
	broker Publisher,
) *RoundService {
	return &RoundService{
		db:              db,
		sessionRepo:     sessionRepo,
		participantRepo: participantRepo,
		storyRepo:       storyRepo,
		taskRepo:        taskRepo,
		voteRepo:        voteRepo,
		broker:          broker,
		locks:           newSessionLocks(),
	}
}

// StartVoting opens a round on the given story. Votes on its not-yet
// estimated tasks are cleared; tasks that already carry a final estimate
// are left alone and stay out of the round. Calling it again on the same
// story restarts the clock.
func (s *RoundService) StartVoting(ctx context.Context, actor *model.Participant, storyID string) (*model.Session, error) {
	if !actor.Role.IsAdmin() {
		return nil, apperrors.Forbidden("only the admin can start voting")
	}

	lock := s.locks.get(actor.SessionID)
	lock.Lock()
	defer lock.Unlock()

	session, story, err := s.resolveStory(ctx, actor.SessionID, storyID)
	if err != nil {
		return nil, err
	}

	tasks, err := s.taskRepo.FindByStory(ctx, story.ID)
	if err != nil {
		return nil, fmt.Errorf("find tasks: %w", err)
	}

	var openTaskIDs []string
	for _, t := range tasks {
		if !t.Estimated() {
			openTaskIDs = append(openTaskIDs, t.ID)
		}
	}

	now := time.Now()
	state := model.RoundState{
		CurrentStoryID:   &story.ID,
		VotingInProgress: true,
		VotingStartedAt:  &now,
	}

	err = s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := s.voteRepo.WithTx(tx).DeleteByTasks(ctx, openTaskIDs); err != nil {
			return fmt.Errorf("clear votes: %w", err)
		}
		taskRepo := s.taskRepo.WithTx(tx)
		if err := taskRepo.ClearVotingBySession(ctx, session.ID); err != nil {
			return fmt.Errorf("clear voting flags: %w", err)
		}
		if err := taskRepo.MarkVotingByStory(ctx, story.ID, true); err != nil {
			return fmt.Errorf("mark voting tasks: %w", err)
		}
		if err := s.sessionRepo.WithTx(tx).UpdateRoundState(ctx, session.ID, state); err != nil {
			return fmt.Errorf("update round state: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	session.CurrentStoryID = state.CurrentStoryID
	session.VotingInProgress = true
	session.VotingStartedAt = state.VotingStartedAt

	log.Info().
		Str("sessionId", session.ID).
		Str("storyId", story.ID).
		Int("openTasks", len(openTaskIDs)).
		Msg("voting round started")

	audit.Log(ctx, audit.Event{
		Type:          audit.EventVotingStart,
		SessionID:     session.ID,
		ParticipantID: actor.ID,
		Details:       map[string]any{"storyId": story.ID},
	})

	publish(ctx, s.broker, session.ID, EventVotingStarted, map[string]any{
		"storyId":      story.ID,
		"startedAt":    now,
		"timerSeconds": session.VotingTimerSeconds,
		"revote":       false,
	})

	return session, nil
}

// CastVote records the participant's estimate for a task of the story under
// vote. When the vote completes the round (every open task has votes from
// the full online head count) the round closes in the same call and the
// revealed results ride along in the response.
func (s *RoundService) CastVote(ctx context.Context, actor *model.Participant, taskID string, estimate model.Estimate) (*CastVoteResult, error) {
	if !estimate.Valid() {
		return nil, apperrors.InvalidInput("estimate", "value is not in the estimation deck")
	}

	lock := s.locks.get(actor.SessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := s.sessionRepo.FindByID(ctx, actor.SessionID)
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	if session == nil {
		return nil, apperrors.NotFound("Session")
	}

	task, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("find task: %w", err)
	}
	if task == nil {
		return nil, apperrors.NotFound("Task")
	}

	if !session.VotingInProgress || session.CurrentStoryID == nil || task.UserStoryID != *session.CurrentStoryID {
		return nil, apperrors.InvalidState("voting is not active for this task")
	}
	if task.Estimated() {
		return nil, apperrors.InvalidState("task already has a final estimate")
	}

	if _, err := s.voteRepo.Upsert(ctx, model.UpsertVoteParams{
		ID:            uuid.NewString(),
		TaskID:        task.ID,
		ParticipantID: actor.ID,
		Estimate:      estimate,
	}); err != nil {
		return nil, fmt.Errorf("upsert vote: %w", err)
	}

	online, err := s.participantRepo.CountOnline(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("count online participants: %w", err)
	}

	taskCount, err := s.voteRepo.CountByTask(ctx, task.ID)
	if err != nil {
		return nil, fmt.Errorf("count votes: %w", err)
	}

	result := &CastVoteResult{
		TaskID:    task.ID,
		VoteCount: taskCount,
		AllVoted:  consensus.AllVoted(taskCount, online),
	}

	// The cast event never carries the chosen value; votes stay hidden
	// until the round closes.
	publish(ctx, s.broker, session.ID, EventVoteCast, map[string]any{
		"taskId":    task.ID,
		"voteCount": taskCount,
		"allVoted":  result.AllVoted,
	})

	done, err := s.storyComplete(ctx, *session.CurrentStoryID, online)
	if err != nil {
		return nil, err
	}
	if done {
		results, err := s.closeRound(ctx, session)
		if err != nil {
			return nil, err
		}
		result.RoundClosed = true
		result.Results = results

		audit.Log(ctx, audit.Event{
			Type:          audit.EventVotingAutoClose,
			SessionID:     session.ID,
			ParticipantID: actor.ID,
			Details:       map[string]any{"storyId": *session.CurrentStoryID},
		})
	}

	return result, nil
}

// EndVoting is the admin's manual close, usable any time a round is open.
func (s *RoundService) EndVoting(ctx context.Context, actor *model.Participant) ([]TaskResult, error) {
	if !actor.Role.IsAdmin() {
		return nil, apperrors.Forbidden("only the admin can end voting")
	}

	lock := s.locks.get(actor.SessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := s.sessionRepo.FindByID(ctx, actor.SessionID)
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	if session == nil {
		return nil, apperrors.NotFound("Session")
	}
	if !session.VotingInProgress || session.CurrentStoryID == nil {
		return nil, apperrors.InvalidState("no voting round is active")
	}

	results, err := s.closeRound(ctx, session)
	if err != nil {
		return nil, err
	}

	audit.Log(ctx, audit.Event{
		Type:          audit.EventVotingEnd,
		SessionID:     session.ID,
		ParticipantID: actor.ID,
		Details:       map[string]any{"storyId": *session.CurrentStoryID},
	})

	return results, nil
}

// Revote restarts a story from scratch: every task loses its votes and its
// final estimate, then a fresh round opens covering all of them.
func (s *RoundService) Revote(ctx context.Context, actor *model.Participant, storyID string) (*model.Session, error) {
	if !actor.Role.IsAdmin() {
		return nil, apperrors.Forbidden("only the admin can restart voting")
	}

	lock := s.locks.get(actor.SessionID)
	lock.Lock()
	defer lock.Unlock()

	session, story, err := s.resolveStory(ctx, actor.SessionID, storyID)
	if err != nil {
		return nil, err
	}

	tasks, err := s.taskRepo.FindByStory(ctx, story.ID)
	if err != nil {
		return nil, fmt.Errorf("find tasks: %w", err)
	}
	taskIDs := make([]string, 0, len(tasks))
	for _, t := range tasks {
		taskIDs = append(taskIDs, t.ID)
	}

	now := time.Now()
	state := model.RoundState{
		CurrentStoryID:   &story.ID,
		VotingInProgress: true,
		VotingStartedAt:  &now,
	}

	err = s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := s.voteRepo.WithTx(tx).DeleteByTasks(ctx, taskIDs); err != nil {
			return fmt.Errorf("clear votes: %w", err)
		}
		taskRepo := s.taskRepo.WithTx(tx)
		if err := taskRepo.ClearEstimatesByStory(ctx, story.ID); err != nil {
			return fmt.Errorf("clear estimates: %w", err)
		}
		if err := taskRepo.ClearVotingBySession(ctx, session.ID); err != nil {
			return fmt.Errorf("clear voting flags: %w", err)
		}
		if err := taskRepo.MarkVotingByStory(ctx, story.ID, false); err != nil {
			return fmt.Errorf("mark voting tasks: %w", err)
		}
		if err := s.sessionRepo.WithTx(tx).UpdateRoundState(ctx, session.ID, state); err != nil {
			return fmt.Errorf("update round state: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	session.CurrentStoryID = state.CurrentStoryID
	session.VotingInProgress = true
	session.VotingStartedAt = state.VotingStartedAt

	log.Info().
		Str("sessionId", session.ID).
		Str("storyId", story.ID).
		Msg("revote started")

	audit.Log(ctx, audit.Event{
		Type:          audit.EventRevote,
		SessionID:     session.ID,
		ParticipantID: actor.ID,
		Details:       map[string]any{"storyId": story.ID},
	})

	publish(ctx, s.broker, session.ID, EventVotingStarted, map[string]any{
		"storyId":      story.ID,
		"startedAt":    now,
		"timerSeconds": session.VotingTimerSeconds,
		"revote":       true,
	})

	return session, nil
}

// SetFinalEstimate records the agreed size for a task, independent of round
// state, and returns the owning story's recomputed total.
func (s *RoundService) SetFinalEstimate(ctx context.Context, actor *model.Participant, taskID string, estimate model.Estimate) (*SetEstimateResult, error) {
	if !actor.Role.IsAdmin() {
		return nil, apperrors.Forbidden("only the admin can set the final estimate")
	}
	if !estimate.Valid() {
		return nil, apperrors.InvalidInput("estimate", "value is not in the estimation deck")
	}

	lock := s.locks.get(actor.SessionID)
	lock.Lock()
	defer lock.Unlock()

	task, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("find task: %w", err)
	}
	if task == nil {
		return nil, apperrors.NotFound("Task")
	}

	story, err := s.storyRepo.FindByID(ctx, task.UserStoryID)
	if err != nil {
		return nil, fmt.Errorf("find story: %w", err)
	}
	if story == nil || story.SessionID != actor.SessionID {
		return nil, apperrors.NotFound("Task")
	}

	if err := s.taskRepo.SetFinalEstimate(ctx, task.ID, &estimate); err != nil {
		return nil, fmt.Errorf("set final estimate: %w", err)
	}

	total, err := s.taskRepo.SumEstimatesByStory(ctx, story.ID)
	if err != nil {
		return nil, fmt.Errorf("sum story estimates: %w", err)
	}

	audit.Log(ctx, audit.Event{
		Type:          audit.EventEstimateSet,
		SessionID:     actor.SessionID,
		ParticipantID: actor.ID,
		Details:       map[string]any{"taskId": task.ID, "estimate": int(estimate)},
	})

	publish(ctx, s.broker, actor.SessionID, EventEstimateSet, map[string]any{
		"taskId":     task.ID,
		"estimate":   estimate,
		"storyTotal": total,
	})

	return &SetEstimateResult{TaskID: task.ID, Estimate: estimate, StoryTotal: total}, nil
}

// resolveStory loads the session and a story belonging to it.
func (s *RoundService) resolveStory(ctx context.Context, sessionID, storyID string) (*model.Session, *model.UserStory, error) {
	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("find session: %w", err)
	}
	if session == nil {
		return nil, nil, apperrors.NotFound("Session")
	}

	story, err := s.storyRepo.FindByID(ctx, storyID)
	if err != nil {
		return nil, nil, fmt.Errorf("find story: %w", err)
	}
	if story == nil || story.SessionID != session.ID {
		return nil, nil, apperrors.NotFound("User story")
	}

	return session, story, nil
}

// storyComplete reports whether every not-yet-estimated task of the story
// has collected the full online head count of votes.
func (s *RoundService) storyComplete(ctx context.Context, storyID string, online int) (bool, error) {
	tasks, err := s.taskRepo.FindByStory(ctx, storyID)
	if err != nil {
		return false, fmt.Errorf("find tasks: %w", err)
	}

	for _, t := range tasks {
		if t.Estimated() {
			continue
		}
		count, err := s.voteRepo.CountByTask(ctx, t.ID)
		if err != nil {
			return false, fmt.Errorf("count votes: %w", err)
		}
		if !consensus.AllVoted(count, online) {
			return false, nil
		}
	}
	return true, nil
}

// closeRound is the shared end-of-round effect: the round flag drops, the
// legacy per-task flags drop with it, and each open task's votes are
// revealed and averaged. Final estimates are never applied here; that stays
// a separate admin decision.
func (s *RoundService) closeRound(ctx context.Context, session *model.Session) ([]TaskResult, error) {
	tasks, err := s.taskRepo.FindByStory(ctx, *session.CurrentStoryID)
	if err != nil {
		return nil, fmt.Errorf("find tasks: %w", err)
	}

	results := make([]TaskResult, 0, len(tasks))
	for _, t := range tasks {
		if t.Estimated() {
			continue
		}
		votes, err := s.voteRepo.FindByTaskWithNames(ctx, t.ID)
		if err != nil {
			return nil, fmt.Errorf("find votes: %w", err)
		}
		estimates := make([]model.Estimate, 0, len(votes))
		for _, v := range votes {
			estimates = append(estimates, v.Estimate)
		}
		results = append(results, TaskResult{
			TaskID:  t.ID,
			Title:   t.Title,
			Votes:   votes,
			Average: consensus.Average(estimates),
		})
	}

	state := model.RoundState{
		CurrentStoryID:   session.CurrentStoryID,
		VotingInProgress: false,
		VotingStartedAt:  nil,
	}

	err = s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.sessionRepo.WithTx(tx).UpdateRoundState(ctx, session.ID, state); err != nil {
			return fmt.Errorf("update round state: %w", err)
		}
		if err := s.taskRepo.WithTx(tx).ClearVotingBySession(ctx, session.ID); err != nil {
			return fmt.Errorf("clear voting flags: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	session.VotingInProgress = false
	session.VotingStartedAt = nil

	log.Info().
		Str("sessionId", session.ID).
		Str("storyId", *session.CurrentStoryID).
		Int("tasks", len(results)).
		Msg("voting round closed")

	publish(ctx, s.broker, session.ID, EventVotingEnded, map[string]any{
		"storyId": *session.CurrentStoryID,
		"results": results,
	})

	return results, nil
}
