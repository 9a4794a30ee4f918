// Package testutil provides in-memory repository implementations and a
// recording event publisher so service behavior can be exercised without a
// database or redis. The fakes honor the same contracts as the sqlx
// repositories: nil results for missing rows, vote upsert uniqueness, and
// cascade-style deletes where the tests need them.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/pointdeck/estimation-server-go/internal/database"
	"github.com/pointdeck/estimation-server-go/internal/model"
	"github.com/pointdeck/estimation-server-go/internal/repository"
)

type MemStore struct {
	mu           sync.Mutex
	sessions     map[string]model.Session
	participants map[string]model.Participant
	stories      map[string]model.UserStory
	tasks        map[string]model.Task
	votes        []model.Vote
}

func NewMemStore() *MemStore {
	return &MemStore{
		sessions:     make(map[string]model.Session),
		participants: make(map[string]model.Participant),
		stories:      make(map[string]model.UserStory),
		tasks:        make(map[string]model.Task),
	}
}

// WithTx satisfies database.TxRunner; the in-memory store has no
// transactions, so the function runs directly and the repositories ignore
// the nil handle.
func (s *MemStore) WithTx(ctx context.Context, fn database.TxFunc) error {
	return fn(nil)
}

var _ database.TxRunner = (*MemStore)(nil)

func (s *MemStore) Sessions() repository.SessionRepository {
	return &memSessionRepo{s}
}

func (s *MemStore) Participants() repository.ParticipantRepository {
	return &memParticipantRepo{s}
}

func (s *MemStore) Stories() repository.UserStoryRepository {
	return &memStoryRepo{s}
}

func (s *MemStore) Tasks() repository.TaskRepository {
	return &memTaskRepo{s}
}

func (s *MemStore) Votes() repository.VoteRepository {
	return &memVoteRepo{s}
}

// Session repository

type memSessionRepo struct{ store *MemStore }

func (r *memSessionRepo) WithTx(tx *sqlx.Tx) repository.SessionRepository { return r }

func (r *memSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	session, ok := r.store.sessions[id]
	if !ok {
		return nil, nil
	}
	return &session, nil
}

func (r *memSessionRepo) Create(ctx context.Context, params model.CreateSessionParams) (*model.Session, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	now := time.Now()
	session := model.Session{
		ID:                 params.ID,
		Name:               params.Name,
		IsActive:           true,
		VotingTimerSeconds: params.VotingTimerSeconds,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	r.store.sessions[params.ID] = session
	return &session, nil
}

func (r *memSessionRepo) UpdateRoundState(ctx context.Context, id string, state model.RoundState) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	session, ok := r.store.sessions[id]
	if !ok {
		return nil
	}
	session.CurrentStoryID = state.CurrentStoryID
	session.VotingInProgress = state.VotingInProgress
	session.VotingStartedAt = state.VotingStartedAt
	session.UpdatedAt = time.Now()
	r.store.sessions[id] = session
	return nil
}

func (r *memSessionRepo) DeactivateIdle(ctx context.Context, idleSince time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var count int64
	for id, session := range r.store.sessions {
		if session.IsActive && session.UpdatedAt.Before(idleSince) {
			session.IsActive = false
			session.UpdatedAt = time.Now()
			r.store.sessions[id] = session
			count++
		}
	}
	return count, nil
}

func (r *memSessionRepo) DeleteInactive(ctx context.Context, inactiveSince time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var count int64
	for id, session := range r.store.sessions {
		if !session.IsActive && session.UpdatedAt.Before(inactiveSince) {
			delete(r.store.sessions, id)
			count++
		}
	}
	return count, nil
}

// Participant repository

type memParticipantRepo struct{ store *MemStore }

func (r *memParticipantRepo) WithTx(tx *sqlx.Tx) repository.ParticipantRepository { return r }

func (r *memParticipantRepo) FindByID(ctx context.Context, id string) (*model.Participant, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	participant, ok := r.store.participants[id]
	if !ok {
		return nil, nil
	}
	return &participant, nil
}

func (r *memParticipantRepo) FindBySessionAndName(ctx context.Context, sessionID, name string) (*model.Participant, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, p := range r.store.participants {
		if p.SessionID == sessionID && p.Name == name {
			participant := p
			return &participant, nil
		}
	}
	return nil, nil
}

func (r *memParticipantRepo) FindOnlineBySession(ctx context.Context, sessionID string) ([]model.Participant, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var participants []model.Participant
	for _, p := range r.store.participants {
		if p.SessionID == sessionID && p.IsOnline {
			participants = append(participants, p)
		}
	}
	return participants, nil
}

func (r *memParticipantRepo) CountOnline(ctx context.Context, sessionID string) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	count := 0
	for _, p := range r.store.participants {
		if p.SessionID == sessionID && p.IsOnline {
			count++
		}
	}
	return count, nil
}

func (r *memParticipantRepo) Create(ctx context.Context, params model.CreateParticipantParams) (*model.Participant, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	participant := model.Participant{
		ID:        params.ID,
		SessionID: params.SessionID,
		Name:      params.Name,
		Role:      params.Role,
		IsOnline:  true,
		JoinedAt:  time.Now(),
	}
	r.store.participants[params.ID] = participant
	return &participant, nil
}

func (r *memParticipantRepo) SetOnline(ctx context.Context, id string, online bool) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	participant, ok := r.store.participants[id]
	if !ok {
		return nil
	}
	participant.IsOnline = online
	r.store.participants[id] = participant
	return nil
}

// User story repository

type memStoryRepo struct{ store *MemStore }

func (r *memStoryRepo) WithTx(tx *sqlx.Tx) repository.UserStoryRepository { return r }

func (r *memStoryRepo) FindByID(ctx context.Context, id string) (*model.UserStory, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	story, ok := r.store.stories[id]
	if !ok {
		return nil, nil
	}
	return &story, nil
}

func (r *memStoryRepo) FindBySession(ctx context.Context, sessionID string) ([]model.UserStory, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var stories []model.UserStory
	for _, s := range r.store.stories {
		if s.SessionID == sessionID {
			stories = append(stories, s)
		}
	}
	sortByOrder(stories, func(s model.UserStory) int { return s.Order })
	return stories, nil
}

func (r *memStoryRepo) CountBySession(ctx context.Context, sessionID string) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	count := 0
	for _, s := range r.store.stories {
		if s.SessionID == sessionID {
			count++
		}
	}
	return count, nil
}

func (r *memStoryRepo) Create(ctx context.Context, params model.CreateUserStoryParams) (*model.UserStory, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	story := model.UserStory{
		ID:          params.ID,
		SessionID:   params.SessionID,
		Title:       params.Title,
		Description: params.Description,
		Order:       params.Order,
		CreatedAt:   time.Now(),
	}
	r.store.stories[params.ID] = story
	return &story, nil
}

// Task repository

type memTaskRepo struct{ store *MemStore }

func (r *memTaskRepo) WithTx(tx *sqlx.Tx) repository.TaskRepository { return r }

func (r *memTaskRepo) FindByID(ctx context.Context, id string) (*model.Task, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	task, ok := r.store.tasks[id]
	if !ok {
		return nil, nil
	}
	return &task, nil
}

func (r *memTaskRepo) FindByStory(ctx context.Context, storyID string) ([]model.Task, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var tasks []model.Task
	for _, t := range r.store.tasks {
		if t.UserStoryID == storyID {
			tasks = append(tasks, t)
		}
	}
	sortByOrder(tasks, func(t model.Task) int { return t.Order })
	return tasks, nil
}

func (r *memTaskRepo) CountByStory(ctx context.Context, storyID string) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	count := 0
	for _, t := range r.store.tasks {
		if t.UserStoryID == storyID {
			count++
		}
	}
	return count, nil
}

func (r *memTaskRepo) Create(ctx context.Context, params model.CreateTaskParams) (*model.Task, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	task := model.Task{
		ID:          params.ID,
		UserStoryID: params.UserStoryID,
		Title:       params.Title,
		Description: params.Description,
		Order:       params.Order,
		CreatedAt:   time.Now(),
	}
	r.store.tasks[params.ID] = task
	return &task, nil
}

func (r *memTaskRepo) SetFinalEstimate(ctx context.Context, id string, estimate *model.Estimate) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	task, ok := r.store.tasks[id]
	if !ok {
		return nil
	}
	if estimate != nil {
		value := *estimate
		task.FinalEstimate = &value
	} else {
		task.FinalEstimate = nil
	}
	r.store.tasks[id] = task
	return nil
}

func (r *memTaskRepo) ClearEstimatesByStory(ctx context.Context, storyID string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for id, task := range r.store.tasks {
		if task.UserStoryID == storyID {
			task.FinalEstimate = nil
			r.store.tasks[id] = task
		}
	}
	return nil
}

func (r *memTaskRepo) MarkVotingByStory(ctx context.Context, storyID string, unestimatedOnly bool) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for id, task := range r.store.tasks {
		if task.UserStoryID == storyID {
			task.IsVoting = task.FinalEstimate == nil || !unestimatedOnly
			r.store.tasks[id] = task
		}
	}
	return nil
}

func (r *memTaskRepo) ClearVotingBySession(ctx context.Context, sessionID string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for id, task := range r.store.tasks {
		story, ok := r.store.stories[task.UserStoryID]
		if ok && story.SessionID == sessionID && task.IsVoting {
			task.IsVoting = false
			r.store.tasks[id] = task
		}
	}
	return nil
}

func (r *memTaskRepo) SumEstimatesByStory(ctx context.Context, storyID string) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	total := 0
	for _, task := range r.store.tasks {
		if task.UserStoryID == storyID && task.FinalEstimate != nil {
			total += int(*task.FinalEstimate)
		}
	}
	return total, nil
}

// Vote repository

type memVoteRepo struct{ store *MemStore }

func (r *memVoteRepo) WithTx(tx *sqlx.Tx) repository.VoteRepository { return r }

func (r *memVoteRepo) Upsert(ctx context.Context, params model.UpsertVoteParams) (*model.Vote, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for i, v := range r.store.votes {
		if v.TaskID == params.TaskID && v.ParticipantID == params.ParticipantID {
			r.store.votes[i].Estimate = params.Estimate
			vote := r.store.votes[i]
			return &vote, nil
		}
	}

	vote := model.Vote{
		ID:            params.ID,
		TaskID:        params.TaskID,
		ParticipantID: params.ParticipantID,
		Estimate:      params.Estimate,
		CreatedAt:     time.Now(),
	}
	r.store.votes = append(r.store.votes, vote)
	return &vote, nil
}

func (r *memVoteRepo) CountByTask(ctx context.Context, taskID string) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	count := 0
	for _, v := range r.store.votes {
		if v.TaskID == taskID {
			count++
		}
	}
	return count, nil
}

func (r *memVoteRepo) FindByTaskWithNames(ctx context.Context, taskID string) ([]model.TaskVote, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var votes []model.TaskVote
	for _, v := range r.store.votes {
		if v.TaskID != taskID {
			continue
		}
		name := ""
		if p, ok := r.store.participants[v.ParticipantID]; ok {
			name = p.Name
		}
		votes = append(votes, model.TaskVote{
			ParticipantID:   v.ParticipantID,
			ParticipantName: name,
			Estimate:        v.Estimate,
		})
	}
	return votes, nil
}

func (r *memVoteRepo) HasVoted(ctx context.Context, taskID, participantID string) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, v := range r.store.votes {
		if v.TaskID == taskID && v.ParticipantID == participantID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memVoteRepo) DeleteByTasks(ctx context.Context, taskIDs []string) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	ids := make(map[string]bool, len(taskIDs))
	for _, id := range taskIDs {
		ids[id] = true
	}

	var kept []model.Vote
	var deleted int64
	for _, v := range r.store.votes {
		if ids[v.TaskID] {
			deleted++
			continue
		}
		kept = append(kept, v)
	}
	r.store.votes = kept
	return deleted, nil
}

func sortByOrder[T any](items []T, order func(T) int) {
	for i := 1; i < len(items); i++ {
		for j := i; j > 0 && order(items[j]) < order(items[j-1]); j-- {
			items[j], items[j-1] = items[j-1], items[j]
		}
	}
}
