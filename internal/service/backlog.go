package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/pointdeck/estimation-server-go/internal/audit"
	apperrors "github.com/pointdeck/estimation-server-go/internal/errors"
	"github.com/pointdeck/estimation-server-go/internal/model"
	"github.com/pointdeck/estimation-server-go/internal/repository"
)

type BacklogService struct {
	storyRepo repository.UserStoryRepository
	taskRepo  repository.TaskRepository
	broker    Publisher
}

func NewBacklogService(
	storyRepo repository.UserStoryRepository,
	taskRepo repository.TaskRepository,
	broker Publisher,
) *BacklogService {
	return &BacklogService{
		storyRepo: storyRepo,
		taskRepo:  taskRepo,
		broker:    broker,
	}
}

// AddUserStory appends a story to the session backlog. Admin only.
func (s *BacklogService) AddUserStory(ctx context.Context, actor *model.Participant, title, description string) (*model.UserStory, error) {
	if !actor.Role.IsAdmin() {
		return nil, apperrors.Forbidden("only the admin can add user stories")
	}

	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperrors.MissingRequired("title")
	}

	order, err := s.storyRepo.CountBySession(ctx, actor.SessionID)
	if err != nil {
		return nil, fmt.Errorf("count stories: %w", err)
	}

	story, err := s.storyRepo.Create(ctx, model.CreateUserStoryParams{
		ID:          uuid.NewString(),
		SessionID:   actor.SessionID,
		Title:       title,
		Description: description,
		Order:       order,
	})
	if err != nil {
		return nil, fmt.Errorf("create user story: %w", err)
	}

	audit.Log(ctx, audit.Event{
		Type:          audit.EventStoryAdd,
		SessionID:     actor.SessionID,
		ParticipantID: actor.ID,
		Details:       map[string]any{"storyId": story.ID},
	})

	publish(ctx, s.broker, actor.SessionID, EventStoryAdded, story)

	return story, nil
}

// AddTask appends a task to a story in the actor's session. Admin only.
func (s *BacklogService) AddTask(ctx context.Context, actor *model.Participant, storyID, title, description string) (*model.Task, error) {
	if !actor.Role.IsAdmin() {
		return nil, apperrors.Forbidden("only the admin can add tasks")
	}

	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperrors.MissingRequired("title")
	}

	story, err := s.storyRepo.FindByID(ctx, storyID)
	if err != nil {
		return nil, fmt.Errorf("find story: %w", err)
	}
	if story == nil || story.SessionID != actor.SessionID {
		return nil, apperrors.NotFound("User story")
	}

	order, err := s.taskRepo.CountByStory(ctx, storyID)
	if err != nil {
		return nil, fmt.Errorf("count tasks: %w", err)
	}

	task, err := s.taskRepo.Create(ctx, model.CreateTaskParams{
		ID:          uuid.NewString(),
		UserStoryID: storyID,
		Title:       title,
		Description: description,
		Order:       order,
	})
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	audit.Log(ctx, audit.Event{
		Type:          audit.EventTaskAdd,
		SessionID:     actor.SessionID,
		ParticipantID: actor.ID,
		Details:       map[string]any{"storyId": storyID, "taskId": task.ID},
	})

	publish(ctx, s.broker, actor.SessionID, EventTaskAdded, task)

	return task, nil
}
