package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/pointdeck/estimation-server-go/internal/database"
	"github.com/pointdeck/estimation-server-go/internal/model"
)

type TaskRepository interface {
	FindByID(ctx context.Context, id string) (*model.Task, error)
	FindByStory(ctx context.Context, storyID string) ([]model.Task, error)
	CountByStory(ctx context.Context, storyID string) (int, error)
	Create(ctx context.Context, params model.CreateTaskParams) (*model.Task, error)
	SetFinalEstimate(ctx context.Context, id string, estimate *model.Estimate) error
	ClearEstimatesByStory(ctx context.Context, storyID string) error
	// MarkVotingByStory raises the legacy per-task voting flag for the
	// story's tasks; when unestimatedOnly is set, estimated tasks keep it
	// lowered.
	MarkVotingByStory(ctx context.Context, storyID string, unestimatedOnly bool) error
	ClearVotingBySession(ctx context.Context, sessionID string) error
	SumEstimatesByStory(ctx context.Context, storyID string) (int, error)
	WithTx(tx *sqlx.Tx) TaskRepository
}

type taskRepo struct {
	db database.DBTX
}

func NewTaskRepository(db *sqlx.DB) TaskRepository {
	return &taskRepo{db: db}
}

func (r *taskRepo) WithTx(tx *sqlx.Tx) TaskRepository {
	return &taskRepo{db: tx}
}

func (r *taskRepo) FindByID(ctx context.Context, id string) (*model.Task, error) {
	var task model.Task
	err := r.db.GetContext(ctx, &task, `
		SELECT * FROM tasks WHERE id = $1
	`, id)
	return HandleNotFound(&task, err)
}

func (r *taskRepo) FindByStory(ctx context.Context, storyID string) ([]model.Task, error) {
	var tasks []model.Task
	err := r.db.SelectContext(ctx, &tasks, `
		SELECT * FROM tasks
		WHERE user_story_id = $1
		ORDER BY position, created_at
	`, storyID)
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *taskRepo) CountByStory(ctx context.Context, storyID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM tasks WHERE user_story_id = $1
	`, storyID)
	return count, err
}

func (r *taskRepo) Create(ctx context.Context, params model.CreateTaskParams) (*model.Task, error) {
	var task model.Task
	err := r.db.GetContext(ctx, &task, `
		INSERT INTO tasks (id, user_story_id, title, description, position)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING *
	`, params.ID, params.UserStoryID, params.Title, params.Description, params.Order)
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *taskRepo) SetFinalEstimate(ctx context.Context, id string, estimate *model.Estimate) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE tasks SET final_estimate = $2 WHERE id = $1
	`, id, estimate)
	return err
}

func (r *taskRepo) ClearEstimatesByStory(ctx context.Context, storyID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE tasks SET final_estimate = NULL WHERE user_story_id = $1
	`, storyID)
	return err
}

func (r *taskRepo) MarkVotingByStory(ctx context.Context, storyID string, unestimatedOnly bool) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE tasks SET is_voting = (final_estimate IS NULL OR NOT $2::boolean)
		WHERE user_story_id = $1
	`, storyID, unestimatedOnly)
	return err
}

func (r *taskRepo) ClearVotingBySession(ctx context.Context, sessionID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE tasks SET is_voting = FALSE
		WHERE user_story_id IN (
			SELECT id FROM user_stories WHERE session_id = $1
		)
	`, sessionID)
	return err
}

func (r *taskRepo) SumEstimatesByStory(ctx context.Context, storyID string) (int, error) {
	var total int
	err := r.db.GetContext(ctx, &total, `
		SELECT COALESCE(SUM(final_estimate), 0) FROM tasks
		WHERE user_story_id = $1 AND final_estimate IS NOT NULL
	`, storyID)
	return total, err
}
