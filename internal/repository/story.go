package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/pointdeck/estimation-server-go/internal/database"
	"github.com/pointdeck/estimation-server-go/internal/model"
)

type UserStoryRepository interface {
	FindByID(ctx context.Context, id string) (*model.UserStory, error)
	FindBySession(ctx context.Context, sessionID string) ([]model.UserStory, error)
	CountBySession(ctx context.Context, sessionID string) (int, error)
	Create(ctx context.Context, params model.CreateUserStoryParams) (*model.UserStory, error)
	WithTx(tx *sqlx.Tx) UserStoryRepository
}

type userStoryRepo struct {
	db database.DBTX
}

func NewUserStoryRepository(db *sqlx.DB) UserStoryRepository {
	return &userStoryRepo{db: db}
}

func (r *userStoryRepo) WithTx(tx *sqlx.Tx) UserStoryRepository {
	return &userStoryRepo{db: tx}
}

func (r *userStoryRepo) FindByID(ctx context.Context, id string) (*model.UserStory, error) {
	var story model.UserStory
	err := r.db.GetContext(ctx, &story, `
		SELECT * FROM user_stories WHERE id = $1
	`, id)
	return HandleNotFound(&story, err)
}

func (r *userStoryRepo) FindBySession(ctx context.Context, sessionID string) ([]model.UserStory, error) {
	var stories []model.UserStory
	err := r.db.SelectContext(ctx, &stories, `
		SELECT * FROM user_stories
		WHERE session_id = $1
		ORDER BY position, created_at
	`, sessionID)
	if err != nil {
		return nil, err
	}
	return stories, nil
}

func (r *userStoryRepo) CountBySession(ctx context.Context, sessionID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM user_stories WHERE session_id = $1
	`, sessionID)
	return count, err
}

func (r *userStoryRepo) Create(ctx context.Context, params model.CreateUserStoryParams) (*model.UserStory, error) {
	var story model.UserStory
	err := r.db.GetContext(ctx, &story, `
		INSERT INTO user_stories (id, session_id, title, description, position)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING *
	`, params.ID, params.SessionID, params.Title, params.Description, params.Order)
	if err != nil {
		return nil, err
	}
	return &story, nil
}
