package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/pointdeck/estimation-server-go/internal/database"
	"github.com/pointdeck/estimation-server-go/internal/model"
)

type SessionRepository interface {
	FindByID(ctx context.Context, id string) (*model.Session, error)
	Create(ctx context.Context, params model.CreateSessionParams) (*model.Session, error)
	UpdateRoundState(ctx context.Context, id string, state model.RoundState) error
	DeactivateIdle(ctx context.Context, idleSince time.Time) (int64, error)
	DeleteInactive(ctx context.Context, inactiveSince time.Time) (int64, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) SessionRepository
}

type sessionRepo struct {
	db database.DBTX
}

func NewSessionRepository(db *sqlx.DB) SessionRepository {
	return &sessionRepo{db: db}
}

func (r *sessionRepo) WithTx(tx *sqlx.Tx) SessionRepository {
	return &sessionRepo{db: tx}
}

func (r *sessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, `
		SELECT * FROM sessions WHERE id = $1
	`, id)
	return HandleNotFound(&session, err)
}

func (r *sessionRepo) Create(ctx context.Context, params model.CreateSessionParams) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, `
		INSERT INTO sessions (id, name, voting_timer_seconds)
		VALUES ($1, $2, $3)
		RETURNING *
	`, params.ID, params.Name, params.VotingTimerSeconds)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepo) UpdateRoundState(ctx context.Context, id string, state model.RoundState) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET
			current_story_id = $2,
			voting_in_progress = $3,
			voting_started_at = $4,
			updated_at = $5
		WHERE id = $1
	`, id, state.CurrentStoryID, state.VotingInProgress, state.VotingStartedAt, time.Now())
	return err
}

func (r *sessionRepo) DeactivateIdle(ctx context.Context, idleSince time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET
			is_active = FALSE,
			updated_at = NOW()
		WHERE is_active AND updated_at < $1
	`, idleSince)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *sessionRepo) DeleteInactive(ctx context.Context, inactiveSince time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM sessions
		WHERE NOT is_active AND updated_at < $1
	`, inactiveSince)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
