package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/pointdeck/estimation-server-go/internal/database"
	"github.com/pointdeck/estimation-server-go/internal/model"
)

type VoteRepository interface {
	// Upsert inserts the participant's vote for the task, replacing any
	// prior value. The (task, participant) pair never yields more than
	// one row.
	Upsert(ctx context.Context, params model.UpsertVoteParams) (*model.Vote, error)
	CountByTask(ctx context.Context, taskID string) (int, error)
	FindByTaskWithNames(ctx context.Context, taskID string) ([]model.TaskVote, error)
	HasVoted(ctx context.Context, taskID, participantID string) (bool, error)
	DeleteByTasks(ctx context.Context, taskIDs []string) (int64, error)
	WithTx(tx *sqlx.Tx) VoteRepository
}

type voteRepo struct {
	db database.DBTX
}

func NewVoteRepository(db *sqlx.DB) VoteRepository {
	return &voteRepo{db: db}
}

func (r *voteRepo) WithTx(tx *sqlx.Tx) VoteRepository {
	return &voteRepo{db: tx}
}

func (r *voteRepo) Upsert(ctx context.Context, params model.UpsertVoteParams) (*model.Vote, error) {
	var vote model.Vote
	err := r.db.GetContext(ctx, &vote, `
		INSERT INTO votes (id, task_id, participant_id, estimate)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (task_id, participant_id)
		DO UPDATE SET estimate = EXCLUDED.estimate
		RETURNING *
	`, params.ID, params.TaskID, params.ParticipantID, params.Estimate)
	if err != nil {
		return nil, err
	}
	return &vote, nil
}

func (r *voteRepo) CountByTask(ctx context.Context, taskID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM votes WHERE task_id = $1
	`, taskID)
	return count, err
}

func (r *voteRepo) FindByTaskWithNames(ctx context.Context, taskID string) ([]model.TaskVote, error) {
	var votes []model.TaskVote
	err := r.db.SelectContext(ctx, &votes, `
		SELECT v.participant_id, p.name AS participant_name, v.estimate
		FROM votes v
		JOIN participants p ON p.id = v.participant_id
		WHERE v.task_id = $1
		ORDER BY v.created_at
	`, taskID)
	if err != nil {
		return nil, err
	}
	return votes, nil
}

func (r *voteRepo) HasVoted(ctx context.Context, taskID, participantID string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM votes WHERE task_id = $1 AND participant_id = $2
		)
	`, taskID, participantID)
	return exists, err
}

func (r *voteRepo) DeleteByTasks(ctx context.Context, taskIDs []string) (int64, error) {
	if len(taskIDs) == 0 {
		return 0, nil
	}
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM votes WHERE task_id = ANY($1)
	`, pq.Array(taskIDs))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
