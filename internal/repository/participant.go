package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/pointdeck/estimation-server-go/internal/database"
	"github.com/pointdeck/estimation-server-go/internal/model"
)

type ParticipantRepository interface {
	FindByID(ctx context.Context, id string) (*model.Participant, error)
	FindBySessionAndName(ctx context.Context, sessionID, name string) (*model.Participant, error)
	FindOnlineBySession(ctx context.Context, sessionID string) ([]model.Participant, error)
	CountOnline(ctx context.Context, sessionID string) (int, error)
	Create(ctx context.Context, params model.CreateParticipantParams) (*model.Participant, error)
	SetOnline(ctx context.Context, id string, online bool) error
	WithTx(tx *sqlx.Tx) ParticipantRepository
}

type participantRepo struct {
	db database.DBTX
}

func NewParticipantRepository(db *sqlx.DB) ParticipantRepository {
	return &participantRepo{db: db}
}

func (r *participantRepo) WithTx(tx *sqlx.Tx) ParticipantRepository {
	return &participantRepo{db: tx}
}

func (r *participantRepo) FindByID(ctx context.Context, id string) (*model.Participant, error) {
	var participant model.Participant
	err := r.db.GetContext(ctx, &participant, `
		SELECT * FROM participants WHERE id = $1
	`, id)
	return HandleNotFound(&participant, err)
}

func (r *participantRepo) FindBySessionAndName(ctx context.Context, sessionID, name string) (*model.Participant, error) {
	var participant model.Participant
	err := r.db.GetContext(ctx, &participant, `
		SELECT * FROM participants
		WHERE session_id = $1 AND name = $2
	`, sessionID, name)
	return HandleNotFound(&participant, err)
}

func (r *participantRepo) FindOnlineBySession(ctx context.Context, sessionID string) ([]model.Participant, error) {
	var participants []model.Participant
	err := r.db.SelectContext(ctx, &participants, `
		SELECT * FROM participants
		WHERE session_id = $1 AND is_online
		ORDER BY joined_at
	`, sessionID)
	if err != nil {
		return nil, err
	}
	return participants, nil
}

func (r *participantRepo) CountOnline(ctx context.Context, sessionID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM participants
		WHERE session_id = $1 AND is_online
	`, sessionID)
	return count, err
}

func (r *participantRepo) Create(ctx context.Context, params model.CreateParticipantParams) (*model.Participant, error) {
	var participant model.Participant
	err := r.db.GetContext(ctx, &participant, `
		INSERT INTO participants (id, session_id, name, role)
		VALUES ($1, $2, $3, $4)
		RETURNING *
	`, params.ID, params.SessionID, params.Name, params.Role)
	if err != nil {
		return nil, err
	}
	return &participant, nil
}

func (r *participantRepo) SetOnline(ctx context.Context, id string, online bool) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE participants SET is_online = $2 WHERE id = $1
	`, id, online)
	return err
}
