package model

import "time"

// Vote is one participant's estimate on one task. At most one row exists
// per (task, participant); repeated casts replace the value.
type Vote struct {
	ID            string    `db:"id" json:"id"`
	TaskID        string    `db:"task_id" json:"taskId"`
	ParticipantID string    `db:"participant_id" json:"participantId"`
	Estimate      Estimate  `db:"estimate" json:"estimate"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
}

type UpsertVoteParams struct {
	ID            string
	TaskID        string
	ParticipantID string
	Estimate      Estimate
}

// TaskVote is a vote joined with the voter's display name, as revealed in
// round results.
type TaskVote struct {
	ParticipantID   string   `db:"participant_id" json:"participantId"`
	ParticipantName string   `db:"participant_name" json:"participant"`
	Estimate        Estimate `db:"estimate" json:"estimate"`
}
