package model

import "time"

type Session struct {
	ID                 string     `db:"id" json:"id"`
	Name               string     `db:"name" json:"name"`
	IsActive           bool       `db:"is_active" json:"isActive"`
	CurrentStoryID     *string    `db:"current_story_id" json:"currentStoryId,omitempty"`
	VotingInProgress   bool       `db:"voting_in_progress" json:"votingInProgress"`
	VotingStartedAt    *time.Time `db:"voting_started_at" json:"votingStartedAt,omitempty"`
	VotingTimerSeconds int        `db:"voting_timer_seconds" json:"votingTimerSeconds"`
	CreatedAt          time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updatedAt"`
}

type CreateSessionParams struct {
	ID                 string
	Name               string
	VotingTimerSeconds int
}

// RoundState is the session-level voting state written by the round
// controller in a single update.
type RoundState struct {
	CurrentStoryID   *string
	VotingInProgress bool
	VotingStartedAt  *time.Time
}
