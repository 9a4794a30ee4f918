package model

import "time"

type UserStory struct {
	ID          string    `db:"id" json:"id"`
	SessionID   string    `db:"session_id" json:"sessionId"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	Order       int       `db:"position" json:"order"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

type Task struct {
	ID            string    `db:"id" json:"id"`
	UserStoryID   string    `db:"user_story_id" json:"userStoryId"`
	Title         string    `db:"title" json:"title"`
	Description   string    `db:"description" json:"description"`
	Order         int       `db:"position" json:"order"`
	FinalEstimate *Estimate `db:"final_estimate" json:"finalEstimate,omitempty"`
	// IsVoting mirrors membership in the active round for older clients.
	// The session-level flag is authoritative; this column is never read
	// by the round controller.
	IsVoting  bool      `db:"is_voting" json:"isVoting"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

func (t *Task) Estimated() bool {
	return t.FinalEstimate != nil
}

type CreateUserStoryParams struct {
	ID          string
	SessionID   string
	Title       string
	Description string
	Order       int
}

type CreateTaskParams struct {
	ID          string
	UserStoryID string
	Title       string
	Description string
	Order       int
}
