package model

import "time"

// Participant belongs to exactly one session. Names are unique within a
// session; rejoining by name reuses the record and flips IsOnline back on.
type Participant struct {
	ID        string    `db:"id" json:"id"`
	SessionID string    `db:"session_id" json:"sessionId"`
	Name      string    `db:"name" json:"name"`
	Role      Role      `db:"role" json:"role"`
	IsOnline  bool      `db:"is_online" json:"isOnline"`
	JoinedAt  time.Time `db:"joined_at" json:"joinedAt"`
}

type CreateParticipantParams struct {
	ID        string
	SessionID string
	Name      string
	Role      Role
}
