package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/pointdeck/estimation-server-go/internal/errors"
	"github.com/pointdeck/estimation-server-go/internal/model"
)

func TestGetStateUnknownSession(t *testing.T) {
	f := newFixture(t)

	_, err := f.snapshots.GetState(context.Background(), "no-such-session", "")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))
}

func TestGetStateBetweenRounds(t *testing.T) {
	f := newFixture(t)
	f.join(t, "bob")

	state, err := f.snapshots.GetState(context.Background(), f.session.ID, f.admin.ID)
	require.NoError(t, err)

	assert.Equal(t, f.session.ID, state.SessionID)
	assert.False(t, state.VotingInProgress)
	assert.Nil(t, state.CurrentStory)
	assert.Len(t, state.Participants, 2)
}

func TestGetStateExcludesOfflineParticipants(t *testing.T) {
	f := newFixture(t)
	bob := f.join(t, "bob")
	require.NoError(t, f.sessions.LeaveSession(context.Background(), bob))

	state, err := f.snapshots.GetState(context.Background(), f.session.ID, "")
	require.NoError(t, err)
	require.Len(t, state.Participants, 1)
	assert.Equal(t, f.admin.ID, state.Participants[0].ID)
}

func TestGetStateDuringRound(t *testing.T) {
	f := newFixture(t)
	bob := f.join(t, "bob")
	story := f.addStory(t, "checkout flow")
	open := f.addTask(t, story.ID, "payment form")
	second := f.addTask(t, story.ID, "receipt page")
	sized := f.addTask(t, story.ID, "confirmation email")

	_, err := f.rounds.StartVoting(context.Background(), f.admin, story.ID)
	require.NoError(t, err)
	_, err = f.rounds.SetFinalEstimate(context.Background(), f.admin, sized.ID, 8)
	require.NoError(t, err)
	_, err = f.rounds.CastVote(context.Background(), bob, open.ID, 5)
	require.NoError(t, err)

	state, err := f.snapshots.GetState(context.Background(), f.session.ID, bob.ID)
	require.NoError(t, err)

	assert.True(t, state.VotingInProgress)
	assert.NotNil(t, state.VotingStartedAt)
	require.NotNil(t, state.CurrentStory)
	assert.Equal(t, story.ID, state.CurrentStory.ID)
	assert.False(t, state.CurrentStory.AllVoted)

	// Estimated tasks stay out of the round view.
	require.Len(t, state.CurrentStory.Tasks, 2)

	byID := make(map[string]int, len(state.CurrentStory.Tasks))
	for i, ts := range state.CurrentStory.Tasks {
		byID[ts.ID] = i
	}

	openState := state.CurrentStory.Tasks[byID[open.ID]]
	assert.Equal(t, 1, openState.VoteCount)
	assert.False(t, openState.AllVoted)
	assert.True(t, openState.HasVoted, "caller voted on this task")

	secondState := state.CurrentStory.Tasks[byID[second.ID]]
	assert.Equal(t, 0, secondState.VoteCount)
	assert.False(t, secondState.HasVoted)
}

func TestGetStateStoryAllVoted(t *testing.T) {
	f := newFixture(t)
	bob := f.join(t, "bob")
	story := f.addStory(t, "checkout flow")
	task := f.addTask(t, story.ID, "payment form")
	second := f.addTask(t, story.ID, "receipt page")

	_, err := f.rounds.StartVoting(context.Background(), f.admin, story.ID)
	require.NoError(t, err)
	_, err = f.rounds.CastVote(context.Background(), f.admin, task.ID, 5)
	require.NoError(t, err)
	_, err = f.rounds.CastVote(context.Background(), bob, task.ID, 8)
	require.NoError(t, err)
	_, err = f.rounds.CastVote(context.Background(), f.admin, second.ID, 3)
	require.NoError(t, err)

	state, err := f.snapshots.GetState(context.Background(), f.session.ID, "")
	require.NoError(t, err)
	require.NotNil(t, state.CurrentStory)
	assert.False(t, state.CurrentStory.AllVoted, "second task misses a vote")
}

func TestGetStateDanglingStory(t *testing.T) {
	f := newFixture(t)

	// Point the round at a story that no longer exists; the snapshot
	// reports the session as between rounds instead of failing.
	missing := "deleted-story"
	err := f.store.Sessions().UpdateRoundState(context.Background(), f.session.ID, model.RoundState{
		CurrentStoryID:   &missing,
		VotingInProgress: true,
	})
	require.NoError(t, err)

	state, err := f.snapshots.GetState(context.Background(), f.session.ID, "")
	require.NoError(t, err)
	assert.False(t, state.VotingInProgress)
	assert.Nil(t, state.CurrentStory)
}
