package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/pointdeck/estimation-server-go/internal/errors"
	"github.com/pointdeck/estimation-server-go/internal/model"
	"github.com/pointdeck/estimation-server-go/internal/service"
)

func TestCreateSession(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, "sprint 12", f.session.Name)
	assert.True(t, f.session.IsActive)
	assert.Equal(t, 60, f.session.VotingTimerSeconds)
	assert.Equal(t, "alice", f.admin.Name)
	assert.Equal(t, model.RoleAdmin, f.admin.Role)
	assert.True(t, f.admin.IsOnline)
}

func TestCreateSessionValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.sessions.CreateSession(context.Background(), "  ", "alice")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeMissingRequired, apperrors.GetCode(err))

	_, err = f.sessions.CreateSession(context.Background(), "sprint 13", "")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeMissingRequired, apperrors.GetCode(err))
}

func TestJoinSession(t *testing.T) {
	f := newFixture(t)

	bob, err := f.sessions.JoinSession(context.Background(), f.session.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, model.RoleParticipant, bob.Role)
	assert.True(t, bob.IsOnline)
	assert.Equal(t, 1, f.pub.CountByType(service.EventParticipantJoined))
}

func TestJoinSessionUnknownSession(t *testing.T) {
	f := newFixture(t)

	_, err := f.sessions.JoinSession(context.Background(), "no-such-session", "bob")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))
}

func TestJoinSessionBlankName(t *testing.T) {
	f := newFixture(t)

	_, err := f.sessions.JoinSession(context.Background(), f.session.ID, "   ")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeMissingRequired, apperrors.GetCode(err))
}

func TestRejoinReusesParticipant(t *testing.T) {
	f := newFixture(t)

	bob := f.join(t, "bob")
	require.NoError(t, f.sessions.LeaveSession(context.Background(), bob))

	offline, err := f.store.Participants().FindByID(context.Background(), bob.ID)
	require.NoError(t, err)
	assert.False(t, offline.IsOnline)

	rejoined, err := f.sessions.JoinSession(context.Background(), f.session.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, bob.ID, rejoined.ID)
	assert.True(t, rejoined.IsOnline)
}

func TestLeaveSessionKeepsVotes(t *testing.T) {
	f := newFixture(t)
	bob := f.join(t, "bob")
	story := f.addStory(t, "checkout flow")
	task := f.addTask(t, story.ID, "payment form")

	_, err := f.rounds.StartVoting(context.Background(), f.admin, story.ID)
	require.NoError(t, err)
	_, err = f.rounds.CastVote(context.Background(), bob, task.ID, 8)
	require.NoError(t, err)

	require.NoError(t, f.sessions.LeaveSession(context.Background(), bob))

	count, err := f.store.Votes().CountByTask(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, 1, f.pub.CountByType(service.EventParticipantLeft))
}

func TestResolveParticipant(t *testing.T) {
	f := newFixture(t)
	bob := f.join(t, "bob")

	resolved, err := f.sessions.ResolveParticipant(context.Background(), f.session.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, bob.ID, resolved.ID)

	_, err = f.sessions.ResolveParticipant(context.Background(), f.session.ID, "no-such-participant")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))

	// A participant id from another session must not resolve here.
	other := newFixture(t)
	_, err = f.sessions.ResolveParticipant(context.Background(), f.session.ID, other.admin.ID)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))
}
