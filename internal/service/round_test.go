package service_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/pointdeck/estimation-server-go/internal/errors"
	"github.com/pointdeck/estimation-server-go/internal/model"
	"github.com/pointdeck/estimation-server-go/internal/service"
)

func TestStartVotingRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	story := f.addStory(t, "checkout flow")
	f.addTask(t, story.ID, "payment form")
	bob := f.join(t, "bob")

	_, err := f.rounds.StartVoting(context.Background(), bob, story.ID)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeForbidden, apperrors.GetCode(err))

	session := f.reloadSession(t)
	assert.False(t, session.VotingInProgress)
	assert.Nil(t, session.CurrentStoryID)
}

func TestStartVotingUnknownStory(t *testing.T) {
	f := newFixture(t)

	_, err := f.rounds.StartVoting(context.Background(), f.admin, "no-such-story")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))
}

func TestStartVotingOpensRound(t *testing.T) {
	f := newFixture(t)
	story := f.addStory(t, "checkout flow")
	f.addTask(t, story.ID, "payment form")

	session, err := f.rounds.StartVoting(context.Background(), f.admin, story.ID)
	require.NoError(t, err)

	assert.True(t, session.VotingInProgress)
	require.NotNil(t, session.CurrentStoryID)
	assert.Equal(t, story.ID, *session.CurrentStoryID)
	assert.NotNil(t, session.VotingStartedAt)
	assert.Equal(t, 1, f.pub.CountByType(service.EventVotingStarted))
}

func TestStartVotingClearsVotesButKeepsEstimates(t *testing.T) {
	f := newFixture(t)
	story := f.addStory(t, "checkout flow")
	open := f.addTask(t, story.ID, "payment form")
	sized := f.addTask(t, story.ID, "confirmation email")

	_, err := f.rounds.StartVoting(context.Background(), f.admin, story.ID)
	require.NoError(t, err)

	_, err = f.rounds.CastVote(context.Background(), f.admin, sized.ID, 8)
	require.NoError(t, err)
	_, err = f.rounds.SetFinalEstimate(context.Background(), f.admin, sized.ID, 8)
	require.NoError(t, err)

	_, err = f.rounds.CastVote(context.Background(), f.admin, open.ID, 5)
	require.NoError(t, err)

	// Restarting the round drops open-task votes but leaves the final
	// estimate untouched.
	_, err = f.rounds.StartVoting(context.Background(), f.admin, story.ID)
	require.NoError(t, err)

	count, err := f.store.Votes().CountByTask(context.Background(), open.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	task := f.reloadTask(t, sized.ID)
	require.NotNil(t, task.FinalEstimate)
	assert.Equal(t, model.Estimate(8), *task.FinalEstimate)
}

func TestCastVoteRejectsValueOutsideDeck(t *testing.T) {
	f := newFixture(t)
	story := f.addStory(t, "checkout flow")
	task := f.addTask(t, story.ID, "payment form")

	_, err := f.rounds.StartVoting(context.Background(), f.admin, story.ID)
	require.NoError(t, err)

	for _, estimate := range []model.Estimate{4, 7, -1, 100, 998} {
		_, err := f.rounds.CastVote(context.Background(), f.admin, task.ID, estimate)
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.GetCode(err))
	}
}

func TestCastVoteWithoutActiveRound(t *testing.T) {
	f := newFixture(t)
	story := f.addStory(t, "checkout flow")
	task := f.addTask(t, story.ID, "payment form")

	_, err := f.rounds.CastVote(context.Background(), f.admin, task.ID, 5)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeInvalidState, apperrors.GetCode(err))
}

func TestCastVoteOnTaskOutsideCurrentStory(t *testing.T) {
	f := newFixture(t)
	voted := f.addStory(t, "checkout flow")
	f.addTask(t, voted.ID, "payment form")
	other := f.addStory(t, "admin panel")
	outside := f.addTask(t, other.ID, "user list")

	_, err := f.rounds.StartVoting(context.Background(), f.admin, voted.ID)
	require.NoError(t, err)

	_, err = f.rounds.CastVote(context.Background(), f.admin, outside.ID, 5)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeInvalidState, apperrors.GetCode(err))
}

func TestCastVoteOnEstimatedTask(t *testing.T) {
	f := newFixture(t)
	story := f.addStory(t, "checkout flow")
	task := f.addTask(t, story.ID, "payment form")
	f.addTask(t, story.ID, "receipt page")

	_, err := f.rounds.StartVoting(context.Background(), f.admin, story.ID)
	require.NoError(t, err)
	_, err = f.rounds.SetFinalEstimate(context.Background(), f.admin, task.ID, 13)
	require.NoError(t, err)

	_, err = f.rounds.CastVote(context.Background(), f.admin, task.ID, 5)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeInvalidState, apperrors.GetCode(err))
}

func TestCastVoteReplacesPreviousVote(t *testing.T) {
	f := newFixture(t)
	f.join(t, "bob")
	story := f.addStory(t, "checkout flow")
	task := f.addTask(t, story.ID, "payment form")

	_, err := f.rounds.StartVoting(context.Background(), f.admin, story.ID)
	require.NoError(t, err)

	first, err := f.rounds.CastVote(context.Background(), f.admin, task.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, first.VoteCount)

	second, err := f.rounds.CastVote(context.Background(), f.admin, task.ID, 13)
	require.NoError(t, err)
	assert.Equal(t, 1, second.VoteCount)
	assert.False(t, second.RoundClosed)

	votes, err := f.store.Votes().FindByTaskWithNames(context.Background(), task.ID)
	require.NoError(t, err)
	require.Len(t, votes, 1)
	assert.Equal(t, model.Estimate(13), votes[0].Estimate)
}

func TestCastVoteDoesNotCloseWithNoOneOnline(t *testing.T) {
	f := newFixture(t)
	story := f.addStory(t, "checkout flow")
	task := f.addTask(t, story.ID, "payment form")

	_, err := f.rounds.StartVoting(context.Background(), f.admin, story.ID)
	require.NoError(t, err)

	// The admin drops offline before the vote lands, so the online head
	// count is zero and the round can never complete on its own.
	require.NoError(t, f.store.Participants().SetOnline(context.Background(), f.admin.ID, false))

	result, err := f.rounds.CastVote(context.Background(), f.admin, task.ID, 5)
	require.NoError(t, err)
	assert.False(t, result.AllVoted)
	assert.False(t, result.RoundClosed)

	session := f.reloadSession(t)
	assert.True(t, session.VotingInProgress)
}

func TestCastVoteAutoClosesRound(t *testing.T) {
	f := newFixture(t)
	bob := f.join(t, "bob")
	carol := f.join(t, "carol")
	story := f.addStory(t, "checkout flow")
	task := f.addTask(t, story.ID, "payment form")

	_, err := f.rounds.StartVoting(context.Background(), f.admin, story.ID)
	require.NoError(t, err)

	r1, err := f.rounds.CastVote(context.Background(), f.admin, task.ID, 5)
	require.NoError(t, err)
	assert.False(t, r1.RoundClosed)

	r2, err := f.rounds.CastVote(context.Background(), bob, task.ID, 8)
	require.NoError(t, err)
	assert.False(t, r2.RoundClosed)

	r3, err := f.rounds.CastVote(context.Background(), carol, task.ID, 3)
	require.NoError(t, err)
	assert.True(t, r3.AllVoted)
	assert.True(t, r3.RoundClosed)
	require.Len(t, r3.Results, 1)
	assert.Equal(t, task.ID, r3.Results[0].TaskID)
	assert.Len(t, r3.Results[0].Votes, 3)
	assert.Equal(t, 5.3, r3.Results[0].Average)

	session := f.reloadSession(t)
	assert.False(t, session.VotingInProgress)
	assert.Nil(t, session.VotingStartedAt)
	require.NotNil(t, session.CurrentStoryID)
	assert.Equal(t, story.ID, *session.CurrentStoryID)
	assert.Equal(t, 1, f.pub.CountByType(service.EventVotingEnded))
}

func TestCastVoteAverageExcludesUnknown(t *testing.T) {
	f := newFixture(t)
	bob := f.join(t, "bob")
	carol := f.join(t, "carol")
	story := f.addStory(t, "checkout flow")
	task := f.addTask(t, story.ID, "payment form")

	_, err := f.rounds.StartVoting(context.Background(), f.admin, story.ID)
	require.NoError(t, err)

	_, err = f.rounds.CastVote(context.Background(), f.admin, task.ID, 5)
	require.NoError(t, err)
	_, err = f.rounds.CastVote(context.Background(), bob, task.ID, 8)
	require.NoError(t, err)
	result, err := f.rounds.CastVote(context.Background(), carol, task.ID, model.EstimateUnknown)
	require.NoError(t, err)

	require.True(t, result.RoundClosed)
	require.Len(t, result.Results, 1)
	assert.Equal(t, 6.5, result.Results[0].Average)
	assert.Len(t, result.Results[0].Votes, 3)
}

func TestCastVoteWaitsForEveryTask(t *testing.T) {
	f := newFixture(t)
	story := f.addStory(t, "checkout flow")
	first := f.addTask(t, story.ID, "payment form")
	f.addTask(t, story.ID, "receipt page")

	_, err := f.rounds.StartVoting(context.Background(), f.admin, story.ID)
	require.NoError(t, err)

	result, err := f.rounds.CastVote(context.Background(), f.admin, first.ID, 5)
	require.NoError(t, err)
	assert.True(t, result.AllVoted)
	assert.False(t, result.RoundClosed, "second task still has no votes")
}

func TestEndVotingRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	bob := f.join(t, "bob")
	story := f.addStory(t, "checkout flow")
	f.addTask(t, story.ID, "payment form")

	_, err := f.rounds.StartVoting(context.Background(), f.admin, story.ID)
	require.NoError(t, err)

	_, err = f.rounds.EndVoting(context.Background(), bob)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeForbidden, apperrors.GetCode(err))

	session := f.reloadSession(t)
	assert.True(t, session.VotingInProgress)
}

func TestEndVotingClosesExactlyOnce(t *testing.T) {
	f := newFixture(t)
	bob := f.join(t, "bob")
	story := f.addStory(t, "checkout flow")
	task := f.addTask(t, story.ID, "payment form")

	_, err := f.rounds.StartVoting(context.Background(), f.admin, story.ID)
	require.NoError(t, err)
	_, err = f.rounds.CastVote(context.Background(), bob, task.ID, 8)
	require.NoError(t, err)

	results, err := f.rounds.EndVoting(context.Background(), f.admin)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 8.0, results[0].Average)

	_, err = f.rounds.EndVoting(context.Background(), f.admin)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeInvalidState, apperrors.GetCode(err))
	assert.Equal(t, 1, f.pub.CountByType(service.EventVotingEnded))
}

func TestRevoteClearsEstimatesAndVotes(t *testing.T) {
	f := newFixture(t)
	story := f.addStory(t, "checkout flow")
	sized := f.addTask(t, story.ID, "payment form")
	open := f.addTask(t, story.ID, "receipt page")

	_, err := f.rounds.StartVoting(context.Background(), f.admin, story.ID)
	require.NoError(t, err)
	_, err = f.rounds.CastVote(context.Background(), f.admin, open.ID, 5)
	require.NoError(t, err)
	_, err = f.rounds.SetFinalEstimate(context.Background(), f.admin, sized.ID, 13)
	require.NoError(t, err)

	session, err := f.rounds.Revote(context.Background(), f.admin, story.ID)
	require.NoError(t, err)
	assert.True(t, session.VotingInProgress)

	// Unlike a plain restart, a revote wipes final estimates too.
	task := f.reloadTask(t, sized.ID)
	assert.Nil(t, task.FinalEstimate)

	count, err := f.store.Votes().CountByTask(context.Background(), open.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestRevoteRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	bob := f.join(t, "bob")
	story := f.addStory(t, "checkout flow")

	_, err := f.rounds.Revote(context.Background(), bob, story.ID)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeForbidden, apperrors.GetCode(err))
}

func TestSetFinalEstimate(t *testing.T) {
	f := newFixture(t)
	story := f.addStory(t, "checkout flow")
	first := f.addTask(t, story.ID, "payment form")
	second := f.addTask(t, story.ID, "receipt page")

	_, err := f.rounds.SetFinalEstimate(context.Background(), f.admin, first.ID, 8)
	require.NoError(t, err)

	result, err := f.rounds.SetFinalEstimate(context.Background(), f.admin, second.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, model.Estimate(5), result.Estimate)
	assert.Equal(t, 13, result.StoryTotal)
	assert.Equal(t, 2, f.pub.CountByType(service.EventEstimateSet))
}

func TestSetFinalEstimateValidation(t *testing.T) {
	f := newFixture(t)
	bob := f.join(t, "bob")
	story := f.addStory(t, "checkout flow")
	task := f.addTask(t, story.ID, "payment form")

	_, err := f.rounds.SetFinalEstimate(context.Background(), bob, task.ID, 8)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeForbidden, apperrors.GetCode(err))

	_, err = f.rounds.SetFinalEstimate(context.Background(), f.admin, task.ID, 6)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.GetCode(err))

	_, err = f.rounds.SetFinalEstimate(context.Background(), f.admin, "no-such-task", 8)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))

	// Tasks belonging to another session are invisible, not forbidden.
	other := newFixture(t)
	otherStory := other.addStory(t, "unrelated")
	foreign := other.addTask(t, otherStory.ID, "foreign task")
	_, err = f.rounds.SetFinalEstimate(context.Background(), f.admin, foreign.ID, 8)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))
}

func TestConcurrentFinalVotesCloseOnce(t *testing.T) {
	f := newFixture(t)
	story := f.addStory(t, "checkout flow")
	task := f.addTask(t, story.ID, "payment form")

	voters := []*model.Participant{f.admin}
	for _, name := range []string{"bob", "carol", "dave", "erin"} {
		voters = append(voters, f.join(t, name))
	}

	_, err := f.rounds.StartVoting(context.Background(), f.admin, story.ID)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]*service.CastVoteResult, len(voters))
	errs := make([]error, len(voters))

	for i, voter := range voters {
		wg.Add(1)
		go func(i int, voter *model.Participant) {
			defer wg.Done()
			results[i], errs[i] = f.rounds.CastVote(context.Background(), voter, task.ID, 5)
		}(i, voter)
	}
	wg.Wait()

	closed := 0
	for i := range voters {
		require.NoError(t, errs[i])
		if results[i].RoundClosed {
			closed++
		}
	}
	assert.Equal(t, 1, closed, "exactly one vote closes the round")
	assert.Equal(t, 1, f.pub.CountByType(service.EventVotingEnded))

	session := f.reloadSession(t)
	assert.False(t, session.VotingInProgress)
}
