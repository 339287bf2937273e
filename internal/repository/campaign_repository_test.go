package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wizardconnect/match-engine/internal/db"
	svcErr "github.com/wizardconnect/match-engine/internal/errors"
	"github.com/wizardconnect/match-engine/internal/lifecycle"
	"github.com/wizardconnect/match-engine/internal/repository"
)

func TestTransitionForwardOnly(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewCampaignRepository(setupTestDB(t))

	c := &db.Campaign{Name: "Spring Fling"}
	require.NoError(t, repo.Create(ctx, c))
	assert.Equal(t, string(lifecycle.PhaseDraft), c.Phase)
	assert.False(t, c.IsActive)

	updated, err := repo.Transition(ctx, c.ID, lifecycle.PhaseSurveyOpen)
	require.NoError(t, err)
	assert.Equal(t, string(lifecycle.PhaseSurveyOpen), updated.Phase)
	assert.True(t, updated.IsActive)

	// no going back
	_, err = repo.Transition(ctx, c.ID, lifecycle.PhaseDraft)
	require.Error(t, err)
	assert.True(t, svcErr.IsState(err))
	assert.Equal(t, svcErr.CodeIllegalTransition, svcErr.CodeOf(err))

	// no skipping ahead
	_, err = repo.Transition(ctx, c.ID, lifecycle.PhaseRevealed)
	require.Error(t, err)
	assert.True(t, svcErr.IsState(err))
}

func TestTransitionRejectsUnknownPhase(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewCampaignRepository(setupTestDB(t))

	c := &db.Campaign{Name: "Spring Fling"}
	require.NoError(t, repo.Create(ctx, c))

	_, err := repo.Transition(ctx, c.ID, lifecycle.Phase("paused"))
	require.Error(t, err)
	assert.True(t, svcErr.IsValidation(err))
}

func TestSingleActiveInvariant(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewCampaignRepository(setupTestDB(t))

	first := &db.Campaign{Name: "Spring Fling"}
	require.NoError(t, repo.Create(ctx, first))
	_, err := repo.Transition(ctx, first.ID, lifecycle.PhaseSurveyOpen)
	require.NoError(t, err)

	second := &db.Campaign{Name: "Summer Social"}
	require.NoError(t, repo.Create(ctx, second))
	_, err = repo.Transition(ctx, second.ID, lifecycle.PhaseSurveyOpen)
	require.Error(t, err)
	assert.True(t, svcErr.IsConflict(err))
	assert.Equal(t, svcErr.CodeActiveCampaignClash, svcErr.CodeOf(err))

	// archiving the first frees the slot
	for _, next := range []lifecycle.Phase{
		lifecycle.PhaseSurveyClosed, lifecycle.PhaseGenerating, lifecycle.PhaseMatchesReady,
		lifecycle.PhaseProfileUpdateOpen, lifecycle.PhaseRevealed, lifecycle.PhaseArchived,
	} {
		_, err = repo.Transition(ctx, first.ID, next)
		require.NoError(t, err)
	}

	active, err := repo.Transition(ctx, second.ID, lifecycle.PhaseSurveyOpen)
	require.NoError(t, err)
	assert.True(t, active.IsActive)
}

func TestGetActive(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewCampaignRepository(setupTestDB(t))

	_, err := repo.GetActive(ctx)
	require.Error(t, err)

	c := &db.Campaign{Name: "Spring Fling"}
	require.NoError(t, repo.Create(ctx, c))
	_, err = repo.Transition(ctx, c.ID, lifecycle.PhaseSurveyOpen)
	require.NoError(t, err)

	active, err := repo.GetActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, c.ID, active.ID)
}

func TestCloseDueSurveys(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewCampaignRepository(dbase)

	now := time.Now()
	due := &db.Campaign{
		Name:          "Spring Fling",
		Phase:         string(lifecycle.PhaseSurveyOpen),
		IsActive:      true,
		SurveyOpenAt:  now.Add(-7 * 24 * time.Hour),
		SurveyCloseAt: now.Add(-time.Hour),
	}
	require.NoError(t, dbase.Create(due).Error)

	moved, err := repo.CloseDueSurveys(ctx, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, moved)

	got, err := repo.GetByID(ctx, due.ID)
	require.NoError(t, err)
	assert.Equal(t, string(lifecycle.PhaseSurveyClosed), got.Phase)

	// nothing left to close
	moved, err = repo.CloseDueSurveys(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, moved)
}

func TestUpdateCounters(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewCampaignRepository(setupTestDB(t))

	c := &db.Campaign{Name: "Spring Fling"}
	require.NoError(t, repo.Create(ctx, c))

	require.NoError(t, repo.UpdateCounters(ctx, c.ID, 18, 42))

	got, err := repo.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 18, got.TotalParticipants)
	assert.Equal(t, 42, got.TotalMatchesGenerated)
}
