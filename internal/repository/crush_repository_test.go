package repository_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wizardconnect/match-engine/internal/db"
	"github.com/wizardconnect/match-engine/internal/repository"
)

func TestDeclareIsIdempotent(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewCrushRepository(dbase)

	require.NoError(t, repo.Declare(ctx, 1, 3, 7))
	require.NoError(t, repo.Declare(ctx, 1, 3, 7))

	var count int64
	require.NoError(t, dbase.Model(&db.CrushDeclaration{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestIsMutual(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewCrushRepository(setupTestDB(t))

	require.NoError(t, repo.Declare(ctx, 1, 3, 7))

	mutual, err := repo.IsMutual(ctx, 1, 3, 7)
	require.NoError(t, err)
	assert.False(t, mutual)

	require.NoError(t, repo.Declare(ctx, 1, 7, 3))

	mutual, err = repo.IsMutual(ctx, 1, 3, 7)
	require.NoError(t, err)
	assert.True(t, mutual)

	// direction of the query does not matter
	mutual, err = repo.IsMutual(ctx, 1, 7, 3)
	require.NoError(t, err)
	assert.True(t, mutual)

	// declarations are scoped per campaign
	mutual, err = repo.IsMutual(ctx, 2, 3, 7)
	require.NoError(t, err)
	assert.False(t, mutual)
}

func TestAllForCampaign(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewCrushRepository(setupTestDB(t))

	require.NoError(t, repo.Declare(ctx, 1, 3, 7))
	require.NoError(t, repo.Declare(ctx, 1, 7, 3))
	require.NoError(t, repo.Declare(ctx, 2, 5, 6))

	decls, err := repo.AllForCampaign(ctx, 1)
	require.NoError(t, err)
	require.Len(t, decls, 2)
	for _, d := range decls {
		assert.EqualValues(t, 1, d.CampaignID)
	}
}
