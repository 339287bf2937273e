package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/wizardconnect/match-engine/internal/db"
	svcErr "github.com/wizardconnect/match-engine/internal/errors"
	"github.com/wizardconnect/match-engine/internal/repository"
)

// setup in-memory DB
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		NowFunc: func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.Migrate(database); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return database
}

func algorithmicRow(campaignID, low, high uint64, score, rank, matchedRank int) db.Match {
	return db.Match{
		CampaignID:         campaignID,
		UserID:             low,
		MatchedUserID:      high,
		CompatibilityScore: score,
		Rank:               rank,
		MatchedRank:        matchedRank,
		Origin:             db.OriginAlgorithmic,
	}
}

func TestCreateManualCanonicalizesPair(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMatchRepository(setupTestDB(t))

	match, err := repo.CreateManual(ctx, 1, 9, 4, 80, false)
	require.NoError(t, err)

	assert.Equal(t, uint64(4), match.UserID)
	assert.Equal(t, uint64(9), match.MatchedUserID)
	assert.Equal(t, db.OriginManual, match.Origin)
	assert.Equal(t, 80, match.CompatibilityScore)
}

func TestCreateManualConflicts(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMatchRepository(setupTestDB(t))

	_, err := repo.CreateManual(ctx, 1, 1, 2, 90, false)
	require.NoError(t, err)

	// user 1 already manually matched
	_, err = repo.CreateManual(ctx, 1, 1, 3, 85, false)
	require.Error(t, err)
	assert.True(t, svcErr.IsConflict(err))
	assert.Equal(t, svcErr.CodeAlreadyMatched, svcErr.CodeOf(err))

	// same invariant seen from the other side of the pair
	_, err = repo.CreateManual(ctx, 1, 4, 2, 85, false)
	require.Error(t, err)
	assert.True(t, svcErr.IsConflict(err))

	// a different campaign is unaffected
	_, err = repo.CreateManual(ctx, 2, 1, 3, 85, false)
	assert.NoError(t, err)
}

func TestCreateManualRejectsDuplicatePair(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewMatchRepository(dbase)

	// pair already stored as an algorithmic row
	require.NoError(t, repo.ReplaceAlgorithmic(ctx, 1, []db.Match{
		algorithmicRow(1, 2, 5, 70, 1, 1),
	}))

	_, err := repo.CreateManual(ctx, 1, 5, 2, 99, false)
	require.Error(t, err)
	assert.True(t, svcErr.IsConflict(err))
	assert.Equal(t, svcErr.CodeDuplicatePair, svcErr.CodeOf(err))
}

func TestReplaceAlgorithmicSwapsWholeSet(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewMatchRepository(dbase)

	_, err := repo.CreateManual(ctx, 1, 7, 8, 95, false)
	require.NoError(t, err)

	require.NoError(t, repo.ReplaceAlgorithmic(ctx, 1, []db.Match{
		algorithmicRow(1, 1, 2, 60, 1, 1),
		algorithmicRow(1, 1, 3, 55, 2, 1),
	}))

	require.NoError(t, repo.ReplaceAlgorithmic(ctx, 1, []db.Match{
		algorithmicRow(1, 2, 3, 80, 1, 1),
	}))

	var rows []db.Match
	require.NoError(t, dbase.Where("campaign_id = ?", 1).Order("id").Find(&rows).Error)
	require.Len(t, rows, 2)

	// manual row survives every swap
	assert.Equal(t, db.OriginManual, rows[0].Origin)
	assert.Equal(t, uint64(7), rows[0].UserID)

	// only the new algorithmic set remains
	assert.Equal(t, db.OriginAlgorithmic, rows[1].Origin)
	assert.Equal(t, uint64(2), rows[1].UserID)
	assert.Equal(t, uint64(3), rows[1].MatchedUserID)
}

func TestReplaceAlgorithmicEmptySet(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewMatchRepository(dbase)

	require.NoError(t, repo.ReplaceAlgorithmic(ctx, 1, []db.Match{
		algorithmicRow(1, 1, 2, 60, 1, 1),
	}))
	require.NoError(t, repo.ReplaceAlgorithmic(ctx, 1, nil))

	count, err := repo.CountForCampaign(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestManuallyMatchedUsers(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMatchRepository(setupTestDB(t))

	_, err := repo.CreateManual(ctx, 1, 3, 9, 90, false)
	require.NoError(t, err)

	pinned, err := repo.ManuallyMatchedUsers(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, map[uint64]bool{3: true, 9: true}, pinned)

	// algorithmic rows never pin anyone
	require.NoError(t, repo.ReplaceAlgorithmic(ctx, 1, []db.Match{
		algorithmicRow(1, 4, 5, 50, 1, 1),
	}))
	pinned, err = repo.ManuallyMatchedUsers(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, pinned, 2)
}

func TestListForUserOrderingAndVisibility(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMatchRepository(setupTestDB(t))

	require.NoError(t, repo.ReplaceAlgorithmic(ctx, 1, []db.Match{
		// user 1 ranked 2 and 3; user 3 did not rank 1 back
		algorithmicRow(1, 1, 2, 90, 1, 2),
		algorithmicRow(1, 1, 3, 70, 2, 0),
		// user 4 ranked 1, but 1 did not rank 4: invisible in 1's list
		algorithmicRow(1, 1, 4, 40, 0, 1),
	}))
	_, err := repo.CreateManual(ctx, 1, 1, 9, 99, false)
	require.NoError(t, err)

	rows, err := repo.ListForUser(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	// manual pin first, then rank order
	assert.Equal(t, db.OriginManual, rows[0].Origin)
	assert.Equal(t, uint64(9), rows[0].MatchedUserID)
	assert.Equal(t, uint64(2), rows[1].MatchedUserID)
	assert.Equal(t, uint64(3), rows[2].MatchedUserID)

	// user 4 sees the pair it ranked even though user 1 does not
	rows, err = repo.ListForUser(ctx, 1, 4)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, uint64(1), rows[0].UserID)
}

func TestListAllPagination(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMatchRepository(setupTestDB(t))

	require.NoError(t, repo.ReplaceAlgorithmic(ctx, 1, []db.Match{
		algorithmicRow(1, 1, 2, 90, 1, 1),
		algorithmicRow(1, 1, 3, 80, 2, 1),
		algorithmicRow(1, 2, 4, 70, 2, 1),
		algorithmicRow(1, 3, 4, 60, 2, 2),
		algorithmicRow(1, 2, 5, 50, 3, 1),
	}))

	var all []db.Match
	var token *string
	for {
		page, next, err := repo.ListAll(ctx, 1, token, 2)
		require.NoError(t, err)
		all = append(all, page...)
		if next == nil {
			break
		}
		require.Len(t, page, 2)
		token = next
	}

	require.Len(t, all, 5)
	for i := 1; i < len(all); i++ {
		assert.Greater(t, all[i].ID, all[i-1].ID)
	}
}

func TestSetMutualCrush(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMatchRepository(setupTestDB(t))

	require.NoError(t, repo.ReplaceAlgorithmic(ctx, 1, []db.Match{
		algorithmicRow(1, 2, 6, 75, 1, 1),
	}))

	// order of the pair does not matter
	updated, err := repo.SetMutualCrush(ctx, 1, 6, 2, true)
	require.NoError(t, err)
	assert.True(t, updated)

	rows, err := repo.ListForUser(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].IsMutualCrush)

	// no row for the pair: no-op
	updated, err = repo.SetMutualCrush(ctx, 1, 2, 9, true)
	require.NoError(t, err)
	assert.False(t, updated)
}
