package repository

import (
	"context"
	"sort"

	"gorm.io/gorm"

	"github.com/wizardconnect/match-engine/internal/db"
	svcErr "github.com/wizardconnect/match-engine/internal/errors"
	"github.com/wizardconnect/match-engine/internal/utils/pagination"
)

// MatchRepository owns the durable match set for a campaign. All writes go
// through it; the UI layer never mutates match rows directly.
type MatchRepository struct {
	db *gorm.DB
}

// NewMatchRepository creates a new repository bound to the given DB connection.
func NewMatchRepository(database *gorm.DB) *MatchRepository {
	return &MatchRepository{db: database}
}

// ReplaceAlgorithmic swaps the campaign's algorithmic match set in a single
// transaction: all old algorithmic rows removed, all new rows inserted, or
// the store left exactly as before. Manual rows are untouched, so readers
// observe either the pre- or post-generation snapshot, never a mix.
func (r *MatchRepository) ReplaceAlgorithmic(ctx context.Context, campaignID uint64, rows []db.Match) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("campaign_id = ? AND origin = ?", campaignID, db.OriginAlgorithmic).
			Delete(&db.Match{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return svcErr.TransientStore("failed to replace algorithmic match set", err).
			WithCampaign(campaignID)
	}
	return nil
}

// CreateManual force-creates an administrator match after checking the
// manual-uniqueness invariant inside the transaction: a user may appear in
// at most one manual match per campaign, and no pair may be stored twice.
func (r *MatchRepository) CreateManual(ctx context.Context, campaignID, userA, userB uint64, score int, mutualCrush bool) (*db.Match, error) {
	low, high := userA, userB
	if low > high {
		low, high = high, low
	}

	match := db.Match{
		CampaignID:         campaignID,
		UserID:             low,
		MatchedUserID:      high,
		CompatibilityScore: score,
		IsMutualCrush:      mutualCrush,
		Origin:             db.OriginManual,
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var taken int64
		if err := tx.Model(&db.Match{}).
			Where("campaign_id = ? AND origin = ?", campaignID, db.OriginManual).
			Where("user_id IN (?, ?) OR matched_user_id IN (?, ?)", low, high, low, high).
			Count(&taken).Error; err != nil {
			return err
		}
		if taken > 0 {
			return svcErr.Conflict(svcErr.CodeAlreadyMatched, "user already in a manual match").
				WithCampaign(campaignID).WithUsers(userA, userB)
		}

		var dupes int64
		if err := tx.Model(&db.Match{}).
			Where("campaign_id = ? AND user_id = ? AND matched_user_id = ?", campaignID, low, high).
			Count(&dupes).Error; err != nil {
			return err
		}
		if dupes > 0 {
			return svcErr.Conflict(svcErr.CodeDuplicatePair, "pair already matched in this campaign").
				WithCampaign(campaignID).WithUsers(userA, userB)
		}

		return tx.Create(&match).Error
	})
	if err != nil {
		return nil, err
	}
	return &match, nil
}

// ManuallyMatchedUsers returns the set of users pinned by manual matches.
// They are removed from the automatic pool entirely on regeneration.
func (r *MatchRepository) ManuallyMatchedUsers(ctx context.Context, campaignID uint64) (map[uint64]bool, error) {
	var rows []db.Match
	if err := r.db.WithContext(ctx).
		Where("campaign_id = ? AND origin = ?", campaignID, db.OriginManual).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	pinned := make(map[uint64]bool, len(rows)*2)
	for _, m := range rows {
		pinned[m.UserID] = true
		pinned[m.MatchedUserID] = true
	}
	return pinned, nil
}

// ListForUser returns the user's match list: manual matches first, then
// algorithmic rows ordered by the user's own rank. A canonical row is served
// to both participants, but only rows the user's side actually ranked (or
// manual pins) appear in their list, so the list never exceeds top-K.
func (r *MatchRepository) ListForUser(ctx context.Context, campaignID, userID uint64) ([]db.Match, error) {
	var rows []db.Match
	err := r.db.WithContext(ctx).
		Where("campaign_id = ?", campaignID).
		Where(
			"(user_id = ? AND (`rank` > 0 OR origin = ?)) OR (matched_user_id = ? AND (matched_rank > 0 OR origin = ?))",
			userID, db.OriginManual, userID, db.OriginManual,
		).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	rankOf := func(m db.Match) int {
		if m.UserID == userID {
			return m.Rank
		}
		return m.MatchedRank
	}
	sort.Slice(rows, func(i, j int) bool {
		mi, mj := rows[i], rows[j]
		if (mi.Origin == db.OriginManual) != (mj.Origin == db.OriginManual) {
			return mi.Origin == db.OriginManual
		}
		if rankOf(mi) != rankOf(mj) {
			return rankOf(mi) < rankOf(mj)
		}
		return mi.ID < mj.ID
	})
	return rows, nil
}

// ListAll returns every match row in the campaign for administrators,
// ordered by row id with cursor-based pagination.
func (r *MatchRepository) ListAll(ctx context.Context, campaignID uint64, paginationToken *string, limit int) ([]db.Match, *string, error) {
	cursor, err := pagination.Decode(getString(paginationToken))
	if err != nil {
		return nil, nil, err
	}

	query := r.db.WithContext(ctx).
		Where("campaign_id = ?", campaignID).
		Order("id ASC").
		Limit(limit + 1)

	if cursor.LastID > 0 {
		query = query.Where("id > ?", cursor.LastID)
	}

	var rows []db.Match
	if err := query.Find(&rows).Error; err != nil {
		return nil, nil, err
	}

	var nextToken *string
	if len(rows) > limit {
		rows = rows[:limit]
		token, _ := pagination.Encode(pagination.Cursor{LastID: rows[limit-1].ID})
		nextToken = &token
	}
	return rows, nextToken, nil
}

// SetMutualCrush refreshes the mutual flag on the stored row for one pair.
// Returns false when no row exists for the pair in this campaign.
func (r *MatchRepository) SetMutualCrush(ctx context.Context, campaignID, userA, userB uint64, mutual bool) (bool, error) {
	low, high := userA, userB
	if low > high {
		low, high = high, low
	}

	res := r.db.WithContext(ctx).Model(&db.Match{}).
		Where("campaign_id = ? AND user_id = ? AND matched_user_id = ?", campaignID, low, high).
		Update("is_mutual_crush", mutual)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// CountForCampaign returns the number of stored match rows.
func (r *MatchRepository) CountForCampaign(ctx context.Context, campaignID uint64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&db.Match{}).
		Where("campaign_id = ?", campaignID).
		Count(&count).Error
	return count, err
}

// getString safely dereferences a string pointer for pagination tokens.
func getString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
