package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/wizardconnect/match-engine/internal/db"
	svcErr "github.com/wizardconnect/match-engine/internal/errors"
	"github.com/wizardconnect/match-engine/internal/lifecycle"
)

// CampaignRepository owns campaign rows and enforces the lifecycle
// invariants at every transition: phases only move forward, and at most one
// campaign may sit outside draft/archived.
type CampaignRepository struct {
	db *gorm.DB
}

// NewCampaignRepository creates a new repository bound to the given DB connection.
func NewCampaignRepository(database *gorm.DB) *CampaignRepository {
	return &CampaignRepository{db: database}
}

// GetActive returns the single active campaign, or gorm.ErrRecordNotFound.
func (r *CampaignRepository) GetActive(ctx context.Context) (*db.Campaign, error) {
	var c db.Campaign
	err := r.db.WithContext(ctx).Where("is_active = ?", true).First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetByID returns one campaign.
func (r *CampaignRepository) GetByID(ctx context.Context, id uint64) (*db.Campaign, error) {
	var c db.Campaign
	if err := r.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// Create inserts a new draft campaign.
func (r *CampaignRepository) Create(ctx context.Context, c *db.Campaign) error {
	if c.Phase == "" {
		c.Phase = string(lifecycle.PhaseDraft)
	}
	return r.db.WithContext(ctx).Create(c).Error
}

// Transition moves a campaign to a new phase inside a transaction.
//
// Checks, in order: the phase string is known, the edge is legal
// (forward-only), and — when the move would occupy the single active slot —
// that no other campaign already occupies it. The is_active flag tracks
// occupancy so readers can find the active campaign without knowing the
// phase table.
func (r *CampaignRepository) Transition(ctx context.Context, campaignID uint64, to lifecycle.Phase) (*db.Campaign, error) {
	var c db.Campaign
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&c, campaignID).Error; err != nil {
			return err
		}

		from, err := lifecycle.Parse(c.Phase)
		if err != nil {
			return svcErr.State(svcErr.CodeInvalidState, err.Error()).
				WithCampaign(campaignID).WithPhase(c.Phase)
		}
		if _, err := lifecycle.Parse(string(to)); err != nil {
			return svcErr.Validation(svcErr.CodeInvalidState, err.Error()).
				WithCampaign(campaignID)
		}
		if !lifecycle.CanTransition(from, to) {
			return svcErr.State(svcErr.CodeIllegalTransition,
				"transition "+string(from)+" -> "+string(to)+" is not allowed").
				WithCampaign(campaignID).WithPhase(c.Phase)
		}

		if lifecycle.Occupied(to) && !lifecycle.Occupied(from) {
			var occupied int64
			if err := tx.Model(&db.Campaign{}).
				Where("id <> ? AND phase NOT IN ?", campaignID,
					[]string{string(lifecycle.PhaseDraft), string(lifecycle.PhaseArchived)}).
				Count(&occupied).Error; err != nil {
				return err
			}
			if occupied > 0 {
				return svcErr.Conflict(svcErr.CodeActiveCampaignClash,
					"another campaign is already active").
					WithCampaign(campaignID).WithPhase(c.Phase)
			}
		}

		c.Phase = string(to)
		c.IsActive = lifecycle.Occupied(to)
		return tx.Model(&c).
			Select("phase", "is_active").
			Updates(map[string]any{"phase": c.Phase, "is_active": c.IsActive}).Error
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CloseDueSurveys is the time-triggered survey_open -> survey_closed move:
// any open campaign whose close date has passed is closed. Returns the
// number of campaigns moved (0 or 1 under the single-active invariant).
func (r *CampaignRepository) CloseDueSurveys(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&db.Campaign{}).
		Where("phase = ? AND survey_close_at <= ?", string(lifecycle.PhaseSurveyOpen), now).
		Update("phase", string(lifecycle.PhaseSurveyClosed))
	return res.RowsAffected, res.Error
}

// UpdateCounters records the aggregate stats of a finished generation run.
func (r *CampaignRepository) UpdateCounters(ctx context.Context, campaignID uint64, participants, matches int) error {
	return r.db.WithContext(ctx).Model(&db.Campaign{}).
		Where("id = ?", campaignID).
		Updates(map[string]any{
			"total_participants":      participants,
			"total_matches_generated": matches,
		}).Error
}
