package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/wizardconnect/match-engine/internal/db"
	"github.com/wizardconnect/match-engine/internal/scoring"
)

// SurveyRepository is the engine's read-only view of the external
// profile/survey store: eligible users and their typed survey answers.
type SurveyRepository struct {
	db *gorm.DB
}

// NewSurveyRepository creates a new repository bound to the given DB connection.
func NewSurveyRepository(database *gorm.DB) *SurveyRepository {
	return &SurveyRepository{db: database}
}

// GetEligibleProfiles returns a scoring profile for every active user with a
// completed survey in the campaign. Users without a record, with an
// incomplete record, or deactivated are not eligible.
func (r *SurveyRepository) GetEligibleProfiles(ctx context.Context, campaignID uint64) ([]scoring.Profile, error) {
	var records []db.SurveyRecord
	if err := r.db.WithContext(ctx).
		Where("campaign_id = ? AND complete = ?", campaignID, true).
		Order("user_id ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	userIDs := make([]uint64, 0, len(records))
	for _, rec := range records {
		userIDs = append(userIDs, rec.UserID)
	}

	var users []db.User
	if err := r.db.WithContext(ctx).
		Where("id IN ? AND active = ?", userIDs, true).
		Find(&users).Error; err != nil {
		return nil, err
	}

	byID := make(map[uint64]db.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	profiles := make([]scoring.Profile, 0, len(records))
	for _, rec := range records {
		u, ok := byID[rec.UserID]
		if !ok {
			continue // deactivated since completing the survey
		}
		profiles = append(profiles, scoring.ProfileFrom(u, rec))
	}
	return profiles, nil
}

// GetRecord returns one user's survey record for a campaign.
func (r *SurveyRepository) GetRecord(ctx context.Context, userID, campaignID uint64) (*db.SurveyRecord, error) {
	var rec db.SurveyRecord
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND campaign_id = ?", userID, campaignID).
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// IsEligible reports whether the user can participate in matching for the
// campaign: active account plus a completed survey record.
func (r *SurveyRepository) IsEligible(ctx context.Context, userID, campaignID uint64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&db.SurveyRecord{}).
		Joins("JOIN users ON users.id = survey_records.user_id").
		Where("survey_records.user_id = ? AND survey_records.campaign_id = ?", userID, campaignID).
		Where("survey_records.complete = ? AND users.active = ?", true, true).
		Count(&count).Error
	return count > 0, err
}
