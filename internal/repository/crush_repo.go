package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wizardconnect/match-engine/internal/db"
)

// CrushRepository is the crush ledger: one-directional "interested in"
// declarations keyed by (campaign, declarer, target). Low-contention writes;
// no cross-user locking needed.
type CrushRepository struct {
	db *gorm.DB
}

// NewCrushRepository creates a new repository bound to the given DB connection.
func NewCrushRepository(database *gorm.DB) *CrushRepository {
	return &CrushRepository{db: database}
}

// Declare upserts a declaration. Idempotent: re-declaring the same target
// only bumps updated_at, the composite PK guarantees one row per direction.
func (r *CrushRepository) Declare(ctx context.Context, campaignID, declarerID, targetID uint64) error {
	decl := db.CrushDeclaration{
		CampaignID: campaignID,
		DeclarerID: declarerID,
		TargetID:   targetID,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "campaign_id"}, {Name: "declarer_id"}, {Name: "target_id"},
			},
			DoUpdates: clause.AssignmentColumns([]string{"updated_at"}),
		}).
		Create(&decl).Error
}

// IsMutual reports whether both directions exist between the two users.
func (r *CrushRepository) IsMutual(ctx context.Context, campaignID, userA, userB uint64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&db.CrushDeclaration{}).
		Where("campaign_id = ?", campaignID).
		Where(
			"(declarer_id = ? AND target_id = ?) OR (declarer_id = ? AND target_id = ?)",
			userA, userB, userB, userA,
		).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count == 2, nil
}

// AllForCampaign loads every declaration for a campaign. Used by the planner
// to apply crush boosts and mutual flags in one pass.
func (r *CrushRepository) AllForCampaign(ctx context.Context, campaignID uint64) ([]db.CrushDeclaration, error) {
	var rows []db.CrushDeclaration
	err := r.db.WithContext(ctx).
		Where("campaign_id = ?", campaignID).
		Find(&rows).Error
	return rows, err
}
