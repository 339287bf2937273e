package db

import (
	"time"

	"gorm.io/datatypes"
)

// Match origin: whether the row was produced by the planner or forced by an
// administrator.
const (
	OriginAlgorithmic = "algorithmic"
	OriginManual      = "manual"
)

// Gender / seeking values used by the preference gate.
const (
	GenderMale      = "male"
	GenderFemale    = "female"
	GenderNonBinary = "non_binary"
	SeekingBoth     = "both"
)

// User table
type User struct {
	ID            uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Username      string    `gorm:"uniqueIndex;size:64;not null" json:"username"`
	Email         string    `gorm:"uniqueIndex;size:128;not null" json:"email"`
	PasswordHash  string    `gorm:"size:255;not null" json:"-"`
	Active        bool      `gorm:"default:true" json:"active"`
	Gender        string    `gorm:"size:16;not null" json:"gender"`
	SeekingGender string    `gorm:"size:16;not null;default:both" json:"seeking_gender"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// SurveyRecord holds one user's typed survey answers for one campaign.
//
// The scoring inputs are fixed, typed columns; anything the scorer does not
// understand yet lives in Extra under a schema version, so the scorer never
// reads untyped keys. Records may be amended until the survey window closes
// and are never deleted.
type SurveyRecord struct {
	ID              uint64                      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID          uint64                      `gorm:"not null;uniqueIndex:idx_survey_user_campaign,priority:1" json:"user_id"`
	CampaignID      uint64                      `gorm:"not null;uniqueIndex:idx_survey_user_campaign,priority:2;index" json:"campaign_id"`
	SchemaVersion   int                         `gorm:"not null;default:1" json:"schema_version"`
	PersonalityType string                      `gorm:"size:8" json:"personality_type"`
	InterestTags    datatypes.JSONSlice[string] `gorm:"column:interest_tags" json:"interest_tags"`
	ValueTags       datatypes.JSONSlice[string] `gorm:"column:value_tags" json:"value_tags"`
	Lifestyle       string                      `gorm:"size:32" json:"lifestyle"`
	Extra           datatypes.JSONMap           `json:"extra"`
	Complete        bool                        `gorm:"not null;default:false;index" json:"complete"`
	CompletedAt     time.Time                   `json:"completed_at"`
	CreatedAt       time.Time                   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time                   `gorm:"autoUpdateTime" json:"updated_at"`
}

// Match is one confirmed pairing within a campaign.
//
// Rows are canonical: UserID < MatchedUserID always, and the unique index on
// (campaign_id, user_id, matched_user_id) guarantees at most one row per
// unordered pair per campaign. One row serves both participants' lists.
//
// Rank is the row's position in UserID's ranked list, MatchedRank the
// position in MatchedUserID's list. Zero means that side did not select the
// pair (a user can appear in many other users' top-K without ranking them
// back). Manual rows carry zero on both sides and sort ahead of ranked rows.
type Match struct {
	ID                 uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	CampaignID         uint64    `gorm:"not null;uniqueIndex:idx_campaign_pair,priority:1;index:idx_campaign_origin,priority:1" json:"campaign_id"`
	UserID             uint64    `gorm:"not null;uniqueIndex:idx_campaign_pair,priority:2" json:"user_id"`
	MatchedUserID      uint64    `gorm:"not null;uniqueIndex:idx_campaign_pair,priority:3" json:"matched_user_id"`
	CompatibilityScore int       `gorm:"not null" json:"compatibility_score"`
	Rank               int       `gorm:"not null;default:0" json:"rank"`
	MatchedRank        int       `gorm:"not null;default:0" json:"matched_rank"`
	IsMutualCrush      bool      `gorm:"not null;default:false" json:"is_mutual_crush"`
	Origin             string    `gorm:"size:16;not null;index:idx_campaign_origin,priority:2" json:"origin"`
	CreatedAt          time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// CrushDeclaration records a one-directional "interested in" signal.
//
// Composite PK: (CampaignID, DeclarerID, TargetID) — at most one row per
// direction per campaign; re-declaring is an idempotent upsert.
type CrushDeclaration struct {
	CampaignID uint64    `gorm:"primaryKey" json:"campaign_id"`
	DeclarerID uint64    `gorm:"primaryKey" json:"declarer_id"`
	TargetID   uint64    `gorm:"primaryKey" json:"target_id"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Campaign is a time-boxed matchmaking cycle. Phase moves forward only, and
// at most one campaign may sit in a phase other than draft/archived.
type Campaign struct {
	ID                    uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Name                  string    `gorm:"size:128;not null" json:"name"`
	Phase                 string    `gorm:"size:32;not null;default:draft" json:"phase"`
	SurveyOpenAt          time.Time `json:"survey_open_at"`
	SurveyCloseAt         time.Time `json:"survey_close_at"`
	ProfileUpdateStartAt  time.Time `json:"profile_update_start_at"`
	ProfileUpdateEndAt    time.Time `json:"profile_update_end_at"`
	ResultsReleaseAt      time.Time `json:"results_release_at"`
	IsActive              bool      `gorm:"not null;default:false" json:"is_active"`
	ManualOnly            bool      `gorm:"not null;default:false" json:"manual_only"`
	TopK                  int       `gorm:"not null;default:0" json:"top_k"` // 0 = engine default
	TotalParticipants     int       `gorm:"not null;default:0" json:"total_participants"`
	TotalMatchesGenerated int       `gorm:"not null;default:0" json:"total_matches_generated"`
	CreatedAt             time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
