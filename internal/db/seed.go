package db

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	seedPersonalities = []string{
		"INTJ", "INTP", "INFJ", "INFP", "ENTJ", "ENTP", "ENFJ", "ENFP",
		"ISTJ", "ISFJ", "ESTJ", "ESFJ", "ISTP", "ISFP", "ESTP", "ESFP",
	}
	seedInterests = []string{
		"chess", "hiking", "music", "gaming", "cooking", "photography",
		"reading", "climbing", "film", "dancing",
	}
	seedValues = []string{
		"family", "career", "honesty", "adventure", "stability", "creativity",
	}
	seedLifestyles = []string{
		"night_owl", "early_bird", "planner", "spontaneous", "homebody", "social_butterfly",
	}
)

// SeedTestData resets the database and populates a demo campaign with
// 20 users, completed surveys and a handful of crush declarations, ready
// for a generation run.
func SeedTestData(db *gorm.DB) error {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	for _, table := range []string{"matches", "crush_declarations", "survey_records", "campaigns", "users"} {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	log.Println("Cleared existing data")

	campaign := Campaign{
		Name:          "Autumn Mixer",
		Phase:         "survey_closed",
		SurveyOpenAt:  time.Now().Add(-14 * 24 * time.Hour),
		SurveyCloseAt: time.Now().Add(-24 * time.Hour),
		IsActive:      true,
	}
	if err := db.Create(&campaign).Error; err != nil {
		return fmt.Errorf("failed to seed campaign: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	// 10 male users seeking female, 10 female seeking male.
	userIDs := make([]uint64, 0, 20)
	for i := 1; i <= 20; i++ {
		gender, seeking := GenderMale, GenderFemale
		if i > 10 {
			gender, seeking = GenderFemale, GenderMale
		}

		user := User{
			Username:      fmt.Sprintf("user%d", i),
			Email:         fmt.Sprintf("user%d@example.com", i),
			PasswordHash:  string(hash),
			Active:        true,
			Gender:        gender,
			SeekingGender: seeking,
		}
		if err := db.Create(&user).Error; err != nil {
			return fmt.Errorf("failed to seed user: %w", err)
		}
		userIDs = append(userIDs, user.ID)

		record := SurveyRecord{
			UserID:          user.ID,
			CampaignID:      campaign.ID,
			SchemaVersion:   1,
			PersonalityType: seedPersonalities[r.Intn(len(seedPersonalities))],
			InterestTags:    pickTags(r, seedInterests, 3),
			ValueTags:       pickTags(r, seedValues, 2),
			Lifestyle:       seedLifestyles[r.Intn(len(seedLifestyles))],
			Extra:           datatypes.JSONMap{"favorite_spot": "library"},
			Complete:        true,
			CompletedAt:     time.Now().Add(-time.Duration(r.Intn(72)) * time.Hour),
		}
		if err := db.Create(&record).Error; err != nil {
			return fmt.Errorf("failed to seed survey record: %w", err)
		}
	}
	log.Println("Seeded 20 users with completed surveys.")

	// A few declarations, every other one reciprocated.
	for i := 0; i < 6; i++ {
		declarer := userIDs[r.Intn(10)]
		target := userIDs[10+r.Intn(10)]

		decl := CrushDeclaration{CampaignID: campaign.ID, DeclarerID: declarer, TargetID: target}
		if err := upsertDeclaration(db, decl); err != nil {
			return fmt.Errorf("failed to seed declaration: %w", err)
		}
		if i%2 == 0 {
			back := CrushDeclaration{CampaignID: campaign.ID, DeclarerID: target, TargetID: declarer}
			if err := upsertDeclaration(db, back); err != nil {
				return fmt.Errorf("failed to seed declaration: %w", err)
			}
		}
	}
	log.Println("Seeded crush declarations.")

	return nil
}

func upsertDeclaration(db *gorm.DB, decl CrushDeclaration) error {
	return db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "campaign_id"}, {Name: "declarer_id"}, {Name: "target_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"updated_at"}),
	}).Create(&decl).Error
}

func pickTags(r *rand.Rand, pool []string, n int) datatypes.JSONSlice[string] {
	picked := make([]string, 0, n)
	seen := make(map[int]bool, n)
	for len(picked) < n {
		idx := r.Intn(len(pool))
		if seen[idx] {
			continue
		}
		seen[idx] = true
		picked = append(picked, pool[idx])
	}
	return datatypes.NewJSONSlice(picked)
}
