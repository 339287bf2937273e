package scoring

import (
	"math"

	"github.com/wizardconnect/match-engine/internal/config"
	"github.com/wizardconnect/match-engine/internal/db"
)

// Profile is the scoring view of one eligible user: declared gender and
// preference plus the typed survey answers. Building a Profile from the
// store decouples the scorer from persistence.
type Profile struct {
	UserID          uint64
	Gender          string
	SeekingGender   string
	PersonalityType string
	InterestTags    []string
	ValueTags       []string
	Lifestyle       string
}

// ProfileFrom combines a user row and their survey record.
func ProfileFrom(u db.User, rec db.SurveyRecord) Profile {
	return Profile{
		UserID:          u.ID,
		Gender:          u.Gender,
		SeekingGender:   u.SeekingGender,
		PersonalityType: rec.PersonalityType,
		InterestTags:    rec.InterestTags,
		ValueTags:       rec.ValueTags,
		Lifestyle:       rec.Lifestyle,
	}
}

// Weights for the four sub-scores. Each sub-score is normalized to [0,1]
// before weighting; weights must sum to 1.
type Weights struct {
	Personality float64
	Interests   float64
	Values      float64
	Lifestyle   float64
}

func WeightsFromConfig(e config.Engine) Weights {
	return Weights{
		Personality: e.WeightPersonality,
		Interests:   e.WeightInterests,
		Values:      e.WeightValues,
		Lifestyle:   e.WeightLifestyle,
	}
}

// MutuallyCompatible is the preference gate: each side's declared preference
// must admit the other's gender. "both" (or an unset preference) admits any.
// Pairs failing the gate are excluded from the candidate set, not scored.
func MutuallyCompatible(a, b Profile) bool {
	return admits(a.SeekingGender, b.Gender) && admits(b.SeekingGender, a.Gender)
}

func admits(seeking, gender string) bool {
	switch seeking {
	case "", db.SeekingBoth:
		return true
	}
	return seeking == gender
}

// Score computes the symmetric compatibility score in [0,100], rounded to
// the nearest integer. The second return is false when the preference gate
// rejects the pair; the score is undefined in that case.
//
// Pure and deterministic: identical inputs always produce identical output,
// and Score(a,b) == Score(b,a).
func Score(a, b Profile, w Weights) (int, bool) {
	if !MutuallyCompatible(a, b) {
		return 0, false
	}

	total := w.Personality*personalityAffinity(a.PersonalityType, b.PersonalityType) +
		w.Interests*jaccard(a.InterestTags, b.InterestTags) +
		w.Values*jaccard(a.ValueTags, b.ValueTags) +
		w.Lifestyle*lifestyleAffinity(a.Lifestyle, b.Lifestyle)

	s := int(math.Round(total * 100))
	if s < 0 {
		s = 0
	}
	if s > 100 {
		s = 100
	}
	return s, true
}

// Personality taxonomy: the 16 four-letter type codes. Same type scores
// highest, affine pairs next, everything else a neutral floor. The pair set
// is stored canonically (lexicographic order) so the lookup is symmetric.
const (
	samePersonality   = 1.0
	affinePersonality = 0.85
	basePersonality   = 0.60
)

var affineTypes = buildAffinity([][2]string{
	{"INTJ", "INTP"}, {"INTJ", "INFJ"}, {"INTJ", "ENTJ"},
	{"INTP", "ENTP"}, {"INTP", "INFP"},
	{"INFJ", "INFP"}, {"INFJ", "ENFJ"},
	{"INFP", "ENFP"},
	{"ENTJ", "ENTP"}, {"ENTJ", "ESTJ"},
	{"ENTP", "ESTP"}, {"ENTP", "ENFP"},
	{"ENFJ", "ENFP"}, {"ENFJ", "ESFJ"},
	{"ISTJ", "ESTJ"}, {"ISTJ", "ISFJ"}, {"ISTJ", "ISTP"},
	{"ISFJ", "ESFJ"}, {"ISFJ", "ISFP"},
	{"ESTJ", "ESTP"},
	{"ESFJ", "ESFP"},
	{"ISTP", "ESTP"}, {"ISTP", "ISFP"},
	{"ISFP", "ESFP"},
	{"ESFP", "ENFP"},
})

func buildAffinity(pairs [][2]string) map[[2]string]bool {
	m := make(map[[2]string]bool, len(pairs))
	for _, p := range pairs {
		m[canonicalPair(p[0], p[1])] = true
	}
	return m
}

func canonicalPair(a, b string) [2]string {
	if a > b {
		a, b = b, a
	}
	return [2]string{a, b}
}

func personalityAffinity(a, b string) float64 {
	if a == "" || b == "" {
		return basePersonality
	}
	if a == b {
		return samePersonality
	}
	if affineTypes[canonicalPair(a, b)] {
		return affinePersonality
	}
	return basePersonality
}

// jaccard computes |A ∩ B| / |A ∪ B| over tag sets. An empty side yields a
// neutral 0.5 rather than penalizing users who skipped the question.
func jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0.5
	}

	set := make(map[string]bool, len(a))
	for _, tag := range a {
		set[tag] = true
	}

	union := len(set)
	inter := 0
	seen := make(map[string]bool, len(b))
	for _, tag := range b {
		if seen[tag] {
			continue
		}
		seen[tag] = true
		if set[tag] {
			inter++
		} else {
			union++
		}
	}

	if union == 0 {
		return 0.5
	}
	return float64(inter) / float64(union)
}

// Lifestyle compatibility table: identical categories score best,
// recognized complementary pairs close behind, anything else neutral.
const (
	sameLifestyle          = 0.9
	complementaryLifestyle = 0.75
	baseLifestyle          = 0.5
)

var complementaryLifestyles = buildAffinity([][2]string{
	{"night_owl", "early_bird"},
	{"spontaneous", "planner"},
	{"homebody", "social_butterfly"},
})

func lifestyleAffinity(a, b string) float64 {
	if a == "" || b == "" {
		return baseLifestyle
	}
	if a == b {
		return sameLifestyle
	}
	if complementaryLifestyles[canonicalPair(a, b)] {
		return complementaryLifestyle
	}
	return baseLifestyle
}
