package matchmaker

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wizardconnect/match-engine/internal/app"
	"github.com/wizardconnect/match-engine/internal/db"
	svcErr "github.com/wizardconnect/match-engine/internal/errors"
	"github.com/wizardconnect/match-engine/internal/lifecycle"
	"github.com/wizardconnect/match-engine/internal/planner"
	"github.com/wizardconnect/match-engine/internal/repository"
	"github.com/wizardconnect/match-engine/internal/scoring"
)

// manualLockTTL bounds the short single-row manual override writes that are
// serialized behind the same campaign lock as generation.
const manualLockTTL = 10 * time.Second

// Service is the matchmaking engine: it runs generation under the campaign
// lock, takes manual overrides, serves match lists and records crush
// declarations. All durable state goes through the repositories.
type Service struct {
	appCtx       *app.AppContext
	campaignRepo *repository.CampaignRepository
	surveyRepo   *repository.SurveyRepository
	matchRepo    *repository.MatchRepository
	crushRepo    *repository.CrushRepository
}

// NewService creates the engine with dependencies from AppContext.
func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:       appCtx,
		campaignRepo: repository.NewCampaignRepository(appCtx.DB),
		surveyRepo:   repository.NewSurveyRepository(appCtx.DB),
		matchRepo:    repository.NewMatchRepository(appCtx.DB),
		crushRepo:    repository.NewCrushRepository(appCtx.DB),
	}
}

// ActiveCampaign returns the single active campaign.
func (s *Service) ActiveCampaign(ctx context.Context) (*db.Campaign, error) {
	c, err := s.campaignRepo.GetActive(ctx)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, svcErr.State(svcErr.CodeNoActiveCampaign, "no active campaign")
	}
	return c, err
}

// GenerateMatches recomputes the full algorithmic match set for the
// campaign and replaces the previous one atomically.
//
// The run holds the exclusive campaign lock for its duration, so a second
// generation request fails with AlreadyGenerating instead of racing, and no
// manual override can commit while the set is being rewritten. Manual
// matches are treated as immovable: their participants are removed from the
// candidate pool entirely. Identical inputs produce an identical match set.
func (s *Service) GenerateMatches(ctx context.Context, campaignID uint64) ([]db.Match, error) {
	log := s.appCtx.Logger.With("campaign_id", campaignID, "run_id", uuid.NewString())

	active, err := s.ActiveCampaign(ctx)
	if err != nil {
		return nil, err
	}
	if active.ID != campaignID {
		return nil, svcErr.State(svcErr.CodeNoActiveCampaign, "campaign is not the active campaign").
			WithCampaign(campaignID)
	}
	campaign := active

	phase, err := lifecycle.Parse(campaign.Phase)
	if err != nil {
		return nil, svcErr.State(svcErr.CodeInvalidState, err.Error()).
			WithCampaign(campaignID).WithPhase(campaign.Phase)
	}
	if !lifecycle.CanGenerate(phase) {
		return nil, svcErr.State(svcErr.CodeInvalidState, "campaign phase does not permit generation").
			WithCampaign(campaignID).WithPhase(campaign.Phase)
	}
	if campaign.ManualOnly {
		return nil, svcErr.State(svcErr.CodeInvalidState, "campaign is manual-only").
			WithCampaign(campaignID).WithPhase(campaign.Phase)
	}

	// Exclusive campaign lock for the whole run. TTL outlives the
	// generation timeout so a live run can never lose its lock.
	token := uuid.NewString()
	locked, err := s.appCtx.RedisCache.AcquireCampaignLock(ctx, campaignID, token, s.appCtx.Engine.GenerationTimeout+manualLockTTL)
	if err != nil {
		return nil, svcErr.TransientStore("failed to acquire campaign lock", err).WithCampaign(campaignID)
	}
	if !locked {
		return nil, svcErr.Conflict(svcErr.CodeAlreadyGenerating, "generation already in progress").
			WithCampaign(campaignID).WithPhase(campaign.Phase)
	}
	defer func() {
		_ = s.appCtx.RedisCache.ReleaseCampaignLock(context.WithoutCancel(ctx), campaignID, token)
	}()

	if phase != lifecycle.PhaseGenerating {
		if _, err := s.campaignRepo.Transition(ctx, campaignID, lifecycle.PhaseGenerating); err != nil {
			return nil, err
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, s.appCtx.Engine.GenerationTimeout)
	defer cancel()

	profiles, err := s.surveyRepo.GetEligibleProfiles(runCtx, campaignID)
	if err != nil {
		return nil, svcErr.TransientStore("failed to load eligible profiles", err).WithCampaign(campaignID)
	}

	pinned, err := s.matchRepo.ManuallyMatchedUsers(runCtx, campaignID)
	if err != nil {
		return nil, svcErr.TransientStore("failed to load manual matches", err).WithCampaign(campaignID)
	}

	declarations, err := s.crushRepo.AllForCampaign(runCtx, campaignID)
	if err != nil {
		return nil, svcErr.TransientStore("failed to load crush declarations", err).WithCampaign(campaignID)
	}
	crushes := planner.NewCrushes()
	for _, d := range declarations {
		crushes.Add(d.DeclarerID, d.TargetID)
	}

	topK := campaign.TopK
	if topK <= 0 {
		topK = s.appCtx.Engine.TopK
	}

	log.Info("generation started",
		"eligible", len(profiles), "pinned", len(pinned), "top_k", topK)

	plan, err := planner.Plan(runCtx, profiles, pinned, crushes, planner.Config{
		TopK:        topK,
		MinScore:    s.appCtx.Engine.MinScore,
		Weights:     scoring.WeightsFromConfig(s.appCtx.Engine),
		OneWayBoost: s.appCtx.Engine.OneWayCrushBoost,
		MutualBoost: s.appCtx.Engine.MutualCrushBoost,
		Workers:     s.appCtx.Engine.ScoreWorkers,
	})
	if err != nil {
		return nil, err
	}

	rows := make([]db.Match, 0, len(plan))
	for _, p := range plan {
		rows = append(rows, db.Match{
			CampaignID:         campaignID,
			UserID:             p.UserID,
			MatchedUserID:      p.MatchedUserID,
			CompatibilityScore: p.CompatibilityScore,
			Rank:               p.Rank,
			MatchedRank:        p.MatchedRank,
			IsMutualCrush:      p.IsMutualCrush,
			Origin:             db.OriginAlgorithmic,
		})
	}

	if err := s.replaceWithRetry(runCtx, campaignID, rows); err != nil {
		log.Error("generation write-back failed", "err", err)
		return nil, err
	}

	total, err := s.matchRepo.CountForCampaign(ctx, campaignID)
	if err == nil {
		_ = s.campaignRepo.UpdateCounters(ctx, campaignID, len(profiles), int(total))
		_ = s.appCtx.RedisCache.SetMatchCount(ctx, campaignID, total)
	}

	if _, err := s.campaignRepo.Transition(ctx, campaignID, lifecycle.PhaseMatchesReady); err != nil {
		return nil, err
	}

	log.Info("generation finished", "matches", len(rows))
	return rows, nil
}

// replaceWithRetry retries the atomic write-back on transient store errors
// with a fixed linear backoff. Partial writes are never visible; the
// transaction inside ReplaceAlgorithmic guarantees all-or-nothing.
func (s *Service) replaceWithRetry(ctx context.Context, campaignID uint64, rows []db.Match) error {
	backoff := s.appCtx.Engine.StoreRetryBackoff
	attempts := s.appCtx.Engine.StoreRetries
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = s.matchRepo.ReplaceAlgorithmic(ctx, campaignID, rows)
		if err == nil || !svcErr.IsTransient(err) {
			return err
		}
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(time.Duration(attempt) * backoff):
		}
	}
	return err
}

// CreateManualMatch force-creates an administrator match outside the
// algorithm, subject to the same pair-uniqueness invariants. Both users are
// excluded from the candidate pool of any later regeneration. Short
// single-row write, serialized behind the campaign lock so two admins
// cannot match the same user twice concurrently.
func (s *Service) CreateManualMatch(ctx context.Context, campaignID, userA, userB uint64, score int) (*db.Match, error) {
	if userA == userB {
		return nil, svcErr.Validation(svcErr.CodeSelfMatch, "cannot match a user with themselves").
			WithCampaign(campaignID).WithUsers(userA)
	}
	if score < 0 || score > 100 {
		return nil, svcErr.Validation(svcErr.CodeInvalidState, "score must be within [0,100]").
			WithCampaign(campaignID).WithUsers(userA, userB)
	}

	campaign, err := s.campaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	phase, err := lifecycle.Parse(campaign.Phase)
	if err != nil {
		return nil, svcErr.State(svcErr.CodeInvalidState, err.Error()).
			WithCampaign(campaignID).WithPhase(campaign.Phase)
	}
	if !lifecycle.CanManualMatch(phase, campaign.ManualOnly) {
		return nil, svcErr.State(svcErr.CodeInvalidState, "campaign phase does not permit manual overrides").
			WithCampaign(campaignID).WithPhase(campaign.Phase)
	}

	for _, userID := range []uint64{userA, userB} {
		eligible, err := s.surveyRepo.IsEligible(ctx, userID, campaignID)
		if err != nil {
			return nil, svcErr.TransientStore("failed to check eligibility", err).
				WithCampaign(campaignID).WithUsers(userID)
		}
		if !eligible {
			return nil, svcErr.Validation(svcErr.CodeIneligibleUser, "user is not eligible in this campaign").
				WithCampaign(campaignID).WithUsers(userID)
		}
	}

	token := uuid.NewString()
	locked, err := s.appCtx.RedisCache.AcquireCampaignLock(ctx, campaignID, token, manualLockTTL)
	if err != nil {
		return nil, svcErr.TransientStore("failed to acquire campaign lock", err).WithCampaign(campaignID)
	}
	if !locked {
		return nil, svcErr.Conflict(svcErr.CodeAlreadyGenerating, "campaign is locked by another writer").
			WithCampaign(campaignID).WithPhase(campaign.Phase)
	}
	defer func() {
		_ = s.appCtx.RedisCache.ReleaseCampaignLock(context.WithoutCancel(ctx), campaignID, token)
	}()

	mutual, err := s.crushRepo.IsMutual(ctx, campaignID, userA, userB)
	if err != nil {
		return nil, svcErr.TransientStore("failed to check crush declarations", err).
			WithCampaign(campaignID).WithUsers(userA, userB)
	}

	match, err := s.matchRepo.CreateManual(ctx, campaignID, userA, userB, score, mutual)
	if err != nil {
		return nil, err
	}

	_ = s.appCtx.RedisCache.InvalidateMatchCount(ctx, campaignID)

	s.appCtx.Logger.Info("manual match created",
		"campaign_id", campaignID, "user_id", match.UserID, "matched_user_id", match.MatchedUserID)
	return match, nil
}

// ListMatches returns one user's match list, manual pins first, then ranked
// rows ordered by rank. Readers never block on generation: they observe the
// pre- or post-generation snapshot, never an intermediate one.
func (s *Service) ListMatches(ctx context.Context, campaignID, userID uint64) ([]db.Match, error) {
	if _, err := s.campaignRepo.GetByID(ctx, campaignID); err != nil {
		return nil, err
	}
	return s.matchRepo.ListForUser(ctx, campaignID, userID)
}

// ListAllMatches returns every match row for administrators, paginated.
func (s *Service) ListAllMatches(ctx context.Context, campaignID uint64, paginationToken *string, limit int) ([]db.Match, *string, error) {
	if limit <= 0 {
		limit = 50
	}
	if _, err := s.campaignRepo.GetByID(ctx, campaignID); err != nil {
		return nil, nil, err
	}
	return s.matchRepo.ListAll(ctx, campaignID, paginationToken, limit)
}

// CountMatches returns the stored match count, cache-first with DB fallback.
func (s *Service) CountMatches(ctx context.Context, campaignID uint64) (int64, error) {
	if n, hit, err := s.appCtx.RedisCache.GetMatchCount(ctx, campaignID); err == nil && hit {
		return n, nil
	}

	n, err := s.matchRepo.CountForCampaign(ctx, campaignID)
	if err != nil {
		return 0, err
	}
	_ = s.appCtx.RedisCache.SetMatchCount(ctx, campaignID, n)
	return n, nil
}

// DeclareCrush records declarer -> target. Idempotent upsert; declaring one
// direction never sets the mutual flag by itself. If a match row already
// exists for the pair, its mutual flag is refreshed immediately — only the
// affected row, never the whole campaign.
func (s *Service) DeclareCrush(ctx context.Context, campaignID, declarerID, targetID uint64) error {
	if declarerID == targetID {
		return svcErr.Validation(svcErr.CodeSelfMatch, "cannot declare a crush on yourself").
			WithCampaign(campaignID).WithUsers(declarerID)
	}

	campaign, err := s.campaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		return err
	}
	phase, err := lifecycle.Parse(campaign.Phase)
	if err != nil || lifecycle.Terminal(phase) {
		return svcErr.State(svcErr.CodeInvalidState, "campaign no longer accepts declarations").
			WithCampaign(campaignID).WithPhase(campaign.Phase)
	}

	if err := s.crushRepo.Declare(ctx, campaignID, declarerID, targetID); err != nil {
		return svcErr.TransientStore("failed to record declaration", err).
			WithCampaign(campaignID).WithUsers(declarerID, targetID)
	}

	mutual, err := s.crushRepo.IsMutual(ctx, campaignID, declarerID, targetID)
	if err != nil {
		return svcErr.TransientStore("failed to check declarations", err).
			WithCampaign(campaignID).WithUsers(declarerID, targetID)
	}

	updated, err := s.matchRepo.SetMutualCrush(ctx, campaignID, declarerID, targetID, mutual)
	if err != nil {
		return svcErr.TransientStore("failed to refresh mutual flag", err).
			WithCampaign(campaignID).WithUsers(declarerID, targetID)
	}
	if updated {
		s.appCtx.Logger.Debug("mutual flag refreshed",
			"campaign_id", campaignID, "declarer", declarerID, "target", targetID, "mutual", mutual)
	}
	return nil
}

// TransitionCampaign moves a campaign forward through its lifecycle.
func (s *Service) TransitionCampaign(ctx context.Context, campaignID uint64, to lifecycle.Phase) (*db.Campaign, error) {
	return s.campaignRepo.Transition(ctx, campaignID, to)
}

// CloseDueSurveys applies the time-triggered survey close.
func (s *Service) CloseDueSurveys(ctx context.Context) (int64, error) {
	closed, err := s.campaignRepo.CloseDueSurveys(ctx, time.Now().UTC())
	if err == nil && closed > 0 {
		s.appCtx.Logger.Info("survey window closed by schedule", "campaigns", closed)
	}
	return closed, err
}
