package matchmaker

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	svcErr "github.com/wizardconnect/match-engine/internal/errors"
	"github.com/wizardconnect/match-engine/internal/lifecycle"
)

// Handler exposes the engine operations over HTTP. It stays thin: parse,
// delegate to the service, map errors centrally.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes attaches the engine endpoints to the given group.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/campaigns/active", h.GetActiveCampaign)
	r.POST("/campaigns/:id/transition", h.TransitionCampaign)
	r.POST("/campaigns/close-due-surveys", h.CloseDueSurveys)

	r.POST("/campaigns/:id/generate", h.GenerateMatches)
	r.POST("/campaigns/:id/matches/manual", h.CreateManualMatch)
	r.GET("/campaigns/:id/matches", h.ListAllMatches)
	r.GET("/campaigns/:id/matches/count", h.CountMatches)
	r.GET("/campaigns/:id/users/:userID/matches", h.ListMatches)

	r.POST("/campaigns/:id/crushes", h.DeclareCrush)
}

type transitionRequest struct {
	Phase string `json:"phase" binding:"required"`
}

type manualMatchRequest struct {
	UserID             uint64 `json:"user_id" binding:"required"`
	MatchedUserID      uint64 `json:"matched_user_id" binding:"required"`
	CompatibilityScore int    `json:"compatibility_score"`
}

type crushRequest struct {
	DeclarerID uint64 `json:"declarer_id" binding:"required"`
	TargetID   uint64 `json:"target_id" binding:"required"`
}

func (h *Handler) GetActiveCampaign(c *gin.Context) {
	campaign, err := h.svc.ActiveCampaign(c.Request.Context())
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, campaign)
}

func (h *Handler) TransitionCampaign(c *gin.Context) {
	campaignID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	campaign, err := h.svc.TransitionCampaign(c.Request.Context(), campaignID, lifecycle.Phase(req.Phase))
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, campaign)
}

func (h *Handler) CloseDueSurveys(c *gin.Context) {
	closed, err := h.svc.CloseDueSurveys(c.Request.Context())
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"closed": closed})
}

func (h *Handler) GenerateMatches(c *gin.Context) {
	campaignID, ok := pathID(c, "id")
	if !ok {
		return
	}

	matches, err := h.svc.GenerateMatches(c.Request.Context(), campaignID)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"matches": matches, "count": len(matches)})
}

func (h *Handler) CreateManualMatch(c *gin.Context) {
	campaignID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req manualMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	match, err := h.svc.CreateManualMatch(c.Request.Context(),
		campaignID, req.UserID, req.MatchedUserID, req.CompatibilityScore)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusCreated, match)
}

func (h *Handler) ListMatches(c *gin.Context) {
	campaignID, ok := pathID(c, "id")
	if !ok {
		return
	}
	userID, ok := pathID(c, "userID")
	if !ok {
		return
	}

	matches, err := h.svc.ListMatches(c.Request.Context(), campaignID, userID)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"matches": matches})
}

func (h *Handler) ListAllMatches(c *gin.Context) {
	campaignID, ok := pathID(c, "id")
	if !ok {
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	var token *string
	if raw := c.Query("page_token"); raw != "" {
		token = &raw
	}

	matches, next, err := h.svc.ListAllMatches(c.Request.Context(), campaignID, token, limit)
	if err != nil {
		abortWith(c, err)
		return
	}

	resp := gin.H{"matches": matches}
	if next != nil {
		resp["next_page_token"] = *next
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) CountMatches(c *gin.Context) {
	campaignID, ok := pathID(c, "id")
	if !ok {
		return
	}

	count, err := h.svc.CountMatches(c.Request.Context(), campaignID)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

func (h *Handler) DeclareCrush(c *gin.Context) {
	campaignID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req crushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.svc.DeclareCrush(c.Request.Context(), campaignID, req.DeclarerID, req.TargetID); err != nil {
		abortWith(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func pathID(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be a valid uint64"})
		return 0, false
	}
	return id, true
}

func abortWith(c *gin.Context, err error) {
	c.JSON(svcErr.HTTPStatus(err), svcErr.Payload(err))
}
