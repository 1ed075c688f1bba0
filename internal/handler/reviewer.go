package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Subho98799/nagar/internal/middleware"
	"github.com/Subho98799/nagar/internal/models"
	"github.com/Subho98799/nagar/internal/service"
)

type ReviewerHandler interface {
	ListReports(c *gin.Context)
	AllowedTransitions(c *gin.Context)
	TransitionStatus(c *gin.Context)
	AddNote(c *gin.Context)
	OverrideCategory(c *gin.Context)
	UpgradeConfidence(c *gin.Context)
	SetEscalation(c *gin.Context)
	Recompute(c *gin.Context)
	EscalationCandidates(c *gin.Context)
}

type reviewerHandler struct {
	reviewer service.ReviewerService
	logger   *zap.Logger
}

func NewReviewerHandler(reviewer service.ReviewerService, logger *zap.Logger) ReviewerHandler {
	return &reviewerHandler{
		reviewer: reviewer,
		logger:   logger,
	}
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
	Note   string `json:"note"`
}

type noteRequest struct {
	Text string `json:"text" binding:"required"`
}

type categoryRequest struct {
	Category string `json:"category" binding:"required"`
	Note     string `json:"note"`
}

type confidenceRequest struct {
	Note string `json:"note"`
}

type escalationRequest struct {
	Flag   *bool  `json:"flag" binding:"required"`
	Reason string `json:"reason"`
}

// actor pulls the authenticated reviewer; it writes the 401 itself.
func (h *reviewerHandler) actor(c *gin.Context) (models.Actor, bool) {
	actor, ok := middleware.Actor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Reviewer identity required"})
	}
	return actor, ok
}

// ListReports handles GET /api/reviewer/reports with the same filters as the
// public list, plus escalated=true.
func (h *reviewerHandler) ListReports(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	filter.EscalatedOnly = strings.EqualFold(c.Query("escalated"), "true")

	reports, err := h.reviewer.ListReports(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": reports, "count": len(reports)})
}

// TransitionStatus handles POST /api/reviewer/reports/:id/status
func (h *reviewerHandler) TransitionStatus(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	target := models.Status(strings.ToUpper(strings.TrimSpace(req.Status)))
	report, err := h.reviewer.TransitionStatus(c.Request.Context(), c.Param("id"), target, actor, req.Note)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// AddNote handles POST /api/reviewer/reports/:id/notes
func (h *reviewerHandler) AddNote(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req noteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report, err := h.reviewer.AddNote(c.Request.Context(), c.Param("id"), req.Text, actor)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// OverrideCategory handles POST /api/reviewer/reports/:id/category
func (h *reviewerHandler) OverrideCategory(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req categoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report, err := h.reviewer.OverrideCategory(c.Request.Context(), c.Param("id"), req.Category, actor, req.Note)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// UpgradeConfidence handles POST /api/reviewer/reports/:id/confidence
// The body is optional.
func (h *reviewerHandler) UpgradeConfidence(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req confidenceRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	report, err := h.reviewer.UpgradeConfidence(c.Request.Context(), c.Param("id"), actor, req.Note)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// SetEscalation handles POST /api/reviewer/reports/:id/escalation
func (h *reviewerHandler) SetEscalation(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req escalationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report, err := h.reviewer.SetEscalation(c.Request.Context(), c.Param("id"), *req.Flag, actor, req.Reason)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// Recompute handles POST /api/reviewer/reports/:id/recompute
func (h *reviewerHandler) Recompute(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	report, err := h.reviewer.Recompute(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// AllowedTransitions handles GET /api/reviewer/reports/:id/transitions
func (h *reviewerHandler) AllowedTransitions(c *gin.Context) {
	current, allowed, err := h.reviewer.AllowedTransitions(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"report_id":           c.Param("id"),
		"current_status":      current,
		"allowed_transitions": allowed,
	})
}

// EscalationCandidates handles GET /api/reviewer/escalations
func (h *reviewerHandler) EscalationCandidates(c *gin.Context) {
	limit, err := parseLimit(c)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	reports, err := h.reviewer.EscalationCandidates(c.Request.Context(), limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": reports, "count": len(reports)})
}
