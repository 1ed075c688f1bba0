package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Subho98799/nagar/internal/crypto"
	"github.com/Subho98799/nagar/internal/models"
	"github.com/Subho98799/nagar/internal/repository"
	"github.com/Subho98799/nagar/internal/service"
)

type ReportHandler interface {
	CreateReport(c *gin.Context)
	GetReport(c *gin.Context)
	ListReports(c *gin.Context)
	CityPulse(c *gin.Context)
}

type reportHandler struct {
	reports service.ReportService
	hasher  *crypto.IdentityHasher
	logger  *zap.Logger
}

func NewReportHandler(reports service.ReportService, hasher *crypto.IdentityHasher, logger *zap.Logger) ReportHandler {
	return &reportHandler{
		reports: reports,
		hasher:  hasher,
		logger:  logger,
	}
}

// CreateReportRequest is the citizen submission body.
type CreateReportRequest struct {
	Description string              `json:"description"`
	IssueType   string              `json:"issue_type"`
	City        string              `json:"city"`
	Locality    string              `json:"locality"`
	Coordinates *models.Coordinates `json:"coordinates"`
	MediaRefs   []string            `json:"media_refs"`
}

// CreateReport handles POST /api/reports
// The reporter is identified only by a keyed hash of the client address.
func (h *reportHandler) CreateReport(c *gin.Context) {
	var req CreateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report, err := h.reports.CreateReport(c.Request.Context(), service.CreateReportInput{
		Description:  req.Description,
		IssueType:    req.IssueType,
		City:         req.City,
		Locality:     req.Locality,
		Coordinates:  req.Coordinates,
		MediaRefs:    req.MediaRefs,
		IdentityHash: h.hasher.Hash(c.ClientIP()),
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, report)
}

// GetReport handles GET /api/reports/:id
func (h *reportHandler) GetReport(c *gin.Context) {
	report, err := h.reports.GetReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// ListReports handles GET /api/reports
// Query parameters:
// - status, confidence, locality, issue_type, city: exact filters (optional)
// - limit: max results, default 100 (optional)
func (h *reportHandler) ListReports(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	reports, err := h.reports.ListReports(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"reports": reports, "count": len(reports)})
}

// CityPulse handles GET /api/city-pulse?city=
func (h *reportHandler) CityPulse(c *gin.Context) {
	pulse, err := h.reports.CityPulse(c.Request.Context(), c.Query("city"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, pulse)
}

func parseFilter(c *gin.Context) (repository.Filter, error) {
	f := repository.Filter{
		Status:     models.Status(strings.ToUpper(strings.TrimSpace(c.Query("status")))),
		Confidence: models.Confidence(strings.ToUpper(strings.TrimSpace(c.Query("confidence")))),
		Locality:   strings.TrimSpace(c.Query("locality")),
		IssueType:  strings.TrimSpace(c.Query("issue_type")),
		City:       strings.TrimSpace(c.Query("city")),
	}
	limit, err := parseLimit(c)
	if err != nil {
		return f, err
	}
	f.Limit = limit
	return f, nil
}

func parseLimit(c *gin.Context) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, &models.ValidationError{Field: "limit", Message: "must be a non-negative integer"}
	}
	return limit, nil
}
