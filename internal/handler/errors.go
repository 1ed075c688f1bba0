package handler

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Subho98799/nagar/internal/models"
)

// respondError maps domain errors onto status codes. Unknown errors are logged
// and hidden behind a generic 500.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	var (
		validation *models.ValidationError
		duplicate  *models.DuplicateReportError
		limited    *models.RateLimitedError
		transition *models.InvalidTransitionError
	)
	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": validation.Error(), "field": validation.Field})
	case errors.Is(err, models.ErrReportNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Report not found"})
	case errors.As(err, &duplicate):
		c.JSON(http.StatusConflict, gin.H{"error": duplicate.Error(), "existing_id": duplicate.ExistingID})
	case errors.As(err, &limited):
		seconds := int(math.Ceil(limited.RetryAfter.Seconds()))
		c.Header("Retry-After", strconv.Itoa(seconds))
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many reports, try again later", "retry_after_seconds": seconds})
	case errors.As(err, &transition):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   transition.Error(),
			"from":    transition.From,
			"to":      transition.To,
			"allowed": transition.Allowed,
		})
	case errors.Is(err, models.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "Report was modified concurrently, retry the request"})
	default:
		logger.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
