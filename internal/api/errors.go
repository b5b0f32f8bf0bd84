package api

import (
	"errors"
	"net/http"

	"SpreadSync/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrLanguageModelDisabled):
		return http.StatusServiceUnavailable
	case errors.Is(err, service.ErrGameNotFound), errors.Is(err, service.ErrNoWeeks):
		return http.StatusNotFound
	case errors.Is(err, service.ErrUnsafeSQL),
		errors.Is(err, service.ErrEmptyQuestion),
		errors.Is(err, service.ErrUnknownSeason),
		errors.Is(err, service.ErrConfirmationRequired):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondError maps service errors to status codes; only 5xx are logged as errors.
func respondError(c *gin.Context, logger *logrus.Logger, op string, err error) {
	status := statusFor(err)
	entry := logger.WithError(err).WithFields(logrus.Fields{"op": op, "status": status, "path": c.FullPath()})
	if status >= http.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Debug("request rejected")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
