// Package handlers exposes the tracker over HTTP with gin.
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/justsurfingit/ats-job-tracker/internal/services"
	"github.com/sirupsen/logrus"
)

// HealthCheck answers liveness probes.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
}

// respondError maps service errors to a status code. Unexpected failures are
// logged and answered with a generic message.
func respondError(c *gin.Context, log *logrus.Logger, err error, msg string) {
	switch {
	case errors.Is(err, services.ErrValidation):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		_ = c.Error(err)
		log.WithError(err).WithField("path", c.FullPath()).Error(msg)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": msg})
	}
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid application id"})
		return 0, false
	}
	return uint(id), true
}
