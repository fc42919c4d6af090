package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/justsurfingit/ats-job-tracker/internal/models"
	"github.com/sirupsen/logrus"
)

type StatsReader interface {
	Get(ctx context.Context) (*models.Stats, error)
}

type StatsHandler struct {
	Stats StatsReader
	Log   *logrus.Logger
}

func NewStatsHandler(stats StatsReader, log *logrus.Logger) *StatsHandler {
	return &StatsHandler{Stats: stats, Log: log}
}

func (h *StatsHandler) Get(c *gin.Context) {
	stats, err := h.Stats.Get(c.Request.Context())
	if err != nil {
		respondError(c, h.Log, err, "Failed to compute stats")
		return
	}
	c.JSON(http.StatusOK, stats)
}
