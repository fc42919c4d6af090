package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/justsurfingit/ats-job-tracker/internal/dtos"
	"github.com/justsurfingit/ats-job-tracker/internal/models"
	"github.com/sirupsen/logrus"
)

type GoalStore interface {
	List(ctx context.Context, start, end *models.Date) ([]models.DailyGoal, error)
	GetToday(ctx context.Context) (*models.DailyGoal, error)
	Set(ctx context.Context, req *dtos.GoalUpsertRequest) (*models.DailyGoal, error)
}

type GoalHandler struct {
	Store GoalStore
	Log   *logrus.Logger
}

func NewGoalHandler(store GoalStore, log *logrus.Logger) *GoalHandler {
	return &GoalHandler{Store: store, Log: log}
}

// List is GET /goals?start=&end=
func (h *GoalHandler) List(c *gin.Context) {
	var q dtos.GoalRangeQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}
	start, err := optionalDate(q.Start)
	if err != nil {
		badRequest(c, err)
		return
	}
	end, err := optionalDate(q.End)
	if err != nil {
		badRequest(c, err)
		return
	}

	goals, err := h.Store.List(c.Request.Context(), start, end)
	if err != nil {
		respondError(c, h.Log, err, "Failed to list goals")
		return
	}
	c.JSON(http.StatusOK, goals)
}

func (h *GoalHandler) Today(c *gin.Context) {
	goal, err := h.Store.GetToday(c.Request.Context())
	if err != nil {
		respondError(c, h.Log, err, "Failed to load today's goal")
		return
	}
	c.JSON(http.StatusOK, goal)
}

// Set is POST /goals, an upsert keyed by goal_date.
func (h *GoalHandler) Set(c *gin.Context) {
	var req dtos.GoalUpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	goal, err := h.Store.Set(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.Log, err, "Failed to save goal")
		return
	}
	c.JSON(http.StatusOK, goal)
}

func optionalDate(s string) (*models.Date, error) {
	if s == "" {
		return nil, nil
	}
	d, err := models.ParseDate(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
