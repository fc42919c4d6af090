package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/justsurfingit/ats-job-tracker/internal/dtos"
	"github.com/justsurfingit/ats-job-tracker/internal/models"
	"github.com/sirupsen/logrus"
)

type ApplicationStore interface {
	List(ctx context.Context, status string) ([]models.Application, error)
	Get(ctx context.Context, id uint) (*models.Application, error)
	Create(ctx context.Context, req *dtos.ApplicationCreateRequest) (*models.Application, error)
	Update(ctx context.Context, id uint, req *dtos.ApplicationUpdateRequest) (*models.Application, error)
	Delete(ctx context.Context, id uint) (*models.Application, error)
}

type ApplicationHandler struct {
	Store ApplicationStore
	Log   *logrus.Logger
}

func NewApplicationHandler(store ApplicationStore, log *logrus.Logger) *ApplicationHandler {
	return &ApplicationHandler{Store: store, Log: log}
}

// List is GET /applications?status=
func (h *ApplicationHandler) List(c *gin.Context) {
	apps, err := h.Store.List(c.Request.Context(), c.Query("status"))
	if err != nil {
		respondError(c, h.Log, err, "Failed to list applications")
		return
	}
	c.JSON(http.StatusOK, apps)
}

func (h *ApplicationHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	app, err := h.Store.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.Log, err, "Failed to load application")
		return
	}
	c.JSON(http.StatusOK, app)
}

// Create is POST /applications. The daily goal is bumped by the store.
func (h *ApplicationHandler) Create(c *gin.Context) {
	var req dtos.ApplicationCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	app, err := h.Store.Create(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.Log, err, "Failed to create application")
		return
	}
	c.JSON(http.StatusCreated, app)
}

func (h *ApplicationHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req dtos.ApplicationUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	app, err := h.Store.Update(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, h.Log, err, "Failed to update application")
		return
	}
	c.JSON(http.StatusOK, app)
}

func (h *ApplicationHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	app, err := h.Store.Delete(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.Log, err, "Failed to delete application")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Application deleted", "application": app})
}
