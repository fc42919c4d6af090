package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/justsurfingit/ats-job-tracker/internal/dtos"
	"github.com/justsurfingit/ats-job-tracker/internal/models"
	"github.com/justsurfingit/ats-job-tracker/internal/services"
	"github.com/sirupsen/logrus"
)

type Assistant interface {
	AnalyzeResume(ctx context.Context, req *dtos.AnalyzeRequest) (*models.Analysis, error)
	OptimizeResume(ctx context.Context, req *dtos.OptimizeRequest) (string, error)
	ExtractJobDetails(ctx context.Context, rawHTML string) (*dtos.JobExtractionResponse, error)
}

type PageFetcher interface {
	FetchText(ctx context.Context, url string) (string, error)
}

type AIHandler struct {
	LLM   Assistant
	Pages PageFetcher
	Log   *logrus.Logger
}

func NewAIHandler(llm Assistant, pages PageFetcher, log *logrus.Logger) *AIHandler {
	return &AIHandler{LLM: llm, Pages: pages, Log: log}
}

// Analyze is POST /ai/analyze
func (h *AIHandler) Analyze(c *gin.Context) {
	var req dtos.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	analysis, err := h.LLM.AnalyzeResume(c.Request.Context(), &req)
	if err != nil {
		h.upstreamError(c, err, "AI analysis failed")
		return
	}
	c.JSON(http.StatusOK, analysis)
}

// Optimize is POST /ai/optimize
func (h *AIHandler) Optimize(c *gin.Context) {
	var req dtos.OptimizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	latex, err := h.LLM.OptimizeResume(c.Request.Context(), &req)
	if err != nil {
		h.upstreamError(c, err, "AI optimization failed")
		return
	}
	c.JSON(http.StatusOK, dtos.OptimizeResponse{OptimizedLatex: latex})
}

// Extract is POST /ai/extract. Without raw_html the posting is fetched
// from url first.
func (h *AIHandler) Extract(c *gin.Context) {
	var req dtos.JobExtractionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	content := req.RawHTML
	if content == "" {
		text, err := h.Pages.FetchText(c.Request.Context(), req.URL)
		if errors.Is(err, services.ErrPrivateHost) {
			badRequest(c, err)
			return
		}
		if err != nil {
			h.upstreamError(c, err, "Could not fetch the job posting")
			return
		}
		content = text
	}

	details, err := h.LLM.ExtractJobDetails(c.Request.Context(), content)
	if err != nil {
		h.upstreamError(c, err, "AI extraction failed")
		return
	}
	c.JSON(http.StatusOK, details)
}

func (h *AIHandler) upstreamError(c *gin.Context, err error, msg string) {
	if errors.Is(err, services.ErrLLMUnavailable) {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "AI features are not configured"})
		return
	}
	_ = c.Error(err)
	h.Log.WithError(err).WithField("path", c.FullPath()).Warn(msg)
	c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": msg})
}
