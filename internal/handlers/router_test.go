package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/justsurfingit/ats-job-tracker/internal/config"
	"github.com/justsurfingit/ats-job-tracker/internal/database"
	"github.com/justsurfingit/ats-job-tracker/internal/dtos"
	"github.com/justsurfingit/ats-job-tracker/internal/middleware"
	"github.com/justsurfingit/ats-job-tracker/internal/models"
	"github.com/justsurfingit/ats-job-tracker/internal/services"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeAssistant struct {
	err       error
	extracted string
}

func (f *fakeAssistant) AnalyzeResume(ctx context.Context, req *dtos.AnalyzeRequest) (*models.Analysis, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.Analysis{Score: 82, MissingKeywords: []string{"kubernetes"}, PresentKeywords: []string{"go"}, Suggestions: []models.Suggestion{}, Summary: "solid"}, nil
}

func (f *fakeAssistant) OptimizeResume(ctx context.Context, req *dtos.OptimizeRequest) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return req.OriginalLatex + "% tuned", nil
}

func (f *fakeAssistant) ExtractJobDetails(ctx context.Context, rawHTML string) (*dtos.JobExtractionResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.extracted = rawHTML
	return &dtos.JobExtractionResponse{CompanyName: "Acme", JobTitle: "Backend Engineer", JobDescription: "Build APIs"}, nil
}

type fakePages struct {
	text string
	err  error
	url  string
}

func (f *fakePages) FetchText(ctx context.Context, url string) (string, error) {
	f.url = url
	return f.text, f.err
}

type testServer struct {
	router http.Handler
	ai     *fakeAssistant
	pages  *fakePages
	db     *gorm.DB
}

func newTestServer(t *testing.T, passcode string) *testServer {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	db, err := database.Connect(&config.Config{DBDriver: "sqlite", DatabaseURL: ":memory:"}, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	goals := services.NewGoalService(db, time.UTC, models.DefaultDailyTarget)
	apps := services.NewApplicationService(db, goals, log)
	ai := &fakeAssistant{}
	pages := &fakePages{text: "Acme is hiring a Backend Engineer"}

	r := NewRouter(RouterDeps{
		Applications: NewApplicationHandler(apps, log),
		Goals:        NewGoalHandler(goals, log),
		Stats:        NewStatsHandler(services.NewStatsService(db, time.UTC), log),
		AI:           NewAIHandler(ai, pages, log),
		Log:          log,
		Passcode:     passcode,
		AILimiter:    middleware.NewRateLimiter(100, 100),
	})
	return &testServer{router: r, ai: ai, pages: pages, db: db}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			rd = bytes.NewBufferString(b)
		default:
			raw, err := json.Marshal(b)
			require.NoError(t, err)
			rd = bytes.NewReader(raw)
		}
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func TestApplicationLifecycle(t *testing.T) {
	s := newTestServer(t, "")

	w := s.do(t, http.MethodPost, "/api/applications", gin.H{"company_name": "Acme", "job_title": "SRE", "ats_score": 80})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created models.Application
	decode(t, w, &created)
	assert.NotZero(t, created.ID)
	assert.Equal(t, models.StatusApplied, created.Status)

	w = s.do(t, http.MethodGet, "/api/goals/today", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var today models.DailyGoal
	decode(t, w, &today)
	assert.Equal(t, 1, today.Achieved)
	assert.Equal(t, models.DefaultDailyTarget, today.Target)

	w = s.do(t, http.MethodPut, "/api/applications/1", gin.H{"status": "interviewing"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated models.Application
	decode(t, w, &updated)
	assert.Equal(t, models.StatusInterviewing, updated.Status)
	require.NotNil(t, updated.JobTitle)
	assert.Equal(t, "SRE", *updated.JobTitle)

	w = s.do(t, http.MethodGet, "/api/applications?status=interviewing", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.Application
	decode(t, w, &list)
	assert.Len(t, list, 1)

	w = s.do(t, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats models.Stats
	decode(t, w, &stats)
	assert.Equal(t, int64(1), stats.Total)
	assert.Equal(t, int64(1), stats.ByStatus["interviewing"])
	assert.Equal(t, 80, stats.AvgScore)

	w = s.do(t, http.MethodDelete, "/api/applications/1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var deleted struct {
		Message     string             `json:"message"`
		Application models.Application `json:"application"`
	}
	decode(t, w, &deleted)
	assert.Equal(t, "Application deleted", deleted.Message)
	assert.Equal(t, created.ID, deleted.Application.ID)

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/applications/1", nil).Code)

	// Deleting does not take back the goal credit.
	w = s.do(t, http.MethodGet, "/api/goals/today", nil)
	decode(t, w, &today)
	assert.Equal(t, 1, today.Achieved)
}

func TestApplicationErrors(t *testing.T) {
	s := newTestServer(t, "")

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		want   int
	}{
		{"missing company", http.MethodPost, "/api/applications", gin.H{"job_title": "SRE"}, http.StatusBadRequest},
		{"blank company", http.MethodPost, "/api/applications", gin.H{"company_name": "   "}, http.StatusBadRequest},
		{"bad status", http.MethodPost, "/api/applications", gin.H{"company_name": "Acme", "status": "ghosted"}, http.StatusBadRequest},
		{"bad json", http.MethodPost, "/api/applications", "{", http.StatusBadRequest},
		{"analysis not an object", http.MethodPost, "/api/applications", gin.H{"company_name": "Acme", "analysis": "great fit"}, http.StatusBadRequest},
		{"analysis wrong field types", http.MethodPost, "/api/applications", gin.H{"company_name": "Acme", "analysis": gin.H{"score": "high", "suggestions": "none"}}, http.StatusBadRequest},
		{"score out of range", http.MethodPost, "/api/applications", gin.H{"company_name": "Acme", "ats_score": 101}, http.StatusBadRequest},
		{"non numeric id", http.MethodGet, "/api/applications/abc", nil, http.StatusBadRequest},
		{"missing get", http.MethodGet, "/api/applications/42", nil, http.StatusNotFound},
		{"missing update", http.MethodPut, "/api/applications/42", gin.H{"status": "offer"}, http.StatusNotFound},
		{"missing delete", http.MethodDelete, "/api/applications/42", nil, http.StatusNotFound},
		{"bad filter", http.MethodGet, "/api/applications?status=ghosted", nil, http.StatusBadRequest},
		{"unsupported method", http.MethodPatch, "/api/applications/1", nil, http.StatusMethodNotAllowed},
		{"unknown route", http.MethodGet, "/api/nope", nil, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
			var body map[string]interface{}
			decode(t, w, &body)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestListAllFilter(t *testing.T) {
	s := newTestServer(t, "")
	for _, company := range []string{"Acme", "Globex"} {
		require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/applications", gin.H{"company_name": company}).Code)
	}

	var list []models.Application
	decode(t, s.do(t, http.MethodGet, "/api/applications?status=all", nil), &list)
	require.Len(t, list, 2)
	assert.Equal(t, "Globex", list[0].CompanyName)

	w := s.do(t, http.MethodGet, "/api/applications?status=offer", nil)
	assert.Equal(t, "[]", w.Body.String())
}

func TestGoals(t *testing.T) {
	s := newTestServer(t, "")

	w := s.do(t, http.MethodGet, "/api/goals/today", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var today map[string]interface{}
	decode(t, w, &today)
	_, hasID := today["id"]
	assert.False(t, hasID, "synthesized goal must not carry an id")
	assert.EqualValues(t, 0, today["achieved"])

	w = s.do(t, http.MethodPost, "/api/goals", gin.H{"goal_date": "2026-10-01", "target": 5, "achieved": 2})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = s.do(t, http.MethodPost, "/api/goals", gin.H{"goal_date": "2026-10-03", "target": 8})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var set models.DailyGoal
	decode(t, w, &set)
	assert.Equal(t, 8, set.Target)
	assert.Equal(t, 0, set.Achieved)

	var goals []models.DailyGoal
	decode(t, s.do(t, http.MethodGet, "/api/goals?start=2026-10-01&end=2026-10-02", nil), &goals)
	require.Len(t, goals, 1)
	assert.Equal(t, "2026-10-01", goals[0].GoalDate.String())

	decode(t, s.do(t, http.MethodGet, "/api/goals?start=2026-10-02", nil), &goals)
	require.Len(t, goals, 1)
	assert.Equal(t, "2026-10-03", goals[0].GoalDate.String())

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/goals?start=10/01/2026", nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/goals?start=2026-10-05&end=2026-10-01", nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/goals", gin.H{"target": 3}).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/goals", gin.H{"goal_date": "2026-10-01", "target": -1}).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/goals", gin.H{"goal_date": "yesterday"}).Code)
}

func TestPreflightAndCORS(t *testing.T) {
	s := newTestServer(t, "secret")

	req := httptest.NewRequest(http.MethodOptions, "/api/applications", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w = s.do(t, http.MethodOptions, "/api/stats", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestPasscodeGate(t *testing.T) {
	s := newTestServer(t, "secret")

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/health", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/api/stats", nil).Code)

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	req.Header.Set(middleware.PasscodeHeader, "secret")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, "")
	s.do(t, http.MethodGet, "/api/health", nil)

	w := s.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ats_tracker_http_requests_total")
}

func TestAIEndpoints(t *testing.T) {
	s := newTestServer(t, "")

	w := s.do(t, http.MethodPost, "/api/ai/analyze", gin.H{"resumeContent": "\\documentclass{article}", "jobDescription": "Go developer"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var analysis models.Analysis
	decode(t, w, &analysis)
	assert.Equal(t, 82, analysis.Score)

	w = s.do(t, http.MethodPost, "/api/ai/optimize", gin.H{"originalLatex": "\\documentclass{article}", "jobDescription": "Go developer"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var opt dtos.OptimizeResponse
	decode(t, w, &opt)
	assert.Contains(t, opt.OptimizedLatex, "% tuned")

	w = s.do(t, http.MethodPost, "/api/ai/extract", gin.H{"url": "https://jobs.example.com/42"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Acme is hiring a Backend Engineer", s.ai.extracted)

	w = s.do(t, http.MethodPost, "/api/ai/extract", gin.H{"raw_html": "<h1>Globex</h1>"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "<h1>Globex</h1>", s.ai.extracted)

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/ai/extract", gin.H{}).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/ai/analyze", gin.H{"resumeContent": "x"}).Code)

	s.ai.err = services.ErrLLMUnavailable
	assert.Equal(t, http.StatusServiceUnavailable, s.do(t, http.MethodPost, "/api/ai/analyze", gin.H{"resumeContent": "x", "jobDescription": "y"}).Code)

	s.ai.err = errors.New("quota exceeded for key AIza-secret")
	w = s.do(t, http.MethodPost, "/api/ai/analyze", gin.H{"resumeContent": "x", "jobDescription": "y"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.JSONEq(t, `{"error":"AI analysis failed"}`, w.Body.String())
}

func TestExtractURLErrors(t *testing.T) {
	s := newTestServer(t, "")

	s.pages.err = fmt.Errorf("fetch: %w", services.ErrPrivateHost)
	w := s.do(t, http.MethodPost, "/api/ai/extract", gin.H{"url": "http://127.0.0.1:5432/"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "http://127.0.0.1:5432/", s.pages.url)
	assert.Empty(t, s.ai.extracted)

	s.pages.err = errors.New("dial tcp: connection refused")
	w = s.do(t, http.MethodPost, "/api/ai/extract", gin.H{"url": "https://jobs.example.com/1"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.JSONEq(t, `{"error":"Could not fetch the job posting"}`, w.Body.String())
}

func TestStoreFailuresAnswerGeneric500(t *testing.T) {
	s := newTestServer(t, "")
	require.NoError(t, database.Close(s.db))

	tests := []struct {
		method string
		path   string
		body   interface{}
		want   string
	}{
		{http.MethodGet, "/api/stats", nil, "Failed to compute stats"},
		{http.MethodGet, "/api/applications", nil, "Failed to list applications"},
		{http.MethodGet, "/api/goals/today", nil, "Failed to load today's goal"},
		{http.MethodPost, "/api/applications", gin.H{"company_name": "Acme"}, "Failed to create application"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := s.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, http.StatusInternalServerError, w.Code)
			var body map[string]string
			decode(t, w, &body)
			assert.Equal(t, tt.want, body["error"])
		})
	}
}
