package services

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/justsurfingit/ats-job-tracker/internal/dtos"
	"github.com/justsurfingit/ats-job-tracker/internal/metrics"
	"github.com/justsurfingit/ats-job-tracker/internal/models"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
)

const (
	llmTimeout = 60 * time.Second
	// Job pages are truncated before prompting to keep requests bounded.
	maxPostingChars = 20000
)

type LLMService struct {
	// nil when no API key is configured
	Client llms.Model
}

// NewLLMService builds a Gemini client. An empty apiKey yields a service
// whose methods return ErrLLMUnavailable.
func NewLLMService(ctx context.Context, apiKey, model string) (*LLMService, error) {
	if apiKey == "" {
		return &LLMService{}, nil
	}
	llm, err := googleai.New(ctx,
		googleai.WithAPIKey(apiKey),
		googleai.WithDefaultModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("create Gemini client: %w", err)
	}
	return &LLMService{Client: llm}, nil
}

func (s *LLMService) Enabled() bool { return s != nil && s.Client != nil }

const analyzePrompt = `You are an expert ATS (Applicant Tracking System) analyst and resume optimization specialist.

Analyze the LaTeX resume against the job description and provide ATS optimization recommendations.

LATEX RESUME:
%s

JOB DESCRIPTION:
%s

Score the resume from 0 to 100 using these weights:
- Keyword match percentage (40%%)
- Skills alignment (25%%)
- Experience relevance (20%%)
- Formatting and structure (15%%)

Output ONLY valid JSON in this exact format (no markdown, no code blocks):
{
  "score": number,
  "missingKeywords": ["keyword", ...],
  "presentKeywords": ["keyword", ...],
  "suggestions": [
    {"section": "Section Name", "suggestion": "Specific actionable improvement", "priority": "High" | "Medium" | "Low"}
  ],
  "summary": "Brief overall assessment"
}`

// AnalyzeResume scores a resume against a job description.
func (s *LLMService) AnalyzeResume(ctx context.Context, req *dtos.AnalyzeRequest) (*models.Analysis, error) {
	resp, err := s.generate(ctx, "analyze", fmt.Sprintf(analyzePrompt, req.ResumeContent, req.JobDescription))
	if err != nil {
		return nil, err
	}

	var analysis models.Analysis
	if err := json.Unmarshal([]byte(stripCodeFences(resp)), &analysis); err != nil {
		return nil, fmt.Errorf("decode analysis: %w", err)
	}
	return normalizeAnalysis(&analysis), nil
}

const optimizePrompt = `You are an expert LaTeX resume editor. Update ONLY the content of the resume while preserving ALL LaTeX syntax, commands and formatting.

RULES:
- Do not change, add or remove LaTeX commands, packages or environments
- Do not change the document structure or layout
- Add missing keywords naturally within existing sections
- Make bullet points more impactful and ATS-friendly, quantify achievements where possible

ORIGINAL LATEX RESUME:
%s

TARGET JOB DESCRIPTION:
%s

ANALYSIS AND OPTIMIZATION SUGGESTIONS:
%s

Return ONLY the updated LaTeX code starting with \documentclass, without explanations or markdown.`

// OptimizeResume rewrites the resume content guided by a previous analysis.
func (s *LLMService) OptimizeResume(ctx context.Context, req *dtos.OptimizeRequest) (string, error) {
	analysis := []byte("{}")
	if req.Analysis != nil {
		b, err := json.MarshalIndent(req.Analysis, "", "  ")
		if err != nil {
			return "", err
		}
		analysis = b
	}

	resp, err := s.generate(ctx, "optimize", fmt.Sprintf(optimizePrompt, req.OriginalLatex, req.JobDescription, analysis))
	if err != nil {
		return "", err
	}
	return stripCodeFences(resp), nil
}

const extractPrompt = `You are a job posting extraction agent. Analyze the raw HTML or text of a job posting.
Ignore navigation menus, footers, "similar jobs" lists and advertisements.

Output ONLY valid JSON, no markdown:
{
  "company_name": "Name of the company",
  "job_title": "Job title",
  "job_description": "Clean summary of responsibilities and requirements without HTML tags"
}
If a value is missing use an empty string. Do not guess.

RAW CONTENT:
%s`

// ExtractJobDetails pulls the fields of the save-application form out of a
// job posting.
func (s *LLMService) ExtractJobDetails(ctx context.Context, rawHTML string) (*dtos.JobExtractionResponse, error) {
	rawHTML = truncateUTF8(rawHTML, maxPostingChars)
	resp, err := s.generate(ctx, "extract", fmt.Sprintf(extractPrompt, rawHTML))
	if err != nil {
		return nil, err
	}

	var out dtos.JobExtractionResponse
	if err := json.Unmarshal([]byte(stripCodeFences(resp)), &out); err != nil {
		return nil, fmt.Errorf("decode job details: %w", err)
	}
	out.CompanyName = strings.TrimSpace(out.CompanyName)
	out.JobTitle = strings.TrimSpace(out.JobTitle)
	out.JobDescription = strings.TrimSpace(out.JobDescription)
	return &out, nil
}

const classifyPrompt = `You read recruiting emails about a job application at %s.
Classify what the email means for the application:
- "interviewing": an interview, assessment or next round is scheduled or requested
- "offer": an offer is extended
- "rejected": the candidate will not move forward
- "NO_CHANGE": confirmations, newsletters, anything else

Output ONLY valid JSON: {"status": "...", "summary": "one sentence"}

SUBJECT: %s

BODY:
%s`

// EmailVerdict is the classification of a recruiter email.
type EmailVerdict struct {
	Status  string `json:"status"`
	Summary string `json:"summary"`
}

// Change returns the status the email moves the application to, if any.
func (v EmailVerdict) Change() (models.Status, bool) {
	st := models.Status(strings.ToLower(strings.TrimSpace(v.Status)))
	switch st {
	case models.StatusInterviewing, models.StatusOffer, models.StatusRejected:
		return st, true
	}
	return "", false
}

func (s *LLMService) ClassifyEmail(ctx context.Context, company, subject, body string) (*EmailVerdict, error) {
	body = truncateUTF8(body, maxPostingChars)
	resp, err := s.generate(ctx, "classify_email", fmt.Sprintf(classifyPrompt, company, subject, body))
	if err != nil {
		return nil, err
	}
	var v EmailVerdict
	if err := json.Unmarshal([]byte(stripCodeFences(resp)), &v); err != nil {
		return nil, fmt.Errorf("decode email verdict: %w", err)
	}
	return &v, nil
}

func (s *LLMService) generate(ctx context.Context, op, prompt string) (string, error) {
	if !s.Enabled() {
		return "", ErrLLMUnavailable
	}
	ctx, cancel := context.WithTimeout(ctx, llmTimeout)
	defer cancel()

	resp, err := llms.GenerateFromSinglePrompt(ctx, s.Client, prompt)
	if err != nil {
		metrics.LLMRequests.WithLabelValues(op, "error").Inc()
		return "", fmt.Errorf("%s: %w", op, err)
	}
	metrics.LLMRequests.WithLabelValues(op, "ok").Inc()
	return resp, nil
}

// truncateUTF8 cuts s to at most n bytes without splitting a character.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

var fenceRe = regexp.MustCompile("```[a-zA-Z]*\\n?")

// stripCodeFences removes markdown code fences models like to wrap output in.
func stripCodeFences(s string) string {
	return strings.TrimSpace(fenceRe.ReplaceAllString(s, ""))
}

func normalizeAnalysis(a *models.Analysis) *models.Analysis {
	if a.Score < 0 {
		a.Score = 0
	}
	if a.Score > 100 {
		a.Score = 100
	}
	if a.MissingKeywords == nil {
		a.MissingKeywords = []string{}
	}
	if a.PresentKeywords == nil {
		a.PresentKeywords = []string{}
	}
	if a.Suggestions == nil {
		a.Suggestions = []models.Suggestion{}
	}
	for i := range a.Suggestions {
		a.Suggestions[i].Priority = normalizePriority(a.Suggestions[i].Priority)
	}
	return a
}

func normalizePriority(p string) string {
	switch strings.ToLower(strings.TrimSpace(p)) {
	case "high":
		return "High"
	case "low":
		return "Low"
	default:
		return "Medium"
	}
}
