package dtos

import "github.com/justsurfingit/ats-job-tracker/internal/models"

type AnalyzeRequest struct {
	ResumeContent  string `json:"resumeContent" binding:"required"`
	JobDescription string `json:"jobDescription" binding:"required"`
}

type OptimizeRequest struct {
	OriginalLatex  string           `json:"originalLatex" binding:"required"`
	Analysis       *models.Analysis `json:"analysis"`
	JobDescription string           `json:"jobDescription" binding:"required"`
}

type OptimizeResponse struct {
	OptimizedLatex string `json:"optimizedLatex"`
}

// JobExtractionRequest carries either the raw posting HTML or its URL.
type JobExtractionRequest struct {
	RawHTML string `json:"raw_html" binding:"required_without=URL"`
	URL     string `json:"url" binding:"omitempty,url"`
}

type JobExtractionResponse struct {
	CompanyName    string `json:"company_name"`
	JobTitle       string `json:"job_title"`
	JobDescription string `json:"job_description"`
}
