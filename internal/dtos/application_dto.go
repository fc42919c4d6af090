package dtos

import "github.com/justsurfingit/ats-job-tracker/internal/models"

type ApplicationCreateRequest struct {
	CompanyName     string  `json:"company_name" binding:"required"`
	JobTitle        *string `json:"job_title"`
	ApplicationLink *string `json:"application_link" binding:"omitempty,url"`

	// Defaults to "applied" when omitted
	Status *models.Status `json:"status" binding:"omitempty,oneof=applied referred interviewing offer rejected"`

	ResumeLatex    *string          `json:"resume_latex"`
	OptimizedLatex *string          `json:"optimized_latex"`
	JobDescription *string          `json:"job_description"`
	Analysis       *models.Analysis `json:"analysis"`
	ATSScore       *int             `json:"ats_score" binding:"omitempty,min=0,max=100"`
}

// ApplicationUpdateRequest is a coalescing update: nil fields keep their
// stored value.
type ApplicationUpdateRequest struct {
	CompanyName     *string        `json:"company_name"`
	JobTitle        *string        `json:"job_title"`
	ApplicationLink *string        `json:"application_link" binding:"omitempty,url"`
	Status          *models.Status `json:"status" binding:"omitempty,oneof=applied referred interviewing offer rejected"`

	ResumeLatex    *string          `json:"resume_latex"`
	OptimizedLatex *string          `json:"optimized_latex"`
	JobDescription *string          `json:"job_description"`
	Analysis       *models.Analysis `json:"analysis"`
	ATSScore       *int             `json:"ats_score" binding:"omitempty,min=0,max=100"`
}
