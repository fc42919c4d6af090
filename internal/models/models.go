package models

import (
	"time"

	"gorm.io/datatypes"
)

type Status string

const (
	StatusApplied      Status = "applied"
	StatusReferred     Status = "referred"
	StatusInterviewing Status = "interviewing"
	StatusOffer        Status = "offer"
	StatusRejected     Status = "rejected"
)

// Statuses lists every valid application status in pipeline order.
var Statuses = []Status{StatusApplied, StatusReferred, StatusInterviewing, StatusOffer, StatusRejected}

func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// Terminal reports whether no further recruiter updates are expected.
func (s Status) Terminal() bool {
	return s == StatusOffer || s == StatusRejected
}

// DefaultDailyTarget is used for goal rows created by the increment path
// and for the synthesized "today" record.
const DefaultDailyTarget = 10

type Application struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	CompanyName     string  `gorm:"size:255;not null" json:"company_name"`
	JobTitle        *string `gorm:"size:255" json:"job_title"`
	ApplicationLink *string `gorm:"type:text" json:"application_link"`
	Status          Status  `gorm:"size:50;index;default:'applied'" json:"status"`

	ResumeLatex    *string        `gorm:"type:text" json:"resume_latex"`
	OptimizedLatex *string        `gorm:"type:text" json:"optimized_latex"`
	JobDescription *string        `gorm:"type:text" json:"job_description"`
	Analysis       datatypes.JSON `json:"analysis"`
	ATSScore       *int           `gorm:"column:ats_score" json:"ats_score"`
}

// DailyGoal has one row per calendar day. The ID is omitted from JSON when
// the record was synthesized rather than read from the store.
type DailyGoal struct {
	ID        uint       `gorm:"primaryKey" json:"id,omitempty"`
	GoalDate  Date       `gorm:"type:date;uniqueIndex;not null" json:"goal_date"`
	Target    int        `gorm:"not null" json:"target"`
	Achieved  int        `gorm:"not null" json:"achieved"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// Analysis is the structured result of scoring a resume against a job description.
type Analysis struct {
	Score           int          `json:"score" binding:"min=0,max=100"`
	MissingKeywords []string     `json:"missingKeywords"`
	PresentKeywords []string     `json:"presentKeywords"`
	Suggestions     []Suggestion `json:"suggestions"`
	Summary         string       `json:"summary"`
}

type Suggestion struct {
	Section    string `json:"section"`
	Suggestion string `json:"suggestion"`
	Priority   string `json:"priority"`
}

// Stats is recomputed from the applications table on every request.
type Stats struct {
	Total     int64            `json:"total"`
	ByStatus  map[string]int64 `json:"byStatus"`
	ThisWeek  int64            `json:"thisWeek"`
	ThisMonth int64            `json:"thisMonth"`
	AvgScore  int              `json:"avgScore"`
}
