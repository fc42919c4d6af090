package dtos

import "github.com/justsurfingit/ats-job-tracker/internal/models"

type GoalUpsertRequest struct {
	GoalDate models.Date `json:"goal_date"`
	Target   *int        `json:"target" binding:"omitempty,min=0"`
	Achieved *int        `json:"achieved" binding:"omitempty,min=0"`
}

type GoalRangeQuery struct {
	Start string `form:"start"`
	End   string `form:"end"`
}
