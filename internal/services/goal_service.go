package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/justsurfingit/ats-job-tracker/internal/dtos"
	"github.com/justsurfingit/ats-job-tracker/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// recentGoalsLimit bounds List when no date range is given.
const recentGoalsLimit = 30

// GoalService maintains one daily_goals row per calendar day. "Today" is
// evaluated in Location.
type GoalService struct {
	DB            *gorm.DB
	Location      *time.Location
	DefaultTarget int

	now func() time.Time
}

func NewGoalService(db *gorm.DB, loc *time.Location, defaultTarget int) *GoalService {
	if loc == nil {
		loc = time.UTC
	}
	return &GoalService{
		DB:            db,
		Location:      loc,
		DefaultTarget: defaultTarget,
		now:           time.Now,
	}
}

func (s *GoalService) Today() models.Date {
	return models.DateOf(s.now().In(s.Location))
}

func (s *GoalService) IncrementToday(ctx context.Context) error {
	return s.Increment(ctx, s.Today())
}

// Increment adds one to the achieved count of day in a single upsert, so
// concurrent callers never lose an update. A missing row starts at one with
// the default target.
func (s *GoalService) Increment(ctx context.Context, day models.Date) error {
	created := s.now().UTC()
	goal := models.DailyGoal{
		GoalDate:  day,
		Target:    s.DefaultTarget,
		Achieved:  1,
		CreatedAt: &created,
	}
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "goal_date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"achieved": gorm.Expr("daily_goals.achieved + 1"),
		}),
	}).Create(&goal).Error
	if err != nil {
		return fmt.Errorf("increment goal for %s: %w", day, err)
	}
	return nil
}

// Set overwrites target and achieved for a day. Last writer wins.
func (s *GoalService) Set(ctx context.Context, req *dtos.GoalUpsertRequest) (*models.DailyGoal, error) {
	if req.GoalDate.IsZero() {
		return nil, fmt.Errorf("%w: goal_date is required", ErrValidation)
	}
	target := s.DefaultTarget
	if req.Target != nil {
		target = *req.Target
	}
	achieved := 0
	if req.Achieved != nil {
		achieved = *req.Achieved
	}
	if target < 0 || achieved < 0 {
		return nil, fmt.Errorf("%w: target and achieved must not be negative", ErrValidation)
	}

	created := s.now().UTC()
	goal := models.DailyGoal{
		GoalDate:  req.GoalDate,
		Target:    target,
		Achieved:  achieved,
		CreatedAt: &created,
	}
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "goal_date"}},
		DoUpdates: clause.AssignmentColumns([]string{"target", "achieved"}),
	}).Create(&goal).Error
	if err != nil {
		return nil, fmt.Errorf("set goal for %s: %w", req.GoalDate, err)
	}

	stored, err := s.find(ctx, req.GoalDate)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("goal for %s: %w", req.GoalDate, ErrNotFound)
	}
	return stored, nil
}

// List returns goals newest first. Either bound may be nil; both bounds are
// inclusive. Without any bound the most recent rows are returned.
func (s *GoalService) List(ctx context.Context, start, end *models.Date) ([]models.DailyGoal, error) {
	if start != nil && end != nil && end.Before(*start) {
		return nil, fmt.Errorf("%w: start %s is after end %s", ErrValidation, start, end)
	}

	q := s.DB.WithContext(ctx).Order("goal_date DESC")
	switch {
	case start != nil && end != nil:
		q = q.Where("goal_date BETWEEN ? AND ?", *start, *end)
	case start != nil:
		q = q.Where("goal_date >= ?", *start)
	case end != nil:
		q = q.Where("goal_date <= ?", *end)
	default:
		q = q.Limit(recentGoalsLimit)
	}

	goals := []models.DailyGoal{}
	if err := q.Find(&goals).Error; err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	return goals, nil
}

// GetToday returns the stored row for today or, without writing anything,
// a default record that has no id.
func (s *GoalService) GetToday(ctx context.Context) (*models.DailyGoal, error) {
	today := s.Today()
	goal, err := s.find(ctx, today)
	if err != nil {
		return nil, err
	}
	if goal == nil {
		return &models.DailyGoal{GoalDate: today, Target: s.DefaultTarget, Achieved: 0}, nil
	}
	return goal, nil
}

func (s *GoalService) find(ctx context.Context, day models.Date) (*models.DailyGoal, error) {
	var goal models.DailyGoal
	err := s.DB.WithContext(ctx).Where("goal_date = ?", day).First(&goal).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get goal for %s: %w", day, err)
	}
	return &goal, nil
}
