package services

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/justsurfingit/ats-job-tracker/internal/models"
	"gorm.io/gorm"
)

// StatsService derives dashboard numbers from the applications table. Each
// figure is its own query; nothing is cached.
type StatsService struct {
	DB       *gorm.DB
	Location *time.Location

	now func() time.Time
}

func NewStatsService(db *gorm.DB, loc *time.Location) *StatsService {
	if loc == nil {
		loc = time.UTC
	}
	return &StatsService{DB: db, Location: loc, now: time.Now}
}

func (s *StatsService) Get(ctx context.Context) (*models.Stats, error) {
	db := s.DB.WithContext(ctx)
	stats := &models.Stats{ByStatus: map[string]int64{}}

	if err := db.Model(&models.Application{}).Count(&stats.Total).Error; err != nil {
		return nil, fmt.Errorf("count applications: %w", err)
	}

	var groups []struct {
		Status string
		Count  int64
	}
	err := db.Model(&models.Application{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&groups).Error
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	for _, g := range groups {
		stats.ByStatus[g.Status] = g.Count
	}

	now := s.now().In(s.Location)
	if err := db.Model(&models.Application{}).Where("created_at >= ?", WeekStart(now).UTC()).Count(&stats.ThisWeek).Error; err != nil {
		return nil, fmt.Errorf("count this week: %w", err)
	}
	if err := db.Model(&models.Application{}).Where("created_at >= ?", MonthStart(now).UTC()).Count(&stats.ThisMonth).Error; err != nil {
		return nil, fmt.Errorf("count this month: %w", err)
	}

	var avg sql.NullFloat64
	err = db.Model(&models.Application{}).
		Select("AVG(ats_score)").
		Where("ats_score IS NOT NULL").
		Row().Scan(&avg)
	if err != nil {
		return nil, fmt.Errorf("average score: %w", err)
	}
	if avg.Valid {
		stats.AvgScore = int(math.Round(avg.Float64))
	}
	return stats, nil
}

// WeekStart returns Monday 00:00 of the week containing t, in t's location.
func WeekStart(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	y, m, d := t.Date()
	return time.Date(y, m, d-offset, 0, 0, 0, 0, t.Location())
}

// MonthStart returns the first day of t's month at 00:00, in t's location.
func MonthStart(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
}
