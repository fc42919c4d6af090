package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/justsurfingit/ats-job-tracker/internal/dtos"
	"github.com/justsurfingit/ats-job-tracker/internal/metrics"
	"github.com/justsurfingit/ats-job-tracker/internal/models"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// GoalCounter is the part of the goal maintainer that application creation
// depends on.
type GoalCounter interface {
	IncrementToday(ctx context.Context) error
}

const goalWriteTimeout = 5 * time.Second

type ApplicationService struct {
	DB    *gorm.DB
	Goals GoalCounter
	Log   *logrus.Logger

	now func() time.Time
}

func NewApplicationService(db *gorm.DB, goals GoalCounter, log *logrus.Logger) *ApplicationService {
	return &ApplicationService{
		DB:    db,
		Goals: goals,
		Log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// List returns applications newest first. An empty status or "all" disables
// the filter.
func (s *ApplicationService) List(ctx context.Context, status string) ([]models.Application, error) {
	q := s.DB.WithContext(ctx).Order("created_at DESC").Order("id DESC")
	if status != "" && status != "all" {
		if !models.Status(status).Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
		}
		q = q.Where("status = ?", status)
	}

	apps := []models.Application{}
	if err := q.Find(&apps).Error; err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	return apps, nil
}

func (s *ApplicationService) Get(ctx context.Context, id uint) (*models.Application, error) {
	var app models.Application
	err := s.DB.WithContext(ctx).First(&app, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("application %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get application %d: %w", id, err)
	}
	return &app, nil
}

// Create inserts the application and then bumps today's goal counter. The
// two writes are independent statements: a failed increment is logged and
// the application is still reported as created.
func (s *ApplicationService) Create(ctx context.Context, req *dtos.ApplicationCreateRequest) (*models.Application, error) {
	name := strings.TrimSpace(req.CompanyName)
	if name == "" {
		return nil, fmt.Errorf("%w: company_name is required", ErrValidation)
	}

	status := models.StatusApplied
	if req.Status != nil {
		if !req.Status.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, *req.Status)
		}
		status = *req.Status
	}
	if err := checkScore(req.ATSScore); err != nil {
		return nil, err
	}
	analysis, err := encodeAnalysis(req.Analysis)
	if err != nil {
		return nil, err
	}

	now := s.now()
	app := &models.Application{
		CreatedAt:       now,
		UpdatedAt:       now,
		CompanyName:     name,
		JobTitle:        req.JobTitle,
		ApplicationLink: req.ApplicationLink,
		Status:          status,
		ResumeLatex:     req.ResumeLatex,
		OptimizedLatex:  req.OptimizedLatex,
		JobDescription:  req.JobDescription,
		Analysis:        analysis,
		ATSScore:        req.ATSScore,
	}
	if err := s.DB.WithContext(ctx).Create(app).Error; err != nil {
		return nil, fmt.Errorf("create application: %w", err)
	}
	metrics.ApplicationsCreated.Inc()

	// The application is stored; the goal write must not be cancelled with
	// the request.
	goalCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), goalWriteTimeout)
	defer cancel()
	if err := s.Goals.IncrementToday(goalCtx); err != nil {
		metrics.GoalIncrementFailures.Inc()
		s.Log.WithError(err).WithField("application_id", app.ID).
			Warn("Daily goal increment failed, application kept")
	}
	return app, nil
}

// Update applies only the supplied fields and always refreshes updated_at.
func (s *ApplicationService) Update(ctx context.Context, id uint, req *dtos.ApplicationUpdateRequest) (*models.Application, error) {
	fields := map[string]interface{}{}

	if req.CompanyName != nil {
		name := strings.TrimSpace(*req.CompanyName)
		if name == "" {
			return nil, fmt.Errorf("%w: company_name cannot be blank", ErrValidation)
		}
		fields["company_name"] = name
	}
	if req.Status != nil {
		if !req.Status.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, *req.Status)
		}
		fields["status"] = *req.Status
	}
	if err := checkScore(req.ATSScore); err != nil {
		return nil, err
	}
	if req.ATSScore != nil {
		fields["ats_score"] = *req.ATSScore
	}
	if req.Analysis != nil {
		analysis, err := encodeAnalysis(req.Analysis)
		if err != nil {
			return nil, err
		}
		fields["analysis"] = analysis
	}
	setIfPresent(fields, "job_title", req.JobTitle)
	setIfPresent(fields, "application_link", req.ApplicationLink)
	setIfPresent(fields, "resume_latex", req.ResumeLatex)
	setIfPresent(fields, "optimized_latex", req.OptimizedLatex)
	setIfPresent(fields, "job_description", req.JobDescription)
	fields["updated_at"] = s.now()

	res := s.DB.WithContext(ctx).Model(&models.Application{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return nil, fmt.Errorf("update application %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("application %d: %w", id, ErrNotFound)
	}
	return s.Get(ctx, id)
}

// Delete removes the application and returns the removed row. Goal counters
// are left untouched.
func (s *ApplicationService) Delete(ctx context.Context, id uint) (*models.Application, error) {
	app, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	res := s.DB.WithContext(ctx).Delete(&models.Application{}, id)
	if res.Error != nil {
		return nil, fmt.Errorf("delete application %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("application %d: %w", id, ErrNotFound)
	}
	return app, nil
}

// Active returns applications that can still change status, used by the
// mail status sync.
func (s *ApplicationService) Active(ctx context.Context) ([]models.Application, error) {
	apps := []models.Application{}
	err := s.DB.WithContext(ctx).
		Where("status NOT IN ?", terminalStatuses()).
		Order("created_at DESC").
		Find(&apps).Error
	if err != nil {
		return nil, fmt.Errorf("list active applications: %w", err)
	}
	return apps, nil
}

func terminalStatuses() []models.Status {
	var out []models.Status
	for _, st := range models.Statuses {
		if st.Terminal() {
			out = append(out, st)
		}
	}
	return out
}

func setIfPresent(fields map[string]interface{}, column string, v *string) {
	if v != nil {
		fields[column] = *v
	}
}

func checkScore(score *int) error {
	if score != nil && (*score < 0 || *score > 100) {
		return fmt.Errorf("%w: ats_score must be between 0 and 100", ErrValidation)
	}
	return nil
}

func encodeAnalysis(a *models.Analysis) (datatypes.JSON, error) {
	if a == nil {
		return nil, nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("%w: analysis: %v", ErrValidation, err)
	}
	return datatypes.JSON(b), nil
}
