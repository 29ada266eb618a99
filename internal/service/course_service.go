package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/gestionmatricula/matricula-api/internal/models"
	appErrors "github.com/gestionmatricula/matricula-api/pkg/errors"
)

type courseRepository interface {
	List(ctx context.Context, filter models.CourseListFilter) ([]models.Course, int, error)
	FindByID(ctx context.Context, id string) (*models.Course, error)
	FindDetailByID(ctx context.Context, id string) (*models.CourseDetail, error)
	ExistsByCode(ctx context.Context, code string, excludeID string) (bool, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	SetActive(ctx context.Context, id string, active bool) error
}

type catalogInvalidator interface {
	Invalidate(ctx context.Context) error
}

// CreateCourseRequest captures fields for creating courses.
type CreateCourseRequest struct {
	Code      string `json:"code" validate:"required"`
	Name      string `json:"name" validate:"required"`
	Credits   int    `json:"credits" validate:"required,gt=0"`
	MaxSeats  int    `json:"max_seats" validate:"required,gt=0"`
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time" validate:"required"`
}

// UpdateCourseRequest modifies course fields.
type UpdateCourseRequest struct {
	Code      string `json:"code" validate:"required"`
	Name      string `json:"name" validate:"required"`
	Credits   int    `json:"credits" validate:"required,gt=0"`
	MaxSeats  int    `json:"max_seats" validate:"required,gt=0"`
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time" validate:"required"`
}

// CourseService handles coordinator course management. Every successful
// mutation invalidates the catalog cache before returning; invalidation
// failures are logged but never fail the write, the cache TTL is the
// backstop for those.
type CourseService struct {
	repo      courseRepository
	catalog   catalogInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService creates a new course service.
func NewCourseService(repo courseRepository, catalog catalogInvalidator, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{repo: repo, catalog: catalog, validator: validate, logger: logger}
}

// List returns paginated courses for coordinators, inactive included.
func (s *CourseService) List(ctx context.Context, filter models.CourseListFilter) ([]models.Course, *models.Pagination, error) {
	courses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return courses, pagination, nil
}

// Get returns a course with live seat occupancy.
func (s *CourseService) Get(ctx context.Context, id string) (*models.CourseDetail, error) {
	course, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

// Create adds a new active course enforcing schedule and code invariants.
func (s *CourseService) Create(ctx context.Context, req CreateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	req.Code = strings.TrimSpace(req.Code)
	start, end, err := validateSchedule(req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}

	exists, err := s.repo.ExistsByCode(ctx, req.Code, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check course code")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrDuplicateCode, "")
	}

	course := &models.Course{
		Code:      req.Code,
		Name:      req.Name,
		Credits:   req.Credits,
		MaxSeats:  req.MaxSeats,
		StartTime: start,
		EndTime:   end,
		Active:    true,
	}

	if err := s.repo.Create(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}

	s.invalidateCatalog(ctx, "create", course.ID)
	return course, nil
}

// Update modifies an existing course.
func (s *CourseService) Update(ctx context.Context, id string, req UpdateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	req.Code = strings.TrimSpace(req.Code)
	start, end, err := validateSchedule(req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}

	exists, err := s.repo.ExistsByCode(ctx, req.Code, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check course code")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrDuplicateCode, "")
	}

	course.Code = req.Code
	course.Name = req.Name
	course.Credits = req.Credits
	course.MaxSeats = req.MaxSeats
	course.StartTime = start
	course.EndTime = end

	if err := s.repo.Update(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}

	s.invalidateCatalog(ctx, "update", id)
	return course, nil
}

// SetActive toggles a course's active flag. Deactivation is the
// soft-delete path; courses are never destroyed.
func (s *CourseService) SetActive(ctx context.Context, id string, active bool) error {
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course state")
	}

	s.invalidateCatalog(ctx, "set_active", id)
	return nil
}

// invalidateCatalog clears the catalog snapshot after a course mutation.
// The write already succeeded, so failures here are logged and swallowed.
func (s *CourseService) invalidateCatalog(ctx context.Context, operation, courseID string) {
	if s.catalog == nil {
		return
	}
	if err := s.catalog.Invalidate(ctx); err != nil {
		s.logger.Warn("catalog invalidation failed",
			zap.String("operation", operation),
			zap.String("course_id", courseID),
			zap.Error(err))
	}
}

// validateSchedule checks that both bounds parse as "HH:MM" and start is
// strictly before end, returning the normalized values.
func validateSchedule(startRaw, endRaw string) (string, string, error) {
	start := strings.TrimSpace(startRaw)
	end := strings.TrimSpace(endRaw)
	if _, err := time.Parse("15:04", start); err != nil {
		return "", "", appErrors.Clone(appErrors.ErrValidation, "start_time must be a valid HH:MM value")
	}
	if _, err := time.Parse("15:04", end); err != nil {
		return "", "", appErrors.Clone(appErrors.ErrValidation, "end_time must be a valid HH:MM value")
	}
	if start >= end {
		return "", "", appErrors.Clone(appErrors.ErrValidation, "start_time must be before end_time")
	}
	return start, end, nil
}
